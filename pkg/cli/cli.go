// Package cli is a small flag parser and help-page renderer for the mcc tools.
// It understands GNU-style long flags, single-dash shorthands and -W/-F toggle groups
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// setter parses a command-line value into the variable it was bound to
type setter func(string) error

// Flag is one registered option
type Flag struct {
	Long    string
	Short   string
	Help    string
	Arg     string // placeholder shown in help; empty for switches
	Default string
	set     setter
	isBool  bool
}

// Toggle is one -X<name>/-Xno-<name> pair of a group. After parsing, On and
// Off report which of the two spellings appeared
type Toggle struct {
	Name    string
	Help    string
	Default bool
	On      bool
	Off     bool
}

type group struct {
	title   string
	prefix  string
	noun    string
	toggles []*Toggle
}

type FlagSet struct {
	name   string
	long   map[string]*Flag
	short  map[string]*Flag
	groups []group
	rest   []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{name: name, long: map[string]*Flag{}, short: map[string]*Flag{}}
}

// Args returns the positional arguments left after Parse
func (fs *FlagSet) Args() []string { return fs.rest }

func (fs *FlagSet) Lookup(long string) *Flag { return fs.long[long] }

func (fs *FlagSet) String(p *string, long, short, def, help, arg string) {
	*p = def
	fs.add(&Flag{Long: long, Short: short, Help: help, Arg: arg, Default: def,
		set: func(s string) error { *p = s; return nil }})
}

func (fs *FlagSet) Bool(p *bool, long, short string, def bool, help string) {
	*p = def
	fs.add(&Flag{Long: long, Short: short, Help: help, Default: strconv.FormatBool(def), isBool: true,
		set: func(s string) error {
			if s == "" {
				*p = true
				return nil
			}
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("--%s expects true or false, got '%s'", long, s)
			}
			*p = b
			return nil
		}})
}

func (fs *FlagSet) Int(p *int, long, short string, def int, help string) {
	*p = def
	fs.add(&Flag{Long: long, Short: short, Help: help, Arg: "n", Default: strconv.Itoa(def),
		set: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("--%s expects a number, got '%s'", long, s)
			}
			*p = n
			return nil
		}})
}

func (fs *FlagSet) add(f *Flag) {
	if f.Long == "" || fs.long[f.Long] != nil {
		panic("cli: bad or duplicate flag name '" + f.Long + "'")
	}
	fs.long[f.Long] = f
	if f.Short == "" {
		return
	}
	if fs.short[f.Short] != nil {
		panic("cli: duplicate shorthand '" + f.Short + "'")
	}
	fs.short[f.Short] = f
}

// Group registers prefix+name and prefix+"no-"+name switches for every toggle.
// noun names a member in the help page ("warning", "feature")
func (fs *FlagSet) Group(title, prefix, noun string, toggles []*Toggle) {
	for _, t := range toggles {
		fs.Bool(&t.On, prefix+t.Name, "", false, t.Help)
		fs.Bool(&t.Off, prefix+"no-"+t.Name, "", false, "Disable '"+t.Name+"'")
	}
	fs.groups = append(fs.groups, group{title: title, prefix: prefix, noun: noun, toggles: toggles})
}

// resolve finds the flag an argument names. Both -name and --name reach long
// flags; a single dash falls back to a shorthand with an optional glued value
func (fs *FlagSet) resolve(arg string) (f *Flag, inline string, hasInline bool, err error) {
	body := strings.TrimLeft(arg, "-")
	name, inline, hasInline := strings.Cut(body, "=")
	if name == "" {
		return nil, "", false, fmt.Errorf("malformed flag '%s'", arg)
	}
	if f = fs.long[name]; f != nil {
		return f, inline, hasInline, nil
	}
	if !strings.HasPrefix(arg, "--") {
		if f = fs.short[body[:1]]; f != nil {
			if len(body) > 1 {
				return f, body[1:], true, nil
			}
			return f, "", false, nil
		}
	}
	return nil, "", false, fmt.Errorf("unknown flag '%s'", arg)
}

func (fs *FlagSet) Parse(argv []string) error {
	fs.rest = nil
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			fs.rest = append(fs.rest, argv[i+1:]...)
			return nil
		case arg == "-" || !strings.HasPrefix(arg, "-"):
			fs.rest = append(fs.rest, arg)
			continue
		}

		f, val, hasVal, err := fs.resolve(arg)
		if err != nil {
			return err
		}
		if !hasVal && !f.isBool {
			if i+1 == len(argv) {
				return fmt.Errorf("'%s' needs a value", arg)
			}
			i++
			val = argv[i]
		}
		if err := f.set(val); err != nil {
			return err
		}
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name), Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run parses arguments and hands the positional ones to Action, or prints the
// help page when -h/--help is given
func (a *App) Run(arguments []string) error {
	var help bool
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(a.Stderr, "%s: %v\nTry '%s --help'.\n", a.Name, err, a.Name)
		return err
	}
	switch {
	case help:
		a.WriteHelp(a.Stdout)
	case a.Action != nil:
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

// WriteHelp renders the help page, wrapping usage text to the terminal width
func (a *App) WriteHelp(w io.Writer) {
	p := page{width: terminalWidth()}
	options := a.options()
	for _, f := range options {
		p.column = max(p.column, len(flagLabel(f)))
	}
	for _, g := range a.FlagSet.groups {
		p.column = max(p.column, len(g.prefix)+len(g.noun)+6)
		for _, t := range g.toggles {
			p.column = max(p.column, len(t.Name))
		}
	}

	if len(a.Authors) > 0 {
		fmt.Fprintf(&p.sb, "\n    Copyright (c): %s and contributors\n", strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&p.sb, "    Source: %s\n", a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&p.sb, "\n    Synopsis\n        %s %s\n", a.Name, a.Synopsis)
	}
	if a.Description != "" {
		p.section("Description")
		p.row("", a.Description, "")
	}

	if len(options) > 0 {
		p.section("Options")
		for _, f := range options {
			mark := ""
			if !f.isBool && f.Default != "" {
				mark = "|" + f.Default + "|"
			}
			p.row(flagLabel(f), f.Help, mark)
		}
	}

	for _, g := range a.FlagSet.groups {
		p.section(g.title)
		p.row(fmt.Sprintf("-%s<%s>", g.prefix, g.noun), "Enable a specific "+g.noun, "")
		p.row(fmt.Sprintf("-%sno-<%s>", g.prefix, g.noun), "Disable a specific "+g.noun, "")
		toggles := append([]*Toggle(nil), g.toggles...)
		sort.Slice(toggles, func(i, j int) bool { return toggles[i].Name < toggles[j].Name })
		for _, t := range toggles {
			mark := "|-|"
			if t.Default {
				mark = "|x|"
			}
			p.row(t.Name, t.Help, mark)
		}
	}
	io.WriteString(w, p.sb.String())
}

// options lists the flags that do not belong to a toggle group, by name
func (a *App) options() []*Flag {
	inGroup := map[string]bool{}
	for _, g := range a.FlagSet.groups {
		for _, t := range g.toggles {
			inGroup[g.prefix+t.Name] = true
			inGroup[g.prefix+"no-"+t.Name] = true
		}
	}
	var out []*Flag
	for name, f := range a.FlagSet.long {
		if !inGroup[name] {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Long < out[j].Long })
	return out
}

func flagLabel(f *Flag) string {
	label := "--" + f.Long
	if f.Short != "" {
		label = "-" + f.Short + ", " + label
	}
	if f.Arg != "" && !f.isBool {
		label += " <" + f.Arg + ">"
	}
	return label
}

type page struct {
	sb     strings.Builder
	width  int
	column int
}

func (p *page) section(title string) { fmt.Fprintf(&p.sb, "\n    %s\n", title) }

// row prints name in the left column, help wrapped in the middle and mark
// right-aligned after the first help line
func (p *page) row(name, help, mark string) {
	const indent = "        "
	room := max(p.width-len(indent)-p.column-3-len(mark), 10)
	lines := wrapText(help, room)
	if len(lines) == 0 {
		lines = []string{""}
	}
	if mark == "" {
		fmt.Fprintf(&p.sb, "%s%-*s %s\n", indent, p.column, name, lines[0])
	} else {
		fmt.Fprintf(&p.sb, "%s%-*s %-*s  %s\n", indent, p.column, name, room, lines[0], mark)
	}
	pad := strings.Repeat(" ", p.column)
	for _, l := range lines[1:] {
		fmt.Fprintf(&p.sb, "%s%s %s\n", indent, pad, l)
	}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return max(w, 40)
	}
	return 80
}

// wrapText splits text into lines of at most width bytes, breaking on spaces.
// A single word longer than width gets a line of its own
func wrapText(text string, width int) []string {
	var out []string
	cur := ""
	for _, word := range strings.Fields(text) {
		switch {
		case cur == "":
			cur = word
		case len(cur)+1+len(word) <= width:
			cur += " " + word
		default:
			out = append(out, cur)
			cur = word
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
