package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/mcc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatComments Feature = iota
	FeatRegisterSpill
	FeatCount
)

type Warning int

const (
	WarnDivByZero Warning = iota
	WarnTACUnsupported
	WarnRegisterSpill
	WarnUnreachableCode
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	BackendName    string
	BackendTarget  string
	WordSize       int
	StackAlignment int
	TempRegisters  int
	// DiagOut receives warnings and info lines; nil means os.Stderr
	DiagOut io.Writer
}

func NewConfig() *Config {
	cfg := &Config{
		Features:       make(map[Feature]Info),
		Warnings:       make(map[Warning]Info),
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		BackendName:    "mips",
		BackendTarget:  "mips32",
		WordSize:       4,
		StackAlignment: 8,
		TempRegisters:  8,
	}

	features := map[Feature]Info{
		FeatComments:      {"comments", true, "Annotate the generated assembly with comments."},
		FeatRegisterSpill: {"register-spill", true, "Spill temporaries to the frame when an expression needs more than the register pool."},
	}

	warnings := map[Warning]Info{
		WarnDivByZero:       {"div-by-zero", true, "Warn when the optimizer folds a division by a literal zero to 0."},
		WarnTACUnsupported:  {"tac-unsupported", false, "Warn about statements the TAC path cannot represent."},
		WarnRegisterSpill:   {"register-spill", false, "Warn when an expression spills temporaries to the stack."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about code that will never be executed."},
		WarnPedantic:        {"pedantic", false, "Issue all warnings."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the backend from a "backend[/target]" selector. The QBE backend
// defaults to the host target
func (c *Config) SetTarget(goos, goarch, selector string) error {
	backend, target, _ := strings.Cut(selector, "/")
	switch backend {
	case "", "mips":
		if target != "" && target != "mips32" {
			return fmt.Errorf("unsupported mips target '%s'", target)
		}
		c.BackendName, c.BackendTarget = "mips", "mips32"
		c.WordSize, c.StackAlignment = 4, 8
		return nil
	case "qbe":
		c.BackendName = "qbe"
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'mips', 'qbe'", backend)
	}

	if target == "" {
		c.BackendTarget = libqbe.DefaultTarget(goos, goarch)
		c.Infof("no QBE target specified, defaulting to host target '%s'", c.BackendTarget)
	} else {
		c.BackendTarget = target
	}

	switch c.BackendTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.StackAlignment = 8, 16
	case "arm", "rv32":
		c.WordSize, c.StackAlignment = 4, 8
	default:
		return fmt.Errorf("unrecognized or unsupported QBE target '%s'", c.BackendTarget)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool {
	if c.Warnings[WarnPedantic].Enabled {
		return true
	}
	return c.Warnings[wt].Enabled
}

// Diag returns the writer diagnostics go to
func (c *Config) Diag() io.Writer {
	if c.DiagOut == nil {
		return os.Stderr
	}
	return c.DiagOut
}

func (c *Config) Infof(format string, args ...interface{}) {
	fmt.Fprintf(c.Diag(), "mcc: info: "+format+"\n", args...)
}

// applyFlag handles one -W<name>, -Wno-<name>, -F<name> or -Fno-<name> flag
func (c *Config) applyFlag(flag string) error {
	body := strings.TrimPrefix(flag, "-")
	if body == "" {
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	kind, name := body[0], body[1:]
	name, enable := strings.CutPrefix(name, "no-")
	enable = !enable

	switch kind {
	case 'W':
		if name == "all" {
			for w := Warning(0); w < WarnCount; w++ {
				if w != WarnPedantic {
					c.SetWarning(w, enable)
				}
			}
			return nil
		}
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
	case 'F':
		f, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s'", name)
		}
		c.SetFeature(f, enable)
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	return nil
}

// ApplyFlags applies space-separated -W/-F flags, as found in test case headers
func (c *Config) ApplyFlags(flags string) error {
	for _, f := range strings.Fields(flags) {
		if err := c.applyFlag(f); err != nil {
			return err
		}
	}
	return nil
}

// Toggles holds the command-line switches registered by SetupFlagGroups,
// indexed by Warning and Feature
type Toggles struct {
	Warnings []*cli.Toggle
	Features []*cli.Toggle
}

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and -F<feature>/-Fno-<feature> on fs
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) *Toggles {
	t := &Toggles{
		Warnings: make([]*cli.Toggle, WarnCount),
		Features: make([]*cli.Toggle, FeatCount),
	}
	for w := range t.Warnings {
		info := c.Warnings[Warning(w)]
		t.Warnings[w] = &cli.Toggle{Name: info.Name, Help: info.Description, Default: info.Enabled}
	}
	for f := range t.Features {
		info := c.Features[Feature(f)]
		t.Features[f] = &cli.Toggle{Name: info.Name, Help: info.Description, Default: info.Enabled}
	}
	fs.Group("Warning Flags", "W", "warning", t.Warnings)
	fs.Group("Feature Flags", "F", "feature", t.Features)
	return t
}

// Apply copies the switches seen on the command line into c. A -Xno- spelling
// wins over its positive twin
func (t *Toggles) Apply(c *Config) {
	for w, tg := range t.Warnings {
		if tg.On {
			c.SetWarning(Warning(w), true)
		}
		if tg.Off {
			c.SetWarning(Warning(w), false)
		}
	}
	for f, tg := range t.Features {
		if tg.On {
			c.SetFeature(Feature(f), true)
		}
		if tg.Off {
			c.SetFeature(Feature(f), false)
		}
	}
}
