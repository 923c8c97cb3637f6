package util

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xplshn/mcc/pkg/config"
)

// Semantic error classes reported by the code generators
var (
	ErrUndeclared          = errors.New("undeclared variable")
	ErrNotArray            = errors.New("not an array")
	ErrIsArray             = errors.New("array used as a scalar")
	ErrBreakOutsideLoop    = errors.New("break outside of a loop")
	ErrTooComplex          = errors.New("expression too complex")
	ErrUnsupportedNode     = errors.New("unsupported node")
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// CompileError is a single diagnostic tied to the construct that raised it
type CompileError struct {
	Where string
	Err   error
}

func (e *CompileError) Error() string {
	if e.Where == "" {
		return e.Err.Error()
	}
	return e.Where + ": " + e.Err.Error()
}

func (e *CompileError) Unwrap() error { return e.Err }

// ErrorList collects every diagnostic of a compilation; a non-empty list means no
// output was produced
type ErrorList []*CompileError

func (l *ErrorList) Add(where string, err error) {
	*l = append(*l, &CompileError{Where: where, Err: err})
}

func (l ErrorList) Len() int { return len(l) }

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:", len(l))
	for _, e := range l {
		sb.WriteString("\n\t")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

func (l ErrorList) Unwrap() []error {
	out := make([]error, len(l))
	for i, e := range l {
		out[i] = e
	}
	return out
}

// Err returns the list as an error, or nil when it is empty
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Warn prints a warning if wt is enabled in cfg
func Warn(cfg *config.Config, wt config.Warning, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	w := cfg.Diag()
	fmt.Fprint(w, "mcc: \033[33mwarning:\033[0m ")
	fmt.Fprintf(w, format, args...)
	fmt.Fprintf(w, " [-W%s]\n", cfg.Warnings[wt].Name)
}

// Report prints every error of err, one per line, without exiting
func Report(err error) {
	var list ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			fmt.Fprintf(os.Stderr, "mcc: \033[31merror:\033[0m %s\n", e)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "mcc: \033[31merror:\033[0m %s\n", err)
}

// Error prints a formatted error message and exits the program
func Error(format string, args ...interface{}) {
	fmt.Fprint(os.Stderr, "mcc: \033[31merror:\033[0m ")
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

// AlignUp rounds n up to a multiple of align
func AlignUp(n, align int) int {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}
