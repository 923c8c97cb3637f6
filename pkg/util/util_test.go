package util

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/mcc/pkg/config"
)

func TestErrorList(t *testing.T) {
	var list ErrorList
	be.Err(t, list.Err(), nil)
	be.Equal(t, "no errors", list.Error())

	list.Add("print", errors.New("boom"))
	be.Equal(t, 1, list.Len())
	be.Equal(t, "print: boom", list.Error())

	list.Add("assign", ErrUndeclared)
	list.Add("", ErrTooComplex)
	be.Equal(t, "3 errors:\n\tprint: boom\n\tassign: undeclared variable\n\texpression too complex", list.Error())

	err := list.Err()
	be.True(t, errors.Is(err, ErrUndeclared))
	be.True(t, errors.Is(err, ErrTooComplex))
	be.True(t, !errors.Is(err, ErrNotArray))

	var ce *CompileError
	be.True(t, errors.As(err, &ce))
	be.Equal(t, "print", ce.Where)
}

func TestCompileErrorWrapsDetail(t *testing.T) {
	detail := &CompileError{Where: "decl", Err: ErrIsArray}
	be.True(t, errors.Is(detail, ErrIsArray))
	be.Equal(t, "decl: array used as a scalar", detail.Error())
}

func TestWarn(t *testing.T) {
	cfg := config.NewConfig()
	var diag bytes.Buffer
	cfg.DiagOut = &diag

	Warn(cfg, config.WarnDivByZero, "division by %d", 0)
	be.Equal(t, "mcc: \033[33mwarning:\033[0m division by 0 [-Wdiv-by-zero]\n", diag.String())

	diag.Reset()
	Warn(cfg, config.WarnRegisterSpill, "spilled")
	be.Equal(t, "", diag.String())

	cfg.SetWarning(config.WarnPedantic, true)
	Warn(cfg, config.WarnRegisterSpill, "spilled")
	be.Equal(t, "mcc: \033[33mwarning:\033[0m spilled [-Wregister-spill]\n", diag.String())
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ n, align, want int }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{28, 8, 32},
		{17, 16, 32},
		{5, 0, 5},
	}
	for _, tt := range tests {
		be.Equal(t, tt.want, AlignUp(tt.n, tt.align))
	}
}
