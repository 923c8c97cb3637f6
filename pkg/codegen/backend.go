package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate walks the AST and produces the target assembly or intermediate
	// language as a byte buffer. No buffer is returned when err is non-nil.
	Generate(root *ast.Node, cfg *config.Config) (*bytes.Buffer, error)
}

// IRGenerator is implemented by backends that lower through a textual
// intermediate language before producing assembly
type IRGenerator interface {
	GenerateIR(root *ast.Node, cfg *config.Config) (string, error)
}

// SelectBackend returns the backend named by cfg.BackendName
func SelectBackend(cfg *config.Config) (Backend, error) {
	switch cfg.BackendName {
	case "mips", "":
		return NewMIPSBackend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", cfg.BackendName)
}

type mipsBackend struct{}

func NewMIPSBackend() Backend { return mipsBackend{} }

func (mipsBackend) Generate(root *ast.Node, cfg *config.Config) (*bytes.Buffer, error) {
	return NewContext(cfg).GenerateProgram(root)
}
