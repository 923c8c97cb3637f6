//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
)

// Generate shells out to a qbe binary on PATH; libqbe does not build on windows
func (b qbeBackend) Generate(root *ast.Node, cfg *config.Config) (*bytes.Buffer, error) {
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("qbe not found in PATH: %w", err)
	}
	cfg.Infof("self-contained QBE backend is unavailable on windows, using the system 'qbe'")

	qbeIR, err := b.GenerateIR(root, cfg)
	if err != nil {
		return nil, err
	}

	input, err := os.CreateTemp("", "mcc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(input.Name())
	if _, err := input.WriteString(qbeIR); err != nil {
		input.Close()
		return nil, err
	}
	input.Close()

	var asmBuf, stderr bytes.Buffer
	cmd := exec.Command("qbe", "-t", cfg.BackendTarget, input.Name())
	cmd.Stdout, cmd.Stderr = &asmBuf, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("QBE compilation failed: %w: %s\ngenerated IL:\n%s", err, stderr.String(), qbeIR)
	}
	return &asmBuf, nil
}
