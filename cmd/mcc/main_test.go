package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/util"
)

func TestCountNodes(t *testing.T) {
	// x: 1 + 2; print(x);
	root := ast.NewBlock(
		ast.NewVarDecl("x", ast.NewBinaryOp("+", ast.NewNumber(1), ast.NewNumber(2))),
		ast.NewPrint(ast.NewIdent("x")),
	)
	be.Equal(t, 7, countNodes(root))
	be.Equal(t, 0, countNodes(nil))
}

func TestGenerateWithSymbols(t *testing.T) {
	root := ast.NewBlock(
		ast.NewVarDecl("x", ast.NewNumber(10)),
		ast.NewArrayDecl("a", 2),
		ast.NewPrint(ast.NewIdent("x")),
	)
	var out bytes.Buffer
	asm, err := generateWithSymbols(root, config.NewConfig(), &out)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(asm.String(), "main:\n"))

	dump := out.String()
	be.True(t, strings.HasPrefix(dump, "Symbols:\n"))
	be.True(t, strings.Contains(dump, "Offset: 4 (Array: 2 words)"))
	be.True(t, strings.Contains(dump, "Frame bytes: 12, lookups: "))
	be.True(t, strings.HasSuffix(dump, "Frame size: 24\n"))
}

func TestGenerateWithSymbolsStaysQuietOnErrors(t *testing.T) {
	var out bytes.Buffer
	_, err := generateWithSymbols(ast.NewPrint(ast.NewIdent("ghost")), config.NewConfig(), &out)
	be.True(t, errors.Is(err, util.ErrUndeclared))
	be.Equal(t, "", out.String())
}
