package codegen

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/util"
)

func qbeIR(t *testing.T, root *ast.Node) string {
	t.Helper()
	il, err := qbeBackend{}.GenerateIR(root, testConfig())
	be.Err(t, err, nil)
	return il
}

func TestQBEStraightLine(t *testing.T) {
	il := qbeIR(t, straightLine())
	be.True(t, strings.Contains(il, "export function w $main() {\n@start\n"))
	be.True(t, strings.Contains(il, "\t%_x =l alloc4 4\n\t%_y =l alloc4 4\n"))
	be.True(t, strings.Contains(il, "\tstorew 10, %_x\n"))
	be.True(t, strings.Contains(il, "\t%.t1 =w loadw %_x\n\t%.t2 =w add %.t1, 5\n\tstorew %.t2, %_y\n"))
	be.True(t, strings.Contains(il, "call $printf(l $fmt_int, ..., w %.t3)"))
	be.True(t, strings.HasSuffix(il, "\tret %.ret\n}\n"))
}

func TestQBEControlFlow(t *testing.T) {
	il := qbeIR(t, countToThree())
	be.True(t, strings.Contains(il, "\tjmp @loop.1\n@loop.1\n"))
	be.True(t, strings.Contains(il, "jnz %.t2, @body.2, @end.3\n@body.2\n"))
	be.True(t, strings.Contains(il, "\tjmp @loop.1\n@end.3\n"))
}

func TestQBEShortCircuitUsesPhi(t *testing.T) {
	il := qbeIR(t, ast.NewPrint(bin("&&", num(0), num(1))))
	be.True(t, strings.Contains(il, "\tjnz 0, @rhs.1, @skip.2\n@rhs.1\n"))
	be.True(t, strings.Contains(il, "\t%.t1 =w and 0, 1\n\tjmp @skip.2\n@skip.2\n"))
	be.True(t, strings.Contains(il, "\t%.t2 =w phi @body 0, @rhs.1 %.t1\n"))
}

func TestQBEArrays(t *testing.T) {
	il := qbeIR(t, ast.NewBlock(
		ast.NewArrayDecl("a", 3),
		ast.NewArrayAssign("a", num(2), num(9)),
		ast.NewPrint(ast.NewSubscript("a", num(2))),
	))
	be.True(t, strings.Contains(il, "\t%_a =l alloc4 12\n"))
	be.True(t, strings.Contains(il, "=l extsw 2\n"))
	be.True(t, strings.Contains(il, "=l mul %.t4, 4\n"))
}

func TestQBEBreakOpensDeadBlock(t *testing.T) {
	il := qbeIR(t, ast.NewWhile(num(1), ast.NewBreak()))
	be.True(t, strings.Contains(il, "\tjmp @end.3\n@dead.4\n"))
}

func TestQBESemanticErrors(t *testing.T) {
	_, err := qbeBackend{}.GenerateIR(ast.NewBlock(ast.NewPrint(ident("nope")), ast.NewBreak()), testConfig())
	be.True(t, errors.Is(err, util.ErrUndeclared))
	be.True(t, errors.Is(err, util.ErrBreakOutsideLoop))
}

func TestQBEAssemble(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("libqbe is not built on windows")
	}
	cfg := testConfig()
	be.Err(t, cfg.SetTarget(runtime.GOOS, runtime.GOARCH, "qbe/amd64_sysv"), nil)
	buf, err := NewQBEBackend().Generate(countToThree(), cfg)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(buf.String(), "main"))
}

func TestSelectBackend(t *testing.T) {
	cfg := testConfig()
	b, err := SelectBackend(cfg)
	be.Err(t, err, nil)
	be.Equal(t, NewMIPSBackend(), b)

	cfg.BackendName = "qbe"
	b, err = SelectBackend(cfg)
	be.Err(t, err, nil)
	be.Equal(t, NewQBEBackend(), b)

	cfg.BackendName = "z80"
	_, err = SelectBackend(cfg)
	be.True(t, err != nil)
}

func TestQBEBackendExposesIR(t *testing.T) {
	_, ok := NewQBEBackend().(IRGenerator)
	be.True(t, ok)
	_, ok = NewMIPSBackend().(IRGenerator)
	be.True(t, !ok)
}
