package ir

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/mcc/pkg/ast"
)

func num(v float64) *ast.Node                 { return ast.NewNumber(v) }
func ident(n string) *ast.Node                { return ast.NewIdent(n) }
func bin(op string, l, r *ast.Node) *ast.Node { return ast.NewBinaryOp(op, l, r) }

func assertLines(t *testing.T, want []string, list *List) {
	t.Helper()
	if diff := cmp.Diff(want, list.Lines()); diff != "" {
		t.Errorf("instruction mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerStraightLine(t *testing.T) {
	// x: 10; y: x + 5; print(y);
	prog := ast.NewBlock(
		ast.NewVarDecl("x", num(10)),
		ast.NewVarDecl("y", bin("+", ident("x"), num(5))),
		ast.NewPrint(ident("y")),
	)

	raw := Lower(prog)
	assertLines(t, []string{
		"DECL x",
		"x = 10",
		"DECL y",
		"t0 = x + 5",
		"y = t0",
		"PRINT y",
	}, raw)
	be.Equal(t, 1, raw.TempCount)

	opt := Optimize(raw)
	assertLines(t, []string{
		"DECL x",
		"x = 10",
		"DECL y",
		"t0 = 15",
		"y = 15",
		"PRINT 15",
	}, opt)
	be.Equal(t, []string{"15"}, opt.Prints())
}

func TestLowerNestedTemporariesInOrder(t *testing.T) {
	// print((a - b) * (c / 2))
	prog := ast.NewPrint(bin("*", bin("-", ident("a"), ident("b")), bin("/", ident("c"), num(2))))
	assertLines(t, []string{
		"t0 = a - b",
		"t1 = c / 2",
		"t2 = t0 * t1",
		"PRINT t2",
	}, Lower(prog))
}

func TestLowerExprListUsesFirstElement(t *testing.T) {
	prog := ast.NewPrint(ast.NewExprList(ident("a"), bin("+", num(1), num(2))))
	assertLines(t, []string{"PRINT a"}, Lower(prog))
}

func TestLowerSkipsControlFlow(t *testing.T) {
	var skipped []ast.NodeType
	lw := &Lowerer{OnSkip: func(n *ast.Node) { skipped = append(skipped, n.Type) }}

	prog := ast.NewBlock(
		ast.NewVarDecl("i", num(0)),
		ast.NewWhile(bin("<", ident("i"), num(3)), ast.NewBlock(
			ast.NewPrint(ident("i")),
		)),
		ast.NewPrint(bin("&&", num(1), num(0))),
		ast.NewPrint(ast.NewUnaryOp("-", ident("i"))),
		ast.NewReturn(num(0)),
	)
	list := lw.Lower(prog)

	assertLines(t, []string{"DECL i", "i = 0"}, list)
	be.Equal(t, []ast.NodeType{ast.While, ast.BinaryOp, ast.UnaryOp, ast.Return}, skipped)
}

func TestFoldOperators(t *testing.T) {
	tests := []struct {
		op   string
		l, r float64
		want string
	}{
		{"+", 2, 3, "5"},
		{"-", 2, 5, "-3"},
		{"*", 4, 2.5, "10"},
		{"/", 7, 2, "3.5"},
		{"/", 1, 3, "0.333333"},
		{"/", 4, 0, "0"},
		{"*", 1000, 1000, "1e+06"},
		{">", 3, 2, "1"},
		{">", 2, 3, "0"},
		{"<", 2, 3, "1"},
		{">=", 3, 3, "1"},
		{"<=", 4, 3, "0"},
		{"==", 2, 2, "1"},
		{"!=", 2, 2, "0"},
	}
	for _, tt := range tests {
		t.Run(FormatNumber(tt.l)+tt.op+FormatNumber(tt.r), func(t *testing.T) {
			opt := Optimize(Lower(ast.NewPrint(bin(tt.op, num(tt.l), num(tt.r)))))
			be.Equal(t, []string{tt.want}, opt.Prints())
		})
	}
}

func TestDivisionByZeroPolicy(t *testing.T) {
	var hits int
	o := &Optimizer{OnDivByZero: func(in *Instruction) {
		hits++
		be.Equal(t, OpDiv, in.Op)
	}}
	opt := o.Run(Lower(ast.NewBlock(
		ast.NewVarDecl("z", num(0)),
		ast.NewPrint(bin("/", num(4), ident("z"))),
	)))
	be.Equal(t, []string{"0"}, opt.Prints())
	be.Equal(t, 1, hits)
}

func TestCopyPropagationIsTransitive(t *testing.T) {
	// a = 5; b = a; print(b);
	prog := ast.NewBlock(
		ast.NewVarDecl("a", nil),
		ast.NewVarDecl("b", nil),
		ast.NewAssign("a", num(5)),
		ast.NewAssign("b", ident("a")),
		ast.NewPrint(ident("b")),
	)
	assertLines(t, []string{
		"DECL a",
		"DECL b",
		"a = 5",
		"b = 5",
		"PRINT 5",
	}, Optimize(Lower(prog)))
}

func TestCopyPropagationOfUnknownValues(t *testing.T) {
	prog := ast.NewBlock(
		ast.NewVarDecl("x", nil),
		ast.NewVarDecl("y", ident("x")),
		ast.NewPrint(bin("+", ident("y"), bin("+", num(2), num(3)))),
	)
	assertLines(t, []string{
		"DECL x",
		"DECL y",
		"y = x",
		"t0 = 5",
		"t1 = x + 5",
		"PRINT t1",
	}, Optimize(Lower(prog)))
}

func TestMostRecentBindingWins(t *testing.T) {
	prog := ast.NewBlock(
		ast.NewVarDecl("a", num(1)),
		ast.NewVarDecl("b", ident("a")),
		ast.NewAssign("a", num(7)),
		ast.NewPrint(ident("a")),
		ast.NewPrint(ident("b")),
	)
	be.Equal(t, []string{"7", "1"}, Optimize(Lower(prog)).Prints())
}

func TestReassignmentEndsCopy(t *testing.T) {
	// a:; b: a; a = 7; print(b); print(b + 1);
	prog := ast.NewBlock(
		ast.NewVarDecl("a", nil),
		ast.NewVarDecl("b", ident("a")),
		ast.NewAssign("a", num(7)),
		ast.NewPrint(ident("b")),
		ast.NewPrint(bin("+", ident("b"), num(1))),
	)
	assertLines(t, []string{
		"DECL a",
		"DECL b",
		"b = a",
		"a = 7",
		"PRINT b",
		"t0 = b + 1",
		"PRINT t0",
	}, Optimize(Lower(prog)))
}

func TestReassignmentEndsChainedCopies(t *testing.T) {
	// x:; y: x; z: y; w: 3; print(z); x = 1; print(z);
	prog := ast.NewBlock(
		ast.NewVarDecl("x", nil),
		ast.NewVarDecl("y", ident("x")),
		ast.NewVarDecl("z", ident("y")),
		ast.NewVarDecl("w", num(3)),
		ast.NewPrint(ident("z")),
		ast.NewAssign("x", num(1)),
		ast.NewPrint(ident("z")),
		ast.NewPrint(ident("y")),
	)
	be.Equal(t, []string{"x", "z", "y"}, Optimize(Lower(prog)).Prints())
}

func TestOptimizeLeavesInputUntouched(t *testing.T) {
	raw := Lower(ast.NewBlock(
		ast.NewVarDecl("x", bin("*", num(6), num(7))),
		ast.NewPrint(ident("x")),
	))
	before := raw.Lines()
	opt := Optimize(raw)

	be.Equal(t, before, raw.Lines())
	be.True(t, opt != raw)
	be.Equal(t, []string{"42"}, opt.Prints())
}

func TestPrinters(t *testing.T) {
	raw := Lower(ast.NewBlock(
		ast.NewVarDecl("x", bin("+", num(2), num(3))),
		ast.NewVarDecl("y", nil),
		ast.NewPrint(ident("x")),
		ast.NewPrint(ident("y")),
	))

	var buf bytes.Buffer
	PrintRaw(&buf, raw)
	out := buf.String()
	be.True(t, strings.HasPrefix(out, "Unoptimized TAC Instructions:\n"))
	be.True(t, strings.Contains(out, " 1: DECL x          // Declare variable 'x'\n"))
	be.True(t, strings.Contains(out, " 2: t0 = 2 + 3     // Add: store result in t0\n"))

	buf.Reset()
	PrintOptimized(&buf, Optimize(raw))
	out = buf.String()
	be.True(t, strings.HasPrefix(out, "Optimized TAC Instructions:\n"))
	be.True(t, strings.Contains(out, " 2: t0 = 5           // Constant value: 5\n"))
	be.True(t, strings.Contains(out, "PRINT 5          // Print constant: 5\n"))
	be.True(t, strings.Contains(out, "PRINT y          // Print variable\n"))
}
