package ast

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
)

func sample() *Node {
	// x: 10; a[2]; while (x > 0) { a[0] = x; x = x - 1; } print(-x);
	return NewBlock(
		NewVarDecl("x", NewNumber(10)),
		NewArrayDecl("a", 2),
		NewWhile(NewBinaryOp(">", NewIdent("x"), NewNumber(0)), NewBlock(
			NewArrayAssign("a", NewNumber(0), NewIdent("x")),
			NewAssign("x", NewBinaryOp("-", NewIdent("x"), NewNumber(1))),
		)),
		NewPrint(NewUnaryOp("-", NewIdent("x"))),
	)
}

func TestPrintTree(t *testing.T) {
	var buf bytes.Buffer
	PrintTree(&buf, sample())

	want := strings.Join([]string{
		"DECL: x",
		"  NUM: 10.000000",
		"ARRAY_DECL: a[2]",
		"WHILE",
		"  BINOP: >",
		"    VAR: x",
		"    NUM: 0.000000",
		"  ARRAY_ASSIGN: a",
		"    NUM: 0.000000",
		"    VAR: x",
		"  ASSIGN: x",
		"    BINOP: -",
		"      VAR: x",
		"      NUM: 1.000000",
		"PRINT",
		"  UNARY: -",
		"    VAR: x",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintTreeExprListAndControlFlow(t *testing.T) {
	var buf bytes.Buffer
	PrintTree(&buf, NewBlock(
		NewPrint(NewExprList(NewIdent("a"), NewSubscript("b", NewNumber(1)))),
		NewFor(nil, nil, nil, NewBreak()),
		NewIf(NewNumber(1), NewReturn(nil), nil),
	))
	want := "PRINT\n  EXPR_LIST\n    VAR: a\n    INDEX: b\n      NUM: 1.000000\n" +
		"FOR\n  BREAK\n" +
		"IF\n  NUM: 1.000000\n  RETURN\n"
	be.Equal(t, want, buf.String())
}

func TestWalkOrderAndParents(t *testing.T) {
	root := sample()
	var kinds []NodeType
	Walk(root, func(n *Node) {
		kinds = append(kinds, n.Type)
		if n != root {
			be.True(t, n.Parent != nil)
		}
	})
	be.Equal(t, []NodeType{
		Block, VarDecl, Number, ArrayDecl,
		While, BinaryOp, Ident, Number, Block,
		ArrayAssign, Number, Ident, Assign, BinaryOp, Ident, Number,
		Print, UnaryOp, Ident,
	}, kinds)
}

func TestFirstExpr(t *testing.T) {
	a := NewIdent("a")
	be.Equal(t, a, FirstExpr(NewExprList(NewExprList(a, NewIdent("b")))))
	be.Equal(t, a, FirstExpr(a))
	be.True(t, FirstExpr(NewExprList()) == nil)
	be.True(t, FirstExpr(nil) == nil)
}

func TestDecode(t *testing.T) {
	src := `{"kind":"block","items":[
		{"kind":"decl","name":"x","init":{"kind":"num","value":10}},
		{"kind":"decl","name":"y","init":{"kind":"binop","op":"+","left":{"kind":"var","name":"x"},"right":{"kind":"num","value":5}}},
		{"kind":"if","cond":{"kind":"var","name":"y"},"then":{"kind":"print","expr":{"kind":"var","name":"y"}}},
		{"kind":"for","body":{"kind":"block","items":[{"kind":"break"}]}}
	]}`
	root, err := Decode(strings.NewReader(src))
	be.Err(t, err, nil)

	stmts := root.Data.(BlockNode).Stmts
	be.Equal(t, 4, len(stmts))
	be.Equal(t, VarDecl, stmts[1].Type)
	be.Equal(t, "+", stmts[1].Data.(VarDeclNode).Init.Data.(BinaryOpNode).Op)
	be.True(t, stmts[2].Data.(IfNode).ElseBody == nil)
	be.True(t, stmts[3].Data.(ForNode).Cond == nil)
	be.Equal(t, root, stmts[0].Parent)
}

func TestEncodeDecodeKeepsTree(t *testing.T) {
	var enc bytes.Buffer
	be.Err(t, Encode(&enc, sample()), nil)
	back, err := Decode(&enc)
	be.Err(t, err, nil)

	var want, got bytes.Buffer
	PrintTree(&want, sample())
	PrintTree(&got, back)
	be.Equal(t, want.String(), got.String())
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]struct {
		src  string
		path string
	}{
		"syntax":        {`{"kind":`, ""},
		"unknown field": {`{"kind":"num","value":1,"colour":"red"}`, ""},
		"no kind":       {`{"value":1}`, "$"},
		"unknown kind":  {`{"kind":"goto"}`, "$"},
		"num value":     {`{"kind":"num"}`, "$"},
		"missing child": {`{"kind":"binop","op":"+","left":{"kind":"num","value":1}}`, `"right"`},
		"nested":        {`{"kind":"block","items":[{"kind":"print","expr":{"kind":"var"}}]}`, "$.items[0].expr"},
		"array size":    {`{"kind":"array_decl","name":"a"}`, "size"},
		"null item":     {`{"kind":"block","items":[null]}`, "items[0]"},
		"binop op":      {`{"kind":"binop","left":{"kind":"num","value":1},"right":{"kind":"num","value":2}}`, "op"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			be.True(t, errors.Is(err, ErrMalformed))
			be.True(t, strings.Contains(err.Error(), tt.path))
		})
	}
}
