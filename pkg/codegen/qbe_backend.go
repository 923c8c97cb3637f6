package codegen

import (
	"fmt"
	"math"
	"strings"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/symtab"
	"github.com/xplshn/mcc/pkg/util"
)

type qbeBackend struct{}

func NewQBEBackend() Backend { return qbeBackend{} }

// qbeGen is the per-compilation state of the QBE backend
type qbeGen struct {
	cfg    *config.Config
	body   strings.Builder
	table  *symtab.Table
	errors util.ErrorList
	stmt   *ast.Node
	temps  int
	labels int
	block  string
	loops  []string
}

// GenerateIR lowers the AST to a QBE IL module with a single exported $main
func (qbeBackend) GenerateIR(root *ast.Node, cfg *config.Config) (string, error) {
	g := &qbeGen{cfg: cfg, table: symtab.New(), block: "@body"}
	g.genStmt(root)
	if err := g.errors.Err(); err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString("data $fmt_int = { b \"%d\\n\", b 0 }\n\n")
	out.WriteString("export function w $main() {\n@start\n")
	for _, sym := range g.table.Symbols() {
		words := 1
		if sym.IsArray {
			words = sym.ArraySize
		}
		fmt.Fprintf(&out, "\t%s =l alloc4 %d\n", slot(sym.Name), words*symtab.WordSize)
	}
	out.WriteString("\t%rv =l alloc4 4\n")
	out.WriteString("\tstorew 0, %rv\n")
	out.WriteString("@body\n")
	out.WriteString(g.body.String())
	out.WriteString("\t%.ret =w loadw %rv\n")
	out.WriteString("\tret %.ret\n}\n")
	return out.String(), nil
}

func slot(name string) string { return "%_" + name }

func (g *qbeGen) emit(format string, args ...interface{}) {
	fmt.Fprintf(&g.body, "\t"+format+"\n", args...)
}

func (g *qbeGen) startBlock(label string) {
	g.body.WriteString(label + "\n")
	g.block = label
}

func (g *qbeGen) newTemp() string {
	g.temps++
	return fmt.Sprintf("%%.t%d", g.temps)
}

func (g *qbeGen) newLabel(kind string) string {
	g.labels++
	return fmt.Sprintf("@%s.%d", kind, g.labels)
}

func (g *qbeGen) addError(err error) {
	where := ""
	if g.stmt != nil {
		where = strings.ToLower(g.stmt.Type.String())
	}
	g.errors.Add(where, err)
}

func (g *qbeGen) lookup(name string, wantArray bool) (symtab.Symbol, bool) {
	sym, ok := g.table.Symbol(name)
	switch {
	case !ok:
		g.addError(fmt.Errorf("%w '%s'", util.ErrUndeclared, name))
	case wantArray && !sym.IsArray:
		g.addError(fmt.Errorf("'%s' is %w", name, util.ErrNotArray))
		ok = false
	case !wantArray && sym.IsArray:
		g.addError(fmt.Errorf("%w: '%s'", util.ErrIsArray, name))
		ok = false
	}
	return sym, ok
}

func (g *qbeGen) genStmt(node *ast.Node) {
	if node == nil {
		return
	}
	if node.Type != ast.Block {
		g.stmt = node
	}

	switch node.Type {
	case ast.Block:
		for _, s := range node.Data.(ast.BlockNode).Stmts {
			g.genStmt(s)
		}

	case ast.VarDecl:
		d := node.Data.(ast.VarDeclNode)
		if _, err := g.table.Declare(d.Name); err != nil {
			g.addError(err)
			return
		}
		val := "0"
		if d.Init != nil {
			val = g.genOperand(d.Init)
		}
		g.emit("storew %s, %s", val, slot(d.Name))

	case ast.ArrayDecl:
		d := node.Data.(ast.ArrayDeclNode)
		if _, err := g.table.DeclareArray(d.Name, d.Size); err != nil {
			g.addError(err)
			return
		}
		for i := 0; i < d.Size; i++ {
			p := g.newTemp()
			g.emit("%s =l add %s, %d", p, slot(d.Name), i*symtab.WordSize)
			g.emit("storew 0, %s", p)
		}

	case ast.Assign:
		d := node.Data.(ast.AssignNode)
		_, ok := g.lookup(d.Name, false)
		val := g.genOperand(d.Value)
		if ok {
			g.emit("storew %s, %s", val, slot(d.Name))
		}

	case ast.ArrayAssign:
		d := node.Data.(ast.ArrayAssignNode)
		_, ok := g.lookup(d.Name, true)
		addr := g.genElementAddr(d.Name, d.Index)
		val := g.genOperand(d.Value)
		if ok {
			g.emit("storew %s, %s", val, addr)
		}

	case ast.Print:
		val := g.genOperand(node.Data.(ast.PrintNode).Expr)
		g.emit("call $printf(l $fmt_int, ..., w %s)", val)

	case ast.While:
		d := node.Data.(ast.WhileNode)
		cond, body, end := g.newLabel("loop"), g.newLabel("body"), g.newLabel("end")
		g.emit("jmp %s", cond)
		g.startBlock(cond)
		g.emit("jnz %s, %s, %s", g.genOperand(d.Cond), body, end)
		g.startBlock(body)
		g.genLoopBody(d.Body, end)
		g.emit("jmp %s", cond)
		g.startBlock(end)

	case ast.If:
		d := node.Data.(ast.IfNode)
		then, els, end := g.newLabel("then"), g.newLabel("else"), g.newLabel("end")
		g.emit("jnz %s, %s, %s", g.genOperand(d.Cond), then, els)
		g.startBlock(then)
		g.genStmt(d.ThenBody)
		g.emit("jmp %s", end)
		g.startBlock(els)
		g.genStmt(d.ElseBody)
		g.emit("jmp %s", end)
		g.startBlock(end)

	case ast.For:
		d := node.Data.(ast.ForNode)
		cond, body, update, end := g.newLabel("loop"), g.newLabel("body"), g.newLabel("update"), g.newLabel("end")
		g.genStmt(d.Init)
		g.stmt = node
		g.emit("jmp %s", cond)
		g.startBlock(cond)
		if d.Cond != nil {
			g.emit("jnz %s, %s, %s", g.genOperand(d.Cond), body, end)
		}
		g.startBlock(body)
		g.genLoopBody(d.Body, end)
		g.emit("jmp %s", update)
		g.startBlock(update)
		g.genStmt(d.Update)
		g.emit("jmp %s", cond)
		g.startBlock(end)

	case ast.Return:
		val := g.genOperand(node.Data.(ast.ReturnNode).Expr)
		g.emit("storew %s, %%rv", val)

	case ast.Break:
		if len(g.loops) == 0 {
			g.addError(util.ErrBreakOutsideLoop)
			return
		}
		g.emit("jmp %s", g.loops[len(g.loops)-1])
		g.startBlock(g.newLabel("dead"))

	default:
		g.genOperand(node)
	}
}

func (g *qbeGen) genLoopBody(body *ast.Node, end string) {
	g.loops = append(g.loops, end)
	g.genStmt(body)
	g.loops = g.loops[:len(g.loops)-1]
}

// genOperand returns a QBE word operand: an immediate or a temporary. Nodes
// that yield no value evaluate to 0
func (g *qbeGen) genOperand(node *ast.Node) string {
	node = ast.FirstExpr(node)
	if node == nil {
		return "0"
	}

	switch node.Type {
	case ast.Number:
		return fmt.Sprintf("%d", int32(math.Trunc(node.Data.(ast.NumberNode).Value)))

	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		if _, ok := g.lookup(name, false); !ok {
			return "0"
		}
		t := g.newTemp()
		g.emit("%s =w loadw %s", t, slot(name))
		return t

	case ast.Subscript:
		d := node.Data.(ast.SubscriptNode)
		_, ok := g.lookup(d.Name, true)
		addr := g.genElementAddr(d.Name, d.Index)
		if !ok {
			return "0"
		}
		t := g.newTemp()
		g.emit("%s =w loadw %s", t, addr)
		return t

	case ast.UnaryOp:
		d := node.Data.(ast.UnaryOpNode)
		v := g.genOperand(d.Expr)
		t := g.newTemp()
		switch d.Op {
		case "-":
			g.emit("%s =w sub 0, %s", t, v)
		case "!":
			g.emit("%s =w ceqw %s, 0", t, v)
		default:
			g.addError(fmt.Errorf("%w: unary '%s'", util.ErrUnsupportedOperator, d.Op))
			return "0"
		}
		return t

	case ast.BinaryOp:
		return g.genBinaryOp(node.Data.(ast.BinaryOpNode))
	}

	g.addError(fmt.Errorf("%w: %s used as an expression", util.ErrUnsupportedNode, node.Type))
	return "0"
}

var qbeBinaryOps = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div",
	"<": "csltw", ">": "csgtw", "<=": "cslew", ">=": "csgew", "==": "ceqw", "!=": "cnew",
}

func (g *qbeGen) genBinaryOp(d ast.BinaryOpNode) string {
	if d.Op == "&&" || d.Op == "||" {
		left := g.genOperand(d.Left)
		leftBlock := g.block
		rhs, merge := g.newLabel("rhs"), g.newLabel("skip")
		combine := "and"
		if d.Op == "&&" {
			g.emit("jnz %s, %s, %s", left, rhs, merge)
		} else {
			g.emit("jnz %s, %s, %s", left, merge, rhs)
			combine = "or"
		}
		g.startBlock(rhs)
		right := g.genOperand(d.Right)
		combined := g.newTemp()
		g.emit("%s =w %s %s, %s", combined, combine, left, right)
		rhsBlock := g.block
		g.emit("jmp %s", merge)
		g.startBlock(merge)
		t := g.newTemp()
		g.emit("%s =w phi %s %s, %s %s", t, leftBlock, left, rhsBlock, combined)
		return t
	}

	op, ok := qbeBinaryOps[d.Op]
	l := g.genOperand(d.Left)
	r := g.genOperand(d.Right)
	if !ok {
		g.addError(fmt.Errorf("%w: binary '%s'", util.ErrUnsupportedOperator, d.Op))
		return "0"
	}
	t := g.newTemp()
	g.emit("%s =w %s %s, %s", t, op, l, r)
	return t
}

func (g *qbeGen) genElementAddr(name string, index *ast.Node) string {
	idx := g.genOperand(index)
	wide, scaled, addr := g.newTemp(), g.newTemp(), g.newTemp()
	g.emit("%s =l extsw %s", wide, idx)
	g.emit("%s =l mul %s, %d", scaled, wide, symtab.WordSize)
	g.emit("%s =l add %s, %s", addr, slot(name), scaled)
	return addr
}
