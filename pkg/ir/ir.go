// Package ir implements the three-address code (TAC) used for optimization analysis.
// It is derived from the AST independently of the assembly back ends
package ir

import (
	"strconv"
)

type Op int

const (
	OpDecl Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpGt
	OpLt
	OpGe
	OpLe
	OpAssign
	OpPrint
)

var opSymbols = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpEq: "==", OpNeq: "!=", OpGt: ">", OpLt: "<", OpGe: ">=", OpLe: "<=",
}

var binaryOps = map[string]Op{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv,
	"==": OpEq, "!=": OpNeq, ">": OpGt, "<": OpLt, ">=": OpGe, "<=": OpLe,
}

// BinaryOp maps a source operator to its instruction kind
func BinaryOp(op string) (Op, bool) {
	o, ok := binaryOps[op]
	return o, ok
}

func (o Op) IsArithmetic() bool { return o >= OpAdd && o <= OpDiv }
func (o Op) IsRelational() bool { return o >= OpEq && o <= OpLe }
func (o Op) IsBinary() bool     { return o.IsArithmetic() || o.IsRelational() }
func (o Op) Symbol() string     { return opSymbols[o] }

func (o Op) String() string {
	switch o {
	case OpDecl:
		return "DECL"
	case OpAssign:
		return "ASSIGN"
	case OpPrint:
		return "PRINT"
	}
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Value is an instruction operand: a literal or a name
type Value interface {
	isValue()
	String() string
}

// Const is a numeric literal kept in its textual form
type Const struct{ Text string }

// Var names a source-level variable
type Var struct{ Name string }

// Temporary is a compiler-generated intermediate name
type Temporary struct {
	Name string
	ID   int
}

func (c *Const) isValue()     {}
func (v *Var) isValue()       {}
func (t *Temporary) isValue() {}

func (c *Const) String() string     { return c.Text }
func (v *Var) String() string       { return v.Name }
func (t *Temporary) String() string { return t.Name }

// Float parses the literal; callers only fold when both operands parse
func (c *Const) Float() (float64, bool) {
	f, err := strconv.ParseFloat(c.Text, 64)
	return f, err == nil
}

// FormatNumber renders a literal the way the lowering and folding passes print numbers:
// six significant digits with trailing zeros dropped
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func NewConst(v float64) *Const { return &Const{Text: FormatNumber(v)} }

// Instruction is one TAC line: Result = Args[0] op Args[1]. Declarations carry only
// Result; prints carry only Args[0]
type Instruction struct {
	Op     Op
	Result Value
	Args   []Value
}

func (in *Instruction) Arg(i int) Value {
	if i < len(in.Args) {
		return in.Args[i]
	}
	return nil
}

// List is an append-only instruction sequence in generation order
type List struct {
	Instrs    []*Instruction
	TempCount int
}

func (l *List) Len() int { return len(l.Instrs) }

func (l *List) append(in *Instruction) { l.Instrs = append(l.Instrs, in) }

func (l *List) newTemp() *Temporary {
	t := &Temporary{Name: "t" + strconv.Itoa(l.TempCount), ID: l.TempCount}
	l.TempCount++
	return t
}

// Prints returns the operands of every print instruction, in order
func (l *List) Prints() []string {
	var out []string
	for _, in := range l.Instrs {
		if in.Op == OpPrint {
			out = append(out, in.Arg(0).String())
		}
	}
	return out
}

func (in *Instruction) String() string {
	switch {
	case in.Op == OpDecl:
		return "DECL " + in.Result.String()
	case in.Op.IsBinary():
		return in.Result.String() + " = " + in.Arg(0).String() + " " + in.Op.Symbol() + " " + in.Arg(1).String()
	case in.Op == OpAssign:
		return in.Result.String() + " = " + in.Arg(0).String()
	case in.Op == OpPrint:
		return "PRINT " + in.Arg(0).String()
	}
	return in.Op.String()
}

// Lines renders every instruction without numbering or annotations
func (l *List) Lines() []string {
	out := make([]string, len(l.Instrs))
	for i, in := range l.Instrs {
		out[i] = in.String()
	}
	return out
}
