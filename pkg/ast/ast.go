// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
// handed to the back end by the parser
package ast

import (
	"fmt"
	"io"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	Ident
	BinaryOp
	UnaryOp
	Subscript
	ExprList

	// Statements
	VarDecl
	ArrayDecl
	Assign
	ArrayAssign
	Print
	Block
	Break
	If
	While
	For
	Return
)

var nodeTypeNames = [...]string{
	Number:      "Number",
	Ident:       "Ident",
	BinaryOp:    "BinaryOp",
	UnaryOp:     "UnaryOp",
	Subscript:   "Subscript",
	ExprList:    "ExprList",
	VarDecl:     "VarDecl",
	ArrayDecl:   "ArrayDecl",
	Assign:      "Assign",
	ArrayAssign: "ArrayAssign",
	Print:       "Print",
	Block:       "Block",
	Break:       "Break",
	If:          "If",
	While:       "While",
	For:         "For",
	Return:      "Return",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node represents a node in the Abstract Syntax Tree. Data holds exactly one of the
// payload structs below, matching Type
type Node struct {
	Type   NodeType
	Parent *Node
	Data   interface{}
}

// --- Node Data Structs ---
type NumberNode struct{ Value float64 }
type IdentNode struct{ Name string }
type BinaryOpNode struct {
	Op          string
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   string
	Expr *Node
}
type SubscriptNode struct {
	Name  string
	Index *Node
}
type ExprListNode struct{ Exprs []*Node }
type VarDeclNode struct {
	Name string
	Init *Node
}
type ArrayDeclNode struct {
	Name string
	Size int
}
type AssignNode struct {
	Name  string
	Value *Node
}
type ArrayAssignNode struct {
	Name         string
	Index, Value *Node
}
type PrintNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }
type BreakNode struct{}
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type ForNode struct{ Init, Cond, Update, Body *Node }
type ReturnNode struct{ Expr *Node }

// --- Node Constructors ---

func newNode(nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(value float64) *Node {
	return newNode(Number, NumberNode{Value: value})
}
func NewIdent(name string) *Node {
	return newNode(Ident, IdentNode{Name: name})
}
func NewBinaryOp(op string, left, right *Node) *Node {
	return newNode(BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(op string, expr *Node) *Node {
	return newNode(UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewSubscript(name string, index *Node) *Node {
	return newNode(Subscript, SubscriptNode{Name: name, Index: index}, index)
}
func NewExprList(exprs ...*Node) *Node {
	return newNode(ExprList, ExprListNode{Exprs: exprs}, exprs...)
}
func NewVarDecl(name string, init *Node) *Node {
	return newNode(VarDecl, VarDeclNode{Name: name, Init: init}, init)
}
func NewArrayDecl(name string, size int) *Node {
	return newNode(ArrayDecl, ArrayDeclNode{Name: name, Size: size})
}
func NewAssign(name string, value *Node) *Node {
	return newNode(Assign, AssignNode{Name: name, Value: value}, value)
}
func NewArrayAssign(name string, index, value *Node) *Node {
	return newNode(ArrayAssign, ArrayAssignNode{Name: name, Index: index, Value: value}, index, value)
}
func NewPrint(expr *Node) *Node {
	return newNode(Print, PrintNode{Expr: expr}, expr)
}
func NewBlock(stmts ...*Node) *Node {
	return newNode(Block, BlockNode{Stmts: stmts}, stmts...)
}
func NewBreak() *Node {
	return newNode(Break, BreakNode{})
}
func NewIf(cond, thenBody, elseBody *Node) *Node {
	return newNode(If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewWhile(cond, body *Node) *Node {
	return newNode(While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewFor(init, cond, update, body *Node) *Node {
	return newNode(For, ForNode{Init: init, Cond: cond, Update: update, Body: body}, init, cond, update, body)
}
func NewReturn(expr *Node) *Node {
	return newNode(Return, ReturnNode{Expr: expr}, expr)
}

// FirstExpr unwraps an expression sequence to its first element. Sequences used as
// print arguments are never evaluated as tuples
func FirstExpr(node *Node) *Node {
	for node != nil && node.Type == ExprList {
		exprs := node.Data.(ExprListNode).Exprs
		if len(exprs) == 0 {
			return nil
		}
		node = exprs[0]
	}
	return node
}

// Walk visits node and every node it owns in depth-first, left-to-right order
func Walk(node *Node, visitor func(n *Node)) {
	if node == nil {
		return
	}
	visitor(node)

	switch d := node.Data.(type) {
	case BinaryOpNode:
		Walk(d.Left, visitor)
		Walk(d.Right, visitor)
	case UnaryOpNode:
		Walk(d.Expr, visitor)
	case SubscriptNode:
		Walk(d.Index, visitor)
	case ExprListNode:
		for _, e := range d.Exprs {
			Walk(e, visitor)
		}
	case VarDeclNode:
		Walk(d.Init, visitor)
	case AssignNode:
		Walk(d.Value, visitor)
	case ArrayAssignNode:
		Walk(d.Index, visitor)
		Walk(d.Value, visitor)
	case PrintNode:
		Walk(d.Expr, visitor)
	case BlockNode:
		for _, s := range d.Stmts {
			Walk(s, visitor)
		}
	case IfNode:
		Walk(d.Cond, visitor)
		Walk(d.ThenBody, visitor)
		Walk(d.ElseBody, visitor)
	case WhileNode:
		Walk(d.Cond, visitor)
		Walk(d.Body, visitor)
	case ForNode:
		Walk(d.Init, visitor)
		Walk(d.Cond, visitor)
		Walk(d.Update, visitor)
		Walk(d.Body, visitor)
	case ReturnNode:
		Walk(d.Expr, visitor)
	}
}

// PrintTree renders the tree with two spaces of indentation per level. Blocks are
// structural and get no line of their own
func PrintTree(w io.Writer, node *Node) {
	printNode(w, node, 0)
}

func printNode(w io.Writer, node *Node, level int) {
	if node == nil {
		return
	}
	if node.Type == Block {
		for _, s := range node.Data.(BlockNode).Stmts {
			printNode(w, s, level)
		}
		return
	}

	for i := 0; i < level; i++ {
		io.WriteString(w, "  ")
	}

	switch d := node.Data.(type) {
	case NumberNode:
		fmt.Fprintf(w, "NUM: %f\n", d.Value)
	case IdentNode:
		fmt.Fprintf(w, "VAR: %s\n", d.Name)
	case BinaryOpNode:
		fmt.Fprintf(w, "BINOP: %s\n", d.Op)
		printNode(w, d.Left, level+1)
		printNode(w, d.Right, level+1)
	case UnaryOpNode:
		fmt.Fprintf(w, "UNARY: %s\n", d.Op)
		printNode(w, d.Expr, level+1)
	case SubscriptNode:
		fmt.Fprintf(w, "INDEX: %s\n", d.Name)
		printNode(w, d.Index, level+1)
	case ExprListNode:
		fmt.Fprintln(w, "EXPR_LIST")
		for _, e := range d.Exprs {
			printNode(w, e, level+1)
		}
	case VarDeclNode:
		fmt.Fprintf(w, "DECL: %s\n", d.Name)
		printNode(w, d.Init, level+1)
	case ArrayDeclNode:
		fmt.Fprintf(w, "ARRAY_DECL: %s[%d]\n", d.Name, d.Size)
	case AssignNode:
		fmt.Fprintf(w, "ASSIGN: %s\n", d.Name)
		printNode(w, d.Value, level+1)
	case ArrayAssignNode:
		fmt.Fprintf(w, "ARRAY_ASSIGN: %s\n", d.Name)
		printNode(w, d.Index, level+1)
		printNode(w, d.Value, level+1)
	case PrintNode:
		fmt.Fprintln(w, "PRINT")
		printNode(w, d.Expr, level+1)
	case BreakNode:
		fmt.Fprintln(w, "BREAK")
	case IfNode:
		fmt.Fprintln(w, "IF")
		printNode(w, d.Cond, level+1)
		printNode(w, d.ThenBody, level+1)
		printNode(w, d.ElseBody, level+1)
	case WhileNode:
		fmt.Fprintln(w, "WHILE")
		printNode(w, d.Cond, level+1)
		printNode(w, d.Body, level+1)
	case ForNode:
		fmt.Fprintln(w, "FOR")
		printNode(w, d.Init, level+1)
		printNode(w, d.Cond, level+1)
		printNode(w, d.Update, level+1)
		printNode(w, d.Body, level+1)
	case ReturnNode:
		fmt.Fprintln(w, "RETURN")
		printNode(w, d.Expr, level+1)
	default:
		fmt.Fprintf(w, "Unknown node type %d\n", int(node.Type))
	}
}
