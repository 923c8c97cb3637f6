package ast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// jsonNode is the hand-off format written by the parser front end
type jsonNode struct {
	Kind   string      `json:"kind"`
	Value  *float64    `json:"value,omitempty"`
	Name   string      `json:"name,omitempty"`
	Op     string      `json:"op,omitempty"`
	Size   *int        `json:"size,omitempty"`
	Left   *jsonNode   `json:"left,omitempty"`
	Right  *jsonNode   `json:"right,omitempty"`
	Expr   *jsonNode   `json:"expr,omitempty"`
	Init   *jsonNode   `json:"init,omitempty"`
	Index  *jsonNode   `json:"index,omitempty"`
	Cond   *jsonNode   `json:"cond,omitempty"`
	Then   *jsonNode   `json:"then,omitempty"`
	Else   *jsonNode   `json:"else,omitempty"`
	Update *jsonNode   `json:"update,omitempty"`
	Body   *jsonNode   `json:"body,omitempty"`
	Items  []*jsonNode `json:"items,omitempty"`
}

var ErrMalformed = errors.New("malformed AST")

// Decode reads a JSON-encoded tree
func Decode(r io.Reader) (*Node, error) {
	var root jsonNode
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return root.toNode("$")
}

// Encode writes node in the format read by Decode
func Encode(w io.Writer, node *Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fromNode(node))
}

func (j *jsonNode) child(path, field string, required bool) (*Node, error) {
	var c *jsonNode
	switch field {
	case "left":
		c = j.Left
	case "right":
		c = j.Right
	case "expr":
		c = j.Expr
	case "init":
		c = j.Init
	case "index":
		c = j.Index
	case "cond":
		c = j.Cond
	case "then":
		c = j.Then
	case "else":
		c = j.Else
	case "update":
		c = j.Update
	case "body":
		c = j.Body
	}
	if c == nil {
		if required {
			return nil, fmt.Errorf("%w: %s: %q node is missing %q", ErrMalformed, path, j.Kind, field)
		}
		return nil, nil
	}
	return c.toNode(path + "." + field)
}

func (j *jsonNode) children(path string, fields ...string) ([]*Node, error) {
	out := make([]*Node, len(fields))
	for i, f := range fields {
		required := true
		if f[0] == '?' {
			f, required = f[1:], false
		}
		n, err := j.child(path, f, required)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (j *jsonNode) items(path string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(j.Items))
	for i, it := range j.Items {
		if it == nil {
			return nil, fmt.Errorf("%w: %s.items[%d] is null", ErrMalformed, path, i)
		}
		n, err := it.toNode(fmt.Sprintf("%s.items[%d]", path, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (j *jsonNode) needName(path string) error {
	if j.Name == "" {
		return fmt.Errorf("%w: %s: %q node needs a name", ErrMalformed, path, j.Kind)
	}
	return nil
}

func (j *jsonNode) toNode(path string) (*Node, error) {
	switch j.Kind {
	case "num":
		if j.Value == nil {
			return nil, fmt.Errorf("%w: %s: num node needs a value", ErrMalformed, path)
		}
		return NewNumber(*j.Value), nil
	case "var":
		if err := j.needName(path); err != nil {
			return nil, err
		}
		return NewIdent(j.Name), nil
	case "binop":
		c, err := j.children(path, "left", "right")
		if err != nil {
			return nil, err
		}
		if j.Op == "" {
			return nil, fmt.Errorf("%w: %s: binop needs an op", ErrMalformed, path)
		}
		return NewBinaryOp(j.Op, c[0], c[1]), nil
	case "unary":
		c, err := j.children(path, "expr")
		if err != nil {
			return nil, err
		}
		if j.Op == "" {
			return nil, fmt.Errorf("%w: %s: unary needs an op", ErrMalformed, path)
		}
		return NewUnaryOp(j.Op, c[0]), nil
	case "index":
		if err := j.needName(path); err != nil {
			return nil, err
		}
		c, err := j.children(path, "index")
		if err != nil {
			return nil, err
		}
		return NewSubscript(j.Name, c[0]), nil
	case "exprs":
		items, err := j.items(path)
		if err != nil {
			return nil, err
		}
		return NewExprList(items...), nil
	case "decl":
		if err := j.needName(path); err != nil {
			return nil, err
		}
		c, err := j.children(path, "?init")
		if err != nil {
			return nil, err
		}
		return NewVarDecl(j.Name, c[0]), nil
	case "array_decl":
		if err := j.needName(path); err != nil {
			return nil, err
		}
		if j.Size == nil {
			return nil, fmt.Errorf("%w: %s: array_decl needs a size", ErrMalformed, path)
		}
		return NewArrayDecl(j.Name, *j.Size), nil
	case "assign":
		if err := j.needName(path); err != nil {
			return nil, err
		}
		c, err := j.children(path, "expr")
		if err != nil {
			return nil, err
		}
		return NewAssign(j.Name, c[0]), nil
	case "array_assign":
		if err := j.needName(path); err != nil {
			return nil, err
		}
		c, err := j.children(path, "index", "expr")
		if err != nil {
			return nil, err
		}
		return NewArrayAssign(j.Name, c[0], c[1]), nil
	case "print":
		c, err := j.children(path, "expr")
		if err != nil {
			return nil, err
		}
		return NewPrint(c[0]), nil
	case "block":
		items, err := j.items(path)
		if err != nil {
			return nil, err
		}
		return NewBlock(items...), nil
	case "break":
		return NewBreak(), nil
	case "if":
		c, err := j.children(path, "cond", "then", "?else")
		if err != nil {
			return nil, err
		}
		return NewIf(c[0], c[1], c[2]), nil
	case "while":
		c, err := j.children(path, "cond", "body")
		if err != nil {
			return nil, err
		}
		return NewWhile(c[0], c[1]), nil
	case "for":
		c, err := j.children(path, "?init", "?cond", "?update", "body")
		if err != nil {
			return nil, err
		}
		return NewFor(c[0], c[1], c[2], c[3]), nil
	case "return":
		c, err := j.children(path, "?expr")
		if err != nil {
			return nil, err
		}
		return NewReturn(c[0]), nil
	case "":
		return nil, fmt.Errorf("%w: %s: node has no kind", ErrMalformed, path)
	default:
		return nil, fmt.Errorf("%w: %s: unknown node kind %q", ErrMalformed, path, j.Kind)
	}
}

func fromNodes(nodes []*Node) []*jsonNode {
	out := make([]*jsonNode, len(nodes))
	for i, n := range nodes {
		out[i] = fromNode(n)
	}
	return out
}

func fromNode(node *Node) *jsonNode {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case NumberNode:
		v := d.Value
		return &jsonNode{Kind: "num", Value: &v}
	case IdentNode:
		return &jsonNode{Kind: "var", Name: d.Name}
	case BinaryOpNode:
		return &jsonNode{Kind: "binop", Op: d.Op, Left: fromNode(d.Left), Right: fromNode(d.Right)}
	case UnaryOpNode:
		return &jsonNode{Kind: "unary", Op: d.Op, Expr: fromNode(d.Expr)}
	case SubscriptNode:
		return &jsonNode{Kind: "index", Name: d.Name, Index: fromNode(d.Index)}
	case ExprListNode:
		return &jsonNode{Kind: "exprs", Items: fromNodes(d.Exprs)}
	case VarDeclNode:
		return &jsonNode{Kind: "decl", Name: d.Name, Init: fromNode(d.Init)}
	case ArrayDeclNode:
		size := d.Size
		return &jsonNode{Kind: "array_decl", Name: d.Name, Size: &size}
	case AssignNode:
		return &jsonNode{Kind: "assign", Name: d.Name, Expr: fromNode(d.Value)}
	case ArrayAssignNode:
		return &jsonNode{Kind: "array_assign", Name: d.Name, Index: fromNode(d.Index), Expr: fromNode(d.Value)}
	case PrintNode:
		return &jsonNode{Kind: "print", Expr: fromNode(d.Expr)}
	case BlockNode:
		return &jsonNode{Kind: "block", Items: fromNodes(d.Stmts)}
	case BreakNode:
		return &jsonNode{Kind: "break"}
	case IfNode:
		return &jsonNode{Kind: "if", Cond: fromNode(d.Cond), Then: fromNode(d.ThenBody), Else: fromNode(d.ElseBody)}
	case WhileNode:
		return &jsonNode{Kind: "while", Cond: fromNode(d.Cond), Body: fromNode(d.Body)}
	case ForNode:
		return &jsonNode{Kind: "for", Init: fromNode(d.Init), Cond: fromNode(d.Cond), Update: fromNode(d.Update), Body: fromNode(d.Body)}
	case ReturnNode:
		return &jsonNode{Kind: "return", Expr: fromNode(d.Expr)}
	}
	return nil
}
