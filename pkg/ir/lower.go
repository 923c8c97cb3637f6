package ir

import (
	"github.com/xplshn/mcc/pkg/ast"
)

// Lowerer translates straight-line AST statements into TAC. Control flow, array
// element stores, unary operators and the logical combinators have no TAC form;
// OnSkip is told about every node dropped for that reason
type Lowerer struct {
	OnSkip func(node *ast.Node)
	list   *List
}

// Lower translates root into a fresh instruction list
func Lower(root *ast.Node) *List {
	return (&Lowerer{}).Lower(root)
}

func (lw *Lowerer) Lower(root *ast.Node) *List {
	lw.list = &List{}
	lw.lowerStmt(root)
	return lw.list
}

func (lw *Lowerer) skip(node *ast.Node) {
	if lw.OnSkip != nil {
		lw.OnSkip(node)
	}
}

func (lw *Lowerer) emit(op Op, result Value, args ...Value) {
	lw.list.append(&Instruction{Op: op, Result: result, Args: args})
}

// lowerExpr reduces an expression to a single operand. Literals and variables are
// used in place and emit nothing. A nil result means the expression has no TAC form
func (lw *Lowerer) lowerExpr(node *ast.Node) Value {
	if node == nil {
		return nil
	}

	switch d := node.Data.(type) {
	case ast.NumberNode:
		return NewConst(d.Value)
	case ast.IdentNode:
		return &Var{Name: d.Name}
	case ast.ExprListNode:
		if len(d.Exprs) == 0 {
			return nil
		}
		return lw.lowerExpr(d.Exprs[0])
	case ast.BinaryOpNode:
		op, ok := BinaryOp(d.Op)
		if !ok {
			lw.skip(node)
			return nil
		}
		left := lw.lowerExpr(d.Left)
		right := lw.lowerExpr(d.Right)
		if left == nil || right == nil {
			return nil
		}
		temp := lw.list.newTemp()
		lw.emit(op, temp, left, right)
		return temp
	default:
		lw.skip(node)
		return nil
	}
}

func (lw *Lowerer) lowerStmt(node *ast.Node) {
	if node == nil {
		return
	}

	switch d := node.Data.(type) {
	case ast.VarDeclNode:
		lw.emit(OpDecl, &Var{Name: d.Name})
		if d.Init != nil {
			if val := lw.lowerExpr(d.Init); val != nil {
				lw.emit(OpAssign, &Var{Name: d.Name}, val)
			}
		}
	case ast.ArrayDeclNode:
		lw.emit(OpDecl, &Var{Name: d.Name})
	case ast.AssignNode:
		if val := lw.lowerExpr(d.Value); val != nil {
			lw.emit(OpAssign, &Var{Name: d.Name}, val)
		}
	case ast.PrintNode:
		if val := lw.lowerExpr(d.Expr); val != nil {
			lw.emit(OpPrint, nil, val)
		}
	case ast.BlockNode:
		for _, s := range d.Stmts {
			lw.lowerStmt(s)
		}
	default:
		lw.skip(node)
	}
}
