package codegen

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/symtab"
	"github.com/xplshn/mcc/pkg/util"
)

// reg is a temporary register $t0..$t7
type reg int

func (r reg) String() string { return "$t" + strconv.Itoa(int(r)) }

// spillOffset addresses spill slot k below the saved $ra/$fp pair
func spillOffset(slot int) int { return -(savedRegsSize + symtab.WordSize) - slot*symtab.WordSize }

// allocReg hands out registers in LIFO order. Once the pool is exhausted the
// register's previous occupant is saved to a frame slot and restored by releaseReg
func (ctx *Context) allocReg() reg {
	r := reg(ctx.depth % NumTempRegisters)
	if ctx.depth >= NumTempRegisters {
		slot := ctx.depth - NumTempRegisters
		if !ctx.cfg.IsFeatureEnabled(config.FeatRegisterSpill) {
			if !ctx.tooComplex {
				ctx.addError(fmt.Errorf("%w: more than %d live temporaries", util.ErrTooComplex, NumTempRegisters))
				ctx.tooComplex = true
			}
		} else {
			if !ctx.spilled {
				util.Warn(ctx.cfg, config.WarnRegisterSpill, "expression needs more than %d registers, spilling to the stack", NumTempRegisters)
				ctx.spilled = true
			}
			ctx.emit("sw %s, %d($fp)", r, spillOffset(slot))
			ctx.spillSlots = max(ctx.spillSlots, slot+1)
		}
	}
	ctx.depth++
	return r
}

func (ctx *Context) releaseReg() {
	ctx.depth--
	if ctx.depth >= NumTempRegisters && ctx.cfg.IsFeatureEnabled(config.FeatRegisterSpill) {
		slot := ctx.depth - NumTempRegisters
		ctx.emit("lw %s, %d($fp)", reg(ctx.depth%NumTempRegisters), spillOffset(slot))
	}
}

// resetRegs gives the next statement a clean register budget
func (ctx *Context) resetRegs() {
	ctx.depth = 0
	ctx.spilled = false
	ctx.tooComplex = false
}

// codegenExpr returns the register holding the value of node. ok is false when
// node yields no value at all (nil, or an empty expression list)
func (ctx *Context) codegenExpr(node *ast.Node) (r reg, ok bool) {
	if node == nil {
		return 0, false
	}

	switch node.Type {
	case ast.Number:
		v := node.Data.(ast.NumberNode).Value
		imm := int32(math.Trunc(v))
		if float64(imm) != v {
			util.Warn(ctx.cfg, config.WarnExtra, "literal %g truncated to %d", v, imm)
		}
		r = ctx.allocReg()
		ctx.emit("li %s, %d", r, imm)
		return r, true

	case ast.Ident:
		return ctx.codegenIdent(node), true

	case ast.ExprList:
		return ctx.codegenExpr(ast.FirstExpr(node))

	case ast.UnaryOp:
		return ctx.codegenUnaryOp(node), true

	case ast.BinaryOp:
		return ctx.codegenBinaryOp(node), true

	case ast.Subscript:
		d := node.Data.(ast.SubscriptNode)
		base, _ := ctx.arrayBase(d.Name)
		r = ctx.codegenElementAddr(d.Index)
		ctx.emit("lw %s, %d(%s)", r, base, r)
		return r, true
	}

	ctx.addError(fmt.Errorf("%w: %s used as an expression", util.ErrUnsupportedNode, node.Type))
	return ctx.allocReg(), true
}

// codegenOperand is codegenExpr for positions that always need a register
func (ctx *Context) codegenOperand(node *ast.Node) reg {
	if r, ok := ctx.codegenExpr(node); ok {
		return r
	}
	r := ctx.allocReg()
	ctx.emit("li %s, 0", r)
	return r
}

func (ctx *Context) codegenIdent(node *ast.Node) reg {
	name := node.Data.(ast.IdentNode).Name
	offset, ok := ctx.scalarOffset(name)
	r := ctx.allocReg()
	if ok {
		ctx.emit("lw %s, %d($sp)", r, offset)
	}
	return r
}

// codegenElementAddr leaves $sp + 4*index in a register, ready for base(r) addressing
func (ctx *Context) codegenElementAddr(index *ast.Node) reg {
	r := ctx.codegenOperand(index)
	ctx.emit("sll %s, %s, 2", r, r)
	ctx.emit("addu %s, %s, $sp", r, r)
	return r
}

func (ctx *Context) codegenUnaryOp(node *ast.Node) reg {
	d := node.Data.(ast.UnaryOpNode)
	r := ctx.codegenOperand(d.Expr)
	switch d.Op {
	case "!":
		ctx.emit("sltiu %s, %s, 1", r, r)
	case "-":
		ctx.emit("neg %s, %s", r, r)
	default:
		ctx.addError(fmt.Errorf("%w: unary '%s'", util.ErrUnsupportedOperator, d.Op))
	}
	return r
}

func (ctx *Context) codegenBinaryOp(node *ast.Node) reg {
	d := node.Data.(ast.BinaryOpNode)

	if d.Op == "&&" || d.Op == "||" {
		skipLabel := ctx.newLabel()
		left := ctx.codegenOperand(d.Left)
		branch, combine := "beq", "and"
		if d.Op == "||" {
			branch, combine = "bne", "or"
		}
		ctx.emit("%s %s, $zero, skip_%d", branch, left, skipLabel)
		right := ctx.codegenOperand(d.Right)
		ctx.emit("%s %s, %s, %s", combine, left, left, right)
		ctx.releaseReg()
		ctx.emitLabel("skip", skipLabel)
		return left
	}

	l := ctx.codegenOperand(d.Left)
	r := ctx.codegenOperand(d.Right)

	switch d.Op {
	case "+":
		ctx.emit("add %s, %s, %s", l, l, r)
	case "-":
		ctx.emit("sub %s, %s, %s", l, l, r)
	case "*":
		ctx.emit("mul %s, %s, %s", l, l, r)
	case "/":
		ctx.emit("div %s, %s", l, r)
		ctx.emit("mflo %s", l)
	case "<":
		ctx.emit("slt %s, %s, %s", l, l, r)
	case ">":
		ctx.emit("slt %s, %s, %s", l, r, l)
	case "<=":
		ctx.emit("slt %s, %s, %s", l, r, l)
		ctx.emit("xori %s, %s, 1", l, l)
	case ">=":
		ctx.emit("slt %s, %s, %s", l, l, r)
		ctx.emit("xori %s, %s, 1", l, l)
	case "==":
		ctx.emit("xor %s, %s, %s", l, l, r)
		ctx.emit("sltiu %s, %s, 1", l, l)
	case "!=":
		ctx.emit("xor %s, %s, %s", l, l, r)
		ctx.emit("sltu %s, $zero, %s", l, l)
	default:
		ctx.addError(fmt.Errorf("%w: binary '%s'", util.ErrUnsupportedOperator, d.Op))
	}
	ctx.releaseReg()
	return l
}
