// Package codegen lowers the AST straight to assembly. The MIPS backend is the
// authoritative one; the optimized TAC never feeds into it
package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/symtab"
	"github.com/xplshn/mcc/pkg/util"
)

const (
	// NumTempRegisters is the size of the $t0..$t7 pool
	NumTempRegisters = 8
	// PrintFallbackRegister is printed when a print statement produced no value
	PrintFallbackRegister = "$zero"

	savedRegsSize = 8
	frameAlign    = 8
)

// Context holds the state of one compilation. It must not be shared between
// compilations
type Context struct {
	cfg        *config.Config
	symtab     *symtab.Table
	body       bytes.Buffer
	labelCount int
	loops      []int
	stmt       *ast.Node
	errors     util.ErrorList

	depth      int
	spillSlots int
	spilled    bool
	tooComplex bool
	frameSize  int
}

func NewContext(cfg *config.Config) *Context {
	return &Context{cfg: cfg, symtab: symtab.New()}
}

// FrameSize reports the frame computed by the last GenerateProgram call
func (ctx *Context) FrameSize() int { return ctx.frameSize }

// Symbols exposes the table populated during generation
func (ctx *Context) Symbols() *symtab.Table { return ctx.symtab }

func (ctx *Context) comments() bool { return ctx.cfg.IsFeatureEnabled(config.FeatComments) }

func (ctx *Context) emit(format string, args ...interface{}) {
	fmt.Fprintf(&ctx.body, "    "+format+"\n", args...)
}

func (ctx *Context) emitLabel(kind string, id int) {
	fmt.Fprintf(&ctx.body, "%s_%d:\n", kind, id)
}

func (ctx *Context) comment(format string, args ...interface{}) {
	if ctx.comments() {
		ctx.emit("# "+format, args...)
	}
}

func (ctx *Context) newLabel() int {
	id := ctx.labelCount
	ctx.labelCount++
	return id
}

func (ctx *Context) addError(err error) {
	where := ""
	if ctx.stmt != nil {
		where = strings.ToLower(ctx.stmt.Type.String())
	}
	ctx.errors.Add(where, err)
}

// GenerateProgram emits the whole program. The body is generated first because
// the prologue needs the final frame size
func (ctx *Context) GenerateProgram(root *ast.Node) (*bytes.Buffer, error) {
	ctx.symtab.Reset()
	ctx.body.Reset()
	ctx.codegenStmt(root)
	if err := ctx.errors.Err(); err != nil {
		return nil, err
	}

	frame := util.AlignUp(ctx.symtab.NextOffset()+ctx.spillSlots*symtab.WordSize+savedRegsSize, frameAlign)
	ctx.frameSize = frame

	var out bytes.Buffer
	c := ctx.comments()
	line := func(text, note string) {
		if c && note != "" {
			text += "   # " + note
		}
		out.WriteString("    " + text + "\n")
	}

	out.WriteString(".data\n")
	out.WriteString("newline: .asciiz \"\\n\"\n")
	out.WriteString("\n.text\n.align 2\n.globl main\nmain:\n")
	if c {
		out.WriteString("    # Allocate stack space (computed)\n")
	}
	line(fmt.Sprintf("addi $sp, $sp, -%d", frame), "")
	if c {
		out.WriteString("    # Setup stack frame\n")
	}
	line(fmt.Sprintf("sw $ra, %d($sp)", frame-4), "Save return address")
	line(fmt.Sprintf("sw $fp, %d($sp)", frame-8), "Save frame pointer")
	line(fmt.Sprintf("addi $fp, $sp, %d", frame), "Set frame pointer to old sp + frame size")
	out.WriteString("\n")

	out.Write(ctx.body.Bytes())

	out.WriteString("\n")
	if c {
		out.WriteString("    # Exit program\n")
	}
	line(fmt.Sprintf("addi $sp, $fp, -%d", frame), "Compute original sp from fp")
	line(fmt.Sprintf("lw $ra, %d($sp)", frame-4), "Restore return address")
	line(fmt.Sprintf("lw $fp, %d($sp)", frame-8), "Restore frame pointer")
	line(fmt.Sprintf("addi $sp, $sp, %d", frame), "Deallocate stack space")
	line("li $v0, 10", "")
	line("syscall", "")
	return &out, nil
}

func (ctx *Context) codegenStmt(node *ast.Node) {
	if node == nil {
		return
	}
	if node.Type != ast.Block {
		ctx.stmt = node
	}

	switch node.Type {
	case ast.Block:
		ctx.codegenBlock(node)

	case ast.VarDecl:
		d := node.Data.(ast.VarDeclNode)
		offset, err := ctx.symtab.Declare(d.Name)
		if err != nil {
			ctx.addError(err)
			return
		}
		ctx.comment("Declared %s at offset %d", d.Name, offset)
		if r, ok := ctx.codegenExpr(d.Init); ok {
			ctx.emit("sw %s, %d($sp)", r, offset)
		} else {
			ctx.emit("sw $zero, %d($sp)", offset)
		}
		ctx.resetRegs()

	case ast.ArrayDecl:
		d := node.Data.(ast.ArrayDeclNode)
		offset, err := ctx.symtab.DeclareArray(d.Name, d.Size)
		if err != nil {
			ctx.addError(err)
			return
		}
		ctx.comment("Declared %s[%d] at offset %d", d.Name, d.Size, offset)
		for i := 0; i < d.Size; i++ {
			ctx.emit("sw $zero, %d($sp)", offset+i*symtab.WordSize)
		}

	case ast.Assign:
		d := node.Data.(ast.AssignNode)
		offset, ok := ctx.scalarOffset(d.Name)
		r, hasValue := ctx.codegenExpr(d.Value)
		if ok && hasValue {
			ctx.emit("sw %s, %d($sp)", r, offset)
		}
		ctx.resetRegs()

	case ast.ArrayAssign:
		d := node.Data.(ast.ArrayAssignNode)
		base, ok := ctx.arrayBase(d.Name)
		addr := ctx.codegenElementAddr(d.Index)
		val := ctx.codegenOperand(d.Value)
		if ok {
			ctx.emit("sw %s, %d(%s)", val, base, addr)
		}
		ctx.resetRegs()

	case ast.Print:
		d := node.Data.(ast.PrintNode)
		r, ok := ctx.codegenExpr(d.Expr)
		ctx.comment("Print integer")
		if ok {
			ctx.emit("move $a0, %s", r)
		} else {
			ctx.emit("move $a0, %s", PrintFallbackRegister)
		}
		ctx.emit("li $v0, 1")
		ctx.emit("syscall")
		ctx.comment("Print newline")
		ctx.emit("li $v0, 4")
		ctx.emit("la $a0, newline")
		ctx.emit("syscall")
		ctx.resetRegs()

	case ast.While:
		d := node.Data.(ast.WhileNode)
		loopLabel, endLabel := ctx.newLabel(), ctx.newLabel()
		ctx.emitLabel("loop", loopLabel)
		ctx.emit("beq %s, $zero, end_%d", ctx.codegenCond(d.Cond), endLabel)
		ctx.resetRegs()
		ctx.codegenLoopBody(d.Body, endLabel)
		ctx.emit("j loop_%d", loopLabel)
		ctx.emitLabel("end", endLabel)

	case ast.If:
		d := node.Data.(ast.IfNode)
		elseLabel, endLabel := ctx.newLabel(), ctx.newLabel()
		ctx.emit("beq %s, $zero, else_%d", ctx.codegenCond(d.Cond), elseLabel)
		ctx.resetRegs()
		ctx.codegenStmt(d.ThenBody)
		ctx.emit("j end_%d", endLabel)
		ctx.emitLabel("else", elseLabel)
		ctx.codegenStmt(d.ElseBody)
		ctx.emitLabel("end", endLabel)

	case ast.For:
		d := node.Data.(ast.ForNode)
		loopLabel, updateLabel, endLabel := ctx.newLabel(), ctx.newLabel(), ctx.newLabel()
		ctx.codegenStmt(d.Init)
		ctx.stmt = node
		ctx.emitLabel("loop", loopLabel)
		if d.Cond != nil {
			ctx.emit("beq %s, $zero, end_%d", ctx.codegenCond(d.Cond), endLabel)
			ctx.resetRegs()
		}
		ctx.codegenLoopBody(d.Body, endLabel)
		ctx.emitLabel("update", updateLabel)
		ctx.codegenStmt(d.Update)
		ctx.emit("j loop_%d", loopLabel)
		ctx.emitLabel("end", endLabel)

	case ast.Return:
		d := node.Data.(ast.ReturnNode)
		if r, ok := ctx.codegenExpr(d.Expr); ok {
			ctx.emit("move $v0, %s", r)
		} else {
			ctx.emit("move $v0, $zero")
		}
		ctx.resetRegs()

	case ast.Break:
		if len(ctx.loops) == 0 {
			ctx.addError(util.ErrBreakOutsideLoop)
			return
		}
		ctx.emit("j end_%d", ctx.loops[len(ctx.loops)-1])

	default:
		// A bare expression in statement position, such as a for-loop update
		ctx.codegenExpr(node)
		ctx.resetRegs()
	}
}

func (ctx *Context) codegenBlock(node *ast.Node) {
	stmts := node.Data.(ast.BlockNode).Stmts
	for i, stmt := range stmts {
		ctx.codegenStmt(stmt)
		if stmt != nil && stmt.Type == ast.Break && i+1 < len(stmts) {
			util.Warn(ctx.cfg, config.WarnUnreachableCode, "%d statement(s) after break are never executed", len(stmts)-i-1)
		}
	}
}

func (ctx *Context) codegenLoopBody(body *ast.Node, endLabel int) {
	ctx.loops = append(ctx.loops, endLabel)
	ctx.codegenStmt(body)
	ctx.loops = ctx.loops[:len(ctx.loops)-1]
}

// codegenCond evaluates a branch condition; a missing value behaves as false
func (ctx *Context) codegenCond(node *ast.Node) string {
	if r, ok := ctx.codegenExpr(node); ok {
		return r.String()
	}
	return "$zero"
}

func (ctx *Context) scalarOffset(name string) (int, bool) {
	sym, ok := ctx.symtab.Symbol(name)
	if !ok {
		ctx.addError(fmt.Errorf("%w '%s'", util.ErrUndeclared, name))
		return -1, false
	}
	if sym.IsArray {
		ctx.addError(fmt.Errorf("%w: '%s'", util.ErrIsArray, name))
		return -1, false
	}
	return sym.Offset, true
}

func (ctx *Context) arrayBase(name string) (int, bool) {
	sym, ok := ctx.symtab.Symbol(name)
	if !ok {
		ctx.addError(fmt.Errorf("%w '%s'", util.ErrUndeclared, name))
		return -1, false
	}
	if !sym.IsArray {
		ctx.addError(fmt.Errorf("'%s' is %w", name, util.ErrNotArray))
		return -1, false
	}
	return sym.Offset, true
}
