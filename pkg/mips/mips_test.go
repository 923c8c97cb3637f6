package mips

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

const header = ".data\nnewline: .asciiz \"\\n\"\n\n.text\n.globl main\nmain:\n"

func run(t *testing.T, body string) (string, error) {
	t.Helper()
	var out strings.Builder
	err := Exec(header+body+"    li $v0, 10\n    syscall\n", &out)
	return out.String(), err
}

func TestPrintIntegerAndNewline(t *testing.T) {
	out, err := run(t, `
    li $t0, 7
    li $t1, 8
    add $t0, $t0, $t1   # 15
    move $a0, $t0
    li $v0, 1
    syscall
    li $v0, 4
    la $a0, newline
    syscall
`)
	be.Err(t, err, nil)
	be.Equal(t, "15\n", out)
}

func TestStackMemoryRoundTrip(t *testing.T) {
	out, err := run(t, `
    addi $sp, $sp, -16
    li $t0, -42
    sw $t0, 4($sp)
    lw $t1, 4($sp)
    move $a0, $t1
    li $v0, 1
    syscall
`)
	be.Err(t, err, nil)
	be.Equal(t, "-42", out)
}

func TestBranchesAndLoops(t *testing.T) {
	out, err := run(t, `
    li $t0, 0
loop_0:
    slt $t1, $t0, 3
`)
	be.True(t, err != nil)
	be.Equal(t, "", out)

	out, err = run(t, `
    li $t0, 0
    li $t2, 3
loop_0:
    slt $t1, $t0, $t2
    beq $t1, $zero, end_1
    move $a0, $t0
    li $v0, 1
    syscall
    addi $t0, $t0, 1
    j loop_0
end_1:
`)
	be.Err(t, err, nil)
	be.Equal(t, "012", out)
}

func TestComparisonIdioms(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"not-zero", "li $t0, 0\nsltiu $t0, $t0, 1", "1"},
		{"not-nonzero", "li $t0, 5\nsltiu $t0, $t0, 1", "0"},
		{"le", "li $t0, 3\nli $t1, 3\nslt $t0, $t1, $t0\nxori $t0, $t0, 1", "1"},
		{"ne", "li $t0, 3\nli $t1, 4\nxor $t0, $t0, $t1\nsltu $t0, $zero, $t0", "1"},
		{"div", "li $t0, 17\nli $t1, 5\ndiv $t0, $t1\nmflo $t0", "3"},
		{"neg", "li $t0, 9\nneg $t0, $t0", "-9"},
		{"sll", "li $t0, 3\nsll $t0, $t0, 2", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.code+"\nmove $a0, $t0\nli $v0, 1\nsyscall\n")
			be.Err(t, err, nil)
			be.Equal(t, tt.want, out)
		})
	}
}

func TestZeroRegisterIsReadOnly(t *testing.T) {
	out, err := run(t, "li $zero, 5\nmove $a0, $zero\nli $v0, 1\nsyscall\n")
	be.Err(t, err, nil)
	be.Equal(t, "0", out)
}

func TestRuntimeErrors(t *testing.T) {
	_, err := run(t, "li $t0, 1\nli $t1, 0\ndiv $t0, $t1\n")
	be.True(t, errors.Is(err, ErrDivideByZero))

	_, err = run(t, "li $t0, 2\nlw $t1, 1($sp)\n")
	be.True(t, errors.Is(err, ErrUnaligned))

	prog, err := Assemble(header + "spin:\n    j spin\n")
	be.Err(t, err, nil)
	cpu := NewCPU(prog)
	cpu.StepLimit = 100
	be.True(t, errors.Is(cpu.Run(), ErrStepLimit))

	prog, err = Assemble(header + "    li $t0, 1\n")
	be.Err(t, err, nil)
	be.True(t, errors.Is(NewCPU(prog).Run(), ErrFellOff))
}

func TestAssembleErrors(t *testing.T) {
	tests := map[string]string{
		"unknown op":      header + "    frob $t0\n",
		"bad register":    header + "    li $q9, 1\n",
		"undefined label": header + "    j nowhere\n",
		"operand count":   header + "    add $t0, $t1\n",
		"duplicate label": header + "a:\na:\n",
		"no main":         ".text\nstart:\n    nop\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Assemble(src)
			be.True(t, err != nil)
		})
	}
}

func TestCommentsAndLabels(t *testing.T) {
	prog, err := Assemble(".data\nmsg: .asciiz \"a#b\"   # trailing\n.text\nmain: li $t0, 1 # one\n")
	be.Err(t, err, nil)
	be.Equal(t, 1, len(prog.Text))
	be.Equal(t, DataBase, prog.DataLabels["msg"])
	be.Equal(t, "a#b\x00", string(prog.Data))
}
