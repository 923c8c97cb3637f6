package mips

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// DefaultStepLimit bounds a run so that a non-terminating program fails instead of hanging
const DefaultStepLimit = 1_000_000

var (
	ErrStepLimit    = errors.New("step limit exceeded")
	ErrDivideByZero = errors.New("integer division by zero")
	ErrFellOff      = errors.New("execution ran past the end of .text")
	ErrUnaligned    = errors.New("unaligned word access")
)

// CPU executes an assembled Program. Memory is sparse and byte addressed
type CPU struct {
	Regs      [32]int32
	HI, LO    int32
	PC        int
	Steps     int
	StepLimit int
	Halted    bool
	Out       io.Writer

	prog *Program
	mem  map[uint32]byte
}

func NewCPU(prog *Program) *CPU {
	c := &CPU{
		PC:        prog.Entry,
		StepLimit: DefaultStepLimit,
		prog:      prog,
		mem:       make(map[uint32]byte),
	}
	for i, b := range prog.Data {
		c.mem[DataBase+uint32(i)] = b
	}
	c.Regs[29] = int32(StackBase)
	c.Regs[30] = int32(StackBase)
	return c
}

func (c *CPU) outputSink() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *CPU) ReadWord(addr uint32) (int32, error) {
	if addr%4 != 0 {
		return 0, fmt.Errorf("%w: read at 0x%08x", ErrUnaligned, addr)
	}
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(c.mem[addr+i]) << (8 * i)
	}
	return int32(v), nil
}

func (c *CPU) WriteWord(addr uint32, val int32) error {
	if addr%4 != 0 {
		return fmt.Errorf("%w: write at 0x%08x", ErrUnaligned, addr)
	}
	for i := uint32(0); i < 4; i++ {
		c.mem[addr+i] = byte(uint32(val) >> (8 * i))
	}
	return nil
}

func (c *CPU) ReadString(addr uint32) string {
	var buf []byte
	for b := c.mem[addr]; b != 0; b = c.mem[addr] {
		buf = append(buf, b)
		addr++
	}
	return string(buf)
}

func (c *CPU) set(r int, v int32) {
	if r != 0 {
		c.Regs[r] = v
	}
}

// Step executes one instruction
func (c *CPU) Step() error {
	if c.PC < 0 || c.PC >= len(c.prog.Text) {
		return ErrFellOff
	}
	in := c.prog.Text[c.PC]
	c.PC++
	c.Steps++

	r0, r1, r2 := in.Regs[0], in.Regs[1], in.Regs[2]
	a, b := c.Regs[r1], c.Regs[r2]

	switch in.Op {
	case "li":
		c.set(r0, in.Imm)
	case "la":
		c.set(r0, int32(in.Target))
	case "move":
		c.set(r0, a)
	case "neg":
		c.set(r0, -a)
	case "mflo":
		c.set(r0, c.LO)
	case "mfhi":
		c.set(r0, c.HI)
	case "lw":
		v, err := c.ReadWord(uint32(a + in.Imm))
		if err != nil {
			return fmt.Errorf("line %d: %w", in.Line, err)
		}
		c.set(r0, v)
	case "sw":
		if err := c.WriteWord(uint32(a+in.Imm), c.Regs[r0]); err != nil {
			return fmt.Errorf("line %d: %w", in.Line, err)
		}
	case "add", "addu":
		c.set(r0, a+b)
	case "sub", "subu":
		c.set(r0, a-b)
	case "mul":
		c.set(r0, a*b)
	case "and":
		c.set(r0, a&b)
	case "or":
		c.set(r0, a|b)
	case "xor":
		c.set(r0, a^b)
	case "slt":
		c.set(r0, bit(a < b))
	case "sltu":
		c.set(r0, bit(uint32(a) < uint32(b)))
	case "addi", "addiu":
		c.set(r0, a+in.Imm)
	case "andi":
		c.set(r0, a&(in.Imm&0xffff))
	case "ori":
		c.set(r0, a|(in.Imm&0xffff))
	case "xori":
		c.set(r0, a^(in.Imm&0xffff))
	case "slti":
		c.set(r0, bit(a < in.Imm))
	case "sltiu":
		c.set(r0, bit(uint32(a) < uint32(in.Imm)))
	case "sll":
		c.set(r0, int32(uint32(a)<<(uint32(in.Imm)&31)))
	case "div":
		x, y := c.Regs[r0], c.Regs[r1]
		if y == 0 {
			return fmt.Errorf("line %d: %w", in.Line, ErrDivideByZero)
		}
		c.LO, c.HI = x/y, x%y
	case "beq":
		if c.Regs[r0] == c.Regs[r1] {
			c.PC = int(in.Target)
		}
	case "bne":
		if c.Regs[r0] != c.Regs[r1] {
			c.PC = int(in.Target)
		}
	case "j":
		c.PC = int(in.Target)
	case "syscall":
		return c.syscall()
	case "nop":
	default:
		return fmt.Errorf("line %d: unimplemented instruction '%s'", in.Line, in.Op)
	}
	return nil
}

func (c *CPU) syscall() error {
	switch code := c.Regs[2]; code {
	case 1:
		_, err := io.WriteString(c.outputSink(), strconv.Itoa(int(c.Regs[4])))
		return err
	case 4:
		_, err := io.WriteString(c.outputSink(), c.ReadString(uint32(c.Regs[4])))
		return err
	case 10:
		c.Halted = true
		return nil
	default:
		return fmt.Errorf("unsupported syscall %d", code)
	}
}

// Run executes until the program exits through syscall 10
func (c *CPU) Run() error {
	for !c.Halted {
		if c.StepLimit > 0 && c.Steps >= c.StepLimit {
			return fmt.Errorf("%w (%d)", ErrStepLimit, c.StepLimit)
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Exec assembles and runs src, writing program output to out
func Exec(src string, out io.Writer) error {
	prog, err := Assemble(src)
	if err != nil {
		return err
	}
	cpu := NewCPU(prog)
	cpu.Out = out
	return cpu.Run()
}

func bit(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
