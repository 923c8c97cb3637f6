// Package mips assembles and runs the subset of MIPS32 that the code generator
// emits, with SPIM-style syscalls for printing and exiting
package mips

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DataBase  uint32 = 0x10010000
	StackBase uint32 = 0x7ffffffc
)

var registerNames = map[string]int{
	"zero": 0, "at": 1, "v0": 2, "v1": 3,
	"a0": 4, "a1": 5, "a2": 6, "a3": 7,
	"t0": 8, "t1": 9, "t2": 10, "t3": 11, "t4": 12, "t5": 13, "t6": 14, "t7": 15,
	"s0": 16, "s1": 17, "s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23,
	"t8": 24, "t9": 25, "k0": 26, "k1": 27, "gp": 28, "sp": 29, "fp": 30, "ra": 31,
}

// operand shapes per mnemonic: r register, i immediate, m off(reg), l label
var shapes = map[string]string{
	"li": "ri", "la": "rl", "move": "rr", "neg": "rr", "mflo": "r", "mfhi": "r",
	"lw": "rm", "sw": "rm",
	"add": "rrr", "addu": "rrr", "sub": "rrr", "subu": "rrr", "mul": "rrr",
	"and": "rrr", "or": "rrr", "xor": "rrr", "slt": "rrr", "sltu": "rrr",
	"addi": "rri", "addiu": "rri", "andi": "rri", "ori": "rri", "xori": "rri",
	"slti": "rri", "sltiu": "rri", "sll": "rri",
	"div": "rr",
	"beq": "rrl", "bne": "rrl", "j": "l",
	"syscall": "", "nop": "",
}

// Instr is one assembled instruction. Regs holds register operands in source
// order, including the base register of an off(reg) operand
type Instr struct {
	Op     string
	Regs   [3]int
	Imm    int32
	Target uint32
	Line   int
}

type Program struct {
	Text       []Instr
	Data       []byte
	TextLabels map[string]int
	DataLabels map[string]uint32
	Entry      int
}

type parsedLine struct {
	lineNo    int
	labels    []string
	directive string
	mnemonic  string
	operands  []string
}

type Assembler struct {
	text map[string]int
	data map[string]uint32
}

func NewAssembler() *Assembler {
	return &Assembler{text: make(map[string]int), data: make(map[string]uint32)}
}

func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

// Assemble resolves labels in a first pass and encodes instructions in a second
func (a *Assembler) Assemble(code string) (*Program, error) {
	var lines []parsedLine
	for i, raw := range strings.Split(code, "\n") {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		lines = append(lines, p)
	}

	prog := &Program{TextLabels: a.text, DataLabels: a.data}
	if err := a.pass1(lines, prog); err != nil {
		return nil, err
	}
	if err := a.pass2(lines, prog); err != nil {
		return nil, err
	}
	entry, ok := a.text["main"]
	if !ok {
		return nil, fmt.Errorf("no 'main' label")
	}
	prog.Entry = entry
	return prog, nil
}

func (a *Assembler) pass1(lines []parsedLine, prog *Program) error {
	inData := false
	pc := 0
	for _, p := range lines {
		switch p.directive {
		case ".data":
			inData = true
		case ".text":
			inData = false
		}
		for _, lbl := range p.labels {
			if _, dup := a.text[lbl]; dup {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, p.lineNo)
			}
			if _, dup := a.data[lbl]; dup {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, p.lineNo)
			}
			if inData {
				a.data[lbl] = DataBase + uint32(len(prog.Data))
			} else {
				a.text[lbl] = pc
			}
		}
		switch {
		case p.directive == ".asciiz":
			if !inData {
				return fmt.Errorf(".asciiz outside .data on line %d", p.lineNo)
			}
			if len(p.operands) != 1 {
				return fmt.Errorf(".asciiz expects one string on line %d", p.lineNo)
			}
			s, err := strconv.Unquote(p.operands[0])
			if err != nil {
				return fmt.Errorf("bad string literal on line %d: %w", p.lineNo, err)
			}
			prog.Data = append(append(prog.Data, s...), 0)
		case p.mnemonic != "":
			if inData {
				return fmt.Errorf("instruction '%s' in .data on line %d", p.mnemonic, p.lineNo)
			}
			pc++
		}
	}
	return nil
}

func (a *Assembler) pass2(lines []parsedLine, prog *Program) error {
	for _, p := range lines {
		if p.mnemonic == "" {
			continue
		}
		shape, ok := shapes[p.mnemonic]
		if !ok {
			return fmt.Errorf("unknown instruction '%s' on line %d", p.mnemonic, p.lineNo)
		}
		if len(p.operands) != len(shape) {
			return fmt.Errorf("'%s' expects %d operands, got %d on line %d", p.mnemonic, len(shape), len(p.operands), p.lineNo)
		}

		in := Instr{Op: p.mnemonic, Line: p.lineNo}
		nreg := 0
		for i, kind := range shape {
			tok := p.operands[i]
			switch kind {
			case 'r':
				r, err := parseRegister(tok, p.lineNo)
				if err != nil {
					return err
				}
				in.Regs[nreg] = r
				nreg++
			case 'i':
				v, err := parseImmediate(tok, p.lineNo)
				if err != nil {
					return err
				}
				in.Imm = v
			case 'm':
				off, r, err := parseMemory(tok, p.lineNo)
				if err != nil {
					return err
				}
				in.Imm = off
				in.Regs[nreg] = r
				nreg++
			case 'l':
				if addr, ok := a.data[tok]; ok && p.mnemonic == "la" {
					in.Target = addr
				} else if pc, ok := a.text[tok]; ok && p.mnemonic != "la" {
					in.Target = uint32(pc)
				} else {
					return fmt.Errorf("undefined label '%s' on line %d", tok, p.lineNo)
				}
			}
		}
		prog.Text = append(prog.Text, in)
	}
	return nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}
	line := strings.TrimSpace(stripComments(raw))

	for {
		colon := strings.Index(line, ":")
		if colon < 0 || strings.ContainsAny(line[:colon], " \t\"") {
			break
		}
		lbl := line[:colon]
		if !isIdentifier(lbl) {
			return p, fmt.Errorf("invalid label '%s' on line %d", lbl, lineNo)
		}
		p.labels = append(p.labels, lbl)
		line = strings.TrimSpace(line[colon+1:])
	}
	if line == "" {
		return p, nil
	}

	head, rest := line, ""
	if sp := strings.IndexAny(line, " \t"); sp >= 0 {
		head, rest = line[:sp], strings.TrimSpace(line[sp+1:])
	}

	if strings.HasPrefix(head, ".") {
		p.directive = head
		if rest != "" {
			p.operands = []string{rest}
		}
		return p, nil
	}

	p.mnemonic = strings.ToLower(head)
	if rest != "" {
		for _, op := range strings.Split(rest, ",") {
			p.operands = append(p.operands, strings.TrimSpace(op))
		}
	}
	return p, nil
}

// stripComments drops everything after a '#' that is not inside a string literal
func stripComments(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '#':
			if !inString {
				return line[:i]
			}
		}
	}
	return line
}

func parseRegister(tok string, lineNo int) (int, error) {
	name, ok := strings.CutPrefix(tok, "$")
	if !ok {
		return 0, fmt.Errorf("expected register, got '%s' on line %d", tok, lineNo)
	}
	if r, ok := registerNames[name]; ok {
		return r, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 && n < 32 {
		return n, nil
	}
	return 0, fmt.Errorf("unknown register '%s' on line %d", tok, lineNo)
}

func parseImmediate(tok string, lineNo int) (int32, error) {
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil || v < -1<<31 || v > 1<<32-1 {
		return 0, fmt.Errorf("invalid immediate '%s' on line %d", tok, lineNo)
	}
	return int32(v), nil
}

func parseMemory(tok string, lineNo int) (int32, int, error) {
	open := strings.Index(tok, "(")
	if open < 0 || !strings.HasSuffix(tok, ")") {
		return 0, 0, fmt.Errorf("expected off(reg), got '%s' on line %d", tok, lineNo)
	}
	var off int32
	if open > 0 {
		v, err := parseImmediate(tok[:open], lineNo)
		if err != nil {
			return 0, 0, err
		}
		off = v
	}
	r, err := parseRegister(tok[open+1:len(tok)-1], lineNo)
	return off, r, err
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}
