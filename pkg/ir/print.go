package ir

import (
	"fmt"
	"io"
)

const rule = "─────────────────────────────"

// PrintRaw writes a numbered, annotated listing of an unoptimized list
func PrintRaw(w io.Writer, list *List) {
	fmt.Fprintln(w, "Unoptimized TAC Instructions:")
	fmt.Fprintln(w, rule)
	for i, in := range list.Instrs {
		fmt.Fprintf(w, "%2d: ", i+1)
		switch {
		case in.Op == OpDecl:
			fmt.Fprintf(w, "DECL %s          // Declare variable '%s'\n", in.Result, in.Result)
		case in.Op.IsArithmetic():
			fmt.Fprintf(w, "%s = %s %s %s     // %s: store result in %s\n",
				in.Result, in.Arg(0), in.Op.Symbol(), in.Arg(1), arithmeticVerb(in.Op), in.Result)
		case in.Op.IsRelational():
			fmt.Fprintf(w, "%s = %s %s %s     // Relational op -> %s\n",
				in.Result, in.Arg(0), in.Op.Symbol(), in.Arg(1), in.Result)
		case in.Op == OpAssign:
			fmt.Fprintf(w, "%s = %s           // Assign value to %s\n", in.Result, in.Arg(0), in.Result)
		case in.Op == OpPrint:
			fmt.Fprintf(w, "PRINT %s          // Output value of %s\n", in.Arg(0), in.Arg(0))
		}
	}
}

// PrintOptimized writes a numbered listing that marks which values became constants
func PrintOptimized(w io.Writer, list *List) {
	fmt.Fprintln(w, "Optimized TAC Instructions:")
	fmt.Fprintln(w, rule)
	for i, in := range list.Instrs {
		fmt.Fprintf(w, "%2d: ", i+1)
		switch {
		case in.Op == OpDecl:
			fmt.Fprintf(w, "DECL %s\n", in.Result)
		case in.Op.IsArithmetic():
			fmt.Fprintf(w, "%s = %s %s %s     // Runtime %s needed\n",
				in.Result, in.Arg(0), in.Op.Symbol(), in.Arg(1), runtimeNoun(in.Op))
		case in.Op.IsRelational():
			fmt.Fprintf(w, "%s = %s %s %s     // Relational op result in %s\n",
				in.Result, in.Arg(0), in.Op.Symbol(), in.Arg(1), in.Result)
		case in.Op == OpAssign:
			if c, ok := in.Arg(0).(*Const); ok {
				fmt.Fprintf(w, "%s = %s           // Constant value: %s\n", in.Result, c, c)
			} else {
				fmt.Fprintf(w, "%s = %s           // Copy value\n", in.Result, in.Arg(0))
			}
		case in.Op == OpPrint:
			if c, ok := in.Arg(0).(*Const); ok {
				fmt.Fprintf(w, "PRINT %s          // Print constant: %s\n", c, c)
			} else {
				fmt.Fprintf(w, "PRINT %s          // Print variable\n", in.Arg(0))
			}
		}
	}
}

func arithmeticVerb(op Op) string {
	switch op {
	case OpAdd:
		return "Add"
	case OpSub:
		return "Subtract"
	case OpMul:
		return "Multiply"
	default:
		return "Divide"
	}
}

func runtimeNoun(op Op) string {
	switch op {
	case OpAdd:
		return "addition"
	case OpSub:
		return "subtraction"
	case OpMul:
		return "multiplication"
	default:
		return "division"
	}
}
