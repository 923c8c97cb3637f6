package ir

// DivByZeroResult is what a division by a literal zero folds to. It is a policy, not
// an arithmetic result: no fault is raised and no infinity is produced
const DivByZeroResult = 0.0

type binding struct {
	name  string
	value Value
}

// Optimizer performs constant folding and copy propagation in one forward pass.
// There is no iteration to a fixpoint and no dead-code elimination
type Optimizer struct {
	// OnDivByZero is called for every division folded under DivByZeroResult
	OnDivByZero func(in *Instruction)
	table       []binding
}

// Optimize returns a fresh, optimized copy of list
func Optimize(list *List) *List {
	return (&Optimizer{}).Run(list)
}

func (o *Optimizer) Run(list *List) *List {
	o.table = o.table[:0]
	out := &List{TempCount: list.TempCount}

	for _, in := range list.Instrs {
		switch {
		case in.Op == OpDecl:
			out.append(&Instruction{Op: OpDecl, Result: in.Result})

		case in.Op.IsBinary():
			left, right := o.resolve(in.Arg(0)), o.resolve(in.Arg(1))
			if folded, ok := o.fold(in, left, right); ok {
				o.record(in.Result, folded)
				out.append(&Instruction{Op: OpAssign, Result: in.Result, Args: []Value{folded}})
			} else {
				out.append(&Instruction{Op: in.Op, Result: in.Result, Args: []Value{left, right}})
			}

		case in.Op == OpAssign:
			val := o.resolve(in.Arg(0))
			o.record(in.Result, val)
			out.append(&Instruction{Op: OpAssign, Result: in.Result, Args: []Value{val}})

		case in.Op == OpPrint:
			out.append(&Instruction{Op: OpPrint, Args: []Value{o.resolve(in.Arg(0))}})
		}
	}
	return out
}

// record binds dst to val. Names whose current binding copies dst are rebound
// to themselves first, since dst stops holding the value they copied
func (o *Optimizer) record(dst, val Value) {
	name := dst.String()
	for _, dep := range o.copiesOf(name) {
		o.table = append(o.table, binding{name: dep})
	}
	o.table = append(o.table, binding{name: name, value: val})
}

// copiesOf lists the names whose most recent binding is a copy of name
func (o *Optimizer) copiesOf(name string) []string {
	var deps []string
	seen := map[string]bool{}
	for i := len(o.table) - 1; i >= 0; i-- {
		b := o.table[i]
		if seen[b.name] {
			continue
		}
		seen[b.name] = true
		if b.name == name || b.value == nil {
			continue
		}
		if _, isConst := b.value.(*Const); !isConst && b.value.String() == name {
			deps = append(deps, b.name)
		}
	}
	return deps
}

// resolve looks v up from the most recent binding backwards. A binding with no
// value stands for the name itself
func (o *Optimizer) resolve(v Value) Value {
	if v == nil {
		return nil
	}
	if _, isConst := v.(*Const); isConst {
		return v
	}
	name := v.String()
	for i := len(o.table) - 1; i >= 0; i-- {
		if o.table[i].name == name {
			if o.table[i].value == nil {
				return v
			}
			return o.table[i].value
		}
	}
	return v
}

func (o *Optimizer) fold(in *Instruction, left, right Value) (*Const, bool) {
	lc, lok := left.(*Const)
	rc, rok := right.(*Const)
	if !lok || !rok {
		return nil, false
	}
	a, aok := lc.Float()
	b, bok := rc.Float()
	if !aok || !bok {
		return nil, false
	}

	var res float64
	switch in.Op {
	case OpAdd:
		res = a + b
	case OpSub:
		res = a - b
	case OpMul:
		res = a * b
	case OpDiv:
		if b == 0 {
			res = DivByZeroResult
			if o.OnDivByZero != nil {
				o.OnDivByZero(in)
			}
		} else {
			res = a / b
		}
	case OpEq:
		return truth(a == b), true
	case OpNeq:
		return truth(a != b), true
	case OpGt:
		return truth(a > b), true
	case OpLt:
		return truth(a < b), true
	case OpGe:
		return truth(a >= b), true
	case OpLe:
		return truth(a <= b), true
	default:
		return nil, false
	}
	return NewConst(res), true
}

// truth renders a relational result as integer text
func truth(b bool) *Const {
	if b {
		return &Const{Text: "1"}
	}
	return &Const{Text: "0"}
}
