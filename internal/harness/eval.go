package harness

import (
	"fmt"
	"sort"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/obliv"
)

// maxCallDepth bounds recursive evaluation. The pipeline rejects call
// cycles statically; the bound here only guards direct evaluator use.
const maxCallDepth = 64

// Eval executes a function graph on concrete argument values and returns
// its results. funcs supplies callee bodies by name.
//
// This is the reference semantics both compilation forms are checked
// against: a source graph takes branches and early exits natively, a
// lowered graph runs its selects and masked accumulators, and equivalence
// testing demands they produce identical results.
func Eval(fn *graph.Func, funcs map[string]*graph.Func, args []Value) ([]Value, error) {
	e := &evaluator{funcs: funcs}
	return e.call(fn, args)
}

type evaluator struct {
	funcs map[string]*graph.Func
	depth int
}

// loopFrame is the current iteration context of one active loop.
type loopFrame struct {
	elem  Value
	idx   Value
	state []Value
}

// control is a non-local exit propagating out of a block: a Return's
// results or a LoopExit's final state.
type control struct {
	ret  []Value
	exit *loopExit
}

type loopExit struct {
	loop    graph.ValueID
	results []Value
}

func (e *evaluator) call(fn *graph.Func, args []Value) ([]Value, error) {
	if len(args) != len(fn.Sig.Params) {
		return nil, fmt.Errorf("eval %s: %d args for %d params", fn.Name, len(args), len(fn.Sig.Params))
	}
	if e.depth >= maxCallDepth {
		return nil, fmt.Errorf("eval %s: call depth exceeds %d", fn.Name, maxCallDepth)
	}
	e.depth++
	defer func() { e.depth-- }()

	st := &frameState{
		fn:    fn,
		args:  args,
		vals:  make([]Value, fn.NumValues()),
		loops: make(map[graph.ValueID]*loopFrame),
	}
	ctl, err := e.runBlock(st, fn.Body)
	if err != nil {
		return nil, err
	}
	if ctl == nil || ctl.ret == nil {
		return nil, fmt.Errorf("eval %s: body finished without returning", fn.Name)
	}
	return ctl.ret, nil
}

type frameState struct {
	fn    *graph.Func
	args  []Value
	vals  []Value
	loops map[graph.ValueID]*loopFrame
}

func (st *frameState) collect(ids []graph.ValueID) []Value {
	out := make([]Value, len(ids))
	for i, id := range ids {
		out[i] = st.vals[id]
	}
	return out
}

func (e *evaluator) runBlock(st *frameState, b graph.Block) (*control, error) {
	for _, id := range b.Stmts {
		switch nd := st.fn.Nodes[id].(type) {
		case graph.If:
			chosen := nd.Then
			if !st.vals[nd.Cond].Bool() {
				chosen = nd.Else
			}
			ctl, err := e.runBlock(st, chosen)
			if err != nil {
				return nil, err
			}
			if ctl != nil {
				return ctl, nil
			}
			st.vals[id] = TupleVal(st.collect(chosen.Yield)...)

		case graph.Loop:
			ctl, err := e.runLoop(st, id, nd)
			if err != nil || ctl != nil {
				return ctl, err
			}

		case graph.LoopExit:
			if st.vals[nd.Cond].Bool() {
				return &control{exit: &loopExit{loop: nd.Loop, results: st.collect(nd.Results)}}, nil
			}
			st.vals[id] = UnitVal()

		case graph.Return:
			return &control{ret: st.collect(nd.Values)}, nil

		case graph.LoopElem:
			st.vals[id] = st.loops[nd.Loop].elem
		case graph.LoopIdx:
			st.vals[id] = st.loops[nd.Loop].idx
		case graph.LoopState:
			st.vals[id] = st.loops[nd.Loop].state[nd.Index]

		default:
			val, err := e.evalPure(st, id)
			if err != nil {
				return nil, err
			}
			st.vals[id] = val
		}
	}
	return nil, nil
}

func (e *evaluator) runLoop(st *frameState, id graph.ValueID, nd graph.Loop) (*control, error) {
	container := st.vals[nd.Container]
	if container.Kind != KindBuffer {
		return nil, fmt.Errorf("eval %s: v%d loops over non-container %s", st.fn.Name, id, container)
	}

	state := st.collect(nd.Init)
	frame := &loopFrame{}
	st.loops[id] = frame
	defer delete(st.loops, id)

	for i, elem := range container.Elems {
		frame.elem = elem
		frame.idx = IntVal(int64(i))
		frame.state = state

		ctl, err := e.runBlock(st, nd.Body)
		if err != nil {
			return nil, err
		}
		if ctl != nil {
			if ctl.exit != nil && ctl.exit.loop == id {
				state = ctl.exit.results
				break
			}
			return ctl, nil
		}
		state = st.collect(nd.Body.Yield)
	}

	st.vals[id] = TupleVal(state...)
	return nil, nil
}

func (e *evaluator) evalPure(st *frameState, id graph.ValueID) (Value, error) {
	fn := st.fn
	switch nd := fn.Nodes[id].(type) {
	case graph.Param:
		return st.args[nd.Index], nil

	case graph.Const:
		if _, isBool := fn.TypeOf(id).(graph.Bool); isBool {
			return BoolVal(nd.Int != 0), nil
		}
		return IntVal(nd.Int), nil

	case graph.Unary:
		return evalUnary(nd.Op, st.vals[nd.X])

	case graph.Binary:
		return evalBinary(nd.Op, st.vals[nd.X], st.vals[nd.Y])

	case graph.MakeTuple:
		return TupleVal(st.collect(nd.Elems)...), nil

	case graph.TupleField:
		t := st.vals[nd.Tuple]
		if nd.Index < 0 || nd.Index >= len(t.Elems) {
			return Value{}, fmt.Errorf("eval %s: v%d projects field %d of %s", fn.Name, id, nd.Index, t)
		}
		return t.Elems[nd.Index], nil

	case graph.MakeVariant:
		v := Value{Kind: KindEnum, Tag: nd.Tag}
		if nd.Payload != graph.NoValue {
			v.Elems = []Value{st.vals[nd.Payload]}
		}
		return v, nil

	case graph.VariantTag:
		return IntVal(int64(st.vals[nd.X].Tag)), nil

	case graph.MakeBuffer:
		return Value{Kind: KindBuffer, Elems: st.collect(nd.Elems)}, nil

	case graph.BufferLen:
		return IntVal(int64(len(st.vals[nd.X].Elems))), nil

	case graph.BufferGet:
		buf, idx := st.vals[nd.X], st.vals[nd.Index]
		if idx.Int < 0 || idx.Int >= int64(len(buf.Elems)) {
			return Value{}, fmt.Errorf("eval %s: v%d index %d outside buffer of %d", fn.Name, id, idx.Int, len(buf.Elems))
		}
		return buf.Elems[idx.Int], nil

	case graph.BufferSet:
		buf, idx := st.vals[nd.X], st.vals[nd.Index]
		if idx.Int < 0 || idx.Int >= int64(len(buf.Elems)) {
			return Value{}, fmt.Errorf("eval %s: v%d index %d outside buffer of %d", fn.Name, id, idx.Int, len(buf.Elems))
		}
		// Value semantics: the update yields a fresh buffer.
		elems := append([]Value(nil), buf.Elems...)
		elems[idx.Int] = st.vals[nd.Elem]
		return Value{Kind: KindBuffer, Elems: elems}, nil

	case graph.Call:
		callee, ok := e.funcs[nd.Callee]
		if !ok {
			return Value{}, fmt.Errorf("eval %s: v%d calls unknown function %q", fn.Name, id, nd.Callee)
		}
		results, err := e.call(callee, st.collect(nd.Args))
		if err != nil {
			return Value{}, err
		}
		if len(results) == 1 {
			return results[0], nil
		}
		return TupleVal(results...), nil

	case graph.Export:
		// Declassification changes labels, not values.
		return st.vals[nd.X], nil

	case graph.Select:
		if st.vals[nd.Cond].Bool() {
			return st.vals[nd.Then], nil
		}
		return st.vals[nd.Else], nil

	case graph.SortByKey:
		return evalStableSort(st.vals[nd.Keys], st.vals[nd.Payload])

	case graph.NetworkApply:
		return evalNetwork(nd.Size, st.vals[nd.Keys], st.vals[nd.Payload])

	default:
		return Value{}, fmt.Errorf("eval %s: v%d has unevaluable node %T", fn.Name, id, nd)
	}
}

func evalUnary(op graph.UnOp, x Value) (Value, error) {
	switch op {
	case graph.OpNot:
		return BoolVal(!x.Bool()), nil
	case graph.OpNeg:
		return IntVal(-x.Int), nil
	case graph.OpBNot:
		return IntVal(^x.Int), nil
	default:
		return Value{}, fmt.Errorf("eval: unknown unary op %v", op)
	}
}

func evalBinary(op graph.BinOp, x, y Value) (Value, error) {
	logical := x.Kind == KindBool && y.Kind == KindBool
	switch op {
	case graph.OpAdd:
		return IntVal(x.Int + y.Int), nil
	case graph.OpSub:
		return IntVal(x.Int - y.Int), nil
	case graph.OpMul:
		return IntVal(x.Int * y.Int), nil
	case graph.OpDiv:
		if y.Int == 0 {
			return Value{}, fmt.Errorf("eval: division by zero")
		}
		return IntVal(x.Int / y.Int), nil
	case graph.OpMod:
		if y.Int == 0 {
			return Value{}, fmt.Errorf("eval: division by zero")
		}
		return IntVal(x.Int % y.Int), nil
	case graph.OpAnd:
		if logical {
			return BoolVal(x.Bool() && y.Bool()), nil
		}
		return IntVal(x.Int & y.Int), nil
	case graph.OpOr:
		if logical {
			return BoolVal(x.Bool() || y.Bool()), nil
		}
		return IntVal(x.Int | y.Int), nil
	case graph.OpXor:
		if logical {
			return BoolVal(x.Bool() != y.Bool()), nil
		}
		return IntVal(x.Int ^ y.Int), nil
	case graph.OpShl:
		return IntVal(x.Int << uint(y.Int)), nil
	case graph.OpShr:
		return IntVal(x.Int >> uint(y.Int)), nil
	case graph.OpEq:
		return BoolVal(x.Equal(y)), nil
	case graph.OpNe:
		return BoolVal(!x.Equal(y)), nil
	case graph.OpLt:
		return BoolVal(x.Int < y.Int), nil
	case graph.OpLe:
		return BoolVal(x.Int <= y.Int), nil
	case graph.OpGt:
		return BoolVal(x.Int > y.Int), nil
	case graph.OpGe:
		return BoolVal(x.Int >= y.Int), nil
	default:
		return Value{}, fmt.Errorf("eval: unknown binary op %v", op)
	}
}

// evalStableSort is the reference semantics of a sort request: a stable
// sort of payload by keys. Keys compare as unsigned 64-bit integers, the
// same ordering the comparator network uses.
func evalStableSort(keys, payload Value) (Value, error) {
	if keys.Kind != KindBuffer || payload.Kind != KindBuffer {
		return Value{}, fmt.Errorf("eval: sort over non-container operands")
	}
	if len(keys.Elems) != len(payload.Elems) {
		return Value{}, fmt.Errorf("eval: sort with %d keys for %d payload elements", len(keys.Elems), len(payload.Elems))
	}

	order := make([]int, len(keys.Elems))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return uint64(keys.Elems[order[a]].Int) < uint64(keys.Elems[order[b]].Int)
	})

	sortedKeys := make([]Value, len(order))
	sortedPayload := make([]Value, len(order))
	for i, from := range order {
		sortedKeys[i] = keys.Elems[from]
		sortedPayload[i] = payload.Elems[from]
	}
	return TupleVal(
		Value{Kind: KindBuffer, Elems: sortedKeys},
		Value{Kind: KindBuffer, Elems: sortedPayload},
	), nil
}

// evalNetwork executes the comparator network a lowered permutation site
// carries. Scalar containers only; the payload rides along as uint64.
func evalNetwork(size int, keys, payload Value) (Value, error) {
	if keys.Kind != KindBuffer || payload.Kind != KindBuffer {
		return Value{}, fmt.Errorf("eval: network over non-container operands")
	}
	ks := make([]uint64, len(keys.Elems))
	ps := make([]uint64, len(payload.Elems))
	for i, k := range keys.Elems {
		ks[i] = uint64(k.Int)
	}
	for i, p := range payload.Elems {
		ps[i] = uint64(p.Int)
	}

	if err := obliv.BuildNetwork(size).Apply(ks, ps); err != nil {
		return Value{}, fmt.Errorf("eval: %w", err)
	}

	sortedKeys := make([]Value, len(ks))
	sortedPayload := make([]Value, len(ps))
	for i := range ks {
		sortedKeys[i] = IntVal(int64(ks[i]))
		sortedPayload[i] = IntVal(int64(ps[i]))
	}
	return TupleVal(
		Value{Kind: KindBuffer, Elems: sortedKeys},
		Value{Kind: KindBuffer, Elems: sortedPayload},
	), nil
}
