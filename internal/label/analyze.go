package label

import (
	"fmt"

	"github.com/vasilvv/decor/internal/graph"
)

// Table holds the resolved Info for every value of one function, indexed by
// ValueID. Tuple-shaped values (tuples, region results, permutations)
// additionally carry per-slot infos so that projecting a public element out
// of a mixed tuple does not drag private siblings along.
type Table struct {
	infos []Info
	elems map[graph.ValueID][]Info
}

func newTable(n int) *Table {
	return &Table{infos: make([]Info, n), elems: make(map[graph.ValueID][]Info)}
}

// Info returns the joined view of a value.
func (t *Table) Info(id graph.ValueID) Info { return t.infos[id] }

// Slot returns the per-element view of slot k of a tuple-shaped value,
// falling back to the joined view when no element breakdown exists.
func (t *Table) Slot(id graph.ValueID, k int) Info {
	if slots, ok := t.elems[id]; ok && k >= 0 && k < len(slots) {
		return slots[k]
	}
	return t.infos[id]
}

// Len returns the number of values tracked.
func (t *Table) Len() int { return len(t.infos) }

// CallSummary is what a call site learns about a callee under one argument
// assignment: which argument positions flow into each result. Result
// labels follow from the deps — a result is private exactly when a private
// argument reaches it.
type CallSummary struct {
	// Deps[k] lists argument positions whose sources reach result k.
	Deps [][]int
}

// CallOracle resolves callee behavior per call site. The specialization
// resolver implements this; tests use JoinOracle.
type CallOracle interface {
	// ResolveCall reports how callee routes argument sensitivity to its
	// results, given the caller-side argument infos. Diagnostics are
	// returned every time; Analyze collects them exactly once per site.
	ResolveCall(caller *graph.Func, call graph.ValueID, callee string, args []Info) (CallSummary, []Diagnostic)
}

// JoinOracle treats every callee as depending on all of its arguments in
// every result. Sound but maximally coarse; the real resolver replaces it
// in the pipeline.
type JoinOracle struct {
	// Results fixes the assumed result arity per callee (default 1).
	Results map[string]int
}

func (o JoinOracle) ResolveCall(_ *graph.Func, _ graph.ValueID, callee string, args []Info) (CallSummary, []Diagnostic) {
	n := 1
	if o.Results != nil {
		if r, ok := o.Results[callee]; ok {
			n = r
		}
	}
	all := make([]int, len(args))
	for i := range all {
		all[i] = i
	}
	deps := make([][]int, n)
	for k := range deps {
		deps[k] = all
	}
	return CallSummary{Deps: deps}, nil
}

// Options configures one analysis run.
type Options struct {
	// Params assigns the actual label per parameter. Nil means the declared
	// defaults: private where declared private, public otherwise.
	Params []graph.Label

	// Oracle resolves calls. Nil falls back to JoinOracle{}.
	Oracle CallOracle

	// EnforceDeclaredResults checks declared-public results against the
	// computed labels. Set for a controlled function's default assignment;
	// specialization re-runs recompute result labels instead.
	EnforceDeclaredResults bool
}

// Result is the outcome of analyzing one function under one assignment.
type Result struct {
	Func   *graph.Func
	Params []graph.Label
	Table  *Table

	// Results holds the computed info per function result, with sources
	// expressed as this function's parameter names.
	Results []Info

	// ResultDeps[k] lists the parameter positions reaching result k, the
	// form call sites consume.
	ResultDeps [][]int

	// Diags collects every violation found; nothing fails fast.
	Diags []Diagnostic
}

// DeclaredParams returns the default label assignment of a signature:
// private where declared private, public otherwise.
func DeclaredParams(sig graph.Signature) []graph.Label {
	out := make([]graph.Label, len(sig.Params))
	for i, p := range sig.Params {
		if p.Label == graph.DeclPrivate {
			out[i] = graph.Private
		}
	}
	return out
}

// Analyze runs the forward data-flow fixpoint over fn under the given
// assignment and then checks every label constraint, returning the full
// table and every diagnostic found.
//
// Propagation is pure joins and runs to fixpoint around loop-carried state
// (the lattice is finite, so termination is structural). Constraints are
// checked in one final walk so each violation is reported exactly once.
func Analyze(fn *graph.Func, opts Options) *Result {
	params := opts.Params
	if params == nil {
		params = DeclaredParams(fn.Sig)
	}
	oracle := opts.Oracle
	if oracle == nil {
		oracle = JoinOracle{}
	}

	a := &analysis{
		fn:     fn,
		table:  newTable(fn.NumValues()),
		oracle: oracle,
		params: make([]Info, len(params)),
	}
	for i, l := range params {
		if l == graph.Private {
			a.params[i] = PrivateInfo(fn.Sig.Params[i].Name)
		} else {
			a.params[i] = PublicInfo
		}
	}

	a.propagateBlock(fn.Body)

	a.collect = true
	if opts.EnforceDeclaredResults {
		a.enforceResults = true
	}
	a.checkBlock(fn.Body)

	res := &Result{
		Func:   fn,
		Params: params,
		Table:  a.table,
		Diags:  a.diags,
	}
	res.Results, res.ResultDeps = a.resultInfos()
	return res
}

type analysis struct {
	fn     *graph.Func
	table  *Table
	oracle CallOracle
	params []Info

	collect        bool
	enforceResults bool
	diags          []Diagnostic
}

func (a *analysis) info(id graph.ValueID) Info { return a.table.infos[id] }

func (a *analysis) set(id graph.ValueID, in Info) {
	a.table.infos[id] = in
}

func (a *analysis) setSlots(id graph.ValueID, slots []Info) {
	a.table.elems[id] = slots
	joined := PublicInfo
	for _, s := range slots {
		joined = joined.Join(s)
	}
	a.table.infos[id] = joined
}

// propagateBlock evaluates every statement's transfer function in order.
func (a *analysis) propagateBlock(b graph.Block) {
	for _, id := range b.Stmts {
		switch nd := a.fn.Nodes[id].(type) {
		case graph.If:
			a.propagateIf(id, nd)
		case graph.Loop:
			a.propagateLoop(id, nd)
		default:
			a.transfer(id, nd)
		}
	}
}

// propagateIf merges the two branches slot-wise and joins the condition
// into every merged slot: whichever side wins, the result reveals the
// condition, exactly as the Select that lowering will synthesize.
func (a *analysis) propagateIf(id graph.ValueID, nd graph.If) {
	a.propagateBlock(nd.Then)
	a.propagateBlock(nd.Else)

	cond := a.info(nd.Cond)
	slots := make([]Info, len(nd.Then.Yield))
	for k := range slots {
		slots[k] = cond.Join(a.info(nd.Then.Yield[k])).Join(a.info(nd.Else.Yield[k]))
	}
	a.setSlots(id, slots)
}

// propagateLoop iterates the body until the loop-carried slots stop
// growing. Early exits contribute their condition and carried results to
// every slot: the final state is a select chain over the exit mask.
func (a *analysis) propagateLoop(id graph.ValueID, nd graph.Loop) {
	slots := make([]Info, len(nd.Init))
	for k, init := range nd.Init {
		slots[k] = a.info(init)
	}
	a.table.elems[id] = slots

	for {
		a.propagateBlock(nd.Body)

		next := make([]Info, len(slots))
		for k := range next {
			next[k] = slots[k].Join(a.info(nd.Body.Yield[k]))
		}
		for _, stmt := range nd.Body.Stmts {
			exit, ok := a.fn.Nodes[stmt].(graph.LoopExit)
			if !ok || exit.Loop != id {
				continue
			}
			cond := a.info(exit.Cond)
			for k := range next {
				next[k] = next[k].Join(cond)
				if k < len(exit.Results) {
					next[k] = next[k].Join(a.info(exit.Results[k]))
				}
			}
		}

		changed := false
		for k := range next {
			if !next[k].Equal(slots[k]) {
				changed = true
			}
		}
		slots = next
		a.table.elems[id] = slots
		if !changed {
			break
		}
	}
	a.setSlots(id, slots)
}

// transfer computes one leaf node's info from its operands.
func (a *analysis) transfer(id graph.ValueID, n graph.Node) {
	switch nd := n.(type) {
	case graph.Param:
		a.set(id, a.params[nd.Index])
	case graph.Const:
		a.set(id, PublicInfo)
	case graph.Binary:
		a.set(id, a.info(nd.X).Join(a.info(nd.Y)))
	case graph.Unary:
		a.set(id, a.info(nd.X))
	case graph.MakeTuple:
		slots := make([]Info, len(nd.Elems))
		for k, e := range nd.Elems {
			slots[k] = a.info(e)
		}
		a.setSlots(id, slots)
	case graph.TupleField:
		a.set(id, a.table.Slot(nd.Tuple, nd.Index))
	case graph.MakeVariant:
		if nd.Payload == graph.NoValue {
			a.set(id, PublicInfo)
		} else {
			a.set(id, a.info(nd.Payload))
		}
	case graph.VariantTag:
		a.set(id, a.info(nd.X))
	case graph.MakeBuffer:
		in := PublicInfo
		for _, e := range nd.Elems {
			in = in.Join(a.info(e))
		}
		a.set(id, in)
	case graph.BufferLen:
		// Lengths are compile-time constants: public whatever the buffer is.
		a.set(id, PublicInfo)
	case graph.BufferGet:
		a.set(id, a.info(nd.X).Join(a.info(nd.Index)))
	case graph.BufferSet:
		a.set(id, a.info(nd.X).Join(a.info(nd.Index)).Join(a.info(nd.Elem)))
	case graph.Call:
		a.set(id, PublicInfo)
		args := make([]Info, len(nd.Args))
		for i, arg := range nd.Args {
			args[i] = a.info(arg)
		}
		summary, _ := a.oracle.ResolveCall(a.fn, id, nd.Callee, args)
		slots := make([]Info, len(summary.Deps))
		for k, dep := range summary.Deps {
			in := PublicInfo
			for _, pos := range dep {
				if pos >= 0 && pos < len(args) {
					in = in.Join(args[pos])
				}
			}
			slots[k] = in
		}
		if len(slots) == 1 {
			a.set(id, slots[0])
		} else if len(slots) > 0 {
			a.setSlots(id, slots)
		}
	case graph.Export:
		// Optimistic downgrade; CheckExports verifies the directive after
		// propagation settles, and a failure aborts before lowering.
		a.set(id, PublicInfo)
	case graph.Select:
		a.set(id, a.info(nd.Cond).Join(a.info(nd.Then)).Join(a.info(nd.Else)))
	case graph.SortByKey:
		a.setSlots(id, permutationSlots(a.info(nd.Keys), a.info(nd.Payload)))
	case graph.NetworkApply:
		a.setSlots(id, permutationSlots(a.info(nd.Keys), a.info(nd.Payload)))
	case graph.LoopElem:
		loop := a.fn.Nodes[nd.Loop].(graph.Loop)
		a.set(id, a.info(loop.Container))
	case graph.LoopIdx:
		// Traversal order is data-independent, so the index is public even
		// over a private container.
		a.set(id, PublicInfo)
	case graph.LoopState:
		a.set(id, a.table.Slot(nd.Loop, nd.Index))
	case graph.LoopExit, graph.Return:
		a.set(id, PublicInfo)
	default:
		panic(fmt.Sprintf("unknown node %T", n))
	}
}

// permutationSlots labels the (sorted keys, permuted payload) pair: the key
// order is a function of the keys; the payload arrangement reveals both.
func permutationSlots(keys, payload Info) []Info {
	return []Info{keys, keys.Join(payload)}
}

// checkBlock walks the settled graph once and emits every constraint
// violation.
func (a *analysis) checkBlock(b graph.Block) {
	for _, id := range b.Stmts {
		switch nd := a.fn.Nodes[id].(type) {
		case graph.If:
			a.checkBlock(nd.Then)
			a.checkBlock(nd.Else)
		case graph.Loop:
			if _, ok := graph.ContainerLen(a.fn.TypeOf(nd.Container)); !ok {
				a.diags = append(a.diags, NewUnboundedLoop(a.fn, id, "loop", a.fn.TypeOf(nd.Container)))
			}
			a.checkBlock(nd.Body)
		case graph.BufferGet:
			a.checkPublicIndex(nd.Index)
		case graph.BufferSet:
			a.checkPublicIndex(nd.Index)
		case graph.SortByKey:
			a.checkPermutation(id, nd.Keys)
		case graph.NetworkApply:
			a.checkPermutation(id, nd.Keys)
		case graph.Call:
			args := make([]Info, len(nd.Args))
			for i, arg := range nd.Args {
				args[i] = a.info(arg)
			}
			_, diags := a.oracle.ResolveCall(a.fn, id, nd.Callee, args)
			a.diags = append(a.diags, diags...)
		case graph.Return:
			if a.enforceResults {
				a.checkReturn(nd)
			}
		}
	}
}

// checkPublicIndex enforces the explicit-index invariant: a computed
// offset must be public however it was derived.
func (a *analysis) checkPublicIndex(idx graph.ValueID) {
	in := a.info(idx)
	if in.Label == graph.Private {
		a.diags = append(a.diags, NewLabelViolation(a.fn, idx, "explicit buffer index", in.Sources))
	}
}

func (a *analysis) checkPermutation(id graph.ValueID, keys graph.ValueID) {
	if _, ok := graph.ContainerLen(a.fn.TypeOf(keys)); !ok {
		a.diags = append(a.diags, NewUnboundedLoop(a.fn, id, "sort", a.fn.TypeOf(keys)))
	}
}

// checkReturn holds the body to the declared result labels: a result
// declared public must come out public, via export if necessary.
func (a *analysis) checkReturn(nd graph.Return) {
	for k, v := range nd.Values {
		if k >= len(a.fn.Sig.Results) {
			break
		}
		decl := a.fn.Sig.Results[k]
		in := a.info(v)
		if decl.Label == graph.DeclPublic && in.Label == graph.Private {
			what := fmt.Sprintf("declared-public result %q", decl.Name)
			a.diags = append(a.diags, NewLabelViolation(a.fn, v, what, in.Sources))
		}
	}
}

// resultInfos extracts the function-result infos and their parameter
// dependency positions from the top-level return.
func (a *analysis) resultInfos() ([]Info, [][]int) {
	byName := make(map[string]int, len(a.fn.Sig.Params))
	for i, p := range a.fn.Sig.Params {
		byName[p.Name] = i
	}

	for _, id := range a.fn.Body.Stmts {
		ret, ok := a.fn.Nodes[id].(graph.Return)
		if !ok {
			continue
		}
		infos := make([]Info, len(ret.Values))
		deps := make([][]int, len(ret.Values))
		for k, v := range ret.Values {
			infos[k] = a.info(v)
			for _, name := range infos[k].Sources.Names() {
				if pos, ok := byName[name]; ok {
					deps[k] = append(deps[k], pos)
				}
			}
		}
		return infos, deps
	}
	return nil, nil
}
