package lower

import (
	"fmt"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
)

// Func lowers fn into oblivious form under the settled label table. The
// input is not modified; the result is a fresh graph whose remaining
// conditionals all have public conditions.
//
// Statically unbounded iteration domains are reported as L104 and abort the
// rewrite: the returned graph is nil whenever diagnostics contain a fatal
// entry.
func Func(fn *graph.Func, table *label.Table) (*graph.Func, []label.Diagnostic) {
	if diags := precheck(fn); label.AnyFatal(diags) {
		return nil, diags
	}

	lw := &lowerer{
		src:   fn,
		table: table,
		out:   graph.NewFunc(fn.Name, fn.Sig),
		remap: make([]graph.ValueID, fn.NumValues()),
	}
	for i := range lw.remap {
		lw.remap[i] = graph.NoValue
	}
	lw.out.Body = lw.lowerBlock(fn.Body)
	return lw.out, nil
}

// precheck rejects loops and sorts over containers with no compile-time
// length. This runs before any rewriting: a masked accumulator over an
// unknown trip count would be meaningless.
func precheck(fn *graph.Func) []label.Diagnostic {
	var diags []label.Diagnostic
	fn.WalkBlocks(func(b *graph.Block) {
		for _, id := range b.Stmts {
			switch nd := fn.Nodes[id].(type) {
			case graph.Loop:
				if _, ok := graph.ContainerLen(fn.TypeOf(nd.Container)); !ok {
					diags = append(diags, label.NewUnboundedLoop(fn, id, "loop", fn.TypeOf(nd.Container)))
				}
			case graph.SortByKey:
				if _, ok := graph.ContainerLen(fn.TypeOf(nd.Keys)); !ok {
					diags = append(diags, label.NewUnboundedLoop(fn, id, "sort", fn.TypeOf(nd.Keys)))
				}
			}
		}
	})
	return diags
}

type lowerer struct {
	src   *graph.Func
	table *label.Table
	out   *graph.Func
	remap []graph.ValueID
}

// m translates a source value ID into the lowered arena.
func (lw *lowerer) m(id graph.ValueID) graph.ValueID {
	if id == graph.NoValue {
		return graph.NoValue
	}
	return lw.remap[id]
}

func (lw *lowerer) mAll(ids []graph.ValueID) []graph.ValueID {
	out := make([]graph.ValueID, len(ids))
	for i, id := range ids {
		out[i] = lw.m(id)
	}
	return out
}

// emitAt appends a synthesized node carrying the position of the source
// construct it stands in for.
func (lw *lowerer) emitAt(n graph.Node, t graph.Type, src graph.ValueID) graph.ValueID {
	return lw.out.AddAt(n, t, lw.src.PosOf(src))
}

func (lw *lowerer) private(id graph.ValueID) bool {
	return lw.table.Info(id).Label == graph.Private
}

// lowerBlock lowers one region body, returning the new block.
func (lw *lowerer) lowerBlock(b graph.Block) graph.Block {
	var stmts []graph.ValueID
	for _, id := range b.Stmts {
		lw.lowerStmt(&stmts, id)
	}
	return graph.Block{Stmts: stmts, Yield: lw.mAll(b.Yield)}
}

func (lw *lowerer) lowerStmt(stmts *[]graph.ValueID, id graph.ValueID) {
	switch nd := lw.src.Nodes[id].(type) {
	case graph.If:
		if lw.private(nd.Cond) {
			lw.flattenIf(stmts, id, nd)
		} else {
			lw.nativeIf(stmts, id, nd)
		}
	case graph.Loop:
		lw.lowerLoop(stmts, id, nd)
	case graph.LoopExit:
		// Handled by the enclosing lowerLoop; nothing reaches here.
		panic(fmt.Sprintf("lower: exit v%d outside loop lowering", id))
	case graph.SortByKey:
		n, _ := graph.ContainerLen(lw.src.TypeOf(nd.Keys)) // bounded per precheck
		nid := lw.emitAt(graph.NetworkApply{
			Keys:    lw.m(nd.Keys),
			Payload: lw.m(nd.Payload),
			Size:    n,
		}, lw.src.TypeOf(id), id)
		lw.remap[id] = nid
		*stmts = append(*stmts, nid)
	default:
		nid := lw.emitAt(lw.rewrite(lw.src.Nodes[id]), lw.src.TypeOf(id), id)
		lw.remap[id] = nid
		*stmts = append(*stmts, nid)
	}
}

// nativeIf keeps a public-conditioned branch as a real branch, lowering its
// blocks in place.
func (lw *lowerer) nativeIf(stmts *[]graph.ValueID, id graph.ValueID, nd graph.If) {
	nid := lw.emitAt(graph.If{}, lw.src.TypeOf(id), id)
	lw.remap[id] = nid
	lw.out.Nodes[nid] = graph.If{
		Cond: lw.m(nd.Cond),
		Then: lw.lowerBlock(nd.Then),
		Else: lw.lowerBlock(nd.Else),
	}
	*stmts = append(*stmts, nid)
}

// flattenIf evaluates both branches of a private-conditioned If
// unconditionally and merges each yield pair through a Select. The branch
// node itself becomes the tuple of selects, so downstream projections keep
// working untouched.
func (lw *lowerer) flattenIf(stmts *[]graph.ValueID, id graph.ValueID, nd graph.If) {
	then := lw.lowerBlock(nd.Then)
	*stmts = append(*stmts, then.Stmts...)
	els := lw.lowerBlock(nd.Else)
	*stmts = append(*stmts, els.Stmts...)

	tupleType, ok := lw.src.TypeOf(id).(graph.Tuple)
	if !ok {
		panic(fmt.Sprintf("lower: branch v%d does not carry a tuple type", id))
	}

	cond := lw.m(nd.Cond)
	sels := make([]graph.ValueID, len(then.Yield))
	for k := range then.Yield {
		sels[k] = lw.emitAt(graph.Select{
			Cond: cond,
			Then: then.Yield[k],
			Else: els.Yield[k],
		}, tupleType.Elems[k], id)
		*stmts = append(*stmts, sels[k])
	}
	merged := lw.emitAt(graph.MakeTuple{Elems: sels}, tupleType, id)
	lw.remap[id] = merged
	*stmts = append(*stmts, merged)
}

// privateExit is one early exit being folded into the masked accumulator.
type privateExit struct {
	cond    graph.ValueID // lowered condition
	results []graph.ValueID
}

// lowerLoop rebuilds a loop. Private-conditioned exits are removed from the
// body and folded into the carried state: an appended exited flag freezes
// the retained result once set, and the loop runs its full trip count. A
// public-conditioned exit stays a native exit; in a masked loop its result
// slots are routed through the same freeze selects so it cannot undo a
// result an earlier private exit already settled.
func (lw *lowerer) lowerLoop(stmts *[]graph.ValueID, id graph.ValueID, nd graph.Loop) {
	masked := false
	for _, s := range nd.Body.Stmts {
		if exit, ok := lw.src.Nodes[s].(graph.LoopExit); ok && exit.Loop == id && lw.private(exit.Cond) {
			masked = true
		}
	}

	oldType := lw.src.TypeOf(id).(graph.Tuple)
	init := lw.mAll(nd.Init)
	newType := oldType
	if masked {
		fls := lw.emitAt(graph.Const{Int: 0}, graph.Bool{}, id)
		*stmts = append(*stmts, fls)
		init = append(init, fls)
		elems := append(append([]graph.Type{}, oldType.Elems...), graph.Bool{})
		newType = graph.Tuple{Elems: elems}
	}

	nid := lw.emitAt(graph.Loop{}, newType, id)
	lw.remap[id] = nid
	*stmts = append(*stmts, nid)

	var body []graph.ValueID
	var exitedIn graph.ValueID = graph.NoValue
	if masked {
		exitedIn = lw.emitAt(graph.LoopState{Loop: nid, Index: len(nd.Init)}, graph.Bool{}, id)
		body = append(body, exitedIn)
	}

	var exits []privateExit
	for _, s := range nd.Body.Stmts {
		exit, ok := lw.src.Nodes[s].(graph.LoopExit)
		if !ok {
			lw.lowerStmt(&body, s)
			continue
		}
		if lw.private(exit.Cond) {
			exits = append(exits, privateExit{cond: lw.m(exit.Cond), results: lw.mAll(exit.Results)})
			continue
		}
		results := lw.mAll(exit.Results)
		if masked {
			// A native exit must not override a result the mask already
			// settled: each slot goes through the same selects the yields
			// get, over the private exits ahead of this one in body order.
			for k := range results {
				sel := results[k]
				for i := len(exits) - 1; i >= 0; i-- {
					if k < len(exits[i].results) {
						ps := lw.emitAt(graph.Select{Cond: exits[i].cond, Then: exits[i].results[k], Else: sel}, oldType.Elems[k], s)
						body = append(body, ps)
						sel = ps
					}
				}
				held := lw.emitAt(graph.LoopState{Loop: nid, Index: k}, oldType.Elems[k], s)
				body = append(body, held)
				frozen := lw.emitAt(graph.Select{Cond: exitedIn, Then: held, Else: sel}, oldType.Elems[k], s)
				body = append(body, frozen)
				results[k] = frozen
			}
			results = append(results, exitedIn)
		}
		eid := lw.emitAt(graph.LoopExit{Loop: nid, Cond: lw.m(exit.Cond), Results: results}, graph.Unit{}, s)
		lw.remap[s] = eid
		body = append(body, eid)
	}

	yields := lw.mAll(nd.Body.Yield)
	if masked {
		// Per slot: the earliest exit whose condition holds wins this
		// iteration; once exited, the previous state is frozen.
		for k := range yields {
			sel := yields[k]
			for i := len(exits) - 1; i >= 0; i-- {
				if k < len(exits[i].results) {
					s := lw.emitAt(graph.Select{Cond: exits[i].cond, Then: exits[i].results[k], Else: sel}, oldType.Elems[k], id)
					body = append(body, s)
					sel = s
				}
			}
			held := lw.emitAt(graph.LoopState{Loop: nid, Index: k}, oldType.Elems[k], id)
			body = append(body, held)
			frozen := lw.emitAt(graph.Select{Cond: exitedIn, Then: held, Else: sel}, oldType.Elems[k], id)
			body = append(body, frozen)
			yields[k] = frozen
		}

		exitedOut := exitedIn
		for _, e := range exits {
			or := lw.emitAt(graph.Binary{Op: graph.OpOr, X: exitedOut, Y: e.cond}, graph.Bool{}, id)
			body = append(body, or)
			exitedOut = or
		}
		yields = append(yields, exitedOut)
	}

	lw.out.Nodes[nid] = graph.Loop{
		Container: lw.m(nd.Container),
		Init:      init,
		Body:      graph.Block{Stmts: body, Yield: yields},
	}
}

// rewrite copies a leaf node with its operands translated into the lowered
// arena. Loop bindings follow the remapped loop.
func (lw *lowerer) rewrite(n graph.Node) graph.Node {
	switch nd := n.(type) {
	case graph.Param, graph.Const:
		return nd
	case graph.Binary:
		return graph.Binary{Op: nd.Op, X: lw.m(nd.X), Y: lw.m(nd.Y)}
	case graph.Unary:
		return graph.Unary{Op: nd.Op, X: lw.m(nd.X)}
	case graph.MakeTuple:
		return graph.MakeTuple{Elems: lw.mAll(nd.Elems)}
	case graph.TupleField:
		return graph.TupleField{Tuple: lw.m(nd.Tuple), Index: nd.Index}
	case graph.MakeVariant:
		return graph.MakeVariant{Tag: nd.Tag, Payload: lw.m(nd.Payload)}
	case graph.VariantTag:
		return graph.VariantTag{X: lw.m(nd.X)}
	case graph.MakeBuffer:
		return graph.MakeBuffer{Elems: lw.mAll(nd.Elems)}
	case graph.BufferLen:
		return graph.BufferLen{X: lw.m(nd.X)}
	case graph.BufferGet:
		return graph.BufferGet{X: lw.m(nd.X), Index: lw.m(nd.Index)}
	case graph.BufferSet:
		return graph.BufferSet{X: lw.m(nd.X), Index: lw.m(nd.Index), Elem: lw.m(nd.Elem)}
	case graph.Call:
		return graph.Call{Callee: nd.Callee, Args: lw.mAll(nd.Args)}
	case graph.Export:
		return graph.Export{X: lw.m(nd.X), Sources: nd.Sources}
	case graph.Select:
		return graph.Select{Cond: lw.m(nd.Cond), Then: lw.m(nd.Then), Else: lw.m(nd.Else)}
	case graph.NetworkApply:
		return graph.NetworkApply{Keys: lw.m(nd.Keys), Payload: lw.m(nd.Payload), Size: nd.Size}
	case graph.LoopElem:
		return graph.LoopElem{Loop: lw.m(nd.Loop)}
	case graph.LoopIdx:
		return graph.LoopIdx{Loop: lw.m(nd.Loop)}
	case graph.LoopState:
		return graph.LoopState{Loop: lw.m(nd.Loop), Index: nd.Index}
	case graph.Return:
		return graph.Return{Values: lw.mAll(nd.Values)}
	default:
		panic(fmt.Sprintf("lower: unexpected node %T", n))
	}
}
