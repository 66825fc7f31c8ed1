// Package testutil provides deterministic helpers shared by package tests:
// canonical function-graph builders and a fixed run-ID generator.
//
// The builders construct small, valid graphs by hand, the same way a
// front-end would emit them. Tests that need a one-off shape build it
// locally; the functions here are the ones several packages exercise.
package testutil

import (
	"github.com/vasilvv/decor/internal/graph"
)

// I64 is the integer type most builders use.
var I64 = graph.Int{Bits: 64}

// MacCheck builds the canonical controlled comparison function:
//
//	func check_mac_match(expected buf8x8 private, provided buf8x8 public) -> (bool)
//
// It loops over expected, compares element-wise against provided, and exits
// early on the first mismatch. The exit condition depends on expected, so
// lowering must rewrite it into the masked-accumulator form.
func MacCheck() *graph.Func {
	buf := graph.Buffer{Width: 8, Len: 8}
	fn := graph.NewFunc("check_mac_match", graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "expected", Type: buf, Label: graph.DeclPrivate},
			{Name: "provided", Type: buf, Label: graph.DeclPublic},
		},
		Results:    []graph.ResultSpec{{Name: "match", Type: graph.Bool{}}},
		Controlled: true,
	})

	expected := fn.Add(graph.Param{Index: 0}, buf)
	provided := fn.Add(graph.Param{Index: 1}, buf)
	tru := fn.Add(graph.Const{Int: 1}, graph.Bool{})
	fls := fn.Add(graph.Const{Int: 0}, graph.Bool{})

	loop := fn.Add(graph.Loop{}, graph.Tuple{Elems: []graph.Type{graph.Bool{}}})
	e := fn.Add(graph.LoopElem{Loop: loop}, graph.Int{Bits: 8})
	i := fn.Add(graph.LoopIdx{Loop: loop}, I64)
	p := fn.Add(graph.BufferGet{X: provided, Index: i}, graph.Int{Bits: 8})
	ne := fn.Add(graph.Binary{Op: graph.OpNe, X: e, Y: p}, graph.Bool{})
	exit := fn.Add(graph.LoopExit{Loop: loop, Cond: ne, Results: []graph.ValueID{fls}}, graph.Unit{})
	ok := fn.Add(graph.LoopState{Loop: loop, Index: 0}, graph.Bool{})
	fn.Nodes[loop] = graph.Loop{
		Container: expected,
		Init:      []graph.ValueID{tru},
		Body: graph.Block{
			Stmts: []graph.ValueID{e, i, p, ne, exit, ok},
			Yield: []graph.ValueID{ok},
		},
	}

	fin := fn.Add(graph.TupleField{Tuple: loop, Index: 0}, graph.Bool{})
	ret := fn.Add(graph.Return{Values: []graph.ValueID{fin}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{expected, provided, tru, fls, loop, fin, ret}}
	return fn
}

// PrivateBranch builds an uncontrolled two-parameter function with one
// data-dependent branch:
//
//	func pick(x i64, y i64) -> (i64) { if x < 10 { y + 1 } else { y * 2 } }
//
// Analyzed with x private, the branch must lower to selects; with both
// public it stays a native branch.
func PrivateBranch() *graph.Func {
	fn := graph.NewFunc("pick", graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "x", Type: I64},
			{Name: "y", Type: I64},
		},
		Results: []graph.ResultSpec{{Name: "r", Type: I64}},
	})

	x := fn.Add(graph.Param{Index: 0}, I64)
	y := fn.Add(graph.Param{Index: 1}, I64)
	ten := fn.Add(graph.Const{Int: 10}, I64)
	cond := fn.Add(graph.Binary{Op: graph.OpLt, X: x, Y: ten}, graph.Bool{})

	ifN := fn.Add(graph.If{}, graph.Tuple{Elems: []graph.Type{I64}})
	one := fn.Add(graph.Const{Int: 1}, I64)
	inc := fn.Add(graph.Binary{Op: graph.OpAdd, X: y, Y: one}, I64)
	two := fn.Add(graph.Const{Int: 2}, I64)
	dbl := fn.Add(graph.Binary{Op: graph.OpMul, X: y, Y: two}, I64)
	fn.Nodes[ifN] = graph.If{
		Cond: cond,
		Then: graph.Block{Stmts: []graph.ValueID{one, inc}, Yield: []graph.ValueID{inc}},
		Else: graph.Block{Stmts: []graph.ValueID{two, dbl}, Yield: []graph.ValueID{dbl}},
	}

	fin := fn.Add(graph.TupleField{Tuple: ifN, Index: 0}, I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{fin}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{x, y, ten, cond, ifN, fin, ret}}
	return fn
}

// SumLoop builds an uncontrolled fold of a 4-element byte buffer:
//
//	func sum(xs buf8x4) -> (i64)
func SumLoop() *graph.Func {
	buf := graph.Buffer{Width: 8, Len: 4}
	fn := graph.NewFunc("sum", graph.Signature{
		Params:  []graph.ParamSpec{{Name: "xs", Type: buf}},
		Results: []graph.ResultSpec{{Name: "total", Type: I64}},
	})

	xs := fn.Add(graph.Param{Index: 0}, buf)
	zero := fn.Add(graph.Const{Int: 0}, I64)
	loop := fn.Add(graph.Loop{}, graph.Tuple{Elems: []graph.Type{I64}})
	e := fn.Add(graph.LoopElem{Loop: loop}, graph.Int{Bits: 8})
	acc := fn.Add(graph.LoopState{Loop: loop, Index: 0}, I64)
	next := fn.Add(graph.Binary{Op: graph.OpAdd, X: acc, Y: e}, I64)
	fn.Nodes[loop] = graph.Loop{
		Container: xs,
		Init:      []graph.ValueID{zero},
		Body:      graph.Block{Stmts: []graph.ValueID{e, acc, next}, Yield: []graph.ValueID{next}},
	}
	fin := fn.Add(graph.TupleField{Tuple: loop, Index: 0}, I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{fin}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{xs, zero, loop, fin, ret}}
	return fn
}

// ExportedSum builds a function that folds a private buffer and exports the
// total, naming the buffer as the declassified source:
//
//	func digest(data buf8x4 private) -> (i64) { export(data) sum }
func ExportedSum() *graph.Func {
	buf := graph.Buffer{Width: 8, Len: 4}
	fn := graph.NewFunc("digest", graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "data", Type: buf, Label: graph.DeclPrivate},
		},
		Results:    []graph.ResultSpec{{Name: "d", Type: I64, Label: graph.DeclPublic}},
		Controlled: true,
	})

	data := fn.Add(graph.Param{Index: 0}, buf)
	zero := fn.Add(graph.Const{Int: 0}, I64)
	loop := fn.Add(graph.Loop{}, graph.Tuple{Elems: []graph.Type{I64}})
	e := fn.Add(graph.LoopElem{Loop: loop}, graph.Int{Bits: 8})
	acc := fn.Add(graph.LoopState{Loop: loop, Index: 0}, I64)
	next := fn.Add(graph.Binary{Op: graph.OpAdd, X: acc, Y: e}, I64)
	fn.Nodes[loop] = graph.Loop{
		Container: data,
		Init:      []graph.ValueID{zero},
		Body:      graph.Block{Stmts: []graph.ValueID{e, acc, next}, Yield: []graph.ValueID{next}},
	}
	fin := fn.Add(graph.TupleField{Tuple: loop, Index: 0}, I64)
	exp := fn.Add(graph.Export{X: fin, Sources: []string{"data"}}, I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{exp}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{data, zero, loop, fin, exp, ret}}
	return fn
}

// MixedExitScan builds a loop carrying one slot with two early exits, the
// first keyed on the element and the second on the iteration index:
//
//	func scan(xs buf8x4 private) -> (i64)
//
// The loop yields 100 on the first element equal to 5 and 7 once the index
// reaches 2. With xs private the first exit is folded into the masked
// accumulator while the second stays native, so the native exit has to
// respect a result the mask settled in an earlier iteration.
func MixedExitScan() *graph.Func {
	buf := graph.Buffer{Width: 8, Len: 4}
	fn := graph.NewFunc("scan", graph.Signature{
		Params:  []graph.ParamSpec{{Name: "xs", Type: buf, Label: graph.DeclPrivate}},
		Results: []graph.ResultSpec{{Name: "r", Type: I64}},
	})

	xs := fn.Add(graph.Param{Index: 0}, buf)
	zero := fn.Add(graph.Const{Int: 0}, I64)
	five := fn.Add(graph.Const{Int: 5}, graph.Int{Bits: 8})
	hundred := fn.Add(graph.Const{Int: 100}, I64)
	two := fn.Add(graph.Const{Int: 2}, I64)
	seven := fn.Add(graph.Const{Int: 7}, I64)

	loop := fn.Add(graph.Loop{}, graph.Tuple{Elems: []graph.Type{I64}})
	e := fn.Add(graph.LoopElem{Loop: loop}, graph.Int{Bits: 8})
	isFive := fn.Add(graph.Binary{Op: graph.OpEq, X: e, Y: five}, graph.Bool{})
	hit := fn.Add(graph.LoopExit{Loop: loop, Cond: isFive, Results: []graph.ValueID{hundred}}, graph.Unit{})
	i := fn.Add(graph.LoopIdx{Loop: loop}, I64)
	isTwo := fn.Add(graph.Binary{Op: graph.OpEq, X: i, Y: two}, graph.Bool{})
	bail := fn.Add(graph.LoopExit{Loop: loop, Cond: isTwo, Results: []graph.ValueID{seven}}, graph.Unit{})
	acc := fn.Add(graph.LoopState{Loop: loop, Index: 0}, I64)
	fn.Nodes[loop] = graph.Loop{
		Container: xs,
		Init:      []graph.ValueID{zero},
		Body: graph.Block{
			Stmts: []graph.ValueID{e, isFive, hit, i, isTwo, bail, acc},
			Yield: []graph.ValueID{acc},
		},
	}

	fin := fn.Add(graph.TupleField{Tuple: loop, Index: 0}, I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{fin}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{xs, zero, five, hundred, two, seven, loop, fin, ret}}
	return fn
}

// CopyRange builds a function that moves elements to positions given by a
// per-element key, expressed as a sort request the lowering pass must turn
// into a comparator-network application:
//
//	func rearrange(keys arr4<i64>, vals arr4<i64>) -> ((arr4<i64>,arr4<i64>))
func CopyRange() *graph.Func {
	arr := graph.Array{Elem: I64, Len: 4}
	pair := graph.Tuple{Elems: []graph.Type{arr, arr}}
	fn := graph.NewFunc("rearrange", graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "keys", Type: arr},
			{Name: "vals", Type: arr},
		},
		Results: []graph.ResultSpec{{Name: "out", Type: pair}},
	})

	keys := fn.Add(graph.Param{Index: 0}, arr)
	vals := fn.Add(graph.Param{Index: 1}, arr)
	sorted := fn.Add(graph.SortByKey{Keys: keys, Payload: vals}, pair)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{sorted}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{keys, vals, sorted, ret}}
	return fn
}
