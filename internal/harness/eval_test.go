package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
	"github.com/vasilvv/decor/internal/lower"
	"github.com/vasilvv/decor/internal/testutil"
)

func mustEval(t *testing.T, fn *graph.Func, funcs map[string]*graph.Func, args ...Value) []Value {
	t.Helper()
	got, err := Eval(fn, funcs, args)
	require.NoError(t, err)
	return got
}

// lowerUnder analyzes fn under params and lowers it.
func lowerUnder(t *testing.T, fn *graph.Func, params []graph.Label) *graph.Func {
	t.Helper()
	res := label.Analyze(fn, label.Options{Params: params})
	require.Empty(t, res.Diags)
	lowered, diags := lower.Func(fn, res.Table)
	require.Empty(t, diags)
	require.NotNil(t, lowered)
	return lowered
}

// =============================================================================
// Reference semantics
// =============================================================================

func TestEvalFoldsLoop(t *testing.T) {
	got := mustEval(t, testutil.SumLoop(), nil, BufVal(1, 2, 3, 4))

	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(IntVal(10)))
}

func TestEvalTakesOneBranch(t *testing.T) {
	fn := testutil.PrivateBranch()

	then := mustEval(t, fn, nil, IntVal(3), IntVal(4))
	assert.True(t, then[0].Equal(IntVal(5)), "x<10 takes the then side")

	els := mustEval(t, fn, nil, IntVal(12), IntVal(4))
	assert.True(t, els[0].Equal(IntVal(8)), "x>=10 takes the else side")
}

func TestEvalEarlyExit(t *testing.T) {
	fn := testutil.MacCheck()

	match := mustEval(t, fn, nil, BufVal(1, 2, 3, 4, 5, 6, 7, 8), BufVal(1, 2, 3, 4, 5, 6, 7, 8))
	assert.True(t, match[0].Equal(BoolVal(true)))

	mismatch := mustEval(t, fn, nil, BufVal(1, 2, 3, 4, 5, 6, 7, 8), BufVal(9, 2, 3, 4, 5, 6, 7, 8))
	assert.True(t, mismatch[0].Equal(BoolVal(false)))
}

func TestEvalExportIsValueTransparent(t *testing.T) {
	got := mustEval(t, testutil.ExportedSum(), nil, BufVal(2, 4, 6, 8))

	assert.True(t, got[0].Equal(IntVal(20)))
}

func TestEvalCallsCallee(t *testing.T) {
	buf := graph.Buffer{Width: 8, Len: 4}
	caller := graph.NewFunc("total", graph.Signature{
		Params:  []graph.ParamSpec{{Name: "xs", Type: buf}},
		Results: []graph.ResultSpec{{Name: "r", Type: testutil.I64}},
	})
	xs := caller.Add(graph.Param{Index: 0}, buf)
	call := caller.Add(graph.Call{Callee: "sum", Args: []graph.ValueID{xs}}, testutil.I64)
	ret := caller.Add(graph.Return{Values: []graph.ValueID{call}}, graph.Unit{})
	caller.Body = graph.Block{Stmts: []graph.ValueID{xs, call, ret}}

	got := mustEval(t, caller, map[string]*graph.Func{"sum": testutil.SumLoop()}, BufVal(5, 5, 5, 1))

	assert.True(t, got[0].Equal(IntVal(16)))
}

func TestEvalBufferSetCopies(t *testing.T) {
	buf := graph.Buffer{Width: 8, Len: 3}
	fn := graph.NewFunc("poke", graph.Signature{
		Params: []graph.ParamSpec{{Name: "xs", Type: buf}},
		Results: []graph.ResultSpec{
			{Name: "orig", Type: graph.Int{Bits: 8}},
			{Name: "new", Type: graph.Int{Bits: 8}},
		},
	})
	xs := fn.Add(graph.Param{Index: 0}, buf)
	one := fn.Add(graph.Const{Int: 1}, testutil.I64)
	nine := fn.Add(graph.Const{Int: 9}, graph.Int{Bits: 8})
	updated := fn.Add(graph.BufferSet{X: xs, Index: one, Elem: nine}, buf)
	origElem := fn.Add(graph.BufferGet{X: xs, Index: one}, graph.Int{Bits: 8})
	newElem := fn.Add(graph.BufferGet{X: updated, Index: one}, graph.Int{Bits: 8})
	ret := fn.Add(graph.Return{Values: []graph.ValueID{origElem, newElem}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{xs, one, nine, updated, origElem, newElem, ret}}
	require.Empty(t, fn.Validate())

	got := mustEval(t, fn, nil, BufVal(1, 2, 3))

	// Value semantics: the source buffer is untouched by the update.
	assert.True(t, got[0].Equal(IntVal(2)))
	assert.True(t, got[1].Equal(IntVal(9)))
}

func TestEvalDivisionByZero(t *testing.T) {
	fn := graph.NewFunc("div", graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "x", Type: testutil.I64},
			{Name: "y", Type: testutil.I64},
		},
		Results: []graph.ResultSpec{{Name: "r", Type: testutil.I64}},
	})
	x := fn.Add(graph.Param{Index: 0}, testutil.I64)
	y := fn.Add(graph.Param{Index: 1}, testutil.I64)
	q := fn.Add(graph.Binary{Op: graph.OpDiv, X: x, Y: y}, testutil.I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{q}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{x, y, q, ret}}

	_, err := Eval(fn, nil, []Value{IntVal(7), IntVal(0)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

// =============================================================================
// Source/lowered equivalence
// =============================================================================

func TestEvalLoweredBranchAgrees(t *testing.T) {
	fn := testutil.PrivateBranch()
	lowered := lowerUnder(t, fn, []graph.Label{graph.Private, graph.Public})

	for _, args := range [][]Value{
		{IntVal(3), IntVal(4)},
		{IntVal(12), IntVal(4)},
		{IntVal(9), IntVal(-1)},
		{IntVal(10), IntVal(0)},
	} {
		source := mustEval(t, fn, nil, args...)
		flat := mustEval(t, lowered, nil, args...)
		assert.Equal(t, valueStrings(source), valueStrings(flat), "args %v", valueStrings(args))
	}
}

func TestEvalMaskedAccumulatorAgrees(t *testing.T) {
	fn := testutil.MacCheck()
	lowered := lowerUnder(t, fn, label.DeclaredParams(fn.Sig))

	base := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	cases := [][]int64{
		{1, 2, 3, 4, 5, 6, 7, 8}, // equal
		{9, 2, 3, 4, 5, 6, 7, 8}, // first element differs
		{1, 2, 3, 4, 5, 6, 7, 9}, // last element differs
		{1, 2, 9, 4, 5, 9, 7, 8}, // two mismatches
	}
	for _, provided := range cases {
		source := mustEval(t, fn, nil, BufVal(base...), BufVal(provided...))
		masked := mustEval(t, lowered, nil, BufVal(base...), BufVal(provided...))
		assert.Equal(t, valueStrings(source), valueStrings(masked), "provided %v", provided)
	}
}

func TestEvalMixedExitsAgree(t *testing.T) {
	fn := testutil.MixedExitScan()
	lowered := lowerUnder(t, fn, label.DeclaredParams(fn.Sig))

	cases := []struct {
		xs   []int64
		want int64
	}{
		{[]int64{5, 1, 1, 1}, 100}, // element exit fires first and must survive the later index exit
		{[]int64{1, 1, 5, 1}, 100}, // both conditions hold in one iteration; the element exit is first in body order
		{[]int64{1, 1, 1, 5}, 7},   // index exit fires before the element is seen
		{[]int64{1, 1, 1, 1}, 7},   // only the index exit fires
	}
	for _, c := range cases {
		source := mustEval(t, fn, nil, BufVal(c.xs...))
		require.True(t, source[0].Equal(IntVal(c.want)), "xs %v", c.xs)

		masked := mustEval(t, lowered, nil, BufVal(c.xs...))
		assert.Equal(t, valueStrings(source), valueStrings(masked), "xs %v", c.xs)
	}
}

func TestEvalNetworkMatchesStableSort(t *testing.T) {
	fn := testutil.CopyRange()
	lowered := lowerUnder(t, fn, []graph.Label{graph.Public, graph.Public})

	// Duplicate keys exercise stability: payload order must survive ties.
	keys := BufVal(3, 1, 3, 2)
	vals := BufVal(10, 20, 30, 40)

	source := mustEval(t, fn, nil, keys, vals)
	network := mustEval(t, lowered, nil, keys, vals)

	require.Equal(t, valueStrings(source), valueStrings(network))
	assert.Equal(t, "([1 2 3 3], [20 40 10 30])", source[0].String())
}
