package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
	"github.com/vasilvv/decor/internal/testutil"
)

// analyzeAndLower runs the analysis under params and lowers, requiring both
// steps to come back clean.
func analyzeAndLower(t *testing.T, fn *graph.Func, params []graph.Label) (*graph.Func, *label.Table) {
	t.Helper()
	res := label.Analyze(fn, label.Options{Params: params})
	require.Empty(t, res.Diags)

	lowered, diags := Func(fn, res.Table)
	require.Empty(t, diags)
	require.NotNil(t, lowered)
	require.Empty(t, lowered.Validate(), "lowered graph must be structurally valid")
	return lowered, res.Table
}

// reaudit re-analyzes the lowered graph and runs the oblivious audit.
func reaudit(t *testing.T, lowered *graph.Func, params []graph.Label) []graph.ValueID {
	t.Helper()
	res := label.Analyze(lowered, label.Options{Params: params})
	return AuditOblivious(lowered, res.Table)
}

func countNodes[T graph.Node](fn *graph.Func) int {
	n := 0
	for _, nd := range fn.Nodes {
		if _, ok := nd.(T); ok {
			n++
		}
	}
	return n
}

// =============================================================================
// Branch lowering
// =============================================================================

func TestFunc_PublicBranchStaysNative(t *testing.T) {
	fn := testutil.PrivateBranch()
	params := []graph.Label{graph.Public, graph.Public}

	lowered, _ := analyzeAndLower(t, fn, params)

	assert.Equal(t, 1, countNodes[graph.If](lowered), "public branch survives as a native branch")
	assert.Equal(t, 0, countNodes[graph.Select](lowered))
	assert.Empty(t, reaudit(t, lowered, params))
}

func TestFunc_PrivateBranchFlattened(t *testing.T) {
	fn := testutil.PrivateBranch()
	params := []graph.Label{graph.Private, graph.Public}

	lowered, _ := analyzeAndLower(t, fn, params)

	assert.Equal(t, 0, countNodes[graph.If](lowered), "no private-conditioned branch survives")
	assert.Equal(t, 1, countNodes[graph.Select](lowered), "one select per merged yield")
	assert.Empty(t, reaudit(t, lowered, params))
}

func TestFunc_BothBranchesFullyEvaluated(t *testing.T) {
	fn := testutil.PrivateBranch()
	params := []graph.Label{graph.Private, graph.Public}

	lowered, _ := analyzeAndLower(t, fn, params)

	// Every arithmetic op of both branches is present in the flat body: the
	// then-side add and the else-side mul both run.
	ops := map[graph.BinOp]int{}
	for _, nd := range lowered.Nodes {
		if bin, ok := nd.(graph.Binary); ok {
			ops[bin.Op]++
		}
	}
	assert.Equal(t, 1, ops[graph.OpAdd])
	assert.Equal(t, 1, ops[graph.OpMul])
}

func TestFunc_NestedPrivateBranch(t *testing.T) {
	// A private branch nested inside a public one: the outer stays native,
	// the inner flattens.
	fn := graph.NewFunc("f", graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "mode", Type: testutil.I64},
			{Name: "secret", Type: testutil.I64},
		},
		Results: []graph.ResultSpec{{Name: "r", Type: testutil.I64}},
	})
	mode := fn.Add(graph.Param{Index: 0}, testutil.I64)
	secret := fn.Add(graph.Param{Index: 1}, testutil.I64)
	zero := fn.Add(graph.Const{Int: 0}, testutil.I64)
	outerCond := fn.Add(graph.Binary{Op: graph.OpEq, X: mode, Y: zero}, graph.Bool{})

	outer := fn.Add(graph.If{}, graph.Tuple{Elems: []graph.Type{testutil.I64}})
	innerCond := fn.Add(graph.Binary{Op: graph.OpGt, X: secret, Y: zero}, graph.Bool{})
	inner := fn.Add(graph.If{}, graph.Tuple{Elems: []graph.Type{testutil.I64}})
	one := fn.Add(graph.Const{Int: 1}, testutil.I64)
	two := fn.Add(graph.Const{Int: 2}, testutil.I64)
	fn.Nodes[inner] = graph.If{
		Cond: innerCond,
		Then: graph.Block{Stmts: []graph.ValueID{one}, Yield: []graph.ValueID{one}},
		Else: graph.Block{Stmts: []graph.ValueID{two}, Yield: []graph.ValueID{two}},
	}
	innerVal := fn.Add(graph.TupleField{Tuple: inner, Index: 0}, testutil.I64)
	three := fn.Add(graph.Const{Int: 3}, testutil.I64)
	fn.Nodes[outer] = graph.If{
		Cond: outerCond,
		Then: graph.Block{Stmts: []graph.ValueID{innerCond, inner, innerVal}, Yield: []graph.ValueID{innerVal}},
		Else: graph.Block{Stmts: []graph.ValueID{three}, Yield: []graph.ValueID{three}},
	}
	outerVal := fn.Add(graph.TupleField{Tuple: outer, Index: 0}, testutil.I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{outerVal}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{mode, secret, zero, outerCond, outer, outerVal, ret}}
	require.Empty(t, fn.Validate())

	params := []graph.Label{graph.Public, graph.Private}
	lowered, _ := analyzeAndLower(t, fn, params)

	assert.Equal(t, 1, countNodes[graph.If](lowered))
	assert.Equal(t, 1, countNodes[graph.Select](lowered))
	assert.Empty(t, reaudit(t, lowered, params))
}

// =============================================================================
// Masked accumulator loops
// =============================================================================

func TestFunc_PrivateExitBecomesMaskedAccumulator(t *testing.T) {
	fn := testutil.MacCheck()
	params := label.DeclaredParams(fn.Sig)

	lowered, _ := analyzeAndLower(t, fn, params)

	assert.Equal(t, 0, countNodes[graph.LoopExit](lowered), "the private exit is gone")
	require.Equal(t, 1, countNodes[graph.Loop](lowered), "the loop itself survives, full trip count")

	for _, nd := range lowered.Nodes {
		loop, ok := nd.(graph.Loop)
		if !ok {
			continue
		}
		assert.Len(t, loop.Init, 2, "carried state gains the exited flag")
		assert.Len(t, loop.Body.Yield, 2)
	}
	// One select picks the exit result, one freezes the held state.
	assert.Equal(t, 2, countNodes[graph.Select](lowered))
	assert.Empty(t, reaudit(t, lowered, params))
}

func TestFunc_PublicExitStaysNative(t *testing.T) {
	// An early exit keyed on the public iteration index truncates the trip
	// count on public data only; it survives untouched.
	buf := graph.Buffer{Width: 8, Len: 4}
	fn := graph.NewFunc("f", graph.Signature{
		Params:  []graph.ParamSpec{{Name: "xs", Type: buf}},
		Results: []graph.ResultSpec{{Name: "r", Type: testutil.I64}},
	})
	xs := fn.Add(graph.Param{Index: 0}, buf)
	zero := fn.Add(graph.Const{Int: 0}, testutil.I64)
	loop := fn.Add(graph.Loop{}, graph.Tuple{Elems: []graph.Type{testutil.I64}})
	i := fn.Add(graph.LoopIdx{Loop: loop}, testutil.I64)
	two := fn.Add(graph.Const{Int: 2}, testutil.I64)
	cond := fn.Add(graph.Binary{Op: graph.OpEq, X: i, Y: two}, graph.Bool{})
	acc := fn.Add(graph.LoopState{Loop: loop, Index: 0}, testutil.I64)
	exit := fn.Add(graph.LoopExit{Loop: loop, Cond: cond, Results: []graph.ValueID{acc}}, graph.Unit{})
	e := fn.Add(graph.LoopElem{Loop: loop}, graph.Int{Bits: 8})
	next := fn.Add(graph.Binary{Op: graph.OpAdd, X: acc, Y: e}, testutil.I64)
	fn.Nodes[loop] = graph.Loop{
		Container: xs,
		Init:      []graph.ValueID{zero},
		Body:      graph.Block{Stmts: []graph.ValueID{i, two, cond, acc, exit, e, next}, Yield: []graph.ValueID{next}},
	}
	fin := fn.Add(graph.TupleField{Tuple: loop, Index: 0}, testutil.I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{fin}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{xs, zero, loop, fin, ret}}
	require.Empty(t, fn.Validate())

	params := []graph.Label{graph.Public}
	lowered, _ := analyzeAndLower(t, fn, params)

	assert.Equal(t, 1, countNodes[graph.LoopExit](lowered))
	assert.Equal(t, 0, countNodes[graph.Select](lowered))
	assert.Empty(t, reaudit(t, lowered, params))
}

func TestFunc_NativeExitFrozenInMaskedLoop(t *testing.T) {
	// When a public-conditioned exit shares a loop with a masked private
	// exit, its result slots must go through the freeze selects: a raw
	// per-iteration operand would override a result the mask already
	// settled in an earlier iteration.
	fn := testutil.MixedExitScan()
	params := label.DeclaredParams(fn.Sig)

	lowered, _ := analyzeAndLower(t, fn, params)

	require.Equal(t, 1, countNodes[graph.LoopExit](lowered), "the index exit stays native, the element exit is folded")
	for _, nd := range lowered.Nodes {
		exit, ok := nd.(graph.LoopExit)
		if !ok {
			continue
		}
		require.Len(t, exit.Results, 2, "one carried slot plus the exited flag")
		sel, ok := lowered.Nodes[exit.Results[0]].(graph.Select)
		require.True(t, ok, "the exit's result slot is a freeze select")
		state, ok := lowered.Nodes[sel.Cond].(graph.LoopState)
		require.True(t, ok)
		assert.Equal(t, 1, state.Index, "conditioned on the appended exited flag")
	}
	assert.Empty(t, reaudit(t, lowered, params))
}

// =============================================================================
// Permutation sites
// =============================================================================

func TestFunc_SortBecomesNetworkApply(t *testing.T) {
	fn := testutil.CopyRange()
	params := []graph.Label{graph.Public, graph.Public}

	lowered, _ := analyzeAndLower(t, fn, params)

	assert.Equal(t, 0, countNodes[graph.SortByKey](lowered))
	require.Equal(t, 1, countNodes[graph.NetworkApply](lowered))
	for _, nd := range lowered.Nodes {
		if na, ok := nd.(graph.NetworkApply); ok {
			assert.Equal(t, 4, na.Size, "size resolved from the container's compile-time length")
		}
	}
	assert.Empty(t, reaudit(t, lowered, params))
}

// =============================================================================
// Unbounded domains
// =============================================================================

func TestFunc_UnboundedLoopRejectedBeforeRewrite(t *testing.T) {
	fn := graph.NewFunc("f", graph.Signature{
		Params:  []graph.ParamSpec{{Name: "x", Type: testutil.I64}},
		Results: []graph.ResultSpec{{Name: "r", Type: testutil.I64}},
	})
	x := fn.Add(graph.Param{Index: 0}, testutil.I64)
	zero := fn.Add(graph.Const{Int: 0}, testutil.I64)
	loop := fn.Add(graph.Loop{}, graph.Tuple{Elems: []graph.Type{testutil.I64}})
	acc := fn.Add(graph.LoopState{Loop: loop, Index: 0}, testutil.I64)
	fn.Nodes[loop] = graph.Loop{
		Container: x,
		Init:      []graph.ValueID{zero},
		Body:      graph.Block{Stmts: []graph.ValueID{acc}, Yield: []graph.ValueID{acc}},
	}
	fin := fn.Add(graph.TupleField{Tuple: loop, Index: 0}, testutil.I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{fin}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{x, zero, loop, fin, ret}}

	res := label.Analyze(fn, label.Options{})
	lowered, diags := Func(fn, res.Table)

	assert.Nil(t, lowered)
	require.Len(t, diags, 1)
	assert.Equal(t, label.CodeUnboundedLoop, diags[0].Code)
}

// =============================================================================
// AuditOblivious
// =============================================================================

func TestAuditOblivious_FlagsPrivateConditionals(t *testing.T) {
	fn := testutil.PrivateBranch()
	params := []graph.Label{graph.Private, graph.Public}
	res := label.Analyze(fn, label.Options{Params: params})

	// The unlowered graph fails the audit.
	bad := AuditOblivious(fn, res.Table)
	require.Len(t, bad, 1)
	_, isIf := fn.Nodes[bad[0]].(graph.If)
	assert.True(t, isIf)
}
