package pipeline

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
	"github.com/vasilvv/decor/internal/lower"
	"github.com/vasilvv/decor/internal/testutil"
)

func quiet() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// buildVerifier constructs a controlled caller of check_mac_match with the
// given declared labels for its two buffer parameters.
func buildVerifier(name string, macLabel, msgLabel graph.DeclLabel) *graph.Func {
	buf := graph.Buffer{Width: 8, Len: 8}
	fn := graph.NewFunc(name, graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "mac", Type: buf, Label: macLabel},
			{Name: "msg", Type: buf, Label: msgLabel},
		},
		Results:    []graph.ResultSpec{{Name: "ok", Type: graph.Bool{}}},
		Controlled: true,
	})
	mac := fn.Add(graph.Param{Index: 0}, buf)
	msg := fn.Add(graph.Param{Index: 1}, buf)
	c1 := fn.Add(graph.Call{Callee: "check_mac_match", Args: []graph.ValueID{mac, msg}}, graph.Bool{})
	c2 := fn.Add(graph.Call{Callee: "check_mac_match", Args: []graph.ValueID{mac, msg}}, graph.Bool{})
	both := fn.Add(graph.Binary{Op: graph.OpAnd, X: c1, Y: c2}, graph.Bool{})
	ret := fn.Add(graph.Return{Values: []graph.ValueID{both}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{mac, msg, c1, c2, both, ret}}
	return fn
}

// =============================================================================
// Whole-program compile
// =============================================================================

func TestCompile_MacScenario(t *testing.T) {
	prog := &Program{Funcs: map[string]*graph.Func{
		"check_mac_match": testutil.MacCheck(),
		"verify":          buildVerifier("verify", graph.DeclPrivate, graph.DeclPublic),
	}}

	out, err := Compile(prog, quiet())
	require.NoError(t, err)

	assert.False(t, out.Fatal())
	assert.Empty(t, out.AllDiags())

	// Two call sites with the same label tuple: exactly one cache entry.
	require.Equal(t, 1, out.Cache.Len())
	spec := out.Cache.PerFunc("check_mac_match")[0]
	assert.Equal(t, []graph.Label{graph.Private, graph.Public}, spec.Labels)

	// Both functions lowered; every loop-body branch is select form.
	for _, name := range []string{"check_mac_match", "verify"} {
		res := out.Results[name]
		require.NotNil(t, res.Lowered, "%s must lower", name)
		require.NotNil(t, res.LoweredTable)
		assert.Empty(t, res.Lowered.Validate())
		assert.Empty(t, lower.AuditOblivious(res.Lowered, res.LoweredTable), "%s lowering totality", name)
	}
}

func TestCompile_FatalFunctionNotLowered(t *testing.T) {
	leak := graph.NewFunc("leak", graph.Signature{
		Params:     []graph.ParamSpec{{Name: "k", Type: testutil.I64, Label: graph.DeclPrivate}},
		Results:    []graph.ResultSpec{{Name: "r", Type: testutil.I64, Label: graph.DeclPublic}},
		Controlled: true,
	})
	k := leak.Add(graph.Param{Index: 0}, testutil.I64)
	ret := leak.Add(graph.Return{Values: []graph.ValueID{k}}, graph.Unit{})
	leak.Body = graph.Block{Stmts: []graph.ValueID{k, ret}}

	prog := &Program{Funcs: map[string]*graph.Func{"leak": leak}}
	out, err := Compile(prog, quiet())
	require.NoError(t, err)

	res := out.Results["leak"]
	assert.True(t, res.Fatal())
	assert.Nil(t, res.Lowered, "fatal diagnostics block lowering")
	assert.True(t, label.HasCode(res.Diags, label.CodeLabelViolation))
}

func TestCompile_ExportedResultCompiles(t *testing.T) {
	prog := &Program{Funcs: map[string]*graph.Func{"digest": testutil.ExportedSum()}}

	out, err := Compile(prog, quiet())
	require.NoError(t, err)

	res := out.Results["digest"]
	assert.False(t, res.Fatal())
	require.NotNil(t, res.Lowered)
}

func TestCompile_CollectsEveryViolation(t *testing.T) {
	// Two independent violations in one function: both reported in one run.
	buf := graph.Buffer{Width: 8, Len: 4}
	fn := graph.NewFunc("bad", graph.Signature{
		Params: []graph.ParamSpec{
			{Name: "i", Type: testutil.I64, Label: graph.DeclPrivate},
			{Name: "xs", Type: buf, Label: graph.DeclPublic},
		},
		Results:    []graph.ResultSpec{{Name: "r", Type: graph.Int{Bits: 8}, Label: graph.DeclPublic}},
		Controlled: true,
	})
	i := fn.Add(graph.Param{Index: 0}, testutil.I64)
	xs := fn.Add(graph.Param{Index: 1}, buf)
	got := fn.Add(graph.BufferGet{X: xs, Index: i}, graph.Int{Bits: 8})
	ret := fn.Add(graph.Return{Values: []graph.ValueID{got}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{i, xs, got, ret}}

	out, err := Compile(&Program{Funcs: map[string]*graph.Func{"bad": fn}}, quiet())
	require.NoError(t, err)

	res := out.Results["bad"]
	// The private index and the declared-public result are separate findings.
	assert.Len(t, res.Diags, 2)
	for _, d := range res.Diags {
		assert.Equal(t, label.CodeLabelViolation, d.Code)
	}
}

// =============================================================================
// Call cycles
// =============================================================================

func TestCompile_RejectsCallCycles(t *testing.T) {
	mk := func(name, callee string) *graph.Func {
		fn := graph.NewFunc(name, graph.Signature{
			Params:  []graph.ParamSpec{{Name: "x", Type: testutil.I64}},
			Results: []graph.ResultSpec{{Name: "r", Type: testutil.I64}},
		})
		x := fn.Add(graph.Param{Index: 0}, testutil.I64)
		call := fn.Add(graph.Call{Callee: callee, Args: []graph.ValueID{x}}, testutil.I64)
		ret := fn.Add(graph.Return{Values: []graph.ValueID{call}}, graph.Unit{})
		fn.Body = graph.Block{Stmts: []graph.ValueID{x, call, ret}}
		return fn
	}
	prog := &Program{Funcs: map[string]*graph.Func{
		"ping": mk("ping", "pong"),
		"pong": mk("pong", "ping"),
	}}

	out, err := Compile(prog, quiet())
	require.NoError(t, err)

	require.Len(t, out.Diags, 2, "one L105 per cycle member")
	for _, d := range out.Diags {
		assert.Equal(t, label.CodeRecursiveCall, d.Code)
	}
	assert.Nil(t, out.Results["ping"].Lowered)
	assert.Nil(t, out.Results["pong"].Lowered)
	assert.True(t, out.Fatal())
}

func TestDetectCallCycles_DAGIsClean(t *testing.T) {
	prog := map[string]*graph.Func{
		"check_mac_match": testutil.MacCheck(),
		"verify":          buildVerifier("verify", graph.DeclPrivate, graph.DeclPublic),
	}

	assert.Empty(t, detectCallCycles(prog))
}

// =============================================================================
// Specialization surfacing
// =============================================================================

func TestCompile_ExplosionWarningSurfaces(t *testing.T) {
	prog := &Program{Funcs: map[string]*graph.Func{
		"check_mac_match": testutil.MacCheck(),
		"v1":              buildVerifier("v1", graph.DeclPrivate, graph.DeclPublic),
		"v2":              buildVerifier("v2", graph.DeclPrivate, graph.DeclPrivate),
	}}

	opts := quiet()
	opts.SpecializationThreshold = 1
	out, err := Compile(prog, opts)
	require.NoError(t, err)

	assert.True(t, label.HasCode(out.Diags, label.CodeSpecializationExplosion))
	assert.False(t, out.Fatal(), "the explosion warning alone is not fatal")
	assert.Equal(t, 2, out.Cache.Len())
}

// =============================================================================
// Infrastructure errors
// =============================================================================

func TestCompile_UnknownCalleeIsError(t *testing.T) {
	fn := graph.NewFunc("f", graph.Signature{
		Params:  []graph.ParamSpec{{Name: "x", Type: testutil.I64}},
		Results: []graph.ResultSpec{{Name: "r", Type: testutil.I64}},
	})
	x := fn.Add(graph.Param{Index: 0}, testutil.I64)
	call := fn.Add(graph.Call{Callee: "nowhere", Args: []graph.ValueID{x}}, testutil.I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{call}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{x, call, ret}}

	_, err := Compile(&Program{Funcs: map[string]*graph.Func{"f": fn}}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown function "nowhere"`)
}

func TestCompile_InvalidGraphIsError(t *testing.T) {
	fn := graph.NewFunc("f", graph.Signature{Results: []graph.ResultSpec{{Type: testutil.I64}}})
	bad := fn.Add(graph.Binary{Op: graph.OpAdd, X: 40, Y: 41}, testutil.I64)
	ret := fn.Add(graph.Return{Values: []graph.ValueID{bad}}, graph.Unit{})
	fn.Body = graph.Block{Stmts: []graph.ValueID{bad, ret}}

	_, err := Compile(&Program{Funcs: map[string]*graph.Func{"f": fn}}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid program")
}
