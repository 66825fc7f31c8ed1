package frontend

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
)

func compileOne(t *testing.T, name, doc string) (*graph.Func, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(doc)
	require.NoError(t, v.Err())
	return CompileFunc(name, v.LookupPath(cue.ParsePath(name)))
}

// =============================================================================
// Whole functions
// =============================================================================

func TestCompileFuncBranch(t *testing.T) {
	fn, err := compileOne(t, "pick", `
		pick: {
			params: [
				{name: "x", type: "i64"},
				{name: "y", type: "i64"},
			]
			results: [{name: "r", type: "i64"}]
			values: [
				{op: "param", index: 0, type: "i64"},
				{op: "param", index: 1, type: "i64"},
				{op: "const", int: 10, type: "i64"},
				{op: "binary", fn: "lt", x: 0, y: 2, type: "bool"},
				{op: "if", cond: 3,
					then: {stmts: [5, 6], yield: [6]},
					else: {stmts: [7, 8], yield: [8]},
					type: {kind: "tuple", elems: ["i64"]}},
				{op: "const", int: 1, type: "i64"},
				{op: "binary", fn: "add", x: 1, y: 5, type: "i64"},
				{op: "const", int: 2, type: "i64"},
				{op: "binary", fn: "mul", x: 1, y: 7, type: "i64"},
				{op: "field", tuple: 4, index: 0, type: "i64"},
				{op: "return", values: [9]},
			]
			body: {stmts: [0, 1, 2, 3, 4, 9, 10]}
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, "pick", fn.Name)
	assert.False(t, fn.Sig.Controlled)
	require.Len(t, fn.Sig.Params, 2)
	assert.Equal(t, graph.DeclUnlabeled, fn.Sig.Params[0].Label)
	assert.Equal(t, 11, fn.NumValues())
	assert.Empty(t, fn.Validate())

	// The compiled graph is analyzable as-is.
	res := label.Analyze(fn, label.Options{Params: []graph.Label{graph.Private, graph.Public}})
	assert.Empty(t, res.Diags)
	assert.Equal(t, graph.Private, res.Results[0].Label)
}

func TestCompileFuncLoopAndExport(t *testing.T) {
	fn, err := compileOne(t, "digest", `
		digest: {
			controlled: true
			params: [
				{name: "data", type: {kind: "buffer", width: 8, len: 4}, label: "private"},
			]
			results: [{name: "total", type: "i64", label: "public"}]
			values: [
				{op: "param", index: 0, type: {kind: "buffer", width: 8, len: 4}},
				{op: "const", int: 0, type: "i64"},
				{op: "loop", container: 0, init: [1],
					body: {stmts: [3, 4, 5], yield: [5]},
					type: {kind: "tuple", elems: ["i64"]}},
				{op: "state", loop: 2, index: 0, type: "i64"},
				{op: "elem", loop: 2, type: "i8"},
				{op: "binary", fn: "add", x: 3, y: 4, type: "i64"},
				{op: "field", tuple: 2, index: 0, type: "i64"},
				{op: "export", x: 6, sources: ["data"], type: "i64"},
				{op: "return", values: [7]},
			]
			body: {stmts: [0, 1, 2, 6, 7, 8]}
		}
	`)
	require.NoError(t, err)

	assert.True(t, fn.Sig.Controlled)
	assert.Equal(t, graph.DeclPrivate, fn.Sig.Params[0].Label)
	assert.Empty(t, fn.Validate())

	res := label.Analyze(fn, label.Options{
		Params:                 label.DeclaredParams(fn.Sig),
		EnforceDeclaredResults: true,
	})
	assert.Empty(t, res.Diags)
	assert.Empty(t, label.CheckExports(fn, res.Table))
	assert.Equal(t, graph.Public, res.Results[0].Label, "the export delivers the declared-public result")
}

func TestCompileFuncRoles(t *testing.T) {
	fn, err := compileOne(t, "take", `
		take: {
			controlled: true
			params: [
				{name: "data", type: {kind: "buffer", width: 8, len: 8}, label: "private"},
				{name: "n", type: "i64", label: "public", role: "length"},
			]
			results: [{name: "r", type: "i64"}]
			values: [
				{op: "param", index: 1, type: "i64"},
				{op: "return", values: [0]},
			]
			body: {stmts: [0, 1]}
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, graph.RoleNone, fn.Sig.Params[0].Role)
	assert.Equal(t, graph.RoleLength, fn.Sig.Params[1].Role)
}

// =============================================================================
// Structured types
// =============================================================================

func TestCompileFuncStructuredTypes(t *testing.T) {
	fn, err := compileOne(t, "f", `
		f: {
			params: [
				{name: "p", type: {kind: "struct", name: "point", fields: [
					{name: "x", type: "i32"},
					{name: "y", type: "i32"},
				]}},
				{name: "m", type: {kind: "enum", name: "maybe", variants: [
					{name: "none"},
					{name: "some", payload: "i64"},
				]}},
				{name: "rows", type: {kind: "array", len: 3, elem: {kind: "tuple", elems: ["i64", "bool"]}}},
			]
			results: [{name: "r", type: "i32"}]
			values: [
				{op: "param", index: 0, type: {kind: "struct", name: "point", fields: [
					{name: "x", type: "i32"},
					{name: "y", type: "i32"},
				]}},
				{op: "field", tuple: 0, index: 0, type: "i32"},
				{op: "return", values: [1]},
			]
			body: {stmts: [0, 1, 2]}
		}
	`)
	require.NoError(t, err)

	st, ok := fn.Sig.Params[0].Type.(graph.Struct)
	require.True(t, ok)
	assert.Equal(t, "point", st.Name)
	require.Len(t, st.Fields, 2)

	en, ok := fn.Sig.Params[1].Type.(graph.Enum)
	require.True(t, ok)
	assert.Nil(t, en.Variants[0].Payload, "unit variant carries no payload")
	assert.Equal(t, graph.Int{Bits: 64}, en.Variants[1].Payload)

	arr, ok := fn.Sig.Params[2].Type.(graph.Array)
	require.True(t, ok)
	assert.Equal(t, 3, arr.Len)
	assert.Equal(t, graph.Tuple{Elems: []graph.Type{graph.Int{Bits: 64}, graph.Bool{}}}, arr.Elem)
}

// =============================================================================
// Load errors
// =============================================================================

func TestCompileFuncMissingValues(t *testing.T) {
	_, err := compileOne(t, "bad", `
		bad: {
			results: [{name: "r", type: "i64"}]
			body: {stmts: []}
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "values")
	assert.Contains(t, err.Error(), CodeMissingField)
}

func TestCompileFuncUnknownOp(t *testing.T) {
	_, err := compileOne(t, "bad", `
		bad: {
			results: [{name: "r", type: "i64"}]
			values: [{op: "teleport", type: "i64"}]
			body: {stmts: [0]}
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown operation "teleport"`)
	assert.Contains(t, err.Error(), CodeBadOp)
}

func TestCompileFuncUnknownLabel(t *testing.T) {
	_, err := compileOne(t, "bad", `
		bad: {
			params: [{name: "x", type: "i64", label: "secretish"}]
			results: [{name: "r", type: "i64"}]
			values: [
				{op: "param", index: 0, type: "i64"},
				{op: "return", values: [0]},
			]
			body: {stmts: [0, 1]}
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown label "secretish"`)
}

func TestCompileFuncRejectsBrokenShape(t *testing.T) {
	// Return arity disagrees with the declared results: the arena parses but
	// fails structural validation.
	_, err := compileOne(t, "bad", `
		bad: {
			results: [{name: "r", type: "i64"}]
			values: [
				{op: "const", int: 1, type: "i64"},
				{op: "return", values: []},
			]
			body: {stmts: [0, 1]}
		}
	`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), CodeBadShape)
	assert.Contains(t, err.Error(), "returns 0 values for 1 declared results")
}

func TestCompileProgramCollectsPerFunctionErrors(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		functions: {
			good: {
				results: [{name: "r", type: "i64"}]
				values: [
					{op: "const", int: 7, type: "i64"},
					{op: "return", values: [0]},
				]
				body: {stmts: [0, 1]}
			}
			broken: {
				results: [{name: "r", type: "i64"}]
				body: {stmts: []}
			}
		}
	`)
	require.NoError(t, v.Err())

	funcs, errs := CompileProgram(v)

	require.Contains(t, funcs, "good")
	assert.NotContains(t, funcs, "broken")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `function "broken"`)
}

func TestCompileProgramRequiresFunctions(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`other: 1`)
	require.NoError(t, v.Err())

	funcs, errs := CompileProgram(v)

	assert.Empty(t, funcs)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "functions")
}
