// Package pipeline orchestrates the compilation passes per function: label
// analysis, specialization resolution, export validation, and oblivious
// lowering. Diagnostics are aggregated per function and program-wide; a
// function with any fatal diagnostic is analyzed fully but never lowered.
package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
	"github.com/vasilvv/decor/internal/lower"
	"github.com/vasilvv/decor/internal/specialize"
)

// Program is the set of functions handed over by the front-end.
type Program struct {
	Funcs map[string]*graph.Func

	// Order fixes the compile order. Empty means sorted by name.
	Order []string
}

// Options configures one compile run.
type Options struct {
	// SpecializationThreshold is the distinct-tuple count above which a
	// function earns a W201. Zero selects specialize.DefaultThreshold.
	SpecializationThreshold int

	// Logger receives pass milestones. Nil selects slog.Default().
	Logger *slog.Logger
}

// Result is the per-function outcome.
type Result struct {
	Func   *graph.Func
	Params []graph.Label
	Table  *label.Table

	// Lowered is the oblivious form, nil when diagnostics were fatal.
	Lowered *graph.Func

	// LoweredTable carries the final labels of the lowered graph, for the
	// backend and diagnostic tooling.
	LoweredTable *label.Table

	// Diags collects everything found while compiling this function.
	Diags []label.Diagnostic
}

// Fatal reports whether the function may not emit code.
func (r *Result) Fatal() bool { return label.AnyFatal(r.Diags) }

// Outcome is the whole-program result.
type Outcome struct {
	Results map[string]*Result
	Order   []string
	Cache   *specialize.Cache

	// Diags are program-level findings: call cycles, specialization
	// explosion warnings, and callee-internal diagnostics surfaced by
	// specializations whose tuple differs from the declared default.
	Diags []label.Diagnostic
}

// Fatal reports whether any function or program-level diagnostic is fatal.
func (o *Outcome) Fatal() bool {
	if label.AnyFatal(o.Diags) {
		return true
	}
	for _, r := range o.Results {
		if r.Fatal() {
			return true
		}
	}
	return false
}

// AllDiags returns every diagnostic of the run in compile order, program
// level first.
func (o *Outcome) AllDiags() []label.Diagnostic {
	out := append([]label.Diagnostic(nil), o.Diags...)
	for _, name := range o.Order {
		out = append(out, o.Results[name].Diags...)
	}
	return out
}

// Compile runs the full pass sequence over the program.
//
// The error return covers infrastructure failures only: structurally
// invalid graphs or calls to functions the program does not contain, both
// of which mean the front-end misbehaved. Sensitivity findings never come
// back as errors; they are collected in the outcome.
func Compile(prog *Program, opts Options) (*Outcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := checkStructure(prog.Funcs); err != nil {
		return nil, err
	}

	order := prog.Order
	if len(order) == 0 {
		for name := range prog.Funcs {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	cycleDiags := detectCallCycles(prog.Funcs)
	onCycle := make(map[string]bool)
	for _, d := range cycleDiags {
		onCycle[d.Func] = true
	}

	cache := specialize.NewCache(opts.SpecializationThreshold)
	resolver := specialize.NewResolver(prog.Funcs, cache, logger)

	out := &Outcome{
		Results: make(map[string]*Result, len(prog.Funcs)),
		Order:   order,
		Cache:   cache,
		Diags:   cycleDiags,
	}

	for _, name := range order {
		fn := prog.Funcs[name]
		res := &Result{Func: fn, Params: label.DeclaredParams(fn.Sig)}
		out.Results[name] = res
		if onCycle[name] {
			continue
		}

		ares := label.Analyze(fn, label.Options{
			Params:                 res.Params,
			Oracle:                 resolver,
			EnforceDeclaredResults: fn.Sig.Controlled,
		})
		res.Table = ares.Table
		res.Diags = append(res.Diags, ares.Diags...)
		res.Diags = append(res.Diags, label.CheckExports(fn, ares.Table)...)

		if label.AnyFatal(res.Diags) {
			logger.Info("function rejected", "func", name, "diagnostics", len(res.Diags))
			continue
		}

		lowered, ldiags := lower.Func(fn, ares.Table)
		res.Diags = append(res.Diags, ldiags...)
		if lowered == nil {
			logger.Info("function rejected", "func", name, "diagnostics", len(res.Diags))
			continue
		}
		res.Lowered = lowered
		res.LoweredTable = label.Analyze(lowered, label.Options{
			Params: res.Params,
			Oracle: resolver,
		}).Table

		logger.Info("function lowered",
			"func", name,
			"values", fn.NumValues(),
			"lowered_values", lowered.NumValues(),
		)
	}

	out.Diags = append(out.Diags, specializationDiags(prog.Funcs, cache, resolver)...)
	out.Diags = append(out.Diags, cache.Warnings()...)
	out.Diags = append(out.Diags, resolver.Diags()...)
	return out, nil
}

// specializationDiags surfaces callee-internal findings from variants
// analyzed under a tuple other than the declared default; the default run
// already reported its own.
func specializationDiags(funcs map[string]*graph.Func, cache *specialize.Cache, resolver *specialize.Resolver) []label.Diagnostic {
	var out []label.Diagnostic
	collect := func(spec *specialize.Specialization) {
		fn, ok := funcs[spec.Name]
		if !ok {
			return
		}
		if labelsEqual(spec.Labels, label.DeclaredParams(fn.Sig)) {
			return
		}
		out = append(out, spec.Result.Diags...)
	}
	for _, spec := range cache.All() {
		collect(spec)
	}
	for _, spec := range resolver.Derived() {
		collect(spec)
	}
	return out
}

func labelsEqual(a, b []graph.Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkStructure validates every graph and every call target, collecting
// all defects into one error. Failures here are front-end bugs, not user
// diagnostics.
func checkStructure(funcs map[string]*graph.Func) error {
	var problems []string
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fn := funcs[name]
		for _, verr := range fn.Validate() {
			problems = append(problems, verr.Error())
		}
		fn.WalkBlocks(func(b *graph.Block) {
			for _, id := range b.Stmts {
				call, ok := fn.Nodes[id].(graph.Call)
				if !ok {
					continue
				}
				callee, exists := funcs[call.Callee]
				if !exists {
					problems = append(problems, fmt.Sprintf("%s: v%d: call to unknown function %q", name, id, call.Callee))
					continue
				}
				if len(call.Args) != len(callee.Sig.Params) {
					problems = append(problems, fmt.Sprintf("%s: v%d: call to %q with %d args for %d params",
						name, id, call.Callee, len(call.Args), len(callee.Sig.Params)))
				}
			}
		})
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid program: %s", strings.Join(problems, "; "))
	}
	return nil
}
