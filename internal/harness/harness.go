// Package harness provides conformance testing for the compiler: YAML
// scenarios compile a CUE program through the full pipeline, check the
// diagnostic codes it produces, and execute concrete evaluation cases
// against both the source and lowered graphs with the reference evaluator.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	program: programs/example.cue
//	diagnostics: [L101]
//	cases:
//	  - func: pick
//	    args:
//	      - int: 3
//	      - int: 4
//	    want:
//	      - int: 5
//
// A scenario fails if the compile produces diagnostic codes it does not
// declare, if a declared code is missing, or if any case's source and
// lowered evaluations disagree. Agreement of the two forms is the
// equivalence property the lowering pass owes: rewriting branches to
// selects and early exits to masked accumulators must not change results.
package harness

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/vasilvv/decor/internal/frontend"
	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/pipeline"
)

// CaseResult is the outcome of one evaluation case.
type CaseResult struct {
	Func string
	Got  []Value
}

// Result is the outcome of one scenario run.
type Result struct {
	Scenario *Scenario
	Outcome  *pipeline.Outcome
	Cases    []CaseResult
}

// Run executes a scenario: compile the program, verify the diagnostic
// codes, and run every case on both compilation forms.
func Run(scenario *Scenario) (*Result, error) {
	data, err := os.ReadFile(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: read program: %w", scenario.Name, err)
	}

	ctx := cuecontext.New()
	doc := ctx.CompileBytes(data, cue.Filename(scenario.Program))
	funcs, loadErrs := frontend.CompileProgram(doc)
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("scenario %s: load program: %v", scenario.Name, loadErrs[0])
	}

	outcome, err := pipeline.Compile(&pipeline.Program{Funcs: funcs}, pipeline.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: compile: %w", scenario.Name, err)
	}

	if err := checkDiagnostics(scenario, outcome); err != nil {
		return nil, err
	}

	result := &Result{Scenario: scenario, Outcome: outcome}
	lowered := loweredFuncs(funcs, outcome)
	for i, c := range scenario.Cases {
		cr, err := runCase(scenario, i, c, funcs, lowered, outcome)
		if err != nil {
			return nil, err
		}
		result.Cases = append(result.Cases, cr)
	}
	return result, nil
}

// checkDiagnostics verifies the compile produced exactly the declared code
// set: every declared code present, no undeclared codes.
func checkDiagnostics(scenario *Scenario, outcome *pipeline.Outcome) error {
	seen := map[string]bool{}
	for _, d := range outcome.AllDiags() {
		seen[d.Code] = true
	}

	for _, code := range scenario.Diagnostics {
		if !seen[code] {
			return fmt.Errorf("scenario %s: expected diagnostic %s was not produced", scenario.Name, code)
		}
	}
	var extra []string
	for code := range seen {
		if !slices.Contains(scenario.Diagnostics, code) {
			extra = append(extra, code)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("scenario %s: undeclared diagnostics %v", scenario.Name, extra)
	}
	return nil
}

// loweredFuncs builds the callee table for evaluating lowered graphs:
// every function's lowered form where one exists, its source otherwise.
func loweredFuncs(funcs map[string]*graph.Func, outcome *pipeline.Outcome) map[string]*graph.Func {
	out := make(map[string]*graph.Func, len(funcs))
	for name, fn := range funcs {
		out[name] = fn
		if res, ok := outcome.Results[name]; ok && res.Lowered != nil {
			out[name] = res.Lowered
		}
	}
	return out
}

func runCase(scenario *Scenario, i int, c Case, funcs, lowered map[string]*graph.Func, outcome *pipeline.Outcome) (CaseResult, error) {
	fail := func(format string, args ...any) (CaseResult, error) {
		return CaseResult{}, fmt.Errorf("scenario %s: cases[%d] (%s): %s", scenario.Name, i, c.Func, fmt.Sprintf(format, args...))
	}

	source, ok := funcs[c.Func]
	if !ok {
		return fail("function not in program")
	}
	args, err := specValues(c.Args)
	if err != nil {
		return fail("args: %v", err)
	}

	got, err := Eval(source, funcs, args)
	if err != nil {
		return fail("source evaluation: %v", err)
	}

	// Equivalence: the lowered form must compute the same results.
	if res, exists := outcome.Results[c.Func]; exists && res.Lowered != nil {
		loweredGot, err := Eval(res.Lowered, lowered, args)
		if err != nil {
			return fail("lowered evaluation: %v", err)
		}
		if !valuesEqual(got, loweredGot) {
			return fail("lowered form disagrees: source %v, lowered %v", valueStrings(got), valueStrings(loweredGot))
		}
	}

	if len(c.Want) > 0 {
		want, err := specValues(c.Want)
		if err != nil {
			return fail("want: %v", err)
		}
		if !valuesEqual(got, want) {
			return fail("got %v, want %v", valueStrings(got), valueStrings(want))
		}
	}

	return CaseResult{Func: c.Func, Got: got}, nil
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
