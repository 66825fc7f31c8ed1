package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/vasilvv/decor/internal/graph"
)

// snapshotMap renders a result as the canonical value tree golden files
// store: the scenario name, the diagnostic codes produced, and each case's
// result tuple as strings.
func (r *Result) snapshotMap() map[string]any {
	diags := []any{}
	for _, d := range r.Outcome.AllDiags() {
		diags = append(diags, d.Code)
	}
	cases := make([]any, len(r.Cases))
	for i, c := range r.Cases {
		got := make([]any, len(c.Got))
		for j, s := range valueStrings(c.Got) {
			got[j] = s
		}
		cases[i] = map[string]any{"func": c.Func, "got": got}
	}
	return map[string]any{
		"scenario_name": r.Scenario.Name,
		"diagnostics":   diags,
		"cases":         cases,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot, err := graph.MarshalCanonical(result.snapshotMap())
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return result, nil
}
