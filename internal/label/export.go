package label

import (
	"github.com/vasilvv/decor/internal/graph"
)

// CheckExports validates every export directive of fn against the settled
// label table: the directive's named sources must cover the value's entire
// dependency set, or the unaccounted remainder is reported as an L103.
//
// A passing export downgrades exactly one value binding at one program
// point. It never reaches back to other uses of the same identifier, and
// it never washes out the path that computed the value: branch conditions
// rejoin at every merge (see propagateIf), so a result computed under a
// private branch stays private past the merge even when the in-branch
// binding was exported. Export legitimizes a value, not the path.
func CheckExports(fn *graph.Func, table *Table) []Diagnostic {
	var diags []Diagnostic
	fn.WalkBlocks(func(b *graph.Block) {
		for _, id := range b.Stmts {
			exp, ok := fn.Nodes[id].(graph.Export)
			if !ok {
				continue
			}
			missing := table.Info(exp.X).Sources.Missing(exp.Sources)
			if len(missing) > 0 {
				diags = append(diags, NewIncompleteDeclassification(fn, id, missing))
			}
		}
	})
	return diags
}
