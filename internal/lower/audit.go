package lower

import (
	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
)

// AuditOblivious scans a lowered graph for conditionals that still depend
// on private data, returning the offending value IDs. table must be the
// label table of fn itself (re-analyze the lowered graph to obtain one).
//
// An empty result is the lowering-totality postcondition: every surviving
// If and LoopExit has a public condition, so the backend can emit native
// branches for exactly what remains.
func AuditOblivious(fn *graph.Func, table *label.Table) []graph.ValueID {
	var bad []graph.ValueID
	fn.WalkBlocks(func(b *graph.Block) {
		for _, id := range b.Stmts {
			switch nd := fn.Nodes[id].(type) {
			case graph.If:
				if table.Info(nd.Cond).Label == graph.Private {
					bad = append(bad, id)
				}
			case graph.LoopExit:
				if table.Info(nd.Cond).Label == graph.Private {
					bad = append(bad, id)
				}
			case graph.SortByKey:
				// A sort request must not survive lowering at all.
				bad = append(bad, id)
			}
		}
	})
	return bad
}
