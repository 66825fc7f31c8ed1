package pipeline

import (
	"sort"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
)

// detectCallCycles finds strongly connected components in the program's
// call graph and reports every function on a cycle as an L105.
//
// Per-tuple specialization re-analyzes callees, so a recursive (or mutually
// recursive) call chain would never terminate resolution. The language
// already forbids unbounded iteration; rejecting call cycles up front closes
// the same hole for calls. Uses Tarjan's algorithm; a DAG yields nothing.
func detectCallCycles(funcs map[string]*graph.Func) []label.Diagnostic {
	adj := make(map[string][]string, len(funcs))
	for name, fn := range funcs {
		adj[name] = []string{}
		seen := map[string]bool{}
		fn.WalkBlocks(func(b *graph.Block) {
			for _, id := range b.Stmts {
				call, ok := fn.Nodes[id].(graph.Call)
				if !ok || seen[call.Callee] {
					continue
				}
				if _, exists := funcs[call.Callee]; !exists {
					continue
				}
				seen[call.Callee] = true
				adj[name] = append(adj[name], call.Callee)
			}
		})
		sort.Strings(adj[name])
	}

	var diags []label.Diagnostic
	for _, scc := range tarjanSCC(adj) {
		cyclic := len(scc) > 1 || hasSelfLoop(scc[0], adj)
		if !cyclic {
			continue
		}
		sort.Strings(scc)
		path := append(append([]string{}, scc...), scc[0])
		for _, member := range scc {
			diags = append(diags, label.NewRecursiveCall(member, path))
		}
	}
	return diags
}

func hasSelfLoop(node string, adj map[string][]string) bool {
	for _, n := range adj[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of adj. Iteration
// over the node set is sorted so the output order is deterministic.
func tarjanSCC(adj map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	names := make([]string, 0, len(adj))
	for name := range adj {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, visited := indices[name]; !visited {
			strongConnect(name)
		}
	}
	return sccs
}
