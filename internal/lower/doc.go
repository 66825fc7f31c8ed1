// Package lower rewrites labeled function graphs into oblivious form: after
// lowering, no surviving conditional depends on private data.
//
// The walk follows the region tree in execution order (reverse postorder for
// a structured graph). A branch with a private condition is flattened: both
// blocks are evaluated unconditionally and their yields merge through Select
// nodes, whose label joins the condition into every result. A loop early-exit
// with a private condition becomes a masked accumulator: an exited flag is
// carried alongside the loop state, the retained result freezes once the
// flag is set, and the loop still visits every element in order, so the trip
// count and access pattern never depend on data. A branch with a public
// condition is left as a native branch; that is the sanctioned performance
// escape hatch.
//
// Sort requests are replaced by comparator-network applications with the
// size resolved from the container's compile-time length. A loop or sort
// over a container with no such length is rejected (L104) before any
// rewriting happens.
package lower
