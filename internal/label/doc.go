// Package label computes sensitivity labels for every value in a function
// graph and validates the constraints that depend on them.
//
// The lattice is the two-point join lattice Public ⊑ Private, refined by a
// SourceSet: the set of private-origin parameters whose value contributed
// to a value. The two views are kept coherent — a value is Private exactly
// when its source set is non-empty — so every transfer function reduces to
// a union.
//
// Analyze runs the forward data-flow fixpoint and reports every violation
// it finds rather than stopping at the first: one compile surfaces every
// offending value. Call sites are resolved through a CallOracle so the
// specialization resolver can interpose per-label-tuple re-analysis without
// this package knowing about caching.
//
// Declassification is deliberately split in two. During propagation an
// export node is treated as already-public, so downstream labels settle in
// one pass; CheckExports then verifies each directive's named source set
// actually covers the value's dependencies. A failed check is fatal, so the
// optimistic labels never escape the pipeline.
package label
