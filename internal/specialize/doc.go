// Package specialize reconciles declared parameter labels against call-site
// argument labels and produces per-label-tuple specializations of controlled
// functions.
//
// An uncontrolled function has no declared labels: every call is analyzed
// bottom-up under the labels the call site implies, and no specialization is
// published. A controlled function's declared labels are a default that call
// sites may tighten (public to private) but never loosen; parameters in a
// length or offset role cannot be privatized at all. The first call with a
// distinct tuple of actual labels re-runs the label analysis of the callee
// under that assignment; later calls with the same tuple reuse the cached
// result, so one source definition compiles to exactly one variant per
// distinct sensitivity context.
//
// The cache is append-only and keyed by (function content ID, label tuple).
// Entries are immutable once written, so concurrent resolution across
// independent call sites needs nothing beyond exclusive-create-or-reuse.
// The cache is passed explicitly; nothing here holds ambient state.
package specialize
