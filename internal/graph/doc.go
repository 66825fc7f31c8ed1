// Package graph provides the canonical function-graph representation for
// decor.
//
// This package contains type definitions and structural helpers only. All
// other internal packages import graph; graph imports nothing internal. This
// ensures the graph remains the foundational layer with no circular
// dependencies.
//
// A function body is an arena of value nodes addressed by integer ValueID,
// plus a structured block tree (If/Loop regions). The arena layout keeps the
// sensitivity table a flat mapping from ValueID to (Label, SourceSet) with no
// aliasing hazards, even for cyclic structural types.
//
// Key design constraints:
//   - Node is a sealed interface; only kinds declared here exist, so passes
//     can type-switch exhaustively.
//   - Operand references always point at already-added nodes (lower IDs).
//     Region blocks list their member statements forward; that is structural
//     containment, not a data edge.
//   - Buffer and array lengths are fixed at compile time and therefore
//     public. There is no runtime-length container in the IR.
//   - NO floats anywhere; all scalars are fixed-width integers or booleans.
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the ONLY encoding
//     used for content-addressed identity.
package graph
