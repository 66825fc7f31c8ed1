// Package artifact persists compiled function artifacts between runs.
//
// The store is a SQLite database keyed by content hash: an artifact's
// identity is derived from the source function's canonical encoding and the
// label tuple it was compiled under, so a cache hit means the exact same
// input compiled before and the stored lowered graph can be reused without
// re-running the pipeline. Every write is stamped with the run ID that
// produced it for provenance.
//
// The store never influences analysis results; it sits strictly between the
// CLI and the pipeline output.
package artifact
