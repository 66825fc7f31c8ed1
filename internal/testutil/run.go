package testutil

import "fmt"

// SeqRunIDs generates run IDs in a fixed sequence:
// run-00000001, run-00000002, ...
//
// The artifact store stamps every write with a run ID for provenance; tests
// that golden-compare store contents need those IDs to be reproducible,
// which the production UUIDv7 generator is not.
//
// Not safe for concurrent use; tests are single-goroutine.
type SeqRunIDs struct {
	n int
}

// NewSeqRunIDs creates a sequential run ID generator starting at 1.
func NewSeqRunIDs() *SeqRunIDs {
	return &SeqRunIDs{}
}

// Generate returns the next run ID in sequence.
//
// Implements artifact.RunIDGenerator.
func (g *SeqRunIDs) Generate() string {
	g.n++
	return fmt.Sprintf("run-%08d", g.n)
}
