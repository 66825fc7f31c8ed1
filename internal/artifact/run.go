package artifact

import "github.com/google/uuid"

// RunIDGenerator produces the provenance ID stamped on every artifact a
// compile run writes.
type RunIDGenerator interface {
	Generate() string
}

// UUIDRunIDs is the production generator: time-ordered UUIDv7, so run IDs
// sort by creation time.
type UUIDRunIDs struct{}

// Generate returns a new UUIDv7 run ID.
func (UUIDRunIDs) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
