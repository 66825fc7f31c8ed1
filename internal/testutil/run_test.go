package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeqRunIDs_Sequence(t *testing.T) {
	g := NewSeqRunIDs()

	assert.Equal(t, "run-00000001", g.Generate())
	assert.Equal(t, "run-00000002", g.Generate())
	assert.Equal(t, "run-00000003", g.Generate())
}

func TestSeqRunIDs_IndependentGenerators(t *testing.T) {
	a := NewSeqRunIDs()
	b := NewSeqRunIDs()

	a.Generate()
	assert.Equal(t, "run-00000001", b.Generate(), "generators do not share state")
}
