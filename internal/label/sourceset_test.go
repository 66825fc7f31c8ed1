package label

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vasilvv/decor/internal/graph"
)

// =============================================================================
// SourceSet
// =============================================================================

func TestSourceSet_NilIsEmpty(t *testing.T) {
	var s SourceSet

	assert.True(t, s.Empty())
	assert.False(t, s.Contains("x"))
	assert.Nil(t, s.Names())
	assert.Equal(t, "{}", s.String())
}

func TestSourceSet_Union(t *testing.T) {
	a := NewSourceSet("key")
	b := NewSourceSet("nonce", "key")

	u := a.Union(b)
	assert.Equal(t, []string{"key", "nonce"}, u.Names())
	// Inputs stay untouched.
	assert.Equal(t, []string{"key"}, a.Names())
}

func TestSourceSet_UnionSharesWithEmpty(t *testing.T) {
	a := NewSourceSet("key")

	assert.True(t, a.Union(nil).Equal(a))
	assert.True(t, SourceSet(nil).Union(a).Equal(a))
}

func TestSourceSet_SubsetAndMissing(t *testing.T) {
	s := NewSourceSet("key", "nonce", "iv")

	assert.True(t, s.SubsetOf([]string{"iv", "key", "nonce", "extra"}))
	assert.False(t, s.SubsetOf([]string{"key"}))
	assert.Equal(t, []string{"iv", "nonce"}, s.Missing([]string{"key"}))
	assert.Empty(t, s.Missing([]string{"key", "nonce", "iv"}))
}

// =============================================================================
// Info
// =============================================================================

// The label and the source set must stay coherent: Private exactly when the
// set is non-empty.
func TestInfo_Coherence(t *testing.T) {
	assert.Equal(t, graph.Public, PublicInfo.Label)
	assert.True(t, PublicInfo.Sources.Empty())

	p := PrivateInfo("key")
	assert.Equal(t, graph.Private, p.Label)
	assert.Equal(t, []string{"key"}, p.Sources.Names())

	// PrivateInfo with no names degenerates to public.
	assert.True(t, PrivateInfo().Equal(PublicInfo))
}

func TestInfo_Join(t *testing.T) {
	a := PrivateInfo("key")
	b := PrivateInfo("nonce")

	j := a.Join(b)
	assert.Equal(t, graph.Private, j.Label)
	assert.Equal(t, []string{"key", "nonce"}, j.Sources.Names())

	assert.True(t, PublicInfo.Join(PublicInfo).Equal(PublicInfo))
	assert.True(t, a.Join(PublicInfo).Equal(a))
}

func TestInfo_String(t *testing.T) {
	assert.Equal(t, "public", PublicInfo.String())
	assert.Equal(t, "private{key,nonce}", PrivateInfo("nonce", "key").String())
}
