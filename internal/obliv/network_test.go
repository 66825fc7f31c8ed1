package obliv

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BuildNetwork
// =============================================================================

func TestBuildNetwork_Deterministic(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 8, 33, 64} {
		a := BuildNetwork(n)
		b := BuildNetwork(n)
		assert.Equal(t, a, b, "n=%d must build identically every time", n)
	}
}

func TestBuildNetwork_Empty(t *testing.T) {
	assert.Empty(t, BuildNetwork(0).Comparators)
	assert.Empty(t, BuildNetwork(1).Comparators)
	assert.Empty(t, BuildNetwork(-3).Comparators)
}

func TestBuildNetwork_KnownSizes(t *testing.T) {
	// Comparator counts for power-of-two sizes: (t²-t+4)·2^(t-2) - 1.
	tests := []struct {
		n     int
		count int
	}{
		{2, 1},
		{4, 5},
		{8, 19},
		{16, 63},
	}
	for _, tt := range tests {
		nw := BuildNetwork(tt.n)
		assert.Len(t, nw.Comparators, tt.count, "n=%d", tt.n)
	}
}

func TestBuildNetwork_PairsOrdered(t *testing.T) {
	for n := 2; n <= 64; n++ {
		nw := BuildNetwork(n)
		for _, c := range nw.Comparators {
			assert.Less(t, c.I, c.J, "n=%d: comparator (%d,%d)", n, c.I, c.J)
			assert.GreaterOrEqual(t, c.I, 0)
			assert.Less(t, c.J, n)
		}
	}
}

func TestBuildNetwork_Golden8(t *testing.T) {
	nw := BuildNetwork(8)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "network_8", []byte(nw.String()))
}

// =============================================================================
// Apply
// =============================================================================

func TestNetwork_Apply_SortsAllSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(20260823))

	for n := 1; n <= 64; n++ {
		nw := BuildNetwork(n)

		keys := make([]uint64, n)
		for i := range keys {
			keys[i] = uint64(rng.Intn(16)) // many duplicates
		}
		payload := make([]uint64, n)
		for i := range payload {
			payload[i] = uint64(i) // original position, for the stability check
		}

		type row struct{ key, pos uint64 }
		want := make([]row, n)
		for i := range want {
			want[i] = row{key: keys[i], pos: payload[i]}
		}
		sort.SliceStable(want, func(a, b int) bool { return want[a].key < want[b].key })

		require.NoError(t, nw.Apply(keys, payload))

		for i := 0; i < n; i++ {
			require.Equal(t, want[i].key, keys[i], "n=%d index %d: wrong key order", n, i)
			require.Equal(t, want[i].pos, payload[i], "n=%d index %d: unstable permutation", n, i)
		}
	}
}

func TestNetwork_Apply_LargeKeys(t *testing.T) {
	nw := BuildNetwork(4)
	keys := []uint64{^uint64(0), 0, 1 << 63, 42}
	require.NoError(t, nw.Apply(keys, nil))
	assert.Equal(t, []uint64{0, 42, 1 << 63, ^uint64(0)}, keys,
		"keys compare as unsigned, high bit is not a sign")
}

func TestNetwork_Apply_NilPayload(t *testing.T) {
	nw := BuildNetwork(3)
	keys := []uint64{3, 1, 2}
	require.NoError(t, nw.Apply(keys, nil))
	assert.Equal(t, []uint64{1, 2, 3}, keys)
}

func TestNetwork_Apply_SizeMismatch(t *testing.T) {
	nw := BuildNetwork(4)

	err := nw.Apply([]uint64{1, 2, 3}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network size 4 applied to 3 keys")

	err = nw.Apply([]uint64{1, 2, 3, 4}, []uint64{9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 payload elements for 4 keys")
}

func TestNetwork_Apply_SingleElement(t *testing.T) {
	nw := BuildNetwork(1)
	keys := []uint64{7}
	payload := []uint64{9}
	require.NoError(t, nw.Apply(keys, payload))
	assert.Equal(t, []uint64{7}, keys)
	assert.Equal(t, []uint64{9}, payload)
}

func TestNetwork_String(t *testing.T) {
	nw := BuildNetwork(2)
	assert.Equal(t, "network n=2 comparators=1\n0 1\n", nw.String())
}
