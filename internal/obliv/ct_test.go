package obliv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCtLess(t *testing.T) {
	tests := []struct {
		x, y uint64
		want uint64
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 0},
		{5, 5, 0},
		{^uint64(0), 0, 0},
		{0, ^uint64(0), 1},
		{1 << 63, (1 << 63) - 1, 0}, // high bit compares unsigned
		{(1 << 63) - 1, 1 << 63, 1},
		{^uint64(0) - 1, ^uint64(0), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ctLess(tt.x, tt.y), "ctLess(%d, %d)", tt.x, tt.y)
	}
}

func TestCtEq(t *testing.T) {
	assert.Equal(t, uint64(1), ctEq(0, 0))
	assert.Equal(t, uint64(1), ctEq(^uint64(0), ^uint64(0)))
	assert.Equal(t, uint64(0), ctEq(0, 1))
	assert.Equal(t, uint64(0), ctEq(1<<63, 0))
}

func TestCtSelect(t *testing.T) {
	assert.Equal(t, uint64(7), ctSelect(1, 7, 9))
	assert.Equal(t, uint64(9), ctSelect(0, 7, 9))
	assert.Equal(t, ^uint64(0), ctSelect(1, ^uint64(0), 0))
}

func TestCtSwap(t *testing.T) {
	x := []uint64{10, 20}
	ctSwap(0, x, 0, 1)
	assert.Equal(t, []uint64{10, 20}, x, "v=0 leaves elements in place")

	ctSwap(1, x, 0, 1)
	assert.Equal(t, []uint64{20, 10}, x, "v=1 exchanges the pair")
}
