package obliv

import (
	"fmt"
	"math/bits"
	"strings"
)

// Comparator is one conditional-swap step over the element pair (I, J),
// I < J always.
type Comparator struct {
	I, J int
}

// Network is the full comparator sequence for one element count. Networks
// are immutable; build once per distinct size and share across every
// permutation site of that size.
type Network struct {
	Size        int
	Comparators []Comparator
}

// BuildNetwork constructs the comparator sequence of Batcher's
// merge-exchange sort for n elements (Knuth 5.2.2M). The construction
// depends on n alone: no data, no randomness, no iteration-order
// sensitivity. Comparator count is O(n log² n).
//
// n < 2 yields an empty network.
func BuildNetwork(n int) Network {
	nw := Network{Size: n}
	if n < 2 {
		return nw
	}
	t := bits.Len(uint(n - 1)) // ceil(log2 n)
	for p := 1 << (t - 1); p > 0; p >>= 1 {
		q := 1 << (t - 1)
		r := 0
		d := p
		for {
			for i := 0; i+d < n; i++ {
				if i&p == r {
					nw.Comparators = append(nw.Comparators, Comparator{I: i, J: i + d})
				}
			}
			if q == p {
				break
			}
			d = q - p
			q >>= 1
			r = p
		}
	}
	return nw
}

// Apply runs every comparator in order as a branch-free conditional swap,
// sorting keys ascending and permuting payload identically. Ties keep
// their original relative order: the swap condition compares (key, original
// position) lexicographically, so the comparator relation is a total order
// and the network's output is the unique stable permutation.
//
// Keys compare as unsigned 64-bit integers; callers with narrower element
// widths zero-extend. payload may be nil. Every comparator touches its
// index pair whether or not it swaps.
func (nw Network) Apply(keys, payload []uint64) error {
	if len(keys) != nw.Size {
		return fmt.Errorf("obliv: network size %d applied to %d keys", nw.Size, len(keys))
	}
	if payload != nil && len(payload) != len(keys) {
		return fmt.Errorf("obliv: %d payload elements for %d keys", len(payload), len(keys))
	}

	rank := make([]uint64, len(keys))
	for i := range rank {
		rank[i] = uint64(i)
	}

	for _, c := range nw.Comparators {
		gt := ctLess(keys[c.J], keys[c.I])
		tie := ctEq(keys[c.I], keys[c.J]) & ctLess(rank[c.J], rank[c.I])
		swap := gt | tie

		ctSwap(swap, keys, c.I, c.J)
		ctSwap(swap, rank, c.I, c.J)
		if payload != nil {
			ctSwap(swap, payload, c.I, c.J)
		}
	}
	return nil
}

// String renders the comparator sequence one pair per line, suitable for
// golden comparison and for the CLI's network command.
func (nw Network) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "network n=%d comparators=%d\n", nw.Size, len(nw.Comparators))
	for _, c := range nw.Comparators {
		fmt.Fprintf(&b, "%d %d\n", c.I, c.J)
	}
	return b.String()
}
