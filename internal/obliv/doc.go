// Package obliv builds and executes oblivious permutation networks.
//
// A Network is a compile-time-fixed sequence of comparator index pairs for
// Batcher's merge-exchange sort. The sequence is a pure function of the
// element count: building it twice for the same n yields byte-identical
// results, and applying it touches the same index pairs in the same order
// regardless of the data. That property is what makes the network safe to
// emit wherever a program needs a data-dependent rearrangement — sorting,
// moving a variable-offset range to a fixed position — without the access
// pattern leaking which rearrangement happened.
//
// Apply executes the comparators with branch-free compare/swap built on
// mask arithmetic, so the host-side reference execution has the same
// data-independent shape the emitted code is required to have. Ties are
// broken by original position, which makes the resulting permutation
// stable.
package obliv
