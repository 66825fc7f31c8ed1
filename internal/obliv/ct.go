package obliv

// Constant-time predicates over uint64. Each returns 1 or 0 and never
// branches on its arguments. crypto/subtle stops at 32-bit operands, so the
// 64-bit versions are spelled out here with the standard borrow/zero-test
// identities.

// ctLess returns 1 if x < y, else 0.
func ctLess(x, y uint64) uint64 {
	// MSB of the borrow out of x - y.
	return ((^x & y) | (^(x ^ y) & (x - y))) >> 63
}

// ctEq returns 1 if x == y, else 0.
func ctEq(x, y uint64) uint64 {
	z := x ^ y
	return ((z | -z) >> 63) ^ 1
}

// ctSelect returns a if v == 1 and b if v == 0.
func ctSelect(v, a, b uint64) uint64 {
	m := -v
	return (a & m) | (b &^ m)
}

// ctSwap exchanges x[i] and x[j] if v == 1, touching both slots either way.
func ctSwap(v uint64, x []uint64, i, j int) {
	a, b := x[i], x[j]
	x[i] = ctSelect(v, b, a)
	x[j] = ctSelect(v, a, b)
}
