package util

// IsPowerOfTwo reports whether x is a power of two (> 0).
func IsPowerOfTwo(x uint64) bool {
	return x != 0 && (x&(x-1)) == 0
}

// SetIndex maps a 64-bit hash to one of n sets: hash mod n.
// The hash is unsigned, so the "abs" step of abs(hash) mod n is implicit.
// A power-of-two n takes the mask path, which yields the same index.
func SetIndex(hash uint64, n int) int {
	if n <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(n)) {
		return int(hash & uint64(n-1))
	}
	return int(hash % uint64(n))
}
