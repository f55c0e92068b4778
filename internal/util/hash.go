// Package util contains internal helpers (hashing, set indexing, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// Fnv64a hashes a string key using 64-bit FNV-1a without allocating.
// The result depends only on the key bytes, so it is stable for the
// lifetime of the process (and across processes).
func Fnv64a(k string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(k); i++ {
		h ^= uint64(k[i])
		h *= fnvPrime64
	}
	return h
}
