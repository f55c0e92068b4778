// Package cache provides a set-associative, generic in-memory cache with a
// pluggable per-set eviction policy (CLOCK by default).
//
// Design
//
//   - Geometry: the cache is NumSets independent sets, each holding at most
//     MaxElemsPerSet entries. A key lives in set hash(key) mod NumSets; the
//     mapping never changes for the lifetime of the cache.
//
//   - Storage: each set keeps a map[string]*entry for lookups and an intrusive
//     doubly linked list in set order (insertion order for CLOCK). All
//     operations are O(1) expected, except the CLOCK sweep which is bounded by
//     two revolutions of the set.
//
//   - Locking: every set owns a sync.RWMutex exposed through LockFor. Get, Put
//     and Del assume the caller already holds the set's write lock, so the
//     caller can keep it across a compound operation with a backing store.
//     Get takes the write lock too because a hit sets the referenced bit.
//
//   - Policies: eviction is pluggable via the policy package. CLOCK
//     (second chance) is the default; LRU and 2Q are provided.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     By default NoopMetrics is used; plug the Prometheus adapter to export them.
//
// Basic usage
//
//	c := cache.New[string](cache.Options[string]{NumSets: 100, MaxElemsPerSet: 10})
//	mu := c.LockFor("a")
//	mu.Lock()
//	c.Put("a", "apple")
//	v, ok := c.Get("a")
//	mu.Unlock()
//
// Using an alternative policy (2Q)
//
//	c := cache.New[string](cache.Options[string]{
//	    NumSets:        64,
//	    MaxElemsPerSet: 16,
//	    Policy:         twoq.New[string](4 /* A1in ≈ 25% */, 8 /* ghosts */),
//	})
package cache
