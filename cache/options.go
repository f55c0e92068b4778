package cache

import "github.com/IvanBrykalov/kvcache/policy"

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy means the entry was removed by the set's eviction policy to admit a new key.
	EvictPolicy EvictReason = iota
	// EvictPurge means the entry was dropped by Purge.
	EvictPurge
)

func (r EvictReason) String() string {
	switch r {
	case EvictPolicy:
		return "policy"
	case EvictPurge:
		return "purge"
	}
	return "unknown"
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Options configures the cache. Sane defaults are applied in New():
//   - nil Policy  => CLOCK
//   - nil Metrics => NoopMetrics
//   - nil Hash    => FNV-1a
type Options[V any] struct {
	// NumSets is the number of independently locked sets (> 0).
	NumSets int
	// MaxElemsPerSet bounds every set (> 0).
	MaxElemsPerSet int

	// Policy is the per-set eviction policy factory; nil => CLOCK.
	Policy policy.Policy[V]

	// OnEvict is called for every eviction under the set lock; keep it cheap.
	OnEvict func(k string, v V, reason EvictReason)
	Metrics Metrics

	// Hash overrides the key hash (tests pin keys to sets with it).
	Hash func(string) uint64
}
