package cache

import (
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/kvcache/internal/util"
	"github.com/IvanBrykalov/kvcache/policy/clock"
)

// cache is a set-associative in-memory cache with a pluggable per-set policy.
type cache[V any] struct {
	sets  []*set[V]
	hash  func(string) uint64
	total atomic.Int64

	opt Options[V]
}

// New constructs a cache with the provided Options.
// It panics if NumSets or MaxElemsPerSet is not positive.
func New[V any](opt Options[V]) Cache[V] {
	if opt.NumSets <= 0 {
		panic("cache: NumSets must be > 0")
	}
	if opt.MaxElemsPerSet <= 0 {
		panic("cache: MaxElemsPerSet must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = clock.New[V]()
	}
	if opt.Hash == nil {
		opt.Hash = util.Fnv64a
	}

	c := &cache[V]{hash: opt.Hash, opt: opt}
	c.sets = make([]*set[V], opt.NumSets)
	for i := range c.sets {
		c.sets[i] = newSet(opt.MaxElemsPerSet, &c.opt, &c.total)
	}
	return c
}

// ---- Cache[V] implementation ----

func (c *cache[V]) Get(k string) (V, bool)  { return c.setFor(k).get(k) }
func (c *cache[V]) Peek(k string) (V, bool) { return c.setFor(k).peek(k) }
func (c *cache[V]) Put(k string, v V)       { c.setFor(k).put(k, v) }
func (c *cache[V]) Del(k string) bool       { return c.setFor(k).del(k) }

func (c *cache[V]) LockFor(k string) *sync.RWMutex { return &c.setFor(k).mu }

func (c *cache[V]) SetIndex(k string) int { return util.SetIndex(c.hash(k), len(c.sets)) }

func (c *cache[V]) NumSets() int        { return len(c.sets) }
func (c *cache[V]) MaxElemsPerSet() int { return c.opt.MaxElemsPerSet }

func (c *cache[V]) LockAll() {
	for _, s := range c.sets {
		s.mu.Lock()
	}
}

func (c *cache[V]) UnlockAll() {
	for i := len(c.sets) - 1; i >= 0; i-- {
		c.sets[i].mu.Unlock()
	}
}

func (c *cache[V]) Purge() {
	for _, s := range c.sets {
		s.purge()
	}
}

// Len returns the total number of resident entries across all sets.
func (c *cache[V]) Len() int {
	total := 0
	for _, s := range c.sets {
		total += s.size()
	}
	return total
}

func (c *cache[V]) View() []SetView[V] {
	out := make([]SetView[V], len(c.sets))
	for i, s := range c.sets {
		out[i] = s.view(i)
	}
	return out
}

func (c *cache[V]) Stats() Stats {
	var st Stats
	for _, s := range c.sets {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
	}
	st.Entries = int(c.total.Load())
	return st
}

// ---- helpers ----

func (c *cache[V]) setFor(k string) *set[V] {
	return c.sets[c.SetIndex(k)]
}
