package cache

import (
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/kvcache/internal/util"
	"github.com/IvanBrykalov/kvcache/policy"
)

// set is one way of the cache: its own lock, map and an intrusive doubly
// linked list in set order (head=oldest, tail=newest).
type set[V any] struct {
	// ---- guarded by mu ----
	mu   sync.RWMutex
	m    map[string]*entry[V]
	head *entry[V]
	tail *entry[V]
	len  int
	cap  int

	pol policy.SetPolicy[V]
	opt *Options[V]

	// total is the cache-wide entry count, shared by all sets.
	total *atomic.Int64

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64
}

func newSet[V any](capacity int, opt *Options[V], total *atomic.Int64) *set[V] {
	s := &set[V]{
		m:     make(map[string]*entry[V], capacity),
		cap:   capacity,
		opt:   opt,
		total: total,
	}
	s.pol = opt.Policy.New(setHooks[V]{s: s})
	return s
}

// get marks a hit entry referenced and lets the policy observe it.
func (s *set[V]) get(k string) (V, bool) {
	e, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	e.referenced = true
	s.pol.OnGet(e)
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return e.val, true
}

func (s *set[V]) peek(k string) (V, bool) {
	if e, ok := s.m[k]; ok {
		return e.val, true
	}
	var zero V
	return zero, false
}

// put overwrites in place or admits a new entry, evicting first when full.
func (s *set[V]) put(k string, v V) {
	if e, ok := s.m[k]; ok {
		// Overwrite keeps the set position; the new value has not been read yet.
		e.val = v
		e.referenced = false
		s.pol.OnUpdate(e)
		return
	}

	if s.len >= s.cap {
		victim := s.pol.Victim()
		if victim == nil {
			victim = s.front()
		}
		if victim != nil {
			s.evict(victim.(*entry[V]), EvictPolicy)
		}
	}

	e := &entry[V]{key: k, val: v}
	s.m[k] = e
	s.pushBack(e)
	s.pol.OnAdd(e)
	s.opt.Metrics.Size(int(s.total.Load()))
}

// del removes k; OnRemove runs before the entry is unlinked.
func (s *set[V]) del(k string) bool {
	e, ok := s.m[k]
	if !ok {
		return false
	}
	s.pol.OnRemove(e)
	s.unlink(e)
	delete(s.m, k)
	s.opt.Metrics.Size(int(s.total.Load()))
	return true
}

// purge drops every entry and resets the policy state.
func (s *set[V]) purge() {
	for e := s.head; e != nil; {
		next := e.next
		s.evicts.Add(1)
		s.opt.Metrics.Evict(EvictPurge)
		if cb := s.opt.OnEvict; cb != nil {
			cb(e.key, e.val, EvictPurge)
		}
		e.prev, e.next = nil, nil
		e = next
	}
	s.total.Add(-int64(s.len))
	s.m = make(map[string]*entry[V], s.cap)
	s.head, s.tail = nil, nil
	s.len = 0
	s.pol = s.opt.Policy.New(setHooks[V]{s: s})
	s.opt.Metrics.Size(int(s.total.Load()))
}

// view copies the set order under a read lock.
func (s *set[V]) view(idx int) SetView[V] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv := SetView[V]{Index: idx, Hand: -1, Entries: make([]EntryView[V], 0, s.cap)}
	var hand policy.Node[V]
	if hp, ok := s.pol.(interface{ Hand() policy.Node[V] }); ok {
		hand = hp.Hand()
	}
	for e := s.head; e != nil; e = e.next {
		if hand != nil && policy.Node[V](e) == hand {
			sv.Hand = len(sv.Entries)
		}
		sv.Entries = append(sv.Entries, EntryView[V]{
			Key:        e.key,
			Value:      e.val,
			Referenced: e.referenced,
			Valid:      true,
		})
	}
	for len(sv.Entries) < s.cap {
		sv.Entries = append(sv.Entries, EntryView[V]{})
	}
	return sv
}

func (s *set[V]) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

func (s *set[V]) front() policy.Node[V] {
	if s.head == nil {
		return nil
	}
	return s.head
}

// pushBack appends e as the newest entry in O(1).
func (s *set[V]) pushBack(e *entry[V]) {
	e.next = nil
	e.prev = s.tail
	if s.tail != nil {
		s.tail.next = e
	}
	s.tail = e
	if s.head == nil {
		s.head = e
	}
	s.len++
	s.total.Add(1)
}

// moveToBack re-positions e as the newest entry in O(1).
func (s *set[V]) moveToBack(e *entry[V]) {
	if e == s.tail {
		return
	}
	// detach
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	// append
	e.next = nil
	e.prev = s.tail
	if s.tail != nil {
		s.tail.next = e
	}
	s.tail = e
	if s.head == nil {
		s.head = e
	}
}

// unlink removes e from the list and updates counters in O(1).
func (s *set[V]) unlink(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
	s.len--
	s.total.Add(-1)
}

// evict removes the entry, updates metrics/counters, and calls OnEvict.
func (s *set[V]) evict(e *entry[V], reason EvictReason) {
	s.pol.OnRemove(e)
	s.unlink(e)
	delete(s.m, e.key)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(e.key, e.val, reason)
	}
}

// -------------------- policy hooks --------------------

// setHooks adapts the set's list operations to policy.Hooks.
type setHooks[V any] struct{ s *set[V] }

func (h setHooks[V]) Front() policy.Node[V] { return h.s.front() }

func (h setHooks[V]) Next(n policy.Node[V]) policy.Node[V] {
	e := n.(*entry[V])
	if e.next != nil {
		return e.next
	}
	return h.s.front()
}

func (h setHooks[V]) MoveToBack(n policy.Node[V]) { h.s.moveToBack(n.(*entry[V])) }
func (h setHooks[V]) Len() int                    { return h.s.len }
