// Package twoq implements the 2Q eviction policy.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/kvcache/policy"
)

// twoQ implements the 2Q eviction policy on top of a set.
//
// Resident queues:
//   - A1in (younger queue): its own FIFO list + index by Node; admits first-time entries
//   - Am (mature queue): every resident node not in inIdx; ordered by the set
//     order, which this policy keeps in recency order (front = LRU)
//
// Ghost A1out: keys only (no values), tracks recently evicted A1in keys to give
// them a second chance (bypass A1in on re-admission).
//
// Concurrency: all methods are called under the set lock.
type twoQ[V any] struct {
	h policy.Hooks[V]

	capIn    int // A1in capacity (per set)
	capGhost int // A1out (ghost) capacity (per set)

	// A1in: newest at Front() -> oldest at Back()
	inList *list.List
	inIdx  map[policy.Node[V]]*list.Element

	// A1out (ghosts): keys only, newest at Front() -> oldest at Back()
	ghostList *list.List
	ghostIdx  map[string]*list.Element
}

// New constructs a 2Q policy factory. Sizes are per set.
// Common choices: capIn ≈ 25% of set capacity; capGhost ≈ 50–100% of set capacity.
func New[V any](capIn, capGhost int) policy.Policy[V] {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy[V]{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy[V any] struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy[V]) New(h policy.Hooks[V]) policy.SetPolicy[V] {
	return &twoQ[V]{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[policy.Node[V]]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[string]*list.Element),
	}
}

// Victim prefers the oldest A1in entry once A1in has reached its capacity;
// otherwise the LRU entry of the whole set.
func (q *twoQ[V]) Victim() policy.Node[V] {
	if q.inList.Len() >= q.capIn {
		if el := q.inList.Back(); el != nil {
			return el.Value.(policy.Node[V])
		}
	}
	return q.h.Front()
}

// OnAdd admission rules:
//   - A key present in ghosts bypasses A1in and goes straight to Am; the ghost is dropped.
//   - Otherwise the entry is admitted into A1in.
func (q *twoQ[V]) OnAdd(n policy.Node[V]) {
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		return
	}
	q.inIdx[n] = q.inList.PushFront(n)
}

// OnGet: a hit in A1in promotes the node to Am; every hit moves it to MRU.
func (q *twoQ[V]) OnGet(n policy.Node[V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToBack(n)
}

// OnUpdate follows OnGet semantics (updates count as recent use).
func (q *twoQ[V]) OnUpdate(n policy.Node[V]) { q.OnGet(n) }

// OnRemove:
//   - If the node was in A1in, its key becomes a ghost (bounded by capGhost).
//   - Removals from Am do NOT populate ghosts.
func (q *twoQ[V]) OnRemove(n policy.Node[V]) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(string))
		q.ghostList.Remove(tail)
	}
}
