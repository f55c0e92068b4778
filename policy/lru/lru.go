// Package lru implements the LRU eviction policy.
package lru

import "github.com/IvanBrykalov/kvcache/policy"

// lru is a classic Least-Recently-Used policy. The set order doubles as the
// recency order: front = LRU, back = MRU.
type lru[V any] struct {
	h policy.Hooks[V]
}

type lruPolicy[V any] struct{}

// New returns a Policy factory that constructs per-set LRU instances.
func New[V any]() policy.Policy[V] { return lruPolicy[V]{} }

// New implements policy.Policy by binding set hooks and returning
// a set-local policy instance.
func (lruPolicy[V]) New(h policy.Hooks[V]) policy.SetPolicy[V] {
	return &lru[V]{h: h}
}

// Victim returns the least recently used entry.
func (p *lru[V]) Victim() policy.Node[V] { return p.h.Front() }

// OnAdd is a no-op: the set already appended the entry at MRU.
func (p *lru[V]) OnAdd(policy.Node[V]) {}

// OnGet promotes the entry to MRU.
func (p *lru[V]) OnGet(n policy.Node[V]) { p.h.MoveToBack(n) }

// OnUpdate promotes the entry to MRU (updates are treated as recent use).
func (p *lru[V]) OnUpdate(n policy.Node[V]) { p.h.MoveToBack(n) }

// OnRemove is a no-op for pure LRU (nothing to clean up in policy state).
func (p *lru[V]) OnRemove(policy.Node[V]) {}
