// Package policy defines the per-set eviction policy contract used by the
// set-associative cache. Implementations live in subpackages: clock (the
// default second-chance policy), lru and twoq.
package policy

// Node is the minimal contract a cache entry must satisfy for a policy.
// It exposes the key, a pointer to the value and the entry's referenced bit.
// The referenced bit is set by the cache on every hit; policies may read and
// clear it.
type Node[V any] interface {
	Key() string
	Value() *V
	Referenced() bool
	SetReferenced(bool)
}

// Hooks expose the set's entry order to a policy. The order starts as
// insertion order: new entries are appended at the back. Implementations are
// provided by the set.
//
// Concurrency: all hook calls happen under the set's write lock.
type Hooks[V any] interface {
	// Front returns the oldest entry in set order (or nil if empty).
	Front() Node[V]
	// Next returns the successor of n in cyclic order, wrapping from the
	// back to the front. For a single-entry set Next(n) == n.
	Next(n Node[V]) Node[V]
	// MoveToBack re-positions n as the newest entry.
	MoveToBack(n Node[V])
	// Len returns the number of resident entries.
	Len() int
}

// SetPolicy is a per-set eviction policy instance bound to set hooks.
// All methods are invoked under the set's write lock.
//
// Semantics:
//   - Victim is called only when a NEW key is inserted into a full set. It
//     must return a resident entry; the set removes it (calling OnRemove)
//     before admitting the new key.
//   - OnAdd is called after a new entry was appended to the set order.
//   - OnGet/OnUpdate notify a hit and an in-place overwrite.
//   - OnRemove is called before an entry is unlinked, for both evictions and
//     explicit deletes.
type SetPolicy[V any] interface {
	Victim() Node[V]
	OnAdd(Node[V])
	OnGet(Node[V])
	OnUpdate(Node[V])
	OnRemove(Node[V])
}

// Policy is a factory that creates set-local policy instances bound to a
// particular set's hooks.
type Policy[V any] interface {
	New(Hooks[V]) SetPolicy[V]
}
