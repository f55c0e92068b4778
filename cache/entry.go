package cache

// entry is an intrusive doubly linked list element owned by a set.
// The list is the set order: head is the oldest entry, tail the newest.
type entry[V any] struct {
	key string
	val V

	prev *entry[V]
	next *entry[V]

	// referenced is the second-chance bit: set on every hit, cleared by the
	// sweep or by an overwrite.
	referenced bool
}

// Key returns the entry key (part of policy.Node interface).
func (e *entry[V]) Key() string { return e.key }

// Value returns a pointer to the stored value (part of policy.Node interface).
// Only valid while the set lock is held.
func (e *entry[V]) Value() *V { return &e.val }

func (e *entry[V]) Referenced() bool     { return e.referenced }
func (e *entry[V]) SetReferenced(b bool) { e.referenced = b }
