package cache

import "sync"

// Cache is a set-associative, in-memory key/value cache.
//
// Keys are routed to one of NumSets sets by hash; each set holds at most
// MaxElemsPerSet entries and owns a reader-writer lock. Get, Put and Del do
// NOT lock: the caller takes the set lock returned by LockFor so it can hold
// it across a compound cache+store operation. Get mutates the referenced bit,
// so it needs the write lock like Put and Del.
type Cache[V any] interface {
	// Get returns the value for k and marks the entry referenced.
	// Set membership is not changed.
	Get(k string) (V, bool)

	// Peek returns the value for k without counting a hit or miss and
	// without touching the referenced bit or the policy. It needs the set
	// lock in either mode.
	Peek(k string) (V, bool)

	// Put inserts or overwrites k→v. Inserting a new key into a full set
	// first evicts one entry chosen by the set's policy.
	Put(k string, v V)

	// Del removes k if present and reports whether it was resident.
	Del(k string) bool

	// LockFor returns the lock guarding the set that k maps to.
	LockFor(k string) *sync.RWMutex

	// SetIndex returns the set that k maps to. The mapping is fixed for the
	// lifetime of the cache.
	SetIndex(k string) int

	// NumSets and MaxElemsPerSet report the immutable geometry.
	NumSets() int
	MaxElemsPerSet() int

	// LockAll write-locks every set in index order; UnlockAll releases them
	// in reverse order.
	LockAll()
	UnlockAll()

	// Purge drops every entry. The caller must hold all set locks (LockAll).
	Purge()

	// Len returns the total number of resident entries. It read-locks each
	// set in turn, so it must not be called while holding a set lock.
	Len() int

	// View returns a snapshot of every set in set order, padded to
	// MaxElemsPerSet with invalid slots. It read-locks each set in turn.
	View() []SetView[V]

	// Stats returns the aggregated counters.
	Stats() Stats
}

// SetView is a point-in-time picture of one set.
type SetView[V any] struct {
	Index int
	// Hand is the slot under the policy's sweep position, or -1 when the
	// policy has none (or it rests at the front implicitly).
	Hand    int
	Entries []EntryView[V]
}

// EntryView is one slot of a SetView.
type EntryView[V any] struct {
	Key        string
	Value      V
	Referenced bool
	Valid      bool
}

// Stats aggregates per-set counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}
