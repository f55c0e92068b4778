// Package store implements the authoritative key/value table behind the
// cache. A Store is one reader-writer lock over a pluggable Table; the lock
// is exposed so the service can hold it across a compound cache+store
// operation. Get, Put and Del assume the caller holds the lock in the right
// mode (read for Get, write for Put and Del).
package store

import (
	"context"
	"sync"

	"github.com/IvanBrykalov/kvcache/kverr"
)

// Size limits on a stored pair, in bytes. Keys and values must also be
// non-empty.
const (
	MaxKeySize   = 256
	MaxValueSize = 256 * 1024
)

// Store is the backing store. It is unbounded and holds the source of truth:
// a key absent here does not exist, whatever the cache holds.
type Store struct {
	mu sync.RWMutex
	t  Table
}

// New wraps t. It panics on a nil table.
func New(t Table) *Store {
	if t == nil {
		panic("store: nil table")
	}
	return &Store{t: t}
}

// NewMemory returns a Store over an empty MemoryTable.
func NewMemory() *Store { return New(NewMemoryTable()) }

// Lock returns the lock guarding the whole table.
func (s *Store) Lock() *sync.RWMutex { return &s.mu }

// Table returns the underlying table.
func (s *Store) Table() Table { return s.t }

// Get returns the value of key or a NotFound error.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.t.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", kverr.E(kverr.NotFound, "store.get")
	}
	return v, nil
}

// Put inserts or overwrites key unconditionally.
func (s *Store) Put(ctx context.Context, key, value string) error {
	return s.t.Put(ctx, key, value)
}

// Del removes key, failing with NotFound when it is absent.
func (s *Store) Del(ctx context.Context, key string) error {
	ok, err := s.t.Del(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return kverr.E(kverr.NotFound, "store.del")
	}
	return nil
}

// Has reports whether key is present.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.t.Get(ctx, key)
	return ok, err
}

// Len returns the number of stored pairs.
func (s *Store) Len(ctx context.Context) (int, error) { return s.t.Len(ctx) }
