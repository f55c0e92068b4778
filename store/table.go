package store

import (
	"context"
	"sort"
)

// Record is one key/value pair of a table.
type Record struct {
	Key   string
	Value string
}

// Table is the storage behind a Store. Implementations need no locking of
// their own: the Store's lock serializes writers against readers.
type Table interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	// Del removes key and reports whether it was present.
	Del(ctx context.Context, key string) (bool, error)
	Len(ctx context.Context) (int, error)
	// Records returns every pair sorted by key.
	Records(ctx context.Context) ([]Record, error)
	// Replace swaps the whole contents for recs in one step.
	Replace(ctx context.Context, recs []Record) error
}

// MemoryTable is a Table backed by a Go map.
type MemoryTable struct {
	data map[string]string
}

var _ Table = (*MemoryTable)(nil)

// NewMemoryTable creates an empty in-memory table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{data: make(map[string]string)}
}

func (m *MemoryTable) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryTable) Put(_ context.Context, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *MemoryTable) Del(_ context.Context, key string) (bool, error) {
	if _, ok := m.data[key]; !ok {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *MemoryTable) Len(context.Context) (int, error) { return len(m.data), nil }

func (m *MemoryTable) Records(context.Context) ([]Record, error) {
	recs := make([]Record, 0, len(m.data))
	for k, v := range m.data {
		recs = append(recs, Record{Key: k, Value: v})
	}
	sortRecords(recs)
	return recs, nil
}

// Replace builds the new map off to the side before swapping it in.
func (m *MemoryTable) Replace(_ context.Context, recs []Record) error {
	next := make(map[string]string, len(recs))
	for _, r := range recs {
		next[r.Key] = r.Value
	}
	m.data = next
	return nil
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
}
