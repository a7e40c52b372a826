// Package translate holds the legacy ID translation tables shared between
// migration stages.
//
// A Table is built once per entity kind, never mutated afterwards and is safe
// for concurrent reads. Lookups report absence explicitly so callers can tell
// a legitimately empty foreign key from a broken reference.
package translate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jobtrack/migrator/internal/domain/legacy"
)

// ErrDuplicateKey is returned when an entity table sees the same legacy ID twice.
var ErrDuplicateKey = errors.New("duplicate legacy id")

// Table maps legacy IDs to target values.
type Table[T any] struct {
	name    string
	entries map[legacy.ID]T
}

// Build indexes rows by key. Duplicate keys are an error: entity tables must
// be unique by construction.
func Build[R, T any](name string, rows []R, key func(R) legacy.ID, value func(R) T) (*Table[T], error) {
	t := &Table[T]{name: name, entries: make(map[legacy.ID]T, len(rows))}
	for _, r := range rows {
		k := key(r)
		if _, ok := t.entries[k]; ok {
			return nil, fmt.Errorf("%s table: %w %d", name, ErrDuplicateKey, k)
		}
		t.entries[k] = value(r)
	}
	return t, nil
}

// Empty returns a table with no entries.
func Empty[T any](name string) *Table[T] {
	return &Table[T]{name: name, entries: map[legacy.ID]T{}}
}

// Name returns the entity kind the table translates.
func (t *Table[T]) Name() string {
	return t.name
}

// Len returns the number of entries.
func (t *Table[T]) Len() int {
	return len(t.entries)
}

// Lookup returns the value for id and whether it was present.
func (t *Table[T]) Lookup(id legacy.ID) (T, bool) {
	v, ok := t.entries[id]
	return v, ok
}

// Keys returns the legacy IDs in ascending order.
func (t *Table[T]) Keys() []legacy.ID {
	keys := make([]legacy.ID, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
