// Package table provides an insertion-ordered keyed store.
//
// Table enforces key uniqueness and nothing else: callers own entity-level
// invariants. There is no internal locking; a table has exactly one owner
// (the sync coordinator's event loop).
package table

import "slices"

// Table maps keys to values and remembers the order keys were first added.
type Table[K comparable, V any] struct {
	values map[K]V
	order  []K
}

// New creates an empty table.
func New[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{values: make(map[K]V)}
}

// Get returns the value stored under k.
func (t *Table[K, V]) Get(k K) (V, bool) {
	v, ok := t.values[k]
	return v, ok
}

// Has reports whether k is present.
func (t *Table[K, V]) Has(k K) bool {
	_, ok := t.values[k]
	return ok
}

// Upsert stores v under k. A new key goes to the end of the order; an
// existing key keeps its position.
func (t *Table[K, V]) Upsert(k K, v V) {
	if _, ok := t.values[k]; !ok {
		t.order = append(t.order, k)
	}
	t.values[k] = v
}

// Delete removes k. Returns false if k was absent.
func (t *Table[K, V]) Delete(k K) bool {
	if _, ok := t.values[k]; !ok {
		return false
	}
	delete(t.values, k)
	if i := slices.Index(t.order, k); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
	return true
}

// Rename moves the value under from to to. If to already exists the value
// under from replaces nothing and is returned to the caller to merge; the
// from entry is removed in both cases.
func (t *Table[K, V]) Rename(from, to K) (moved V, existed bool) {
	v, ok := t.values[from]
	if !ok {
		return moved, false
	}
	t.Delete(from)
	if _, ok := t.values[to]; ok {
		return v, true
	}
	t.Upsert(to, v)
	return v, false
}

// Keys returns keys in insertion order. The slice is a copy.
func (t *Table[K, V]) Keys() []K {
	return slices.Clone(t.order)
}

// Len returns the number of entries.
func (t *Table[K, V]) Len() int {
	return len(t.order)
}

// Each calls fn for every entry in insertion order until fn returns false.
func (t *Table[K, V]) Each(fn func(K, V) bool) {
	for _, k := range t.order {
		if !fn(k, t.values[k]) {
			return
		}
	}
}

// Seq is a table whose values are append-only sequences.
type Seq[K comparable, T any] struct {
	*Table[K, []T]
}

// NewSeq creates an empty sequence table.
func NewSeq[K comparable, T any]() *Seq[K, T] {
	return &Seq[K, T]{Table: New[K, []T]()}
}

// Append adds items to the end of k's sequence, creating it if absent.
// Existing items are never removed or reordered.
func (s *Seq[K, T]) Append(k K, items ...T) {
	cur, _ := s.Get(k)
	s.Upsert(k, append(cur, items...))
}

// Swap replaces the last item of k's sequence for which match returns true
// with item, keeping its position. Returns false if nothing matched.
func (s *Seq[K, T]) Swap(k K, match func(T) bool, item T) bool {
	cur, _ := s.Get(k)
	for i := len(cur) - 1; i >= 0; i-- {
		if !match(cur[i]) {
			continue
		}
		next := slices.Clone(cur)
		next[i] = item
		s.Upsert(k, next)
		return true
	}
	return false
}

// Ensure creates an empty sequence for k if absent. Returns true if created.
func (s *Seq[K, T]) Ensure(k K) bool {
	if s.Has(k) {
		return false
	}
	s.Upsert(k, []T{})
	return true
}

// SeqLen returns the length of k's sequence (0 if absent).
func (s *Seq[K, T]) SeqLen(k K) int {
	cur, _ := s.Get(k)
	return len(cur)
}

// Snapshot returns a deep copy of every sequence plus the key order.
func (s *Seq[K, T]) Snapshot() (map[K][]T, []K) {
	out := make(map[K][]T, s.Len())
	s.Each(func(k K, v []T) bool {
		out[k] = append(make([]T, 0, len(v)), v...)
		return true
	})
	return out, s.Keys()
}
