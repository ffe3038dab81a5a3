package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_UpsertKeepsInsertionOrder(t *testing.T) {
	tb := New[string, int]()
	tb.Upsert("b", 1)
	tb.Upsert("a", 2)
	tb.Upsert("c", 3)
	tb.Upsert("b", 10) // existing key keeps its slot

	assert.Equal(t, []string{"b", "a", "c"}, tb.Keys())
	v, ok := tb.Get("b")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 3, tb.Len())
}

func TestTable_Delete(t *testing.T) {
	tb := New[string, int]()
	tb.Upsert("a", 1)
	tb.Upsert("b", 2)

	assert.True(t, tb.Delete("a"))
	assert.False(t, tb.Delete("a"))
	assert.False(t, tb.Has("a"))
	assert.Equal(t, []string{"b"}, tb.Keys())
}

func TestTable_KeysIsCopy(t *testing.T) {
	tb := New[string, int]()
	tb.Upsert("a", 1)
	keys := tb.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"a"}, tb.Keys())
}

func TestTable_Rename(t *testing.T) {
	tb := New[string, int]()
	tb.Upsert("temp_1", 5)
	tb.Upsert("x", 1)

	_, existed := tb.Rename("temp_1", "g1")
	assert.False(t, existed)
	assert.Equal(t, []string{"x", "g1"}, tb.Keys())

	tb.Upsert("temp_2", 7)
	moved, existed := tb.Rename("temp_2", "x")
	assert.True(t, existed)
	assert.Equal(t, 7, moved)
	v, _ := tb.Get("x")
	assert.Equal(t, 1, v, "existing target is left for the caller to merge")
	assert.False(t, tb.Has("temp_2"))
}

func TestTable_EachStops(t *testing.T) {
	tb := New[int, int]()
	for i := 0; i < 5; i++ {
		tb.Upsert(i, i)
	}
	var seen []int
	tb.Each(func(k, _ int) bool {
		seen = append(seen, k)
		return k < 2
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestSeq_AppendNeverReorders(t *testing.T) {
	s := NewSeq[string, string]()
	s.Append("bob", "1")
	s.Append("bob", "2", "3")
	s.Append("alice", "x")

	got, _ := s.Get("bob")
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Equal(t, 3, s.SeqLen("bob"))
	assert.Equal(t, 0, s.SeqLen("nobody"))
	assert.Equal(t, []string{"bob", "alice"}, s.Keys())
}

func TestSeq_Ensure(t *testing.T) {
	s := NewSeq[string, int]()
	assert.True(t, s.Ensure("new"))
	assert.False(t, s.Ensure("new"))
	got, ok := s.Get("new")
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestSeq_SnapshotIsDeepCopy(t *testing.T) {
	s := NewSeq[string, int]()
	s.Append("k", 1, 2)
	snap, order := s.Snapshot()
	snap["k"][0] = 99
	got, _ := s.Get("k")
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, []string{"k"}, order)
}

func TestSeq_SwapKeepsPosition(t *testing.T) {
	s := NewSeq[string, string]()
	s.Append("bob", "a", "x", "b", "x")
	before, _ := s.Get("bob")

	eq := func(want string) func(string) bool { return func(v string) bool { return v == want } }
	assert.True(t, s.Swap("bob", eq("x"), "X"))
	got, _ := s.Get("bob")
	assert.Equal(t, []string{"a", "x", "b", "X"}, got, "the last match is replaced")
	assert.Equal(t, []string{"a", "x", "b", "x"}, before, "earlier reads are not mutated")

	assert.False(t, s.Swap("bob", eq("missing"), "?"))
	assert.False(t, s.Swap("nobody", eq("x"), "?"))
	assert.False(t, s.Has("nobody"))
}
