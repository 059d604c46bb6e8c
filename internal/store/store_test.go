package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	Put(s, "hits", []int{1, 2, 3})

	got, err := Get[[]int](s, "hits")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestGetMissingKey(t *testing.T) {
	s := New()
	_, err := Get[int](s, "nope")
	require.ErrorIs(t, err, errkind.ErrMissingKey)
}

func TestGetTypeMismatch(t *testing.T) {
	s := New()
	Put(s, "x", "a string")

	_, err := Get[int](s, "x")
	require.ErrorIs(t, err, errkind.ErrTypeMismatch)
}

func TestHasAndErase(t *testing.T) {
	s := New()
	require.False(t, s.Has("k"))

	Put(s, "k", 1)
	require.True(t, s.Has("k"))

	require.True(t, s.Erase("k"))
	require.False(t, s.Has("k"))
	require.False(t, s.Erase("k"))
}

func TestAny(t *testing.T) {
	s := New()
	_, ok := s.Any("missing")
	require.False(t, ok)

	Put(s, "present", 42)
	v, ok := s.Any("present")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestKeys(t *testing.T) {
	s := New()
	Put(s, "a", 1)
	Put(s, "b", 2)
	require.ElementsMatch(t, []string{"a", "b"}, s.Keys())
}

func TestClearEmptiesStoreButKeepsItUsable(t *testing.T) {
	s := New()
	Put(s, "a", 1)
	Put(s, "b", 2)

	s.Clear()
	require.Empty(t, s.Keys())
	require.False(t, s.Has("a"))

	Put(s, "a", 3)
	got, err := Get[int](s, "a")
	require.NoError(t, err)
	require.Equal(t, 3, got)
}

func TestPutOverwritesExistingValueAndType(t *testing.T) {
	s := New()
	Put(s, "k", 1)
	Put(s, "k", "now a string")

	got, err := Get[string](s, "k")
	require.NoError(t, err)
	require.Equal(t, "now a string", got)
}
