package datastore

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counting wraps a sequence and records how many items were pulled.
func counting[T any](seq iter.Seq2[T, error], pulled *int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			*pulled++
			if !yield(item, err) {
				return
			}
		}
	}
}

func TestTakeDoesNotOverpull(t *testing.T) {
	pulled := 0
	got, err := Collect(take(counting(fromSlice([]int{1, 2, 3, 4, 5}), &pulled), 2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 2, pulled)

	got, err = Collect(take(fromSlice([]int{1}), 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSkipAndFilter(t *testing.T) {
	odd := func(n int) (bool, error) { return n%2 == 1, nil }
	got, err := Collect(skip(filter(fromSlice([]int{1, 2, 3, 4, 5, 7}), odd), 1))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 7}, got)

	got, err = Collect(skip(fromSlice([]int{1, 2}), 5))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFlatMapKeepsOrder(t *testing.T) {
	got, err := Collect(flatMap(fromSlice([]int{1, 2, 3}), func(n int) iter.Seq2[int, error] {
		return fromSlice([]int{n * 10, n*10 + 1})
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 20, 21, 30, 31}, got)
}

func TestErrorsStopTheStream(t *testing.T) {
	boom := errors.New("boom")

	got, err := Collect(lookup(fromSlice([]int{1, 2, 3}), func(n int) (string, bool, error) {
		if n == 2 {
			return "", false, boom
		}
		return "x", true, nil
	}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"x"}, got)

	_, err = Collect(takeWhile(Fail[int](boom), func(int) bool { return true }))
	assert.ErrorIs(t, err, boom)

	_, err = Collect(flatMap(fromSlice([]int{1}), func(int) iter.Seq2[int, error] { return Fail[int](boom) }))
	assert.ErrorIs(t, err, boom)
}

func TestTakeWhile(t *testing.T) {
	got, err := Collect(takeWhile(fromSlice([]int{1, 2, 3, 1}), func(n int) bool { return n < 3 }))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}
