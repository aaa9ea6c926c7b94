package datastore

import (
	"iter"
)

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Fail returns a sequence that yields err once.
func Fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// filter keeps the items for which keep returns true.
func filter[T any](seq iter.Seq2[T, error], keep func(T) (bool, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			ok, err := keep(item)
			if err != nil {
				yield(item, err)
				return
			}
			if ok && !yield(item, nil) {
				return
			}
		}
	}
}

// flatMap replaces every item by the sequence f returns for it, preserving
// upstream order.
func flatMap[T, U any](seq iter.Seq2[T, error], f func(T) iter.Seq2[U, error]) iter.Seq2[U, error] {
	return func(yield func(U, error) bool) {
		var zero U
		for item, err := range seq {
			if err != nil {
				yield(zero, err)
				return
			}
			for out, err := range f(item) {
				if err != nil {
					yield(zero, err)
					return
				}
				if !yield(out, nil) {
					return
				}
			}
		}
	}
}

// lookup maps every item through f, dropping items f reports as absent.
func lookup[T, U any](seq iter.Seq2[T, error], f func(T) (U, bool, error)) iter.Seq2[U, error] {
	return func(yield func(U, error) bool) {
		var zero U
		for item, err := range seq {
			if err != nil {
				yield(zero, err)
				return
			}
			out, ok, err := f(item)
			if err != nil {
				yield(zero, err)
				return
			}
			if ok && !yield(out, nil) {
				return
			}
		}
	}
}

// skip drops the first n items.
func skip[T any](seq iter.Seq2[T, error], n int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		seen := 0
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			if seen < n {
				seen++
				continue
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// take stops after n items without pulling the n+1th from upstream.
func take[T any](seq iter.Seq2[T, error], n int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if n <= 0 {
			return
		}
		count := 0
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			if !yield(item, nil) {
				return
			}
			count++
			if count >= n {
				return
			}
		}
	}
}

// takeWhile stops at the first item for which cont returns false.
func takeWhile[T any](seq iter.Seq2[T, error], cont func(T) bool) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err != nil {
				yield(item, err)
				return
			}
			if !cont(item) || !yield(item, nil) {
				return
			}
		}
	}
}

// fromSlice yields the items of s.
func fromSlice[T any](s []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range s {
			if !yield(item, nil) {
				return
			}
		}
	}
}
