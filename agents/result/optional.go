/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

// Optional holds a value that a successful call may legitimately not
// produce. It keeps "nothing produced" apart from "the call failed", which is
// reported through an error instead.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a produced value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None is the empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether one was produced.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Present reports whether a value was produced.
func (o Optional[T]) Present() bool {
	return o.ok
}
