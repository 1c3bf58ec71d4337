// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package result

// Result couples a value with an error into a single assignable unit. It is
// used where exactly one type is needed to describe the outcome of an
// operation, for instance as the element type of channels or futures
// reporting completion of background work.
type Result[T any] struct {
	value T
	err   error
}

// Ok creates a Result representing a successful outcome with the given value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err creates a Result representing a failed outcome with the given error.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Wrap combines a value and an error, as typically returned by a function
// call, into a Result.
func Wrap[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

// Get returns the value and error contained in the Result. Using this
// function forces the caller to handle potential errors.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}
