// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package future provides a small Promise/Future abstraction over Go
// channels. A Promise is the producer-side handle used to fulfill a Future,
// the consumer-side placeholder for a value that may not yet be available.
//
// The producer side typically looks as follows:
//
//	promise, future := future.Create[T]()
//	go func() {
//	   promise.Fulfill(someOperation())
//	}()
//	return future
//
// If the result is already known, an immediately fulfilled Future can be
// created using Immediate.
package future

// Promise represents the handle used to fulfill a Future.
type Promise[T any] struct {
	C chan<- T
}

// Future represents a placeholder for a value that will be available in the
// future. Futures can only be consumed once.
type Future[T any] struct {
	C <-chan T
}

// Create initializes a new Promise and Future pair. The Promise can be used
// to fulfill the Future, while the Future can be awaited to retrieve the
// result once it is available.
func Create[T any]() (Promise[T], Future[T]) {
	ch := make(chan T, 1)
	return Promise[T]{C: ch}, Future[T]{C: ch}
}

// Immediate creates a Future that is already fulfilled with the given value.
func Immediate[T any](value T) Future[T] {
	ch := make(chan T, 1)
	ch <- value
	close(ch)
	return Future[T]{C: ch}
}

// Fulfill fulfills the Promise with the given value, making it available to
// any awaiting Future.
func (p Promise[T]) Fulfill(value T) {
	p.C <- value
	close(p.C)
}

// Await blocks until the Future is fulfilled and returns the contained value.
func (f Future[T]) Await() T {
	return <-f.C
}
