// Package spsc implements a bounded lock-free single-producer/single-consumer queue.
package spsc

import (
	"sync/atomic"
)

// Queue is a fixed capacity FIFO that can be used by exactly one
// producer goroutine and exactly one consumer goroutine without locks.
//
// The head cursor is written only by the consumer, the tail cursor only
// by the producer. Both are published with atomic stores, so the consumer
// never observes a tail advance before the element it covers is written.
type Queue[T any] struct {
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
	_    [56]byte

	mask  uint64
	items []T
}

// New creates a queue that can hold at least capacity elements.
// The capacity is rounded up to a power of two.
func New[T any](capacity int) *Queue[T] {
	size := uint64(1)
	for size < uint64(max(capacity, 1)) {
		size <<= 1
	}
	return &Queue[T]{
		mask:  size - 1,
		items: make([]T, size),
	}
}

func (q *Queue[T]) Cap() int { return len(q.items) }

// Len reports the number of queued elements.
// The result is only a snapshot when called concurrently.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Push appends v to the queue.
// It returns false if the queue is full; v is dropped in that case.
//
// Push must only be called by the producer.
func (q *Queue[T]) Push(v T) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == uint64(len(q.items)) {
		return false
	}
	q.items[tail&q.mask] = v
	q.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest element from the queue.
//
// Pop must only be called by the consumer.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	head := q.head.Load()
	if head == q.tail.Load() {
		return zero, false
	}
	v := q.items[head&q.mask]
	q.items[head&q.mask] = zero
	q.head.Store(head + 1)
	return v, true
}
