package util

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)

// Queue is a bounded FIFO handoff between producers and worker goroutines.
// Push never blocks: a full queue rejects the item so that callers on the
// request path are never stalled by a slow consumer.
type Queue[T any] struct {
	ch     chan T
	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		ch: make(chan T, capacity),
	}
}

// Push enqueues an item without blocking.
func (q *Queue[T]) Push(value T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- value:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop blocks until an item is available, the queue is drained and closed, or
// the context is cancelled.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	select {
	case value, ok := <-q.ch:
		if !ok {
			return zero, ErrQueueClosed
		}
		return value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops accepting new items. Queued items remain poppable until the
// queue is drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
