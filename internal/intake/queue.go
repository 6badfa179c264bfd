// Package intake provides the unbounded FIFO used between producers
// (backend event bridges, the network reader, timers) and single consumers.
package intake

import "sync"

// Queue is an unbounded FIFO. Push never blocks, so it can be called from
// library-owned callback threads and network readers; items are delivered
// in push order on Out().
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	out    chan T
	closed bool
	done   chan struct{}
}

// New creates a queue and starts its delivery goroutine
func New[T any]() *Queue[T] {
	q := &Queue[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Push appends an item. Pushing after Close is a no-op and reports false.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Out returns the delivery channel. It is closed once the queue is closed
// and every pending item has been delivered or discarded.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Len reports the number of items not yet delivered
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items. Pending items are dropped if nobody reads them.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}

func (q *Queue[T]) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-q.wake:
			case <-q.done:
			}
			continue
		}
		item := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- item:
		case <-q.done:
			return
		}
	}
}
