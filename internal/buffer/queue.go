// Package buffer provides an unbounded, ordered, goroutine-safe FIFO queue.
//
// Producers never block: the ring doubles once it is 70% full. Consumers
// either block in Pop or drain batches with PopBatch.
package buffer

import "sync"

// Queue is an unbounded FIFO queue backed by a growable ring.
type Queue[T any] struct {
	mu     sync.Mutex
	ready  *sync.Cond
	ring   []T
	head   int
	count  int
	closed bool

	pushed int64
	popped int64
	grows  int
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Len    int
	Cap    int
	Pushed int64
	Popped int64
	Grows  int
}

// New creates a queue with the given initial ring size.
func New[T any](size int) *Queue[T] {
	if size < 2 {
		size = 2
	}
	q := &Queue[T]{ring: make([]T, size)}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail. It returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if (q.count+1)*10 >= len(q.ring)*7 {
		q.grow()
	}

	q.ring[(q.head+q.count)%len(q.ring)] = item
	q.count++
	q.pushed++
	q.ready.Signal()
	return true
}

// Pop removes the head item, blocking until one is available. It returns
// false when the queue is closed and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.ready.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// TryPop removes the head item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// PopBatch removes up to max items (all items when max <= 0) without blocking.
func (q *Queue[T]) PopBatch(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = q.take()
	}
	return out
}

// Close stops accepting new items and wakes blocked consumers. Items already
// queued remain available.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.ready.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:    q.count,
		Cap:    len(q.ring),
		Pushed: q.pushed,
		Popped: q.popped,
		Grows:  q.grows,
	}
}

// take pops the head. Caller holds mu and has checked count > 0.
func (q *Queue[T]) take() T {
	var zero T
	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.popped++
	return item
}

// grow doubles the ring, unwrapping it so head is at zero. Caller holds mu.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.ring)*2)
	for i := 0; i < q.count; i++ {
		next[i] = q.ring[(q.head+i)%len(q.ring)]
	}
	q.ring = next
	q.head = 0
	q.grows++
}
