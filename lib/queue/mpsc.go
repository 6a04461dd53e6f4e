package queue

import (
	"runtime"
	"sync/atomic"
)

type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// MPSC is an unbounded multi-producer single-consumer queue.
//
// Producers link new nodes behind the tail with compare-and-swap. The consumer
// unlinks from the head with Pop and blocks on Ready when the queue is empty.
// The queue owns no goroutine, an abandoned queue is simply garbage collected.
//
// Items of one producer keep their order. Items of concurrent producers are
// ordered by the moment their append succeeded.
type MPSC[T any] struct {
	head atomic.Pointer[node[T]] // consumer side, points at the last popped node
	tail atomic.Pointer[node[T]]

	// holds at most one token, sent after every push and on Close
	notify chan struct{}

	closed atomic.Bool
	pushed atomic.Int64
	popped atomic.Int64
}

// NewMPSC creates an empty queue
func NewMPSC[T any]() *MPSC[T] {
	q := &MPSC[T]{notify: make(chan struct{}, 1)}
	stub := &node[T]{}
	q.head.Store(stub)
	q.tail.Store(stub)
	return q
}

// Push appends value. It returns false for nil values and after Close.
// Push may be called from any number of goroutines.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	for attempt := uint(0); ; attempt++ {
		last := q.tail.Load()
		next := last.next.Load()
		if next != nil {
			// another producer linked its node but has not moved the tail yet
			q.tail.CompareAndSwap(last, next)
			continue
		}
		if last.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(last, n)
			break
		}
		for i := 0; i < 1<<min(attempt, 6); i++ {
			runtime.Gosched()
		}
	}

	q.pushed.Add(1)
	q.signal()
	return true
}

// Pop removes the oldest item. It never blocks and must only be called by the consumer.
func (q *MPSC[T]) Pop() (*T, bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}

	value := next.value
	next.value = nil // next becomes the new stub
	q.head.Store(next)
	q.popped.Add(1)
	return value, true
}

// Ready delivers a token after items were pushed or the queue was closed.
// A token may be stale, the consumer always checks with Pop.
func (q *MPSC[T]) Ready() <-chan struct{} {
	return q.notify
}

// Empty reports whether the consumer has taken every appended item
func (q *MPSC[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}

// Close rejects further pushes. Items already appended can still be popped.
// A Push racing with Close may or may not be accepted.
func (q *MPSC[T]) Close() {
	if !q.closed.Swap(true) {
		q.signal()
	}
}

// IsClosed returns true if the queue is closed
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of queued items (approximate under concurrency)
func (q *MPSC[T]) Len() int {
	return int(q.pushed.Load() - q.popped.Load())
}

func (q *MPSC[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
