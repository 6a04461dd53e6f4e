package queue

import (
	"container/heap"
)

// entry is a buffered item waiting for its turn
type entry[T any] struct {
	seq   uint64
	value T
}

// entryHeap is a min-heap of entries ordered by sequence number (implements heap.Interface)
type entryHeap[T any] []entry[T]

func (h entryHeap[T]) Len() int           { return len(h) }
func (h entryHeap[T]) Less(i, j int) bool { return h[i].seq < h[j].seq }
func (h entryHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) { *h = append(*h, x.(entry[T])) }

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry[T]{} // avoid memory leak
	*h = old[:n-1]
	return e
}

// Reorder releases items in strict sequence order, starting at sequence 0,
// no matter in which order they are added.
//
// Note: Reorder is not thread-safe, it is owned by the consuming goroutine.
type Reorder[T any] struct {
	items   entryHeap[T]
	pending map[uint64]struct{} // sequence numbers currently buffered
	next    uint64
}

// NewReorder creates an empty reorder buffer expecting sequence 0 first
func NewReorder[T any]() *Reorder[T] {
	return &Reorder[T]{pending: make(map[uint64]struct{})}
}

// Add buffers a value under its sequence number.
// It returns false (and drops the value) if the sequence was already released or is already buffered.
func (r *Reorder[T]) Add(seq uint64, value T) bool {
	if seq < r.next {
		return false
	}
	if _, dup := r.pending[seq]; dup {
		return false
	}
	r.pending[seq] = struct{}{}
	heap.Push(&r.items, entry[T]{seq: seq, value: value})
	return true
}

// Pop returns the next value in sequence order if it is already buffered
func (r *Reorder[T]) Pop() (T, bool) {
	var zero T
	if len(r.items) == 0 || r.items[0].seq != r.next {
		return zero, false
	}
	e := heap.Pop(&r.items).(entry[T])
	delete(r.pending, e.seq)
	r.next++
	return e.value, true
}

// Ready removes and returns the run of consecutive values starting at the next expected sequence
func (r *Reorder[T]) Ready() []T {
	var out []T
	for {
		v, ok := r.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// Next returns the sequence number the buffer waits for
func (r *Reorder[T]) Next() uint64 { return r.next }

// Len returns the number of buffered (not yet released) values
func (r *Reorder[T]) Len() int { return len(r.items) }
