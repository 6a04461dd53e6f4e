package tagstore

import (
	"errors"
	"fmt"
	"math"
)

// Tag is the correlation identifier of an outstanding request
type Tag = uint32

var (
	// ErrExhausted is returned by Allocate when the store reached its bound
	ErrExhausted = errors.New("tag store exhausted")
	// ErrNotAllocated is returned by Release and Lookup for tags that are not in use
	ErrNotAllocated = errors.New("tag not allocated")
)

// slot is a single arena entry
type slot[T any] struct {
	value T
	used  bool
}

// Store allocates and recycles tags. Indices of the arena are the tags.
type Store[T any] struct {
	slots []slot[T]
	free  []Tag // released tags, reused LIFO
	inUse int
	limit int
}

// MaxLimit is the largest bound a store accepts
const MaxLimit = math.MaxInt32

// NewStore creates a new tag store that holds at most limit tags at once.
// A limit <= 0 or above MaxLimit is clamped to MaxLimit.
func NewStore[T any](limit int) *Store[T] {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	return &Store[T]{limit: limit}
}

// Allocate returns a tag that is currently unused and binds v to it
func (s *Store[T]) Allocate(v T) (Tag, error) {
	if s.inUse >= s.limit {
		return 0, fmt.Errorf("%w: %d tags in use", ErrExhausted, s.inUse)
	}

	var tag Tag
	if n := len(s.free); n > 0 {
		tag = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		tag = Tag(len(s.slots))
		s.slots = append(s.slots, slot[T]{})
	}

	s.slots[tag] = slot[T]{value: v, used: true}
	s.inUse++
	return tag, nil
}

// Release frees the tag and returns the value bound to it.
// Releasing a tag that is not allocated returns ErrNotAllocated and leaves the store unchanged.
func (s *Store[T]) Release(tag Tag) (T, error) {
	var zero T
	if int64(tag) >= int64(len(s.slots)) || !s.slots[tag].used {
		return zero, fmt.Errorf("%w: %d", ErrNotAllocated, tag)
	}

	v := s.slots[tag].value
	s.slots[tag] = slot[T]{}
	s.free = append(s.free, tag)
	s.inUse--
	return v, nil
}

// Lookup returns the value bound to an allocated tag
func (s *Store[T]) Lookup(tag Tag) (T, bool) {
	var zero T
	if int64(tag) >= int64(len(s.slots)) || !s.slots[tag].used {
		return zero, false
	}
	return s.slots[tag].value, true
}

// Len returns the number of allocated tags
func (s *Store[T]) Len() int { return s.inUse }

// Cap returns the maximum number of tags that can be allocated at once
func (s *Store[T]) Cap() int { return s.limit }

// Drain releases every allocated tag and returns the bound values.
// The store is empty (but reusable) afterward.
func (s *Store[T]) Drain() []T {
	values := make([]T, 0, s.inUse)
	for i := range s.slots {
		if s.slots[i].used {
			values = append(values, s.slots[i].value)
		}
	}
	s.slots = nil
	s.free = nil
	s.inUse = 0
	return values
}
