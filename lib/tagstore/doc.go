// Package tagstore provides the correlation tag allocator used by the
// multiplexed transport. A tag is a small unsigned integer that identifies one
// outstanding request on one connection.
//
// The package focuses on:
//   - Uniqueness: a tag is never handed out twice while it is allocated
//   - Maximal reuse: released tags are recycled before new ones are minted
//   - Explicit desynchronization reporting: releasing a tag that is not
//     allocated is an error, never a silent no-op
//
// Key Components:
//
//   - Store: an index-stable arena with a free list of released indices.
//     Each allocated tag carries a value (the pending call bound to it), so the
//     store doubles as the pending call table of a connection.
//
// Thread Safety:
//
//	Store is not safe for concurrent use. The transport wraps tag allocation
//	and table insertion in a single critical section.
package tagstore
