// Package queue provides the two queueing primitives used by the server
// engine to turn concurrently completing handlers into one ordered outbound
// stream.
//
// Key Components:
//
//   - MPSC: a lock-free multi-producer single-consumer queue. Handler
//     goroutines push completed responses, the single writer goroutine of a
//     connection pops them in batches and sleeps on Ready in between. The
//     queue starts no goroutine of its own.
//
//   - Reorder: a sequence-keyed reorder buffer built on container/heap.
//     Items arrive out of order and leave strictly in sequence order, which is
//     how the pipelined server restores request order.
package queue
