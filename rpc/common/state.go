package common

// ConnState is the state of an engine bound to one connection.
// Transitions are monotonic: a Closed or Failed engine never becomes usable again.
type ConnState uint8

const (
	// Client states
	StateIdle             ConnState = iota // no outstanding calls
	StateAwaitingCapacity                  // callers wait for a free slot
	StateActive                            // calls are outstanding

	// Server states
	StateListening   // reading requests, no handler running
	StateDispatching // handlers are running
	StateDraining    // the peer closed, in-flight handlers finish

	// Shared states
	StateClosing // teardown started
	StateClosed  // terminated without error
	StateFailed  // terminated by a fatal error
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCapacity:
		return "awaiting capacity"
	case StateActive:
		return "active"
	case StateListening:
		return "listening"
	case StateDispatching:
		return "dispatching"
	case StateDraining:
		return "draining"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns true for Closed and Failed
func (s ConnState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
