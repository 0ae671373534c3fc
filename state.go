package timerevent

import (
	"sync/atomic"
)

// LoopState represents the current state of the reactor loop.
//
// State machine:
//
//	StateAwake → StateRunning            [Run()]
//	StateRunning ⇄ StateSleeping         [sleep()/wake, via CAS]
//	StateRunning → StateTerminating      [Shutdown()/Close()/ctx]
//	StateSleeping → StateTerminating     [Shutdown()/Close()]
//	StateAwake → StateTerminated         [Shutdown() before Run()]
//	StateTerminating → StateTerminated   [drain complete]
//
// Transition rules:
//   - Use TryTransition (CAS) for reversible states (Running, Sleeping)
//   - Use Store only for the irreversible transition to Terminated
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = iota
	// StateRunning indicates the loop is actively processing timers and tasks.
	StateRunning
	// StateSleeping indicates the loop is blocked waiting for a timer
	// deadline or a wake-up.
	StateSleeping
	// StateTerminating indicates shutdown has been requested but the loop is
	// still draining.
	StateTerminating
	// StateTerminated indicates the loop is fully stopped. Terminal.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// atomicState is a lock-free state machine over LoopState values.
type atomicState struct {
	v atomic.Uint64
}

func newAtomicState() *atomicState {
	s := &atomicState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *atomicState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state. Reserved for irreversible
// transitions; using it for Running or Sleeping would break the CAS logic.
func (s *atomicState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another,
// reporting whether it succeeded.
func (s *atomicState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsRunning returns true if the loop is currently running or sleeping.
func (s *atomicState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}
