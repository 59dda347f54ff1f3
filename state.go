package coopsched

import (
	"sync/atomic"
)

// State represents the current state of the scheduler driver.
//
// State Machine:
//
//	StateIdle → StateRunning           [RunUntilIdle() / RunForever()]
//	StateRunning → StateParked         [driver waits for work via CAS]
//	StateParked → StateRunning         [wake via CAS]
//	StateRunning → StateIdle           [RunUntilIdle() drained everything]
//	StateIdle → StateTerminated        [Shutdown()/Close() with no driver running]
//	StateRunning → StateTerminating    [Shutdown()/Close()]
//	StateParked → StateTerminating     [Shutdown()/Close()]
//	StateTerminating → StateTerminated [driver observed the request]
//	StateTerminated → (terminal)
//
// Transition Rules:
//   - Use TryTransition() (CAS) for reversible states (Running, Parked, Idle)
//   - Use Store() only for the irreversible StateTerminated
type State uint64

const (
	// StateIdle indicates no driver loop is running. Work may still be
	// queued; it will be processed by the next RunUntilIdle/RunForever call.
	StateIdle State = iota
	// StateRunning indicates the driver is actively processing work.
	StateRunning
	// StateParked indicates the driver is waiting for new work or the next
	// eligible timer.
	StateParked
	// StateTerminating indicates shutdown has been requested but the driver
	// has not yet observed it.
	StateTerminating
	// StateTerminated indicates the scheduler has been stopped permanently.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateParked:
		return "Parked"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// schedState is a lock-free state machine using atomic CAS operations.
type schedState struct {
	v atomic.Uint64
}

func newSchedState() *schedState {
	s := &schedState{}
	s.v.Store(uint64(StateIdle))
	return s
}

// Load returns the current state atomically.
func (s *schedState) Load() State {
	return State(s.v.Load())
}

// Store atomically stores a new state, without transition validation.
func (s *schedState) Store(state State) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *schedState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the current state is terminal.
func (s *schedState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
