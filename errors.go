package timerevent

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("timerevent: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("timerevent: loop has been terminated")

	// ErrLoopNotRunning is returned by the scheduling primitives when no loop
	// is active: it has not been started, or has been shut down. No native
	// resource is allocated when this error is returned.
	ErrLoopNotRunning = errors.New("timerevent: loop is not running")

	// ErrReentrantRun is returned when Run() is called from within the loop itself.
	ErrReentrantRun = errors.New("timerevent: cannot call Run() from within the loop")

	// ErrNilCallback is returned by the scheduling primitives when the
	// callback is nil.
	ErrNilCallback = errors.New("timerevent: nil callback")
)

// EventFreedError is returned by any [Event] operation performed after the
// event has been released. It is always a caller programming error; the
// operation is never retried.
type EventFreedError struct {
	// EventID identifies the offending event, see [Event.ID].
	EventID string
}

// Error implements the error interface.
func (e *EventFreedError) Error() string {
	return fmt.Sprintf("timerevent: operation on freed event %s", e.EventID)
}

// Is implements custom error matching, so any two EventFreedError values
// match via [errors.Is] regardless of the event they name.
func (e *EventFreedError) Is(target error) bool {
	var freedTarget *EventFreedError
	return errors.As(target, &freedTarget)
}

// RegistryConsistencyError indicates the firing path resolved a handle with
// no registered callback record or owning event. It is a contract violation
// within the package, not a recoverable user error; the firing path panics
// with it, and the loop's top-level policy logs it.
type RegistryConsistencyError struct {
	// Handle is the native timer handle that failed to resolve.
	Handle Handle
	// Missing names the association that was absent.
	Missing string
}

// Error implements the error interface.
func (e *RegistryConsistencyError) Error() string {
	return fmt.Sprintf("timerevent: registry inconsistency: handle %d has no %s", e.Handle, e.Missing)
}

// PanicError wraps a value recovered from a panicking callback before it is
// handed to the registered error handler.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("timerevent: callback panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] for error matching
// through the cause chain.
//
// If the panic Value is not an error (e.g., a string or other type),
// returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
