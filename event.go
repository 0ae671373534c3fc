package timerevent

import (
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// Event represents one scheduled, native-timer-backed activity. It
// exclusively owns a single native timer [Handle]; no other component
// retains the handle past release.
//
// An event moves through the states Idle (handle exists, timer not running),
// Armed (timer running), and Freed (terminal). Releasing is the only
// operation that invalidates the handle, and every operation on a freed
// event fails with [EventFreedError].
//
// Events produced by [Loop.Delay] and [Loop.MakeEvent] are strictly one-shot:
// firing always consumes the event.
type Event struct {
	loop   *Loop
	id     xid.ID
	handle Handle
	freed  atomic.Bool
}

// ID returns the process-unique identifier of this event, as used in
// [EventFreedError] and log fields.
func (e *Event) ID() string {
	return e.id.String()
}

// Freed reports whether the event has been released. This is the only
// operation permitted on a freed event.
func (e *Event) Freed() bool {
	return e.freed.Load()
}

// Arm starts or restarts the event's underlying timer.
//
// With timeout >= 0 the event fires once timeout elapses. With timeout < 0
// and activate set, the event is scheduled to fire on the next loop
// iteration; firing is always asynchronous, never inline with the call to
// Arm. With timeout < 0 and activate unset, the timer is left untouched.
//
// Arm is safe to call from any goroutine: the deadline is recorded through
// the loop's thread-safe timer table and the loop is woken; the firing
// itself always happens on the loop goroutine. This is the supported way to
// trigger an event produced by [Loop.MakeEvent] from another goroutine.
func (e *Event) Arm(timeout time.Duration, activate bool) error {
	if e.Freed() {
		return &EventFreedError{EventID: e.ID()}
	}

	switch {
	case timeout >= 0:
	case activate:
		timeout = 0
	default:
		return nil
	}

	if !e.loop.startTimer(e.handle, timeout) {
		// Lost a race with a concurrent release.
		return &EventFreedError{EventID: e.ID()}
	}
	return nil
}

// Disarm stops the underlying timer without freeing the handle; the event
// can be re-armed later. The callback registry stays intact.
func (e *Event) Disarm() error {
	if e.Freed() {
		return &EventFreedError{EventID: e.ID()}
	}
	e.loop.stopTimer(e.handle)
	return nil
}

// Release stops the timer, returns the native handle to the loop, and marks
// the event freed. This is the only operation that invalidates the handle.
//
// Release is not idempotent: a second call on the same event returns
// [EventFreedError].
func (e *Event) Release() error {
	if !e.freed.CompareAndSwap(false, true) {
		return &EventFreedError{EventID: e.ID()}
	}

	e.loop.releaseTimer(e.handle)
	e.loop.registry.unregister(e.handle)

	e.loop.log.Debug().
		Uint64("loop", e.loop.id).
		Stringer("event", e.id).
		Uint64("handle", uint64(e.handle)).
		Log("event released")
	return nil
}
