// Package timerevent provides a timer-event lifecycle layer on top of a
// single-threaded reactor loop, with one-shot delays, cancellable repeating
// intervals, and caller-armed events, all backed by native timer handles
// owned by the loop.
//
// # Architecture
//
// The package is built around a [Loop] core that owns every native timer
// handle, tracks deadlines in a min-heap, and dispatches expirations from a
// single goroutine. Application code never touches handles directly; it works
// with [Event] values produced by the scheduling primitives:
//
//   - [Loop.Delay] schedules a one-shot callback after a delay
//   - [Loop.Interval] schedules a repeating callback as a self-re-arming
//     chain of one-shot delays
//   - [Loop.MakeEvent] creates an event that fires only when explicitly
//     armed via [Event.Arm]
//
// Every fired event is strictly one-shot: the firing path releases the event
// unconditionally after the callback returns, even when the callback panics.
// Repetition is implemented above the native layer, never by the loop itself.
//
// # Event Lifecycle
//
// An [Event] owns exactly one native timer handle. It moves through the
// states Idle, Armed, and Freed; release is the only transition that
// invalidates the handle, and it happens exactly once. Any operation on a
// freed event fails with [EventFreedError]. Handles are never reused.
//
// # Error Containment
//
// Callback failures never escape the firing path. A panic inside a scheduled
// callback is routed to the error handler registered via [WithErrorHandler],
// or, when none is registered, to the loop's top-level policy, which logs and
// continues. The owning event is released on every exit path.
//
// # Thread Safety
//
// Event state transitions and callback invocations happen on the loop
// goroutine. [Loop.Submit] and [Loop.Wake] are safe to call from any
// goroutine, as is arming an event produced by [Loop.MakeEvent]: the arming
// request is handed to the loop thread through the loop's wake-up primitive
// (an eventfd on Linux, a self-pipe on other Unix systems).
//
// # Usage
//
//	loop, err := timerevent.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go loop.Run(context.Background())
//	defer loop.Shutdown(context.Background())
//
//	ev, err := loop.Delay(func() {
//	    fmt.Println("fired")
//	}, 50*time.Millisecond)
package timerevent
