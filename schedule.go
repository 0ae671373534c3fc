// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package timerevent

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// neverDelay is orders of magnitude longer than any realistic scheduling
// horizon; events armed with it only fire when explicitly re-armed.
const neverDelay = 100 * 365 * 24 * time.Hour

// Delay schedules fn to run once, asynchronously, after delay elapses on the
// loop. It returns the owning [Event], which is released automatically after
// fn returns (or panics); the caller may release it earlier to cancel.
//
// A delay <= 0 still never runs fn inline: the event fires on a later loop
// iteration. Delay fails with [ErrLoopNotRunning] when the loop has not been
// started or has been shut down, allocating no native resource.
//
// Delay is the sole event constructor: [Loop.Interval] and [Loop.MakeEvent]
// are built from it.
func (l *Loop) Delay(fn func(), delay time.Duration, opts ...EventOption) (*Event, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	cfg, err := resolveEventOptions(opts)
	if err != nil {
		return nil, err
	}
	if !l.state.IsRunning() {
		return nil, ErrLoopNotRunning
	}

	h := l.allocateTimer()
	ev := &Event{loop: l, id: xid.New(), handle: h}

	if l.registry.register(h, callbackRecord{callback: fn, errorHandler: cfg.errorHandler}) {
		// Handles are never reused while live; a prior record here is a bug.
		l.log.Warning().
			Uint64("loop", l.id).
			Uint64("handle", uint64(h)).
			Log("callback record overwritten for live handle")
	}
	l.attach(h, ev)

	if delay < 0 {
		delay = 0
	}
	if err := ev.Arm(delay, true); err != nil {
		if !ev.Freed() {
			_ = ev.Release()
		}
		return nil, err
	}

	l.log.Debug().
		Uint64("loop", l.id).
		Stringer("event", ev.id).
		Uint64("handle", uint64(h)).
		Dur("delay", delay).
		Log("event scheduled")
	return ev, nil
}

// MakeEvent creates an event that does not fire on its own: it is armed with
// an effectively unbounded timeout and runs fn only once the caller arms it
// explicitly, e.g. ev.Arm(-1, true). Useful for caller-triggered, possibly
// cross-goroutine, signalling into the loop. Like every delay-produced
// event, it is one-shot: firing consumes it.
func (l *Loop) MakeEvent(fn func(), opts ...EventOption) (*Event, error) {
	return l.Delay(fn, neverDelay, opts...)
}

// intervalPhase is the explicit state of an interval chain.
type intervalPhase uint32

const (
	intervalScheduled intervalPhase = iota
	intervalCancelled
)

// Interval is the cancellable controller of a repeating callback,
// implemented as a self-re-arming chain of one-shot delays. It owns no
// native resource itself; it tracks the event for the next occurrence.
type Interval struct {
	loop         *Loop
	fn           func()
	errorHandler func(error)
	every        time.Duration

	mu      sync.Mutex
	current *Event

	phase atomic.Uint32
}

// Interval schedules fn to run repeatedly, every `every`, until the returned
// controller is cancelled. Each occurrence is scheduled after the previous
// one completes, via [Loop.Delay].
//
// Cancellation takes effect no later than the next re-arming: if it races
// with an in-flight occurrence, at most one further occurrence may already
// be queued and will still run. This bounded over-fire is deliberate.
func (l *Loop) Interval(fn func(), every time.Duration, opts ...EventOption) (*Interval, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	cfg, err := resolveEventOptions(opts)
	if err != nil {
		return nil, err
	}

	iv := &Interval{
		loop:         l,
		fn:           fn,
		errorHandler: cfg.errorHandler,
		every:        every,
	}
	if err := iv.rearm(); err != nil {
		return nil, err
	}
	return iv, nil
}

// RemoveInterval cancels the interval; equivalent to [Interval.Cancel].
func RemoveInterval(iv *Interval) {
	if iv != nil {
		iv.Cancel()
	}
}

// Cancel releases the currently armed event and stops the chain from
// re-arming. Safe to call from any goroutine, including from within the
// interval's own callback, and safe to call more than once.
func (iv *Interval) Cancel() {
	if !iv.phase.CompareAndSwap(uint32(intervalScheduled), uint32(intervalCancelled)) {
		return
	}

	iv.mu.Lock()
	ev := iv.current
	iv.current = nil
	iv.mu.Unlock()

	if ev != nil && !ev.Freed() {
		_ = ev.Release()
	}
}

// Cancelled reports whether the chain has been cancelled.
func (iv *Interval) Cancelled() bool {
	return iv.phase.Load() == uint32(intervalCancelled)
}

// step is the registered callback for each occurrence: run the user action,
// then re-arm unless cancelled. If the user action panics, the unwind skips
// the re-arm and the chain ends (the failure is contained per the event's
// error handler, as with any delay).
func (iv *Interval) step() {
	// Deliberately no cancellation check before fn: an occurrence already
	// in flight when Cancel lands still runs (bounded over-fire).
	iv.fn()

	if iv.Cancelled() {
		return
	}
	if err := iv.rearm(); err != nil {
		// Loop is gone; the chain simply ends.
		iv.loop.log.Debug().
			Uint64("loop", iv.loop.id).
			Err(err).
			Log("interval re-arm failed")
	}
}

// rearm schedules the next occurrence and records it as current, undoing
// itself if cancellation raced in.
func (iv *Interval) rearm() error {
	var opts []EventOption
	if iv.errorHandler != nil {
		opts = append(opts, WithErrorHandler(iv.errorHandler))
	}

	ev, err := iv.loop.Delay(iv.step, iv.every, opts...)
	if err != nil {
		return err
	}

	iv.mu.Lock()
	if iv.Cancelled() {
		iv.mu.Unlock()
		if !ev.Freed() {
			_ = ev.Release()
		}
		return nil
	}
	iv.current = ev
	iv.mu.Unlock()
	return nil
}
