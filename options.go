// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package timerevent

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger          *logiface.Logger[logiface.Event]
	maxPollInterval time.Duration
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger attaches a structured logger to the loop. All internal logging
// (panic recovery, registry inconsistencies, lifecycle transitions) goes
// through it. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxPollInterval caps how long the loop sleeps when no timer deadline is
// due sooner. The default is 10 seconds.
func WithMaxPollInterval(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return errors.New("timerevent: max poll interval must be positive")
		}
		opts.maxPollInterval = d
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		maxPollInterval: 10 * time.Second, // default
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Event Options ---

// eventOptions holds configuration options for the scheduling primitives.
type eventOptions struct {
	errorHandler func(error)
}

// EventOption configures an event produced by [Loop.Delay], [Loop.Interval],
// or [Loop.MakeEvent].
type EventOption interface {
	applyEvent(*eventOptions) error
}

// eventOptionImpl implements EventOption.
type eventOptionImpl struct {
	applyEventFunc func(*eventOptions) error
}

func (e *eventOptionImpl) applyEvent(opts *eventOptions) error {
	return e.applyEventFunc(opts)
}

// WithErrorHandler registers a handler invoked with a failure captured from
// the event's callback, instead of letting it propagate to the loop's
// top-level policy. The recovered value is wrapped in [PanicError].
func WithErrorHandler(handler func(error)) EventOption {
	return &eventOptionImpl{func(opts *eventOptions) error {
		opts.errorHandler = handler
		return nil
	}}
}

// resolveEventOptions applies EventOption instances to eventOptions.
func resolveEventOptions(opts []EventOption) (*eventOptions, error) {
	cfg := &eventOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEvent(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
