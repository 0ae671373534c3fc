//go:build !linux && !darwin

package timerevent

import (
	"time"
)

// loopWaker is the thread-safe wake/post primitive. On platforms without
// eventfd/pipe support wired up, it degrades to a buffered channel.
type loopWaker struct {
	ch chan struct{}
}

func newLoopWaker() (*loopWaker, error) {
	return &loopWaker{ch: make(chan struct{}, 1)}, nil
}

// wait blocks until signalled or the timeout (in milliseconds) elapses.
// A negative timeout blocks indefinitely.
func (w *loopWaker) wait(timeoutMs int) error {
	if timeoutMs < 0 {
		<-w.ch
		return nil
	}
	select {
	case <-w.ch:
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
	}
	return nil
}

func (w *loopWaker) drain() {
	select {
	case <-w.ch:
	default:
	}
}

// signal wakes the loop. Never fails on this platform.
func (w *loopWaker) signal() error {
	select {
	case w.ch <- struct{}{}:
	default:
	}
	return nil
}

func (w *loopWaker) close() {}
