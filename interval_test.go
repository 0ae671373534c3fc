package timerevent

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalRepeats(t *testing.T) {
	loop := newTestLoop(t)

	var count atomic.Int64
	enough := make(chan struct{})
	iv, err := loop.Interval(func() {
		if count.Add(1) == 5 {
			close(enough)
		}
	}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Interval() failed: %v", err)
	}

	select {
	case <-enough:
	case <-time.After(5 * time.Second):
		t.Fatalf("interval ran %d times, want >= 5", count.Load())
	}

	iv.Cancel()
	atCancel := count.Load()

	time.Sleep(100 * time.Millisecond)
	// Bounded over-fire: at most one already-in-flight occurrence may still
	// run after cancellation.
	if got := count.Load(); got > atCancel+1 {
		t.Errorf("interval ran %d times after cancel at %d, want <= %d", got, atCancel, atCancel+1)
	}
	if !iv.Cancelled() {
		t.Error("interval does not report cancelled")
	}
}

func TestIntervalCancelFromOwnCallback(t *testing.T) {
	loop := newTestLoop(t)

	var count atomic.Int64
	var iv *Interval
	var err error
	ready := make(chan struct{})
	done := make(chan struct{}, 1)
	iv, err = loop.Interval(func() {
		<-ready
		if count.Add(1) == 3 {
			iv.Cancel()
			done <- struct{}{}
		}
	}, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Interval() failed: %v", err)
	}
	close(ready)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("interval ran %d times, want 3", count.Load())
	}

	time.Sleep(100 * time.Millisecond)
	if got := count.Load(); got != 3 {
		t.Errorf("interval ran %d times after self-cancel, want 3", got)
	}
}

func TestIntervalCancelIdempotent(t *testing.T) {
	loop := newTestLoop(t)

	iv, err := loop.Interval(func() {}, time.Hour)
	if err != nil {
		t.Fatalf("Interval() failed: %v", err)
	}

	iv.Cancel()
	iv.Cancel()
	RemoveInterval(iv)

	if got := loop.timers.len(); got != 0 {
		t.Errorf("timer table has %d live handles after cancel, want 0", got)
	}
}

func TestRemoveIntervalNil(t *testing.T) {
	RemoveInterval(nil)
}

func TestIntervalNilCallback(t *testing.T) {
	loop := newTestLoop(t)

	if _, err := loop.Interval(nil, time.Millisecond); !errors.Is(err, ErrNilCallback) {
		t.Errorf("Interval(nil) = %v, want ErrNilCallback", err)
	}
}

func TestIntervalWithoutLoop(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Close()

	if _, err := loop.Interval(func() {}, time.Millisecond); !errors.Is(err, ErrLoopNotRunning) {
		t.Errorf("Interval() without running loop = %v, want ErrLoopNotRunning", err)
	}
}

func TestIntervalPanicEndsChain(t *testing.T) {
	loop := newTestLoop(t)

	var count atomic.Int64
	handled := make(chan error, 1)
	_, err := loop.Interval(func() {
		count.Add(1)
		panic("interval failure")
	}, 5*time.Millisecond, WithErrorHandler(func(err error) {
		handled <- err
	}))
	if err != nil {
		t.Fatalf("Interval() failed: %v", err)
	}

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("error handler was not invoked")
	}

	// The unwind skips the re-arm: the chain ends with the failure.
	time.Sleep(100 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("interval ran %d times after failing occurrence, want 1", got)
	}
}

func TestIntervalCancelReleasesCurrentEvent(t *testing.T) {
	loop := newTestLoop(t)

	iv, err := loop.Interval(func() {}, time.Hour)
	if err != nil {
		t.Fatalf("Interval() failed: %v", err)
	}

	iv.mu.Lock()
	current := iv.current
	iv.mu.Unlock()
	if current == nil {
		t.Fatal("interval has no current event")
	}

	iv.Cancel()
	if !current.Freed() {
		t.Error("cancel did not release the armed event")
	}
}
