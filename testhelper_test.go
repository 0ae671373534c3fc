package timerevent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
)

// newTestLoop starts a loop in a background goroutine, waits until it is
// processing, and registers cleanup that stops it and verifies Run's result.
func newTestLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()

	loop, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- loop.Run(ctx)
	}()

	waitForRunning(t, loop)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Run() error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("loop did not stop within 5s")
		}
	})

	return loop
}

// waitForRunning blocks until the loop reaches Running or Sleeping.
func waitForRunning(t *testing.T, loop *Loop) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := loop.State(); s == StateRunning || s == StateSleeping {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("loop did not start within 2s, state=%v", loop.State())
}

// testEvent is a minimal logiface.Event implementation for test loggers.
type testEvent struct {
	logiface.UnimplementedEvent
	level logiface.Level
}

func (e *testEvent) Level() logiface.Level        { return e.level }
func (e *testEvent) AddField(key string, val any) {}

// newTestEventFactory returns an event factory backing test loggers.
func newTestEventFactory() logiface.EventFactoryFunc[logiface.Event] {
	return func(level logiface.Level) logiface.Event {
		return &testEvent{level: level}
	}
}

// newCountingLogger returns a logger that counts written events per level.
func newCountingLogger(errorCount *atomic.Int64) *logiface.Logger[logiface.Event] {
	return logiface.New[logiface.Event](
		logiface.WithEventFactory[logiface.Event](newTestEventFactory()),
		logiface.WithWriter[logiface.Event](logiface.NewWriterFunc(func(event logiface.Event) error {
			if event.Level() == logiface.LevelError {
				errorCount.Add(1)
			}
			return nil
		})),
	)
}
