package timerevent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunAndShutdown(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- loop.Run(context.Background())
	}()
	waitForRunning(t, loop)

	if err := loop.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Shutdown")
	}

	if got := loop.State(); got != StateTerminated {
		t.Errorf("state after shutdown = %v, want %v", got, StateTerminated)
	}

	if err := loop.Shutdown(context.Background()); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("second Shutdown() = %v, want ErrLoopTerminated", err)
	}

	if err := loop.Submit(func() {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("Submit() after shutdown = %v, want ErrLoopTerminated", err)
	}
}

func TestLoopRunTwice(t *testing.T) {
	loop := newTestLoop(t)

	if err := loop.Run(context.Background()); !errors.Is(err, ErrLoopAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrLoopAlreadyRunning", err)
	}
}

func TestLoopRunReentrant(t *testing.T) {
	loop := newTestLoop(t)

	result := make(chan error, 1)
	if err := loop.Submit(func() {
		result <- loop.Run(context.Background())
	}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrReentrantRun) {
			t.Errorf("reentrant Run() = %v, want ErrReentrantRun", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("submitted task did not run")
	}
}

func TestLoopSubmitExecutesOnLoopGoroutine(t *testing.T) {
	loop := newTestLoop(t)

	onLoop := make(chan bool, 1)
	if err := loop.Submit(func() {
		onLoop <- loop.isLoopThread()
	}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	select {
	case got := <-onLoop:
		if !got {
			t.Error("submitted task did not run on the loop goroutine")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("submitted task did not run")
	}
}

func TestLoopSubmitNil(t *testing.T) {
	loop := newTestLoop(t)

	if err := loop.Submit(nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("Submit(nil) = %v, want ErrNilCallback", err)
	}
}

func TestLoopContextCancelStops(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- loop.Run(ctx)
	}()
	waitForRunning(t, loop)

	cancel()

	select {
	case err := <-errChan:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after ctx cancellation")
	}
}

func TestLoopShutdownBeforeRun(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := loop.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() before Run failed: %v", err)
	}

	if err := loop.Run(context.Background()); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("Run() after Shutdown = %v, want ErrLoopTerminated", err)
	}
}

func TestLoopTaskPanicLoggedAndLoopContinues(t *testing.T) {
	var errorLogs atomic.Int64
	loop := newTestLoop(t, WithLogger(newCountingLogger(&errorLogs)))

	if err := loop.Submit(func() {
		panic("intentional test panic")
	}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	// Loop must survive the panic and keep dispatching.
	done := make(chan struct{})
	if err := loop.Submit(func() { close(done) }); err != nil {
		t.Fatalf("Submit() after panic failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop stopped dispatching after task panic")
	}

	deadline := time.Now().Add(2 * time.Second)
	for errorLogs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if errorLogs.Load() == 0 {
		t.Error("task panic was not logged at error level")
	}
}

func TestLoopWakeWhileRunning(t *testing.T) {
	loop := newTestLoop(t)

	if err := loop.Wake(); err != nil {
		t.Errorf("Wake() = %v, want nil", err)
	}
}

func TestLoopIDsUnique(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	b, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if a.ID() == b.ID() {
		t.Errorf("loop IDs not unique: %d", a.ID())
	}
	_ = a.Close()
	_ = b.Close()
}
