package timerevent

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Task is a unit of work submitted to the loop for execution on the loop
// goroutine.
type Task func()

// Loop is a single-threaded reactor that owns every native timer handle and
// dispatches expirations. It processes, per tick: expired timers (earliest
// deadline first), then submitted tasks, then sleeps until the next deadline
// or a wake-up.
//
// All callback invocations happen on the loop goroutine. [Loop.Submit],
// [Loop.Wake], and the scheduling primitives are safe to call from any
// goroutine.
type Loop struct {
	// Prevent copying
	_ [0]func()

	log *logiface.Logger[logiface.Event]

	// State machine
	state *atomicState

	// Native timer primitive
	timers *timerTable

	// Callback registry (handle → callback record)
	registry *registry

	// Wake-up mechanism
	wake        *loopWaker
	wakePending atomic.Uint32

	// Submitted tasks
	tasksMu sync.Mutex
	tasks   []Task
	taskBuf []Task

	// Goroutine tracking
	loopGoroutineID atomic.Uint64

	// In-flight submit counter for shutdown synchronization
	inflight atomic.Int64

	// Loop termination signaling
	loopDone chan struct{}
	stopOnce sync.Once

	maxPollInterval time.Duration

	id uint64
}

var loopIDCounter atomic.Uint64

// New creates a new reactor loop. The loop does not process anything until
// [Loop.Run] is called.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	wake, err := newLoopWaker()
	if err != nil {
		return nil, err
	}

	return &Loop{
		id:              loopIDCounter.Add(1),
		log:             cfg.logger,
		state:           newAtomicState(),
		timers:          newTimerTable(),
		registry:        newRegistry(),
		wake:            wake,
		maxPollInterval: cfg.maxPollInterval,
		loopDone:        make(chan struct{}),
	}, nil
}

// ID returns the process-unique identifier of this loop.
func (l *Loop) ID() uint64 {
	return l.id
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Run runs the event loop and blocks until fully stopped.
//
// Run blocks until the loop terminates (via Shutdown(), Close(), or ctx
// cancellation). To run in a separate goroutine, use: `go loop.Run(ctx)`.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	// Close loopDone when run exits to signal completion to Shutdown waiters
	defer close(l.loopDone)

	return l.run(ctx)
}

// run is the main loop goroutine.
func (l *Loop) run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	l.log.Debug().
		Uint64("loop", l.id).
		Log("loop started")

	// Watcher goroutine to wake the loop on ctx cancellation
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.requestTermination()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	for {
		if err := ctx.Err(); err != nil {
			l.requestTermination()
			l.drainAndTerminate()
			return err
		}

		if s := l.state.Load(); s == StateTerminating || s == StateTerminated {
			l.drainAndTerminate()
			return nil
		}

		l.tick()
	}
}

// requestTermination moves any non-terminal state to Terminating, waking the
// loop if it is sleeping.
func (l *Loop) requestTermination() {
	for {
		current := l.state.Load()
		if current == StateTerminating || current == StateTerminated {
			return
		}
		if l.state.TryTransition(current, StateTerminating) {
			if current == StateSleeping {
				_ = l.wake.signal()
			}
			return
		}
	}
}

// tick is a single iteration of the event loop.
func (l *Loop) tick() {
	l.runTimers()
	l.runTasks()
	l.sleep()
}

// runTimers executes all expired timers, earliest deadline first.
func (l *Loop) runTimers() {
	now := time.Now()
	for {
		h, entry, ok := l.timers.popExpired(now)
		if !ok {
			return
		}
		if entry == nil {
			continue
		}
		l.safeExecute(func() { entry(h) })
	}
}

// runTasks drains the submitted task queue, reusing the backing array.
func (l *Loop) runTasks() {
	l.tasksMu.Lock()
	if len(l.tasks) == 0 {
		l.tasksMu.Unlock()
		return
	}
	tasks := l.tasks
	l.tasks = l.taskBuf[:0]
	l.taskBuf = tasks[:0]
	l.tasksMu.Unlock()

	for i, t := range tasks {
		l.safeExecute(t)
		tasks[i] = nil
	}
}

// sleep blocks until the next timer deadline, a wake-up, or the max poll
// interval, whichever comes first.
func (l *Loop) sleep() {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	// Quick check for work that arrived after the last drain
	l.tasksMu.Lock()
	pending := len(l.tasks) > 0
	l.tasksMu.Unlock()
	if pending {
		l.state.TryTransition(StateSleeping, StateRunning)
		return
	}

	if l.state.Load() == StateTerminating {
		return
	}

	if err := l.wake.wait(l.pollTimeout()); err != nil {
		l.log.Err().
			Uint64("loop", l.id).
			Err(err).
			Log("wake wait failed, terminating loop")
		l.state.TryTransition(StateSleeping, StateTerminating)
		return
	}
	l.wakePending.Store(0)

	l.state.TryTransition(StateSleeping, StateRunning)
}

// pollTimeout determines how long to block, in milliseconds.
func (l *Loop) pollTimeout() int {
	maxDelay := l.maxPollInterval

	if next, ok := l.timers.nextDeadline(); ok {
		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		if delay < maxDelay {
			maxDelay = delay
		}
	}

	// Ceiling rounding: if 0 < delta < 1ms, round up to 1ms
	if maxDelay > 0 && maxDelay < time.Millisecond {
		return 1
	}

	return int(maxDelay.Milliseconds())
}

// drainAndTerminate performs the shutdown sequence on the loop goroutine.
func (l *Loop) drainAndTerminate() {
	// Terminated first so new submissions are rejected; anything that raced
	// past the state check is caught by the drain below.
	l.state.Store(StateTerminated)

	emptyChecks := 0
	const requiredEmptyChecks = 3
	for emptyChecks < requiredEmptyChecks {
		spinCount := 0
		for l.inflight.Load() > 0 {
			spinCount++
			if spinCount > 1000 {
				time.Sleep(100 * time.Microsecond)
			} else {
				runtime.Gosched()
			}
		}

		l.tasksMu.Lock()
		tasks := l.tasks
		l.tasks = nil
		l.tasksMu.Unlock()

		for _, t := range tasks {
			l.safeExecute(t)
		}

		if len(tasks) > 0 || l.inflight.Load() > 0 {
			emptyChecks = 0
		} else {
			emptyChecks++
			runtime.Gosched()
		}
	}

	l.wake.close()

	l.log.Debug().
		Uint64("loop", l.id).
		Int("live_handles", l.timers.len()).
		Log("loop terminated")
}

// Shutdown gracefully shuts down the event loop.
//
// Shutdown initiates graceful shutdown that drains already-submitted tasks.
// It blocks until termination completes or ctx expires. A second call, or a
// call on an already-terminated loop, returns [ErrLoopTerminated].
func (l *Loop) Shutdown(ctx context.Context) error {
	var initiated bool
	l.stopOnce.Do(func() { initiated = true })
	if !initiated {
		return ErrLoopTerminated
	}

	if l.state.TryTransition(StateAwake, StateTerminated) {
		// Never started; nothing to drain.
		l.wake.close()
		close(l.loopDone)
		return nil
	}
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	l.requestTermination()

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately requests termination without waiting for the loop to
// finish draining.
func (l *Loop) Close() error {
	if l.state.TryTransition(StateAwake, StateTerminated) {
		l.wake.close()
		return nil
	}
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	l.requestTermination()
	return nil
}

// Submit submits a task for execution on the loop goroutine.
//
// Submission is allowed during StateTerminating (the loop drains in-flight
// work before stopping) and rejected only once fully terminated.
func (l *Loop) Submit(task Task) error {
	if task == nil {
		return ErrNilCallback
	}

	// Increment inflight FIRST, before checking state
	l.inflight.Add(1)
	defer l.inflight.Add(-1)

	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	l.tasksMu.Lock()
	l.tasks = append(l.tasks, task)
	l.tasksMu.Unlock()

	if l.state.Load() == StateSleeping {
		if l.wakePending.CompareAndSwap(0, 1) {
			if err := l.wake.signal(); err != nil {
				// Expected during shutdown (EBADF, EPIPE); the task is
				// already queued and the drain will pick it up.
				l.wakePending.Store(0)
			}
		}
	}

	return nil
}

// Wake nudges a sleeping loop. It is a no-op when the loop is running,
// terminating, or terminated.
func (l *Loop) Wake() error {
	if l.state.Load() != StateSleeping {
		return nil
	}

	if l.wakePending.CompareAndSwap(0, 1) {
		if err := l.wake.signal(); err != nil {
			l.wakePending.Store(0)
		}
	}

	return nil
}

// safeExecute executes a task with panic recovery; this is the loop's
// top-level failure policy (log and continue).
func (l *Loop) safeExecute(t Task) {
	if t == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.log.Err().
				Uint64("loop", l.id).
				Err(PanicError{Value: r}).
				Log("task panicked")
		}
	}()

	t()
}

// --- native timer surface consumed by the event layer ---

// allocateTimer allocates a fresh native timer handle.
func (l *Loop) allocateTimer() Handle {
	return l.timers.allocate()
}

// startTimer arms the handle to invoke the firing trampoline after delay,
// then wakes the loop so the new deadline is taken into account. Reports
// false if the handle is not live.
func (l *Loop) startTimer(h Handle, delay time.Duration) bool {
	if !l.timers.start(h, l.fireTimer, delay) {
		return false
	}
	if !l.isLoopThread() {
		_ = l.Wake()
	}
	return true
}

// stopTimer disarms the handle without invalidating it.
func (l *Loop) stopTimer(h Handle) bool {
	return l.timers.stop(h)
}

// releaseTimer returns the handle to the loop; it is invalid afterwards.
func (l *Loop) releaseTimer(h Handle) bool {
	return l.timers.release(h)
}

// attach stores an opaque value on a live handle.
func (l *Loop) attach(h Handle, v any) bool {
	return l.timers.attach(h, v)
}

// attachment recovers the opaque value stored on a handle.
func (l *Loop) attachment(h Handle) (any, bool) {
	return l.timers.attachment(h)
}

// isLoopThread checks if we're on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
