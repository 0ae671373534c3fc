package timerevent

import (
	"container/heap"
	"sync"
	"time"
)

// Handle is an opaque reference to a native timer resource owned by a [Loop].
// Handles are allocated from a monotonically increasing counter and are never
// reused after release.
type Handle uint64

// nativeTimer is one schedulable timer inside the loop. It carries the
// trampoline entry point, the current deadline (meaningful only while armed),
// and an opaque attachment used to bind the handle back to its owner.
type nativeTimer struct {
	data      any
	entry     func(Handle)
	when      time.Time
	handle    Handle
	heapIndex int // -1 while not armed
}

// timerHeap is a min-heap of armed timers, ordered by deadline.
// Index maintenance in Swap enables removal by handle (disarm).
type timerHeap []*nativeTimer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*nativeTimer)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

// timerTable is the native timer primitive: allocate/start/stop/release of
// handles, plus the opaque data attachment used for the handle↔event binding.
// It is guarded by a mutex so timers can be armed from any goroutine; the
// loop wakes when an earlier deadline arrives.
type timerTable struct {
	handles    map[Handle]*nativeTimer
	armed      timerHeap
	nextHandle Handle
	mu         sync.Mutex
}

func newTimerTable() *timerTable {
	return &timerTable{
		handles: make(map[Handle]*nativeTimer),
		armed:   make(timerHeap, 0),
		// Start at 1 so 0 is a null marker.
		nextHandle: 1,
	}
}

// allocate creates a new native timer in the Idle state and returns its handle.
func (t *timerTable) allocate() Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.nextHandle
	t.nextHandle++
	t.handles[h] = &nativeTimer{handle: h, heapIndex: -1}
	return h
}

// attach stores an opaque value on the handle, reporting whether the handle
// is live.
func (t *timerTable) attach(h Handle, v any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	nt, ok := t.handles[h]
	if !ok {
		return false
	}
	nt.data = v
	return true
}

// attachment recovers the opaque value stored on the handle.
func (t *timerTable) attachment(h Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nt, ok := t.handles[h]
	if !ok {
		return nil, false
	}
	return nt.data, true
}

// start arms (or re-arms) the timer so entry fires once the delay elapses.
// There is no native repeat: every armed timer is one-shot, and repetition is
// emulated by the layer above.
func (t *timerTable) start(h Handle, entry func(Handle), delay time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	nt, ok := t.handles[h]
	if !ok {
		return false
	}
	nt.entry = entry
	nt.when = time.Now().Add(delay)
	if nt.heapIndex >= 0 {
		heap.Fix(&t.armed, nt.heapIndex)
	} else {
		heap.Push(&t.armed, nt)
	}
	return true
}

// stop disarms the timer without invalidating the handle.
func (t *timerTable) stop(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	nt, ok := t.handles[h]
	if !ok {
		return false
	}
	if nt.heapIndex >= 0 {
		heap.Remove(&t.armed, nt.heapIndex)
	}
	return true
}

// release disarms the timer and returns the handle to the table. The handle
// is invalid afterwards and is never reissued.
func (t *timerTable) release(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	nt, ok := t.handles[h]
	if !ok {
		return false
	}
	if nt.heapIndex >= 0 {
		heap.Remove(&t.armed, nt.heapIndex)
	}
	nt.data = nil
	nt.entry = nil
	delete(t.handles, h)
	return true
}

// nextDeadline returns the earliest armed deadline, if any.
func (t *timerTable) nextDeadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.armed) == 0 {
		return time.Time{}, false
	}
	return t.armed[0].when, true
}

// popExpired removes and returns the earliest timer whose deadline is at or
// before now. The timer transitions to disarmed but stays live; the firing
// path decides whether to release it.
func (t *timerTable) popExpired(now time.Time) (Handle, func(Handle), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.armed) == 0 || t.armed[0].when.After(now) {
		return 0, nil, false
	}
	nt := heap.Pop(&t.armed).(*nativeTimer)
	return nt.handle, nt.entry, true
}

// len reports the number of live handles, armed or not.
func (t *timerTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
