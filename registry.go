package timerevent

import (
	"sync"
)

// callbackRecord is the pair of user actions registered for a live handle.
// Exactly one record exists per live handle; it is removed when the owning
// event is released.
type callbackRecord struct {
	// callback runs when the timer fires.
	callback func()
	// errorHandler, if non-nil, receives a failure captured from callback
	// instead of letting it propagate.
	errorHandler func(error)
}

// registry associates native timer handles with their callback records.
//
// It is keyed by handle identity rather than event identity because the
// native firing path only has the handle, not the event, at invocation time.
// The handle→event binding itself rides the timer table's opaque attachment.
type registry struct {
	records map[Handle]callbackRecord
	mu      sync.RWMutex
}

func newRegistry() *registry {
	return &registry{
		records: make(map[Handle]callbackRecord),
	}
}

// register stores the record for a handle, reporting whether a prior record
// was overwritten. Handles are never reused while live, so overwrite
// indicates a programming error; the caller logs it.
func (r *registry) register(h Handle, rec callbackRecord) (replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced = r.records[h]
	r.records[h] = rec
	return replaced
}

// lookup returns the record registered for a handle.
func (r *registry) lookup(h Handle) (callbackRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[h]
	return rec, ok
}

// unregister removes the record for a handle. Called on event release.
func (r *registry) unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, h)
}

// len reports the number of registered records.
func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
