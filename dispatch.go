package timerevent

// fireTimer is the single entry point invoked by the loop when any native
// timer expires. It resolves the firing handle to its owning event and
// callback record, runs the callback inside the containment wrapper, and
// unconditionally releases the event, making every fired event one-shot.
//
// The release is guaranteed on every exit path, including callback panic: it
// runs via defer, outside runContained. The only release skipped is when the
// callback already released the event itself.
func (l *Loop) fireTimer(h Handle) {
	ev, rec := l.resolveFiring(h)

	defer func() {
		if ev.Freed() {
			return
		}
		if err := ev.Release(); err != nil {
			l.log.Err().
				Uint64("loop", l.id).
				Uint64("handle", uint64(h)).
				Err(err).
				Log("post-fire release failed")
		}
	}()

	runContained(rec.errorHandler, rec.callback)
}

// resolveFiring maps a firing handle to its event and callback record. A
// miss means the trampoline fired for a handle whose event was already
// released; that is an internal invariant breach, so it panics with
// [RegistryConsistencyError], which the loop's top-level policy logs.
func (l *Loop) resolveFiring(h Handle) (*Event, callbackRecord) {
	v, ok := l.attachment(h)
	if !ok {
		panic(&RegistryConsistencyError{Handle: h, Missing: "owning event"})
	}
	ev, ok := v.(*Event)
	if !ok || ev == nil {
		panic(&RegistryConsistencyError{Handle: h, Missing: "owning event"})
	}

	rec, ok := l.registry.lookup(h)
	if !ok {
		panic(&RegistryConsistencyError{Handle: h, Missing: "callback record"})
	}

	return ev, rec
}

// runContained executes body such that a failure raised within is routed to
// errorHandler instead of escaping. Without a handler the failure propagates
// to the loop's top-level policy. Either way the registries stay intact and
// the caller's deferred cleanup still runs.
func runContained(errorHandler func(error), body func()) {
	if body == nil {
		return
	}
	if errorHandler == nil {
		body()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			errorHandler(PanicError{Value: r})
		}
	}()

	body()
}
