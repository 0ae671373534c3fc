//go:build linux || darwin

package timerevent

// loopWaker is the thread-safe wake/post primitive: any goroutine may signal
// it, and the sleeping loop thread wakes. On Unix it is an eventfd (Linux) or
// a self-pipe (Darwin); the loop sleeps in poll on the read end.
type loopWaker struct {
	readFD  int
	writeFD int
	buf     [8]byte
}

func newLoopWaker() (*loopWaker, error) {
	readFD, writeFD, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &loopWaker{readFD: readFD, writeFD: writeFD}, nil
}

// wait blocks until signalled or the timeout (in milliseconds) elapses, then
// drains any pending signals. A negative timeout blocks indefinitely.
func (w *loopWaker) wait(timeoutMs int) error {
	if err := pollFD(w.readFD, timeoutMs); err != nil {
		return err
	}
	w.drain()
	return nil
}

// drain consumes all pending wake-up signals.
func (w *loopWaker) drain() {
	for {
		if _, err := readFD(w.readFD, w.buf[:]); err != nil {
			return
		}
	}
}

// signal wakes the loop. Write errors during shutdown (EBADF, EPIPE) are
// expected when the descriptors close; callers handle them gracefully.
func (w *loopWaker) signal() error {
	// Eventfd counter increment; also a valid 8-byte pipe write.
	var buf = [8]byte{1}
	_, err := writeFD(w.writeFD, buf[:])
	return err
}

func (w *loopWaker) close() {
	_ = closeFD(w.readFD)
	if w.writeFD != w.readFD {
		_ = closeFD(w.writeFD)
	}
}
