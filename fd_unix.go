//go:build linux || darwin

package timerevent

import (
	"golang.org/x/sys/unix"
)

// closeFD closes a file descriptor on Unix systems.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD reads from a file descriptor on Unix systems.
func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeFD writes to a file descriptor on Unix systems.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// pollFD blocks until the file descriptor is readable or the timeout (in
// milliseconds) elapses. A negative timeout blocks indefinitely. EINTR is
// treated as a spurious wake-up, not an error.
func pollFD(fd int, timeoutMs int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	_, err := unix.Poll(fds, timeoutMs)
	if err == unix.EINTR {
		return nil
	}
	return err
}
