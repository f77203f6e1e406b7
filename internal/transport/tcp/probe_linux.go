package tcp

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// pending asks the kernel how many bytes are queued on the socket (SIOCINQ).
func (c *Conn) pending() (int, error) {
	if c.raw == nil {
		return c.peekPending(c.probeTimeout)
	}

	var n int
	var opErr error
	if err := c.raw.Control(func(fd uintptr) {
		n, opErr = unix.IoctlGetInt(int(fd), unix.TIOCINQ)
	}); err != nil {
		return 0, err
	}
	return n, opErr
}

// readable polls the socket for read readiness. A hung-up or failed socket is
// reported readable, like a pending EOF.
func (c *Conn) readable(timeout time.Duration) (bool, error) {
	if c.raw == nil {
		return c.peekReadable(timeout)
	}

	var readable bool
	var opErr error
	if err := c.raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err != nil {
			if !errors.Is(err, unix.EINTR) {
				opErr = err
			}
			return
		}
		if n > 0 {
			readable = fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0
		}
	}); err != nil {
		return false, err
	}
	return readable, opErr
}
