//go:build !linux

package tcp

import "time"

func (c *Conn) pending() (int, error) {
	return c.peekPending(c.probeTimeout)
}

func (c *Conn) readable(timeout time.Duration) (bool, error) {
	return c.peekReadable(timeout)
}
