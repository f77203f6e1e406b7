package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by writes on a client without a connection.
	ErrNotConnected = errors.New("client is not connected")

	// ErrNoReply is returned when no message arrived within the timeout.
	ErrNoReply = errors.New("no reply received")

	errEmptyHost = errors.New("host is empty")
)

// ConnectError reports a failed Connect.
type ConnectError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
