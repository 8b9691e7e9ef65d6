// Package transport provides the byte streams SimpleSerial runs over:
// serial ports, TCP connections to simulated targets, and a buffered
// Stream that both the host client and the target dispatcher consume.
package transport

import (
	"io"
	"time"
)

// Link is a bidirectional byte stream to a target or a host.
//
// SetReadTimeout bounds every subsequent Read; zero or a negative value
// waits forever. A Read that hits the timeout returns ErrTimeout.
type Link interface {
	io.ReadWriteCloser
	SetReadTimeout(d time.Duration) error
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "simpleserial: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ErrTimeout is returned by Link reads that ran out of time.
// It implements Timeout() bool like net errors do.
var ErrTimeout error = timeoutError{}
