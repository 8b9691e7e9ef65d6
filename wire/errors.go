package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for every way a frame can be rejected.
// Compare with errors.Is; the typed errors below wrap them.
var (
	// 2.0 framing, each reported to the host with its own Status
	ErrSentinelInHeader  = errors.New("simpleserial: sentinel byte in header")
	ErrUnknownCommand    = errors.New("simpleserial: unknown command")
	ErrDeclaredLength    = errors.New("simpleserial: declared length inconsistent with frame")
	ErrSentinelInPayload = errors.New("simpleserial: sentinel byte in payload")
	ErrMissingTerminator = errors.New("simpleserial: missing frame terminator")
	ErrChecksumMismatch  = errors.New("simpleserial: checksum mismatch")
	ErrTimeout           = errors.New("simpleserial: timeout inside frame")

	// 1.x line framing, never reported on the wire
	ErrPrematureTerminator = errors.New("simpleserial: line terminator before end of payload")
	ErrIllegalHexDigit     = errors.New("simpleserial: illegal hex digit")
	ErrShortHex            = errors.New("simpleserial: not enough hex digits")

	// Encoding and host-side decoding
	ErrPayloadTooLarge = errors.New("simpleserial: payload exceeds maximum size")
	ErrFrameTooLong    = errors.New("simpleserial: frame exceeds maximum length")
	ErrFrameTooShort   = errors.New("simpleserial: frame too short")
)

// ProtocolError reports a frame that could not be decoded or was rejected
// by the framing layer.
//
// On a target, the dispatcher returns it after reporting Status to the
// host (2.0) or after silently dropping the request (1.x).
// On a host, it means the response stream is out of sync.
//
// Connection handling: CLOSE (host side), the stream position is unknown.
type ProtocolError struct {
	Status Status // StatusOK when the failure has no wire code (1.x errors)
	Cmd    byte   // command byte when known, 0 otherwise
	Err    error  // one of the Err* sentinels
}

func (e *ProtocolError) Error() string {
	if e.Status.IsProtocol() {
		return fmt.Sprintf("%v (status 0x%02X)", e.Err, byte(e.Status))
	}
	return e.Err.Error()
}

// Unwrap returns the underlying sentinel for errors.Is
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the stream is out of sync
func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// NewProtocolError builds the error matching a wire status.
func NewProtocolError(status Status, cmd byte) *ProtocolError {
	err := status.Err()
	if err == nil {
		err = fmt.Errorf("simpleserial: %v", status)
	}
	return &ProtocolError{Status: status, Cmd: cmd, Err: err}
}

// StatusError is returned on the host when a target answered a request
// with a non-OK status.
//
// Connection handling: the exchange completed, the link can be REUSED.
type StatusError struct {
	Cmd    byte
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("simpleserial: command %q failed: %v", e.Cmd, e.Status)
}

// Unwrap exposes the protocol sentinel when the target reported a framing failure.
func (e *StatusError) Unwrap() error {
	return e.Status.Err()
}

// ShouldCloseConnection returns false - the target answered in sync
func (e *StatusError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps I/O errors from the underlying link.
//
// Connection handling: the link is broken, CLOSE and reopen.
type ConnectionError struct {
	Op  string // read, write, flush, open
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("simpleserial: connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean the link is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by every error type of this package.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves a link in a state where
// it must be closed. Unknown error types are treated conservatively.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
