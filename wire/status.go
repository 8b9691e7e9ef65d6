package wire

import "fmt"

// Status is the byte a 2.0 target sends back in its 'e' frame, and the byte
// a 1.1 target sends back in its 'z' line.
//
// Codes below 0x10 are reserved for the protocol layer and are stable so
// that host tooling can decode failures without looking at payloads.
// Handler statuses are forwarded verbatim and may use any value.
type Status byte

// Protocol status codes
const (
	StatusOK                         Status = 0x00
	StatusUnknownCommand             Status = 0x01
	StatusChecksumMismatch           Status = 0x02
	StatusTimeout                    Status = 0x03
	StatusDeclaredLengthInconsistent Status = 0x04
	StatusSentinelInHeader           Status = 0x05
	StatusSentinelInPayload          Status = 0x06
	StatusMissingTerminator          Status = 0x07
)

// FirstHandlerStatus is the lowest status code not used by the protocol layer.
const FirstHandlerStatus Status = 0x10

var statusNames = map[Status]string{
	StatusOK:                         "ok",
	StatusUnknownCommand:             "unknown command",
	StatusChecksumMismatch:           "checksum mismatch",
	StatusTimeout:                    "timeout",
	StatusDeclaredLengthInconsistent: "declared length inconsistent",
	StatusSentinelInHeader:           "sentinel in header",
	StatusSentinelInPayload:          "sentinel in payload",
	StatusMissingTerminator:          "missing terminator",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status 0x%02X", byte(s))
}

// IsOK reports whether s is StatusOK.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// IsProtocol reports whether s is one of the codes produced by the framing layer
// rather than by a command handler.
func (s Status) IsProtocol() bool {
	return s != StatusOK && s < FirstHandlerStatus
}

// Err returns the sentinel error matching a protocol status, or nil for
// StatusOK and handler-defined statuses.
func (s Status) Err() error {
	switch s {
	case StatusUnknownCommand:
		return ErrUnknownCommand
	case StatusChecksumMismatch:
		return ErrChecksumMismatch
	case StatusTimeout:
		return ErrTimeout
	case StatusDeclaredLengthInconsistent:
		return ErrDeclaredLength
	case StatusSentinelInHeader:
		return ErrSentinelInHeader
	case StatusSentinelInPayload:
		return ErrSentinelInPayload
	case StatusMissingTerminator:
		return ErrMissingTerminator
	default:
		return nil
	}
}
