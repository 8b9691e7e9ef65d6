package wire

// Version identifies a SimpleSerial protocol revision.
// The numeric value is what the built-in 'v' command reports.
type Version byte

const (
	// Version10 is the text protocol without acknowledgment.
	Version10 Version = 0

	// Version11 is the text protocol; every command is answered with a 'z' line.
	Version11 Version = 1

	// Version20 is the binary protocol with byte stuffing and CRC-8.
	Version20 Version = 2
)

// String returns the dotted protocol revision.
func (v Version) String() string {
	switch v {
	case Version10:
		return "1.0"
	case Version11:
		return "1.1"
	case Version20:
		return "2.0"
	default:
		return "unknown"
	}
}

// Binary reports whether the revision uses the stuffed binary framing.
func (v Version) Binary() bool {
	return v == Version20
}

// ParseVersion parses "1.0", "1.1" or "2.0" (a leading "v" is accepted).
func ParseVersion(s string) (Version, bool) {
	if len(s) > 0 && (s[0] == 'v' || s[0] == 'V') {
		s = s[1:]
	}
	switch s {
	case "1.0", "1":
		return Version10, true
	case "1.1":
		return Version11, true
	case "2.0", "2":
		return Version20, true
	default:
		return 0, false
	}
}

// Wire constants
const (
	// Sentinel terminates every 2.0 frame and never appears elsewhere on the wire.
	Sentinel byte = 0x00

	// ChecksumConstant is the feedback constant of the CRC-8 used by 2.0 frames.
	ChecksumConstant byte = 0xA6

	// MaxPayload is the size of the target's data buffer.
	MaxPayload = 192

	// MaxCommands is the number of entries a target registry can hold.
	MaxCommands = 16

	// RequestOverhead is the number of framing bytes around a 2.0 request payload:
	// anchor, cmd, scmd, len, crc, terminator.
	RequestOverhead = 6

	// ResponseOverhead is the number of framing bytes around a 2.0 response payload:
	// anchor, id, len, crc, terminator.
	ResponseOverhead = 5

	// MaxFrameLen is the longest 2.0 frame any side may produce or accept.
	// Stuffing offsets are single bytes, so no frame may exceed 255 bytes
	// between two sentinels.
	MaxFrameLen = 255

	// headerLen is the number of 2.0 request bytes read before the payload.
	headerLen = 4
)

// Line terminators of the text protocol
const (
	LF byte = '\n'
	CR byte = '\r'
)

// Command identifiers used by ChipWhisperer firmware.
//
// Host to target:
const (
	CmdSelectHardware byte = 'h' // select stack or hardware
	CmdSetKey         byte = 'k' // set encryption key
	CmdSetMode        byte = 'm' // select cipher mode
	CmdPlaintext      byte = 'p' // send plaintext, run the operation
	CmdAuthChallenge  byte = 't' // authentication challenge
	CmdVersion        byte = 'v' // report protocol version
	CmdListCommands   byte = 'w' // list registered commands (2.0)
	CmdClearBuffers   byte = 'x' // reset to idle
)

// Target to host:
const (
	RespResult byte = 'r' // result data
	RespAck    byte = 'z' // 1.1 acknowledgment carrying the status byte
	RespStatus byte = 'e' // 2.0 status frame carrying the status byte
)
