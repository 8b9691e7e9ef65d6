package wire

import "io"

// maxLineLen bounds a 1.x line: identifier, hex digits, optional '\r'.
const maxLineLen = 1 + 2*MaxPayload + 1

// ReadRequest reads and decodes one 2.0 request frame from r.
//
// This is the whole-frame decoder used by tooling and tests; a target
// uses the incremental state machine of the target package instead.
func ReadRequest(r io.ByteReader) (Request, error) {
	frame, err := readFrame(r)
	if err != nil {
		return Request{}, err
	}
	return DecodeRequest(frame)
}

// ReadResponse reads and decodes one 2.0 response frame from r.
//
// Go errors returned:
//   - *ConnectionError: I/O failure (wraps io.EOF when the link closed)
//   - *ProtocolError: malformed frame, stream must be considered out of sync
func ReadResponse(r io.ByteReader) (Response, error) {
	frame, err := readFrame(r)
	if err != nil {
		return Response{}, err
	}
	return DecodeResponse(frame)
}

// readFrame collects bytes up to and including the next Sentinel.
// An oversized frame is skipped up to its terminator so that the next
// read starts on a frame boundary.
func readFrame(r io.ByteReader) ([]byte, error) {
	frame := make([]byte, 0, 32)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, &ConnectionError{Op: "read", Err: err}
		}

		if len(frame) == MaxFrameLen {
			if b == Sentinel {
				return nil, &ProtocolError{Err: ErrFrameTooLong}
			}
			continue
		}

		frame = append(frame, b)
		if b == Sentinel {
			return frame, nil
		}
	}
}

// ReadLine reads one 1.x line and decodes its hex data.
//
// Both "\n" and "\r\n" endings are accepted and blank lines are skipped.
func ReadLine(r io.ByteReader) (Line, error) {
	buf := make([]byte, 0, 16)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Line{}, &ConnectionError{Op: "read", Err: err}
		}

		if b == LF {
			if n := len(buf); n > 0 && buf[n-1] == CR {
				buf = buf[:n-1]
			}
			if len(buf) == 0 {
				continue
			}
			break
		}

		if len(buf) == maxLineLen {
			return Line{}, &ProtocolError{Err: ErrFrameTooLong}
		}
		buf = append(buf, b)
	}

	hex := buf[1:]
	if len(hex)%2 != 0 {
		return Line{}, &ProtocolError{Cmd: buf[0], Err: ErrShortHex}
	}

	data, err := DecodeHex(hex, len(hex)/2)
	if err != nil {
		return Line{}, &ProtocolError{Cmd: buf[0], Err: err}
	}
	return Line{Cmd: buf[0], Data: data}, nil
}
