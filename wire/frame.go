package wire

// Request is a host to target command.
// SubCmd is only carried by 2.0 frames.
type Request struct {
	Cmd    byte
	SubCmd byte
	Data   []byte
}

// Response is a target to host frame: a result ('r'), a 2.0 status ('e')
// or a 1.1 acknowledgment ('z').
type Response struct {
	Cmd  byte
	Data []byte
}

// Status returns the status byte carried by an 'e' or 'z' response.
// ok is false for any other response or a malformed one.
func (r *Response) Status() (status Status, ok bool) {
	if (r.Cmd != RespStatus && r.Cmd != RespAck) || len(r.Data) != 1 {
		return 0, false
	}
	return Status(r.Data[0]), true
}

// IsStatus reports whether the response terminates a 2.0 exchange.
func (r *Response) IsStatus() bool {
	return r.Cmd == RespStatus
}

// IsResult reports whether the response carries result data.
func (r *Response) IsResult() bool {
	return r.Cmd == RespResult
}

// AppendRequest appends the stuffed 2.0 encoding of req to dst:
//
//	[anchor, cmd, scmd, len, data..., crc, 0x00]
func AppendRequest(dst []byte, req Request) ([]byte, error) {
	if len(req.Data) > MaxPayload {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst, Sentinel, req.Cmd, req.SubCmd, byte(len(req.Data)))
	dst = append(dst, req.Data...)
	return sealFrame(dst, start), nil
}

// AppendResponse appends the stuffed 2.0 encoding of resp to dst:
//
//	[anchor, id, len, data..., crc, 0x00]
func AppendResponse(dst []byte, resp Response) ([]byte, error) {
	if len(resp.Data) > MaxPayload {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst, Sentinel, resp.Cmd, byte(len(resp.Data)))
	dst = append(dst, resp.Data...)
	return sealFrame(dst, start), nil
}

// sealFrame adds the checksum over everything after the anchor, the
// terminator, and stuffs the frame that begins at dst[start].
func sealFrame(dst []byte, start int) []byte {
	dst = append(dst, Checksum(dst[start+1:]), Sentinel)
	Stuff(dst[start:])
	return dst
}

// DecodeRequest decodes one complete stuffed 2.0 request frame, terminator
// included. frame is unstuffed in place.
func DecodeRequest(frame []byte) (Request, error) {
	body, err := openFrame(frame, RequestOverhead)
	if err != nil {
		return Request{}, err
	}

	// body: cmd, scmd, len, data...
	n := int(body[2])
	if n+3 != len(body) {
		return Request{}, &ProtocolError{Status: StatusDeclaredLengthInconsistent, Cmd: body[0], Err: ErrDeclaredLength}
	}
	return Request{Cmd: body[0], SubCmd: body[1], Data: body[3:]}, nil
}

// DecodeResponse decodes one complete stuffed 2.0 response frame, terminator
// included. frame is unstuffed in place.
func DecodeResponse(frame []byte) (Response, error) {
	body, err := openFrame(frame, ResponseOverhead)
	if err != nil {
		return Response{}, err
	}

	// body: id, len, data...
	n := int(body[1])
	if n+2 != len(body) {
		return Response{}, &ProtocolError{Status: StatusDeclaredLengthInconsistent, Cmd: body[0], Err: ErrDeclaredLength}
	}
	return Response{Cmd: body[0], Data: body[2:]}, nil
}

// openFrame checks the terminator, unstuffs, verifies the checksum and
// returns the bytes between the anchor and the checksum.
func openFrame(frame []byte, overhead int) ([]byte, error) {
	if len(frame) < overhead {
		return nil, &ProtocolError{Err: ErrFrameTooShort}
	}
	if len(frame) > MaxFrameLen {
		return nil, &ProtocolError{Err: ErrFrameTooLong}
	}

	last := len(frame) - 1
	if frame[last] != Sentinel {
		return nil, &ProtocolError{Status: StatusMissingTerminator, Err: ErrMissingTerminator}
	}
	for i := 0; i < last; i++ {
		if frame[i] == Sentinel {
			return nil, &ProtocolError{Status: StatusSentinelInPayload, Err: ErrSentinelInPayload}
		}
	}

	Unstuff(frame)

	crcAt := last - 1
	if Checksum(frame[1:crcAt]) != frame[crcAt] {
		return nil, &ProtocolError{Status: StatusChecksumMismatch, Cmd: frame[1], Err: ErrChecksumMismatch}
	}
	return frame[1:crcAt], nil
}

// Line is one decoded 1.x text line: an identifier followed by hex data.
type Line struct {
	Cmd  byte
	Data []byte
}

// AppendLine appends the 1.x encoding of a line to dst: id, hex digits, '\n'.
func AppendLine(dst []byte, cmd byte, data []byte) []byte {
	dst = append(dst, cmd)
	dst = AppendHex(dst, data)
	return append(dst, LF)
}
