// Package wire implements the SimpleSerial wire formats used between a
// capture host and a target board over a UART.
//
// It covers both protocol families:
//
//   - 1.x: text lines, one command character followed by hex digits and a
//     newline. 1.1 answers every command with a 'z' acknowledgment line.
//   - 2.0: binary frames with a CRC-8 trailer, byte-stuffed so that 0x00
//     only appears as the frame terminator.
//
// The package is a codec only: it has no notion of links, timeouts or
// dispatch. The target package builds the device-side state machine on top
// of it and the root simpleserial package builds the host client.
//
// # 2.0 Frames
//
// A request travels as
//
//	[anchor, cmd, scmd, len, data..., crc, 0x00]
//
// and a response as
//
//	[anchor, id, len, data..., crc, 0x00]
//
// The checksum covers everything between the anchor and the checksum byte.
// Stuffing then replaces the anchor and every 0x00 before the terminator
// with the distance to the next 0x00:
//
//	frame, _ := wire.AppendRequest(nil, wire.Request{Cmd: 'p', Data: pt})
//	port.Write(frame)
//
//	resp, err := wire.ReadResponse(bufio.NewReader(port))
//	if err != nil {
//	    if wire.ShouldCloseConnection(err) {
//	        port.Close()
//	    }
//	    return err
//	}
//
// Stuff and Unstuff expose the transform itself. Unstuff returns the index
// at which it stopped following the offset chain, which lets a reader
// unstuff a header before the rest of the frame has arrived.
//
// # 1.x Lines
//
//	line := wire.AppendLine(nil, 'k', key) // "k2B7E1516...\n"
//	l, err := wire.ReadLine(r)             // 'r' line with the result
//
// Hex digits are written uppercase and read in either case.
//
// # Status Codes
//
// A 2.0 target answers every request with an 'e' frame carrying one Status
// byte. Codes 0x01-0x07 identify framing failures and are stable; any other
// non-zero value comes from the command handler.
//
// # Error Handling
//
// Error types indicate what happened to the link:
//
//   - ProtocolError: malformed or rejected frame, CLOSE (stream out of sync)
//   - StatusError: target answered with a non-OK status, link can be REUSED
//   - ConnectionError: I/O failure, CLOSE and reopen
//
// Every type wraps one of the Err* sentinels where applicable, so
// errors.Is(err, wire.ErrChecksumMismatch) works on all of them.
package wire
