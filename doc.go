/*
Package simpleserial is a host-side client for ChipWhisperer SimpleSerial
targets.

A Client sends requests to one or more targets, reached over a serial port
or TCP (see package transport), and reads their responses. It keeps a pool
of open links per target and an optional circuit breaker per target.

	client, err := simpleserial.NewClient(
		simpleserial.NewStaticTargets("serial:///dev/ttyACM0?baud=115200"),
		simpleserial.Config{Protocol: wire.Version20},
	)
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := client.Do(ctx, simpleserial.Request{Cmd: 'p', Data: plaintext})

# Protocol revisions

With 2.0, every request is answered with zero or more 'r' frames, whose
payloads are concatenated into Result.Data, followed by an 'e' frame
carrying the status. With 1.1, a request is answered with an optional 'r'
line (set Request.ExpectReply) and a 'z' acknowledgment. 1.0 targets only
answer with 'r' lines.

# Errors

A non-OK status is returned as a *wire.StatusError together with the
Result; the link is kept. Framing failures (*wire.ProtocolError) and I/O
failures (*wire.ConnectionError) close the link, since the byte stream can
no longer be trusted.

# Targets

Requests carry a Key. With several targets, DefaultSelectTarget hashes the
key so that a key always reaches the same target, which keeps captures of a
given experiment on one board.

Serial ports can only be opened once: keep Config.MaxSize at its default
of 1 for serial targets.
*/
package simpleserial
