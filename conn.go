package simpleserial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coastalwhite/simpleserial/transport"
	"github.com/coastalwhite/simpleserial/wire"
)

// ErrConnClosed is returned by exchanges on a closed Conn.
var ErrConnClosed = errors.New("simpleserial: connection closed")

// Request is one command sent to a target.
type Request struct {
	// Key selects the target when the client has several. Requests with
	// the same key always go to the same target.
	Key string

	Cmd    byte
	SubCmd byte // 2.0 only
	Data   []byte

	// ExpectReply reads an 'r' line before the acknowledgment.
	// Text protocols only; 2.0 results are self-describing.
	ExpectReply bool
}

// Result is the outcome of one exchange.
type Result struct {
	Target string
	Status wire.Status
	Data   []byte // concatenated 'r' payloads
}

// ConnConfig holds the protocol settings of a Conn.
type ConnConfig struct {
	Protocol wire.Version

	// Ack expects a 'z' line after every text request. Forced on for 1.1.
	Ack bool

	// Timeout bounds the wait for every byte of a response.
	// Default: 1s
	Timeout time.Duration
}

const defaultTimeout = time.Second

func (c ConnConfig) withDefaults() ConnConfig {
	if c.Protocol == wire.Version11 {
		c.Ack = true
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Conn runs request/response exchanges over one link. It is not safe for
// concurrent use; pools hand each Conn to one exchange at a time.
type Conn struct {
	stream *transport.Stream
	cfg    ConnConfig
	target string
	closed bool
}

// NewConn wraps an open link.
func NewConn(link transport.Link, cfg ConnConfig) *Conn {
	return &Conn{
		stream: transport.NewStream(link),
		cfg:    cfg.withDefaults(),
		target: linkName(link),
	}
}

func linkName(link transport.Link) string {
	if s, ok := link.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", link)
}

// Exchange sends req and reads the complete response.
//
// Go errors returned:
//   - *wire.StatusError: the target answered with a non-OK status; the
//     Result is returned as well
//   - *wire.ProtocolError: the response could not be decoded
//   - *wire.ConnectionError: I/O failure or timeout
//
// Use wire.ShouldCloseConnection to decide whether the Conn can be reused.
func (c *Conn) Exchange(ctx context.Context, req Request) (*Result, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.stream.SetReadTimeout(c.timeout(ctx)); err != nil {
		return nil, &wire.ConnectionError{Op: "set timeout", Err: err}
	}

	if c.cfg.Protocol.Binary() {
		return c.exchangeFrame(req)
	}
	return c.exchangeLine(req)
}

// timeout is the configured timeout, shortened to the context deadline.
func (c *Conn) timeout(ctx context.Context) time.Duration {
	t := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < t {
			t = max(left, time.Millisecond)
		}
	}
	return t
}

func (c *Conn) exchangeFrame(req Request) (*Result, error) {
	// Anything left over belongs to an earlier, abandoned exchange.
	c.stream.Discard()

	err := wire.WriteRequest(c.stream, wire.Request{Cmd: req.Cmd, SubCmd: req.SubCmd, Data: req.Data})
	if err != nil {
		return nil, err
	}
	if err := c.flush(); err != nil {
		return nil, err
	}

	res := &Result{Target: c.target}
	for {
		resp, err := wire.ReadResponse(c.stream)
		if err != nil {
			return nil, err
		}

		if status, ok := resp.Status(); ok && resp.IsStatus() {
			res.Status = status
			break
		}
		res.Data = append(res.Data, resp.Data...)
	}

	return finish(req.Cmd, res)
}

func (c *Conn) exchangeLine(req Request) (*Result, error) {
	c.stream.Discard()

	if err := wire.WriteLine(c.stream, req.Cmd, req.Data); err != nil {
		return nil, err
	}
	if err := c.flush(); err != nil {
		return nil, err
	}

	res := &Result{Target: c.target}
	var ack *wire.Line
	if req.ExpectReply {
		line, err := wire.ReadLine(c.stream)
		if err != nil {
			return nil, err
		}
		switch {
		case line.Cmd == wire.RespResult:
			res.Data = line.Data
		case line.Cmd == wire.RespAck && c.cfg.Ack:
			// Handlers that fail usually skip the result line.
			ack = &line
		default:
			return nil, &wire.ProtocolError{Cmd: req.Cmd, Err: fmt.Errorf("simpleserial: expected result line, got %q", line.Cmd)}
		}
	}

	if c.cfg.Ack {
		if ack == nil {
			line, err := wire.ReadLine(c.stream)
			if err != nil {
				return nil, err
			}
			ack = &line
		}
		status, err := ackStatus(req.Cmd, *ack)
		if err != nil {
			return nil, err
		}
		res.Status = status
	}

	return finish(req.Cmd, res)
}

func ackStatus(cmd byte, line wire.Line) (wire.Status, error) {
	resp := wire.Response{Cmd: line.Cmd, Data: line.Data}
	status, ok := resp.Status()
	if !ok || line.Cmd != wire.RespAck {
		return 0, &wire.ProtocolError{Cmd: cmd, Err: fmt.Errorf("simpleserial: expected acknowledgment, got %q", line.Cmd)}
	}
	return status, nil
}

func finish(cmd byte, res *Result) (*Result, error) {
	if !res.Status.IsOK() {
		return res, &wire.StatusError{Cmd: cmd, Status: res.Status}
	}
	return res, nil
}

func (c *Conn) flush() error {
	if err := c.stream.Flush(); err != nil {
		return &wire.ConnectionError{Op: "flush", Err: err}
	}
	return nil
}

// Target returns the link description, e.g. "tcp://127.0.0.1:4000".
func (c *Conn) Target() string {
	return c.target
}

// Close closes the underlying link.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.stream.Close()
}
