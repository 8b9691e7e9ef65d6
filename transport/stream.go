package transport

import (
	"bufio"
	"time"
)

// Stream buffers a Link for byte-at-a-time protocols. It satisfies the
// byte source and sink of the target dispatcher and the host client:
// ReadByte, WriteByte, Flush and SetReadTimeout.
type Stream struct {
	link Link
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewStream wraps link. Writes are buffered until Flush.
func NewStream(link Link) *Stream {
	return &Stream{
		link: link,
		r:    bufio.NewReaderSize(link, 512),
		w:    bufio.NewWriterSize(link, 512),
	}
}

func (s *Stream) ReadByte() (byte, error) {
	return s.r.ReadByte()
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *Stream) WriteByte(b byte) error {
	return s.w.WriteByte(b)
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *Stream) Flush() error {
	return s.w.Flush()
}

// Buffered returns the number of received bytes not read yet.
func (s *Stream) Buffered() int {
	return s.r.Buffered()
}

// Discard drops every byte already received.
func (s *Stream) Discard() {
	_, _ = s.r.Discard(s.r.Buffered())
}

// SetReadTimeout forwards to the link. Bytes already buffered are
// returned without waiting.
func (s *Stream) SetReadTimeout(d time.Duration) error {
	return s.link.SetReadTimeout(d)
}

// Link returns the underlying link.
func (s *Stream) Link() Link {
	return s.link
}

func (s *Stream) Close() error {
	return s.link.Close()
}
