package wire

import (
	"bufio"
	"io"
	"sync"
)

// Buffer pool for building frames
var bufferPool = sync.Pool{
	New: func() any {
		// Largest 2.0 frame is MaxPayload+RequestOverhead bytes; a 1.x line is
		// about twice that.
		b := make([]byte, 0, 2*MaxPayload+8)
		return &b
	},
}

func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

func putBuffer(b *[]byte) {
	*b = (*b)[:0]
	bufferPool.Put(b)
}

// WriteRequest encodes req as a 2.0 frame and writes it to w in a single write.
// A *bufio.Writer is flushed.
func WriteRequest(w io.Writer, req Request) error {
	buf := getBuffer()
	defer putBuffer(buf)

	frame, err := AppendRequest(*buf, req)
	if err != nil {
		return err
	}
	*buf = frame
	return writeAll(w, frame)
}

// WriteResponse encodes resp as a 2.0 frame and writes it to w in a single write.
// A *bufio.Writer is flushed.
func WriteResponse(w io.Writer, resp Response) error {
	buf := getBuffer()
	defer putBuffer(buf)

	frame, err := AppendResponse(*buf, resp)
	if err != nil {
		return err
	}
	*buf = frame
	return writeAll(w, frame)
}

// WriteLine writes a 1.x line. A *bufio.Writer is flushed.
func WriteLine(w io.Writer, cmd byte, data []byte) error {
	if len(data) > MaxPayload {
		return ErrPayloadTooLarge
	}

	buf := getBuffer()
	defer putBuffer(buf)

	*buf = AppendLine(*buf, cmd, data)
	return writeAll(w, *buf)
}

func writeAll(w io.Writer, p []byte) error {
	if _, err := w.Write(p); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	if bw, ok := w.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			return &ConnectionError{Op: "flush", Err: err}
		}
	}
	return nil
}
