package ymodem

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// ReaderWithTimeout is an interface for reading with timeout support.
// It extends io.Reader with timeout capabilities.
type ReaderWithTimeout interface {
	io.Reader
	SetReadDeadline(time.Time) error
}

// deadlineReader adds read deadlines to a reader that has none, such as an
// SSH channel or a terminal. Reads run in a goroutine and an expired deadline
// turns into an empty read; the pending read is picked up by the next call.
type deadlineReader struct {
	reader   io.Reader
	deadline time.Time
	pending  chan readResult
}

type readResult struct {
	buf []byte
	err error
}

// NewDeadlineReader wraps r so that it satisfies ReaderWithTimeout.
func NewDeadlineReader(r io.Reader) ReaderWithTimeout {
	return &deadlineReader{reader: r}
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.pending == nil {
		r.pending = make(chan readResult, 1)
		go r.readInto(len(p))
	}

	var timer <-chan time.Time
	if !r.deadline.IsZero() {
		t := time.NewTimer(time.Until(r.deadline))
		defer t.Stop()
		timer = t.C
	}

	select {
	case res := <-r.pending:
		r.pending = nil
		n := copy(p, res.buf)
		return n, res.err
	case <-timer:
		return 0, nil
	}
}

func (r *deadlineReader) readInto(size int) {
	buf := make([]byte, size)
	n, err := r.reader.Read(buf)
	r.pending <- readResult{buf: buf[:n], err: err}
}

func (r *deadlineReader) SetReadDeadline(t time.Time) error {
	r.deadline = t
	return nil
}

// errReadTimeout is returned by byteIO when no byte arrived in time.
var errReadTimeout = NewError(ErrTimeout, "no data from sender")

// byteIO provides buffered byte reads with a per-read deadline.
type byteIO struct {
	reader  ReaderWithTimeout
	writer  io.Writer
	rbuf    []byte
	rpos    int
	rleft   int
	timeout time.Duration
	ctx     context.Context
}

// newByteIO creates a byte reader over reader with a read buffer of bufsize
// bytes. A zero timeout disables deadlines.
func newByteIO(reader ReaderWithTimeout, writer io.Writer, bufsize int, timeout time.Duration) *byteIO {
	if bufsize <= 0 {
		bufsize = MaxPacketLength
	}
	return &byteIO{
		reader:  reader,
		writer:  writer,
		rbuf:    make([]byte, bufsize),
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// SetContext sets the context for cancellation.
func (z *byteIO) SetContext(ctx context.Context) {
	z.ctx = ctx
}

// ReadByte returns the next byte, refilling the buffer from the transport
// when it is empty.
func (z *byteIO) ReadByte() (byte, error) {
	if z.rleft > 0 {
		z.rleft--
		b := z.rbuf[z.rpos]
		z.rpos++
		return b, nil
	}
	if err := z.fill(); err != nil {
		return 0, err
	}
	return z.ReadByte()
}

func (z *byteIO) fill() error {
	if err := z.ctx.Err(); err != nil {
		return err
	}

	if z.timeout > 0 {
		if err := z.reader.SetReadDeadline(time.Now().Add(z.timeout)); err != nil {
			return err
		}
	}

	n, err := z.reader.Read(z.rbuf)
	if n > 0 {
		z.rpos = 0
		z.rleft = n
		return nil
	}
	switch {
	case err == nil:
		// serial ports report an expired read timeout as an empty read
		return errReadTimeout
	case isDeadlineErr(err):
		return errReadTimeout
	case err == io.EOF:
		return err
	default:
		return &Error{Type: ErrIO, Message: err.Error()}
	}
}

func isDeadlineErr(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Write writes bytes to the underlying writer.
func (z *byteIO) Write(buf []byte) (int, error) {
	return z.writer.Write(buf)
}

// WriteByte writes a single byte.
func (z *byteIO) WriteByte(b byte) error {
	_, err := z.writer.Write([]byte{b})
	return err
}

// Flush flushes the writer if it buffers.
func (z *byteIO) Flush() error {
	if f, ok := z.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// PurgeLine drops any buffered input.
func (z *byteIO) PurgeLine() {
	z.rleft = 0
	z.rpos = 0
}
