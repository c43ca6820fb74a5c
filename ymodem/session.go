package ymodem

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/drunlade/go-ymodem/ymodem"

// Session represents a YMODEM receive session over a transport.
// It owns the host side of the protocol: polling the sender with 'C' until
// the first packet arrives, read timeouts and cancellation.
type Session struct {
	// I/O
	reader ReaderWithTimeout
	writer io.Writer

	// Storage
	sink FileSink

	// Configuration
	config *Config

	// Callbacks
	callbacks *Callbacks

	// Context
	ctx context.Context

	// Logger
	logger Logger

	tracer trace.Tracer
}

// Config holds session configuration.
type Config struct {
	// Timeout bounds every transport read. Zero waits forever.
	Timeout time.Duration

	// MaxPolls is the number of 'C' polls sent before the first packet.
	MaxPolls int

	// MaxErrors is the number of read timeouts tolerated once the
	// transfer has started. Each one is answered with a NAK.
	MaxErrors int

	// BufferSize is the transport read buffer size.
	BufferSize int

	// TraceWire logs every byte read and written at debug level.
	TraceWire bool

	// Progress update interval
	ProgressInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:          3 * time.Second,
		MaxPolls:         10,
		MaxErrors:        10,
		BufferSize:       MaxPacketLength,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Result summarizes a finished session.
type Result struct {
	FileName      string
	FileSize      uint64
	BytesReceived int64
	Packets       uint32
	Status        Status
	Duration      time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration.
func WithConfig(config *Config) Option {
	return func(s *Session) {
		s.config = config
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *Session) {
		s.callbacks = mergeCallbacks(callbacks)
	}
}

// WithContext sets the session context.
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		s.ctx = ctx
	}
}

// WithSessionLogger sets a logger for protocol debugging.
func WithSessionLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = tracer
	}
}

// NewSession creates a new YMODEM receive session storing the file in sink.
func NewSession(reader ReaderWithTimeout, writer io.Writer, sink FileSink, opts ...Option) *Session {
	s := &Session{
		reader:    reader,
		writer:    writer,
		sink:      sink,
		config:    DefaultConfig(),
		callbacks: defaultCallbacks(),
		ctx:       context.Background(),
		logger:    NoopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.sink == nil {
		s.sink = discardSink{}
	}
	if s.config.TraceWire {
		s.reader = NewLoggingReader(s.reader, s.logger, "rx")
		s.writer = NewLoggingWriter(s.writer, s.logger, "tx")
	}

	return s
}

// Receive runs one transfer to its end. It returns the summary and nil when
// the sender completed the transfer, or the error describing why it stopped.
func (s *Session) Receive(ctx context.Context) (*Result, error) {
	if ctx == nil {
		ctx = s.ctx
	}
	ctx, span := s.tracer.Start(ctx, "ymodem.receive", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	zio := newByteIO(s.reader, s.writer, s.config.BufferSize, s.config.Timeout)
	zio.SetContext(ctx)

	progress := NewProgress(s.sink, s.callbacks, s.config.ProgressInterval)
	rx := NewReceiver(zio, progress, &ReceiverConfig{
		Logger:    s.logger,
		Callbacks: s.callbacks,
	})

	s.logger.Info("Receive: polling sender (maxPolls=%d, timeout=%v)", s.config.MaxPolls, s.config.Timeout)

	err := s.run(ctx, zio, rx)

	result := &Result{
		FileName:      rx.FileName(),
		FileSize:      rx.FileSize(),
		BytesReceived: progress.Received(),
		Packets:       rx.PacketsReceived(),
		Status:        rx.Status(),
		Duration:      progress.Duration(),
	}
	if err == nil {
		err = newStatusError(result.Status)
	}

	span.SetAttributes(
		attribute.String("ymodem.file.name", result.FileName),
		attribute.Int64("ymodem.file.size", int64(result.FileSize)),
		attribute.Int64("ymodem.bytes_received", result.BytesReceived),
		attribute.String("ymodem.status", result.Status.String()),
	)

	if err != nil {
		s.logger.Error("Receive: %v", err)
		s.callbacks.OnError(err, "receive")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	s.logger.Info("Receive: completed %q (%d bytes in %v)", result.FileName, result.BytesReceived, result.Duration)
	s.callbacks.OnFileComplete(result.FileName, result.BytesReceived, result.Duration)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// run pumps bytes from the transport into rx until it reaches a terminal status.
func (s *Session) run(ctx context.Context, zio *byteIO, rx *Receiver) error {
	if err := zio.WriteByte(WANTCRC); err != nil {
		return &Error{Type: ErrIO, Message: err.Error()}
	}
	polls := 1
	timeouts := 0
	lastPackets := uint32(0)

	for {
		c, err := zio.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				s.cancel(zio, rx)
				return NewError(ErrCancelled, ctx.Err().Error())
			}
			if !IsTimeout(err) {
				return err
			}

			if rx.PacketsReceived() == 0 && rx.State() == StateAwaitingPacketStart {
				if polls >= s.config.MaxPolls {
					return NewError(ErrTimeout, "sender did not start")
				}
				polls++
				s.logger.Debug("Receive: timeout, poll %d/%d", polls, s.config.MaxPolls)
				if err := zio.WriteByte(WANTCRC); err != nil {
					return &Error{Type: ErrIO, Message: err.Error()}
				}
				continue
			}

			if timeouts++; timeouts > s.config.MaxErrors {
				s.cancel(zio, rx)
				return NewError(ErrTimeout, "too many timeouts")
			}
			s.logger.Debug("Receive: timeout mid-transfer (%d/%d)", timeouts, s.config.MaxErrors)
			// the sender resends the whole packet after the NAK
			rx.DropPacket()
			zio.PurgeLine()
			if err := zio.WriteByte(NAK); err != nil {
				return &Error{Type: ErrIO, Message: err.Error()}
			}
			continue
		}

		if _, err := rx.ReceiveByte(c); err != nil {
			return err
		}
		if rx.Status().Terminal() {
			return nil
		}
		if n := rx.PacketsReceived(); n != lastPackets {
			lastPackets = n
			timeouts = 0
		}
	}
}

// cancel tells the sender to stop and the sink to drop the partial file.
func (s *Session) cancel(zio *byteIO, rx *Receiver) {
	_, _ = zio.Write([]byte{CAN, CAN})
	_ = zio.Flush()
	_ = rx.sink.HandleFileEvent(FileEvent{Kind: FileEventAborted})
}
