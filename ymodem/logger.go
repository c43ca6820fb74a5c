package ymodem

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface for YMODEM protocol logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// ZapLogger adapts a zap logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps z. A nil z yields a no-op logger.
func NewZapLogger(z *zap.Logger) *ZapLogger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapLogger{sugar: z.Named("ymodem").Sugar()}
}

func (l *ZapLogger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *ZapLogger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *ZapLogger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// FileLogger writes JSON logs to a file
type FileLogger struct {
	*ZapLogger
	file *os.File
}

// NewFileLogger creates a logger that appends to a file
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		ZapLogger: NewZapLogger(NewJSONLogger(file, zapcore.DebugLevel)),
		file:      file,
	}, nil
}

func (l *FileLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.Sync()
	return l.file.Close()
}

// NewJSONLogger builds a zap logger writing JSON lines to w.
func NewJSONLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		NameKey:     "logger",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeName:  zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// NoopLogger does nothing
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// LoggingReader wraps a reader and logs all reads
type LoggingReader struct {
	reader ReaderWithTimeout
	logger Logger
	name   string
}

func NewLoggingReader(reader ReaderWithTimeout, logger Logger, name string) *LoggingReader {
	return &LoggingReader{
		reader: reader,
		logger: logger,
		name:   name,
	}
}

func (lr *LoggingReader) Read(p []byte) (int, error) {
	n, err := lr.reader.Read(p)
	if lr.logger != nil && n > 0 {
		data := p[:n]
		if n > 64 {
			lr.logger.Debug("%s: Read %d bytes: % x...[truncated]", lr.name, n, data[:64])
		} else {
			lr.logger.Debug("%s: Read %d bytes: % x", lr.name, n, data)
		}
	}
	if err != nil && err != io.EOF && lr.logger != nil {
		lr.logger.Error("%s: Read error: %v", lr.name, err)
	}
	return n, err
}

func (lr *LoggingReader) SetReadDeadline(t time.Time) error {
	return lr.reader.SetReadDeadline(t)
}

// LoggingWriter wraps a writer and logs all writes
type LoggingWriter struct {
	writer io.Writer
	logger Logger
	name   string
}

func NewLoggingWriter(writer io.Writer, logger Logger, name string) *LoggingWriter {
	return &LoggingWriter{
		writer: writer,
		logger: logger,
		name:   name,
	}
}

func (lw *LoggingWriter) Write(p []byte) (int, error) {
	n, err := lw.writer.Write(p)
	if lw.logger != nil && n > 0 {
		// responses are at most a few bytes
		lw.logger.Debug("%s: Wrote %d bytes: % x", lw.name, n, p[:n])
	}
	if err != nil && lw.logger != nil {
		lw.logger.Error("%s: Write error: %v", lw.name, err)
	}
	return n, err
}
