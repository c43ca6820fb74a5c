package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/drunlade/go-ymodem/ymodem"
)

const partSuffix = ".part"

// DirConfig configures a Dir sink.
type DirConfig struct {
	// Root is the directory files are written to. It is created if missing.
	Root string

	// MaxSize rejects files announced larger than this. Zero means no limit.
	MaxSize uint64

	// Overwrite replaces existing files instead of refusing them.
	Overwrite bool

	// Logger receives progress messages.
	Logger ymodem.Logger
}

// Dir writes each received file below a local directory.
//
// Data goes to "<name>.part" and is renamed once the sender confirms the end
// of the file; an aborted transfer removes the partial file.
type Dir struct {
	config DirConfig

	file    *os.File
	path    string
	limit   limiter
	written int64

	location string
	err      error
}

// NewDir creates a directory sink.
func NewDir(cfg DirConfig) (*Dir, error) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Logger == nil {
		cfg.Logger = ymodem.NoopLogger{}
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", cfg.Root, err)
	}
	return &Dir{config: cfg}, nil
}

// HandleFileEvent implements ymodem.FileSink.
func (d *Dir) HandleFileEvent(ev ymodem.FileEvent) error {
	switch ev.Kind {
	case ymodem.FileEventName:
		return d.open(ev.Name, ev.Size)
	case ymodem.FileEventData:
		return d.write(ev.Data)
	case ymodem.FileEventEnd:
		d.err = d.finish()
		return d.err
	case ymodem.FileEventAborted:
		d.discard()
	}
	return nil
}

func (d *Dir) open(name string, size uint64) error {
	d.discard()

	base, err := cleanName(name)
	if err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	if d.config.MaxSize > 0 && size > d.config.MaxSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, base, size, d.config.MaxSize)
	}

	path := filepath.Join(d.config.Root, base)
	if !d.config.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	f, err := os.OpenFile(path+partSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", path, err)
	}

	d.file = f
	d.path = path
	d.limit = newLimiter(size)
	d.written = 0
	d.location = ""
	d.err = nil
	d.config.Logger.Info("Dir: receiving %s (%d bytes)", path, size)
	return nil
}

func (d *Dir) write(data []byte) error {
	if d.file == nil {
		return ErrNoFile
	}
	data = d.limit.trim(data)
	if d.config.MaxSize > 0 && uint64(d.written)+uint64(len(data)) > d.config.MaxSize {
		return fmt.Errorf("%w: %s", ErrTooLarge, d.path)
	}
	n, err := d.file.Write(data)
	d.written += int64(n)
	if err != nil {
		return fmt.Errorf("sink: write %s: %w", d.path, err)
	}
	return nil
}

func (d *Dir) finish() error {
	if d.file == nil {
		return ErrNoFile
	}
	f := d.file
	d.file = nil

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sink: sync %s: %w", d.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sink: close %s: %w", d.path, err)
	}
	if err := os.Rename(d.path+partSuffix, d.path); err != nil {
		return fmt.Errorf("sink: rename %s: %w", d.path, err)
	}
	d.location = d.path
	d.config.Logger.Info("Dir: stored %s (%d bytes)", d.path, d.written)
	return nil
}

// discard drops a partially written file.
func (d *Dir) discard() {
	if d.file == nil {
		return
	}
	d.file.Close()
	d.file = nil
	if err := os.Remove(d.path + partSuffix); err != nil && !os.IsNotExist(err) {
		d.config.Logger.Error("Dir: remove partial %s: %v", d.path, err)
		return
	}
	d.config.Logger.Info("Dir: discarded partial %s", d.path)
}

// Written returns the number of payload bytes stored for the current file.
func (d *Dir) Written() int64 { return d.written }

// Location implements Sink.
func (d *Dir) Location() string { return d.location }

// Err implements Sink.
func (d *Dir) Err() error { return d.err }

var _ Sink = (*Dir)(nil)
