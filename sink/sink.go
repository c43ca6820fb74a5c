// Package sink stores files received over YMODEM.
//
// Every sink implements ymodem.FileSink. Payload past the size announced in
// the metadata packet is padding and is dropped. A sink that fails once the
// transfer has ended reports it through Err, since the protocol has no way
// left to tell the sender.
package sink

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/drunlade/go-ymodem/ymodem"
)

var (
	// ErrTooLarge is returned for a file announced larger than the sink accepts.
	ErrTooLarge = errors.New("sink: file exceeds size limit")

	// ErrExists is returned when the target exists and overwriting is disabled.
	ErrExists = errors.New("sink: file already exists")

	// ErrBadName is returned for a name that does not map to a plain file.
	ErrBadName = errors.New("sink: invalid file name")

	// ErrNoFile is returned for data that arrives before a name.
	ErrNoFile = errors.New("sink: data without an open file")
)

// Sink is a FileSink that reports where the last finished file went.
type Sink interface {
	ymodem.FileSink

	// Location returns the path or URL of the last completed file.
	Location() string

	// Err returns the error that happened after the transfer ended, if any.
	Err() error
}

// cleanName reduces a sender supplied path to its last element.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." || base == "" {
		return "", ErrBadName
	}
	return base, nil
}

// limiter trims payload to the declared size. A zero size means unknown.
type limiter struct {
	sized     bool
	remaining uint64
}

func newLimiter(size uint64) limiter {
	return limiter{sized: size > 0, remaining: size}
}

func (l *limiter) trim(data []byte) []byte {
	if !l.sized {
		return data
	}
	n := min(uint64(len(data)), l.remaining)
	l.remaining -= n
	return data[:n]
}
