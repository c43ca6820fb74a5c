// Package serialport opens serial devices as YMODEM transports.
package serialport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Config describes the line settings.
type Config struct {
	Baud     int
	DataBits int
	Parity   string // none, odd, even, mark, space
	StopBits int    // 1 or 2
}

// DefaultConfig returns 115200 8N1.
func DefaultConfig() Config {
	return Config{
		Baud:     115200,
		DataBits: 8,
		Parity:   "none",
		StopBits: 1,
	}
}

// swapped in tests
var (
	openPort  = serial.Open
	listPorts = serial.GetPortsList
)

// Port is an open serial device. It satisfies ymodem.ReaderWithTimeout and
// io.Writer.
type Port struct {
	port serial.Port
	name string
}

// Open opens the named device with cfg.
func Open(name string, cfg Config) (*Port, error) {
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}
	p, err := openPort(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}
	// stale bytes from before the transfer would be taken as a bad packet start
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("serialport: reset %s: %w", name, err)
	}
	return &Port{port: p, name: name}, nil
}

func (c Config) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.Baud,
		DataBits: c.DataBits,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = 115200
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch strings.ToLower(c.Parity) {
	case "", "none", "n":
		mode.Parity = serial.NoParity
	case "odd", "o":
		mode.Parity = serial.OddParity
	case "even", "e":
		mode.Parity = serial.EvenParity
	case "mark", "m":
		mode.Parity = serial.MarkParity
	case "space", "s":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("serialport: unknown parity %q", c.Parity)
	}

	switch c.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("serialport: unsupported stop bits %d", c.StopBits)
	}
	return mode, nil
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

func (p *Port) Read(b []byte) (int, error) { return p.port.Read(b) }

func (p *Port) Write(b []byte) (int, error) { return p.port.Write(b) }

// SetReadDeadline maps a deadline onto the driver's read timeout. An expired
// timeout makes Read return 0 bytes and no error. The zero time blocks.
func (p *Port) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return p.port.SetReadTimeout(serial.NoTimeout)
	}
	d := time.Until(t)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return p.port.SetReadTimeout(d)
}

// Flush waits until all written bytes left the UART.
func (p *Port) Flush() error { return p.port.Drain() }

// Close closes the device.
func (p *Port) Close() error { return p.port.Close() }

// List returns the serial devices present on the system.
func List() ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("serialport: list: %w", err)
	}
	return ports, nil
}
