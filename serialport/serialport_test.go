package serialport

import (
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort records the calls the wrapper makes.
type fakePort struct {
	serial.Port

	timeouts []time.Duration
	resets   int
	drained  bool
	closed   bool
	written  []byte
}

func (f *fakePort) ResetInputBuffer() error { f.resets++; return nil }

func (f *fakePort) SetReadTimeout(d time.Duration) error {
	f.timeouts = append(f.timeouts, d)
	return nil
}

func (f *fakePort) Write(b []byte) (int, error) {
	f.written = append(f.written, b...)
	return len(b), nil
}

func (f *fakePort) Read(b []byte) (int, error) { return 0, nil }
func (f *fakePort) Drain() error               { f.drained = true; return nil }
func (f *fakePort) Close() error               { f.closed = true; return nil }

func withFakeOpen(t *testing.T, fake *fakePort) *serial.Mode {
	t.Helper()
	var got serial.Mode
	orig := openPort
	openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		got = *mode
		return fake, nil
	}
	t.Cleanup(func() { openPort = orig })
	return &got
}

func TestOpen(t *testing.T) {
	fake := &fakePort{}
	mode := withFakeOpen(t, fake)

	p, err := Open("/dev/ttyUSB0", Config{Baud: 57600, Parity: "even", StopBits: 2})
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 57600 || mode.DataBits != 8 || mode.Parity != serial.EvenParity || mode.StopBits != serial.TwoStopBits {
		t.Errorf("mode = %+v", *mode)
	}
	if fake.resets != 1 {
		t.Errorf("input buffer not reset")
	}
	if p.Name() != "/dev/ttyUSB0" {
		t.Errorf("name = %q", p.Name())
	}

	p.Write([]byte{0x43})
	p.Flush()
	p.Close()
	if string(fake.written) != "C" || !fake.drained || !fake.closed {
		t.Errorf("fake = %+v", fake)
	}
}

func TestOpenRejectsBadMode(t *testing.T) {
	withFakeOpen(t, &fakePort{})

	if _, err := Open("x", Config{Parity: "sideways"}); err == nil {
		t.Error("bad parity accepted")
	}
	if _, err := Open("x", Config{StopBits: 3}); err == nil {
		t.Error("bad stop bits accepted")
	}
}

func TestSetReadDeadline(t *testing.T) {
	fake := &fakePort{}
	p := &Port{port: fake}

	p.SetReadDeadline(time.Now().Add(time.Hour))
	p.SetReadDeadline(time.Now().Add(-time.Second))
	p.SetReadDeadline(time.Time{})

	if len(fake.timeouts) != 3 {
		t.Fatalf("timeouts = %v", fake.timeouts)
	}
	if fake.timeouts[0] < 59*time.Minute {
		t.Errorf("future deadline = %v", fake.timeouts[0])
	}
	if fake.timeouts[1] != time.Millisecond {
		t.Errorf("past deadline = %v", fake.timeouts[1])
	}
	if fake.timeouts[2] != serial.NoTimeout {
		t.Errorf("zero deadline = %v", fake.timeouts[2])
	}
}

func TestList(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })

	listPorts = func() ([]string, error) { return []string{"/dev/ttyS0", "/dev/ttyACM0"}, nil }
	ports, err := List()
	if err != nil || len(ports) != 2 {
		t.Errorf("List = %v, %v", ports, err)
	}

	listPorts = func() ([]string, error) { return nil, errors.New("no sysfs") }
	if _, err := List(); err == nil {
		t.Error("expected error")
	}
}
