package ymodem

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type progressUpdate struct {
	transferred, total int64
	rate               float64
}

func newTestProgress(t *testing.T, next FileSink) (*Progress, *fakeClock, *[]progressUpdate) {
	t.Helper()
	var updates []progressUpdate
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := NewProgress(next, &Callbacks{
		OnProgress: func(name string, transferred, total int64, rate float64) {
			updates = append(updates, progressUpdate{transferred, total, rate})
		},
	}, time.Second)
	p.now = clock.now
	return p, clock, &updates
}

func TestProgressDropsPadding(t *testing.T) {
	p, clock, updates := newTestProgress(t, nil)
	packet := make([]byte, PacketSize)

	var started string
	p.callbacks.OnFileStart = func(name string, size int64) { started = name }

	_ = p.HandleFileEvent(FileEvent{Kind: FileEventName, Name: "fw.bin", Size: 200})
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventData, Data: packet}) // too soon to report
	clock.advance(time.Second)
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventData, Data: packet})
	clock.advance(time.Second)
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventEnd})
	clock.advance(time.Second)

	if started != "fw.bin" {
		t.Errorf("OnFileStart saw %q", started)
	}
	if p.Received() != 200 || p.Padding() != 56 || p.Packets() != 2 {
		t.Errorf("received %d, padding %d, packets %d", p.Received(), p.Padding(), p.Packets())
	}
	if d := p.Duration(); d != 2*time.Second {
		t.Errorf("duration = %v, want 2s", d)
	}
	want := []progressUpdate{{200, 200, 200}, {200, 200, 0}}
	if len(*updates) != len(want) {
		t.Fatalf("updates = %v, want %v", *updates, want)
	}
	for i := range want {
		if (*updates)[i] != want[i] {
			t.Errorf("update %d = %v, want %v", i, (*updates)[i], want[i])
		}
	}
}

func TestProgressWithoutDeclaredSize(t *testing.T) {
	p, _, _ := newTestProgress(t, nil)
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventName, Name: "x"})
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventData, Data: make([]byte, PacketSize1K)})
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventData, Data: make([]byte, PacketSize)})

	if p.Received() != PacketSize1K+PacketSize || p.Padding() != 0 {
		t.Errorf("received %d, padding %d", p.Received(), p.Padding())
	}
}

func TestProgressSkipsRejectedEvents(t *testing.T) {
	next := &recordingSink{failOn: map[FileEventKind]bool{FileEventData: true}}
	p, _, _ := newTestProgress(t, next)

	if err := p.HandleFileEvent(FileEvent{Kind: FileEventName, Name: "x", Size: 10}); err != nil {
		t.Fatal(err)
	}
	if err := p.HandleFileEvent(FileEvent{Kind: FileEventData, Data: make([]byte, PacketSize)}); err == nil {
		t.Fatal("sink error was swallowed")
	}
	if p.Received() != 0 || p.Packets() != 0 {
		t.Errorf("rejected data counted: %d bytes, %d packets", p.Received(), p.Packets())
	}
}

func TestProgressNewFileResets(t *testing.T) {
	p, _, _ := newTestProgress(t, FileSinkFunc(func(FileEvent) error { return nil }))
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventName, Name: "a", Size: 10})
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventData, Data: make([]byte, PacketSize)})
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventAborted})

	_ = p.HandleFileEvent(FileEvent{Kind: FileEventName, Name: "b", Size: 5})
	if p.Received() != 0 || p.Padding() != 0 || p.Packets() != 0 {
		t.Errorf("counters carried over: %d/%d/%d", p.Received(), p.Padding(), p.Packets())
	}
	if p.Duration() != 0 {
		t.Errorf("duration = %v", p.Duration())
	}
}

func TestProgressNilCallbacks(t *testing.T) {
	p := NewProgress(nil, nil, 0)
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventName, Name: "x"})
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventData, Data: []byte{1}})
	_ = p.HandleFileEvent(FileEvent{Kind: FileEventEnd})
	if p.Received() != 1 {
		t.Errorf("received = %d", p.Received())
	}
}
