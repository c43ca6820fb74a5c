package ymodem

import "time"

// Progress wraps a FileSink and follows one file through its events.
//
// Data events always carry a full packet, so the last one is padded past the
// size announced in the metadata packet. Progress counts only the declared
// bytes and keeps the rest as padding. When the sender announced no size
// every payload byte counts. OnProgress fires at most once per interval
// and once more when the file ends.
type Progress struct {
	next      FileSink
	callbacks *Callbacks
	interval  time.Duration
	now       func() time.Time

	name     string
	declared uint64
	received uint64
	padding  uint64
	packets  int

	started    time.Time
	finished   time.Time
	lastReport time.Time
	lastBytes  uint64
}

// NewProgress returns a Progress forwarding events to next.
func NewProgress(next FileSink, callbacks *Callbacks, interval time.Duration) *Progress {
	if next == nil {
		next = discardSink{}
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Progress{
		next:      next,
		callbacks: mergeCallbacks(callbacks),
		interval:  interval,
		now:       time.Now,
	}
}

// HandleFileEvent forwards ev and, when next accepts it, updates the counters.
func (p *Progress) HandleFileEvent(ev FileEvent) error {
	if err := p.next.HandleFileEvent(ev); err != nil {
		return err
	}
	switch ev.Kind {
	case FileEventName:
		p.begin(ev.Name, ev.Size)
	case FileEventData:
		p.add(uint64(len(ev.Data)))
	case FileEventEnd:
		p.finished = p.now()
		p.callbacks.OnProgress(p.name, int64(p.received), int64(p.declared), 0)
	case FileEventAborted:
		p.finished = p.now()
	}
	return nil
}

func (p *Progress) begin(name string, size uint64) {
	p.name = name
	p.declared = size
	p.received = 0
	p.padding = 0
	p.packets = 0
	p.started = p.now()
	p.finished = time.Time{}
	p.lastReport = p.started
	p.lastBytes = 0
	p.callbacks.OnFileStart(name, int64(size))
}

func (p *Progress) add(n uint64) {
	p.packets++
	if p.declared > 0 {
		keep := min(n, p.declared-p.received)
		p.padding += n - keep
		n = keep
	}
	p.received += n

	now := p.now()
	elapsed := now.Sub(p.lastReport)
	if elapsed < p.interval {
		return
	}
	rate := float64(p.received-p.lastBytes) / elapsed.Seconds()
	p.callbacks.OnProgress(p.name, int64(p.received), int64(p.declared), rate)
	p.lastReport = now
	p.lastBytes = p.received
}

// Received returns the file bytes seen so far, padding excluded.
func (p *Progress) Received() int64 { return int64(p.received) }

// Padding returns the payload bytes past the declared size.
func (p *Progress) Padding() int64 { return int64(p.padding) }

// Packets returns the number of data packets seen.
func (p *Progress) Packets() int { return p.packets }

// Duration returns the time since the metadata packet, frozen once the file
// ended or was aborted.
func (p *Progress) Duration() time.Duration {
	if p.started.IsZero() {
		return 0
	}
	end := p.finished
	if end.IsZero() {
		end = p.now()
	}
	return end.Sub(p.started)
}
