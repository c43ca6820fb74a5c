package ymodem

import "time"

// FileEventKind tells the sink what a FileEvent carries.
type FileEventKind int

const (
	FileEventName FileEventKind = iota
	FileEventData
	FileEventEnd
	FileEventAborted
)

func (k FileEventKind) String() string {
	switch k {
	case FileEventName:
		return "name"
	case FileEventData:
		return "data"
	case FileEventEnd:
		return "end"
	case FileEventAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// FileEvent is handed to the FileSink while a transfer progresses.
type FileEvent struct {
	Kind FileEventKind

	// Name and Size are set for FileEventName.
	Name string
	Size uint64

	// Data holds one full packet payload for FileEventData. It aliases the
	// decoder's packet buffer and is only valid during the call.
	Data []byte
}

// FileSink consumes decoded file metadata and payload.
// Returning an error from a name event aborts with SIZE_ERR, from a data
// event with WRITE_ERR. Errors from end and aborted events are ignored.
type FileSink interface {
	HandleFileEvent(ev FileEvent) error
}

// FileSinkFunc adapts a function to a FileSink.
type FileSinkFunc func(ev FileEvent) error

func (f FileSinkFunc) HandleFileEvent(ev FileEvent) error {
	return f(ev)
}

// discardSink accepts everything.
type discardSink struct{}

func (discardSink) HandleFileEvent(FileEvent) error { return nil }

// Callbacks provides hooks for observing a transfer.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnFileStart is called once the metadata packet was accepted.
	OnFileStart func(filename string, size int64)

	// OnProgress is called periodically during file transfer.
	// filename: name of the file being transferred
	// transferred: bytes received so far
	// total: declared size (0 if unknown)
	// rate: transfer rate in bytes per second
	OnProgress func(filename string, transferred, total int64, rate float64)

	// OnFileComplete is called when a file transfer completes.
	OnFileComplete func(filename string, bytesTransferred int64, duration time.Duration)

	// OnError is called when the host loop hits an error.
	// context: description of where the error occurred
	OnError func(err error, context string)

	// OnEvent is called for every protocol outcome (debugging/metrics).
	// It runs on the byte-feeding goroutine and must return quickly.
	OnEvent func(event Event)
}

// Event represents a protocol event for logging/debugging.
type Event struct {
	Type    EventType
	Outcome Outcome
	Status  Status

	// Reason is set for EventPacketRejected.
	Reason ErrorType

	// Size is the payload length for EventPacketAccepted.
	Size      int
	Timestamp time.Time
}

// EventType categorizes protocol events.
type EventType int

const (
	EventPacketAccepted EventType = iota
	EventPacketRejected
	EventFileStart
	EventEndOfTransmission
	EventFileComplete
	EventCancelled
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventPacketAccepted:
		return "packet_accepted"
	case EventPacketRejected:
		return "packet_rejected"
	case EventFileStart:
		return "file_start"
	case EventEndOfTransmission:
		return "eot"
	case EventFileComplete:
		return "file_complete"
	case EventCancelled:
		return "cancelled"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnFileStart:    func(string, int64) {},
		OnProgress:     func(string, int64, int64, float64) {},
		OnFileComplete: func(string, int64, time.Duration) {},
		OnError:        func(error, string) {},
		OnEvent:        func(Event) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	result := defaultCallbacks()
	if user == nil {
		return result
	}

	if user.OnFileStart != nil {
		result.OnFileStart = user.OnFileStart
	}
	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	}
	if user.OnFileComplete != nil {
		result.OnFileComplete = user.OnFileComplete
	}
	if user.OnError != nil {
		result.OnError = user.OnError
	}
	if user.OnEvent != nil {
		result.OnEvent = user.OnEvent
	}

	return result
}
