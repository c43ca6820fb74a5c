package ymodem

import (
	"io"
	"time"
)

// initMask marks an initialized Receiver.
const initMask = 0x52

// Receiver drives a Decoder and talks back to the sender.
//
// Each ReceiveByte call feeds one byte to the decoder, turns the outcome into
// a Response and, when there is something to say, writes it to the
// transmitter exactly once before returning. Receiver is not safe for
// concurrent use; the sink, the transmitter and the callbacks all run on the
// goroutine calling ReceiveByte.
type Receiver struct {
	decoder Decoder

	tx   io.Writer
	sink FileSink

	pending     Response
	finalStatus Status
	initialized byte

	callbacks *Callbacks
	logger    Logger
}

// ReceiverConfig holds configuration for a receiver.
type ReceiverConfig struct {
	Logger    Logger
	Callbacks *Callbacks
}

// NewReceiver creates an initialized receiver writing responses to tx and
// delivering file events to sink.
func NewReceiver(tx io.Writer, sink FileSink, config *ReceiverConfig) *Receiver {
	r := &Receiver{}
	if config != nil {
		r.logger = config.Logger
		r.callbacks = mergeCallbacks(config.Callbacks)
	}
	r.Init(tx, sink)
	return r
}

// Init prepares the receiver. Calling Init on an initialized receiver is a
// no-op; use Reset to start a new transfer.
func (r *Receiver) Init(tx io.Writer, sink FileSink) {
	if r.initialized == initMask {
		return
	}
	if r.logger == nil {
		r.logger = NoopLogger{}
	}
	if r.callbacks == nil {
		r.callbacks = defaultCallbacks()
	}
	if tx == nil {
		tx = io.Discard
	}
	if sink == nil {
		sink = discardSink{}
	}
	r.tx = tx
	r.sink = sink
	r.decoder.Reset(sink)
	r.pending = Response{}
	r.finalStatus = StatusOK
	r.initialized = initMask
}

// Reset clears the transfer state so the receiver can take a new transfer.
// The transmitter and sink are kept.
func (r *Receiver) Reset() error {
	if r.initialized != initMask {
		return NewError(ErrNotInitialized, "Reset called before Init")
	}
	r.decoder.Reset(r.sink)
	r.pending = Response{}
	r.finalStatus = StatusOK
	return nil
}

// DropPacket discards the packet being received, if any. The host calls it
// when the line went quiet mid-packet, before asking for a retransmission.
func (r *Receiver) DropPacket() {
	if r.initialized != initMask || r.finalStatus != StatusOK {
		return
	}
	r.decoder.DropPacket()
}

// ReceiveByte feeds one byte from the sender.
//
// It returns StatusOK when the byte was consumed silently, StatusTxPending
// when a response was written, and the terminal status on every call after
// the transfer ended. A transmitter failure is returned as an ErrIO error
// alongside the status; the protocol state has already advanced.
func (r *Receiver) ReceiveByte(c byte) (Status, error) {
	if r.initialized != initMask {
		return StatusAborted, NewError(ErrNotInitialized, "ReceiveByte called before Init")
	}
	if r.finalStatus != StatusOK {
		return r.finalStatus, nil
	}

	out := r.decoder.Step(c)
	r.pending = Respond(out)
	r.observe(out)

	var err error
	if r.pending.Len() > 0 {
		if _, werr := r.tx.Write(r.pending.Bytes()); werr != nil {
			r.logger.Error("ReceiveByte: transmit %s failed: %v", out, werr)
			err = &Error{Type: ErrIO, Message: werr.Error(), Status: r.pending.Status}
		}
	}
	if r.pending.NotifyAbort && r.fileOpen(out) {
		_ = r.sink.HandleFileEvent(FileEvent{Kind: FileEventAborted})
	}
	if r.pending.Final != StatusOK {
		r.finalStatus = r.pending.Final
		r.logger.Info("ReceiveByte: transfer finished with %s (%s)", r.finalStatus, out)
	}

	return r.pending.Status, err
}

// fileOpen reports whether the sink has a file to drop for out. A graceful
// abort before the metadata packet was accepted has nothing to clean up.
func (r *Receiver) fileOpen(out Outcome) bool {
	return out != OutcomeAbort || r.decoder.PacketsReceived() > 0
}

// observe reports an outcome to the logger and the OnEvent callback.
func (r *Receiver) observe(out Outcome) {
	if out == OutcomeNone {
		return
	}
	ev := Event{Outcome: out, Status: r.pending.Status, Timestamp: time.Now()}
	switch out {
	case OutcomeRxError:
		ev.Type = EventPacketRejected
		ev.Reason = r.decoder.RejectReason()
		r.logger.Debug("ReceiveByte: rejected (%s), packets=%d", ev.Reason, r.decoder.PacketsReceived())
	case OutcomeStartRx:
		ev.Type = EventFileStart
		r.logger.Info("ReceiveByte: file=%q size=%d", r.decoder.FileName(), r.decoder.FileSize())
	case OutcomeRxOK:
		ev.Type = EventPacketAccepted
		ev.Size = r.decoder.PacketCapacity()
	case OutcomeRxComplete:
		ev.Type = EventEndOfTransmission
		r.logger.Debug("ReceiveByte: EOT after %d packets", r.decoder.PacketsReceived())
	case OutcomeSuccess:
		ev.Type = EventFileComplete
	case OutcomeSizeErr, OutcomeWriteErr:
		ev.Type = EventError
	case OutcomeAbort, OutcomeAborted:
		ev.Type = EventCancelled
	}
	if r.pending.Final != StatusOK {
		ev.Status = r.pending.Final
	}
	r.callbacks.OnEvent(ev)
}

// Status returns the latched terminal status, StatusOK while the transfer runs.
func (r *Receiver) Status() Status { return r.finalStatus }

// Response returns the last generated response.
func (r *Receiver) Response() Response { return r.pending }

// State returns the decoder state.
func (r *Receiver) State() State { return r.decoder.State() }

// PacketsReceived returns the number of accepted packets, metadata included.
func (r *Receiver) PacketsReceived() uint32 { return r.decoder.PacketsReceived() }

// FileName returns the name announced by the sender.
func (r *Receiver) FileName() string { return r.decoder.FileName() }

// FileSize returns the size announced by the sender.
func (r *Receiver) FileSize() uint64 { return r.decoder.FileSize() }
