package ymodem

// State is the decoder's position in the packet framing state machine.
type State int

const (
	StateAwaitingPacketStart State = iota
	StateAccumulatingPacketBody
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateAwaitingPacketStart:
		return "awaiting_packet_start"
	case StateAccumulatingPacketBody:
		return "accumulating_packet_body"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is what the decoder concluded from one input byte.
type Outcome int

const (
	OutcomeNone       Outcome = iota // byte consumed, nothing to say
	OutcomeAborted                   // double CAN from the sender
	OutcomeAbort                     // empty metadata packet or user abort, close gracefully
	OutcomeWriteErr                  // sink rejected a data packet
	OutcomeSizeErr                   // sink rejected the metadata packet
	OutcomeStartRx                   // metadata packet accepted
	OutcomeRxError                   // packet or byte rejected, sender should retransmit
	OutcomeRxOK                      // data packet accepted
	OutcomeRxComplete                // EOT seen
	OutcomeSuccess                   // closing packet after EOT
)

var outcomeNames = []string{
	"none",
	"aborted",
	"abort",
	"write_error",
	"size_error",
	"start_receive",
	"receive_error",
	"receive_ok",
	"receive_complete",
	"success",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Terminal reports whether the outcome ends the transfer.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeAborted, OutcomeAbort, OutcomeWriteErr, OutcomeSizeErr, OutcomeSuccess:
		return true
	}
	return false
}

// Decoder is the byte-at-a-time YMODEM packet state machine.
//
// All buffers are embedded, so a Decoder never allocates while decoding.
// The zero value is not ready for use; call Reset first.
type Decoder struct {
	fileName    [MaxFileNameLength]byte
	fileNameLen int
	fileSize    uint64

	packet      [MaxPacketLength]byte
	capacity    int
	accumulated int

	state           State
	previousByte    byte
	eotSeen         bool
	packetsReceived uint32

	// reason why the last OutcomeRxError was produced
	reject ErrorType

	sink FileSink
}

// NewDecoder returns a decoder delivering file events to sink.
func NewDecoder(sink FileSink) *Decoder {
	d := &Decoder{}
	d.Reset(sink)
	return d
}

// Reset clears all transfer state and installs sink. A nil sink discards events.
func (d *Decoder) Reset(sink FileSink) {
	if sink == nil {
		sink = discardSink{}
	}
	d.fileName = [MaxFileNameLength]byte{}
	d.fileNameLen = 0
	d.fileSize = 0
	d.packet = [MaxPacketLength]byte{}
	d.capacity = 0
	d.accumulated = 0
	d.state = StateAwaitingPacketStart
	d.previousByte = 0
	d.eotSeen = false
	d.packetsReceived = 0
	d.reject = ErrProtocol
	d.sink = sink
}

// State returns the current state.
func (d *Decoder) State() State { return d.state }

// PacketsReceived returns the number of accepted packets, metadata included.
func (d *Decoder) PacketsReceived() uint32 { return d.packetsReceived }

// FileName returns the name from the metadata packet.
func (d *Decoder) FileName() string { return string(d.fileName[:d.fileNameLen]) }

// FileSize returns the size from the metadata packet, 0 if absent or invalid.
func (d *Decoder) FileSize() uint64 { return d.fileSize }

// RejectReason returns why the most recent OutcomeRxError was produced.
func (d *Decoder) RejectReason() ErrorType { return d.reject }

// PacketCapacity returns the payload size of the current or last packet.
func (d *Decoder) PacketCapacity() int { return d.capacity }

// Step consumes one byte. A terminal decoder ignores input until Reset.
func (d *Decoder) Step(c byte) Outcome {
	var out Outcome
	switch d.state {
	case StateTerminal:
		return OutcomeNone
	case StateAwaitingPacketStart:
		out = d.packetStart(c)
	case StateAccumulatingPacketBody:
		out = d.accumulate(c)
	}
	d.previousByte = c
	if out.Terminal() {
		d.state = StateTerminal
	}
	return out
}

func (d *Decoder) packetStart(c byte) Outcome {
	switch c {
	case SOH:
		d.beginPacket(c, PacketSize)
		return OutcomeNone
	case STX:
		d.beginPacket(c, PacketSize1K)
		return OutcomeNone
	case EOT:
		// the sender follows EOT with one more packet
		d.eotSeen = true
		return OutcomeRxComplete
	case CAN:
		if d.previousByte == CAN {
			return OutcomeAborted
		}
		return OutcomeNone
	case ABORT1, ABORT2:
		return OutcomeAbort
	default:
		d.reject = ErrProtocol
		return OutcomeRxError
	}
}

func (d *Decoder) beginPacket(c byte, capacity int) {
	d.capacity = capacity
	d.packet[0] = c
	d.accumulated = 1
	d.state = StateAccumulatingPacketBody
}

func (d *Decoder) accumulate(c byte) Outcome {
	d.packet[d.accumulated] = c
	d.accumulated++
	if d.accumulated < d.capacity+PacketOverhead {
		return OutcomeNone
	}

	defer d.endPacket()

	if d.packet[seqIndex] != ^d.packet[seqCompIndex] {
		d.reject = ErrFraming
		return OutcomeRxError
	}
	return d.processPacket()
}

func (d *Decoder) endPacket() {
	d.accumulated = 0
	d.state = StateAwaitingPacketStart
}

// DropPacket discards a partially received packet and forgets the last byte,
// so the next byte is taken as a packet start.
func (d *Decoder) DropPacket() {
	if d.state == StateAccumulatingPacketBody {
		d.endPacket()
	}
	d.previousByte = 0
}

func (d *Decoder) payload() []byte {
	return d.packet[PacketHeader : PacketHeader+d.capacity]
}

func (d *Decoder) processPacket() Outcome {
	if d.eotSeen {
		_ = d.sink.HandleFileEvent(FileEvent{Kind: FileEventEnd})
		return OutcomeSuccess
	}
	if d.packet[seqIndex] != byte(d.packetsReceived) {
		d.reject = ErrSequence
		return OutcomeRxError
	}
	trailer := d.packet[PacketHeader+d.capacity : PacketHeader+d.capacity+PacketTrailer]
	if !checkCRC(d.payload(), trailer) {
		d.reject = ErrCRC
		return OutcomeRxError
	}
	if d.packetsReceived == 0 {
		return d.processHeaderPacket()
	}
	return d.processDataPacket()
}

func (d *Decoder) processDataPacket() Outcome {
	if err := d.sink.HandleFileEvent(FileEvent{Kind: FileEventData, Data: d.payload()}); err != nil {
		return OutcomeWriteErr
	}
	d.packetsReceived++
	return OutcomeRxOK
}

// processHeaderPacket reads "name\0size ..." from packet 0.
func (d *Decoder) processHeaderPacket() Outcome {
	p := d.payload()
	if p[0] == 0 {
		// empty name: the sender has no more files
		return OutcomeAbort
	}

	i := 0
	for i < len(p) && i < MaxFileNameLength && p[i] != 0 {
		d.fileName[i] = p[i]
		i++
	}
	d.fileNameLen = i
	i++ // terminator

	start := i
	for i < len(p) && i-start < MaxFileSizeLength && p[i] != ' ' {
		i++
	}
	if start < len(p) {
		if size, ok := parseDecimal(p[start:i]); ok {
			d.fileSize = size
		}
	}

	ev := FileEvent{Kind: FileEventName, Name: d.FileName(), Size: d.fileSize}
	if err := d.sink.HandleFileEvent(ev); err != nil {
		return OutcomeSizeErr
	}
	d.packetsReceived++
	return OutcomeStartRx
}
