// Package ymodem implements the receiving side of the YMODEM file transfer protocol.
//
// YMODEM is a block-oriented transfer protocol used over serial links. A transfer
// starts with a metadata packet (sequence 0) carrying the file name and size,
// followed by 128 or 1024 byte data packets, each protected by a CRC-16.
//
// The package is layered the same way a host would use it:
//   - Decoder is the byte-at-a-time state machine. It reassembles and validates
//     packets, calls the FileSink and returns a tagged Outcome.
//   - Respond maps an Outcome to the bytes that go back on the wire.
//   - Receiver drives both and writes the response to the transmitter.
//   - Session is a blocking host loop over a transport (serial port, SSH, stdin).
package ymodem

// Control characters
const (
	SOH     = 0x01 // start of 128-byte packet
	STX     = 0x02 // start of 1024-byte packet
	EOT     = 0x04 // end of transmission
	ACK     = 0x06
	NAK     = 0x15
	CAN     = 0x18 // two in a row abort the transfer
	WANTCRC = 0x43 // 'C', request CRC-16 mode
	ABORT1  = 0x41 // 'A', user abort
	ABORT2  = 0x61 // 'a', user abort
)

// Packet layout
const (
	// PacketSize is the payload size of an SOH packet.
	PacketSize = 128

	// PacketSize1K is the payload size of an STX packet.
	PacketSize1K = 1024

	seqIndex     = 1
	seqCompIndex = 2

	// PacketHeader is the start marker plus the sequence byte and its complement.
	PacketHeader = 3

	// PacketTrailer is the CRC-16.
	PacketTrailer = 2

	PacketOverhead = PacketHeader + PacketTrailer

	// MaxPacketLength is the largest framed packet the decoder buffers.
	MaxPacketLength = PacketSize1K + PacketOverhead
)

// Metadata limits
const (
	MaxFileNameLength = 256
	MaxFileSizeLength = 16

	// maxDecimalDigits bounds the file size field.
	maxDecimalDigits = 10

	maxResponseLength = 5
)

// Status is returned to the host after every byte.
type Status int

const (
	StatusOK        Status = iota // ready for the next byte
	StatusTxPending               // a response was generated and handed to the transmitter
	StatusAborted
	StatusWriteErr
	StatusSizeErr
	StatusComplete
)

var statusNames = []string{
	"OK",
	"TX_PENDING",
	"ABORTED",
	"WRITE_ERR",
	"SIZE_ERR",
	"COMPLETE",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// Terminal reports whether the status ends the transfer.
func (s Status) Terminal() bool {
	switch s {
	case StatusAborted, StatusWriteErr, StatusSizeErr, StatusComplete:
		return true
	}
	return false
}
