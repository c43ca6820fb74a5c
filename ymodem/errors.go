package ymodem

import (
	"errors"
	"fmt"
)

// Error represents a YMODEM protocol error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// Status is the receiver status that produced the error, if any
	Status Status
}

// ErrorType categorizes YMODEM errors
type ErrorType int

const (
	// ErrProtocol indicates an unexpected byte while waiting for a packet
	ErrProtocol ErrorType = iota

	// ErrFraming indicates a sequence byte that does not match its complement
	ErrFraming

	// ErrSequence indicates an out of order packet
	ErrSequence

	// ErrCRC indicates a CRC mismatch
	ErrCRC

	// ErrTimeout indicates the sender went quiet
	ErrTimeout

	// ErrIO indicates a transport error
	ErrIO

	// ErrCancelled indicates the transfer was cancelled by either side
	ErrCancelled

	// ErrSize indicates the sink refused the announced file
	ErrSize

	// ErrWrite indicates the sink failed to store a data packet
	ErrWrite

	// ErrNotInitialized indicates the receiver was used before Init
	ErrNotInitialized
)

func (e *Error) Error() string {
	if e.Status != StatusOK {
		return fmt.Sprintf("ymodem %s: %s (status: %s)", e.Type, e.Message, e.Status)
	}
	return fmt.Sprintf("ymodem %s: %s", e.Type, e.Message)
}

func (t ErrorType) String() string {
	switch t {
	case ErrProtocol:
		return "protocol error"
	case ErrFraming:
		return "framing error"
	case ErrSequence:
		return "sequence error"
	case ErrCRC:
		return "CRC error"
	case ErrTimeout:
		return "timeout"
	case ErrIO:
		return "I/O error"
	case ErrCancelled:
		return "cancelled"
	case ErrSize:
		return "size error"
	case ErrWrite:
		return "write error"
	case ErrNotInitialized:
		return "not initialized"
	default:
		return "unknown error"
	}
}

// NewError creates a new YMODEM error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// newStatusError maps a terminal status to the error a host loop returns.
// COMPLETE maps to nil.
func newStatusError(status Status) error {
	switch status {
	case StatusComplete:
		return nil
	case StatusAborted:
		return &Error{Type: ErrCancelled, Message: "transfer aborted", Status: status}
	case StatusSizeErr:
		return &Error{Type: ErrSize, Message: "file rejected by sink", Status: status}
	case StatusWriteErr:
		return &Error{Type: ErrWrite, Message: "data rejected by sink", Status: status}
	default:
		return &Error{Type: ErrProtocol, Message: "transfer did not finish", Status: status}
	}
}

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return isType(err, ErrTimeout)
}

// IsCRC checks if an error is a CRC error
func IsCRC(err error) bool {
	return isType(err, ErrCRC)
}

// IsCancelled checks if an error indicates cancellation
func IsCancelled(err error) bool {
	return isType(err, ErrCancelled)
}

// IsNotInitialized checks if an error reports use before Init
func IsNotInitialized(err error) bool {
	return isType(err, ErrNotInitialized)
}
