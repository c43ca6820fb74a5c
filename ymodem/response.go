package ymodem

// Response is what the host has to send back for one outcome.
type Response struct {
	payload [maxResponseLength]byte
	n       int

	// Status is returned to the caller of ReceiveByte.
	Status Status

	// Final is the status the receiver latches, StatusOK if the transfer goes on.
	Final Status

	// NotifyAbort asks the driver to tell the sink the transfer was aborted.
	NotifyAbort bool
}

// Bytes returns the wire bytes.
func (r Response) Bytes() []byte {
	return r.payload[:r.n]
}

// Len returns the number of wire bytes.
func (r Response) Len() int { return r.n }

func response(final Status, notify bool, b ...byte) Response {
	r := Response{Status: StatusTxPending, Final: final, NotifyAbort: notify}
	r.n = copy(r.payload[:], b)
	return r
}

// Respond maps a decoder outcome to its wire response.
func Respond(o Outcome) Response {
	switch o {
	case OutcomeRxError:
		return response(StatusOK, false, NAK)
	case OutcomeStartRx, OutcomeRxComplete:
		return response(StatusOK, false, ACK, WANTCRC)
	case OutcomeRxOK:
		return response(StatusOK, false, ACK)
	case OutcomeSuccess:
		return response(StatusComplete, false, ACK)
	case OutcomeSizeErr:
		return response(StatusSizeErr, true, CAN, CAN)
	case OutcomeWriteErr:
		return response(StatusWriteErr, true, CAN, CAN)
	case OutcomeAbort:
		return response(StatusAborted, true, CAN, CAN)
	case OutcomeAborted:
		return response(StatusAborted, true, WANTCRC)
	default:
		return Response{Status: StatusOK, Final: StatusOK}
	}
}
