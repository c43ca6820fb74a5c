package ymodem

import (
	"bytes"
	"testing"
)

func TestRespond(t *testing.T) {
	tests := []struct {
		outcome    Outcome
		wire       []byte
		status     Status
		final      Status
		notifyAbrt bool
	}{
		{OutcomeNone, nil, StatusOK, StatusOK, false},
		{OutcomeRxError, []byte{NAK}, StatusTxPending, StatusOK, false},
		{OutcomeStartRx, []byte{ACK, WANTCRC}, StatusTxPending, StatusOK, false},
		{OutcomeRxComplete, []byte{ACK, WANTCRC}, StatusTxPending, StatusOK, false},
		{OutcomeRxOK, []byte{ACK}, StatusTxPending, StatusOK, false},
		{OutcomeSuccess, []byte{ACK}, StatusTxPending, StatusComplete, false},
		{OutcomeSizeErr, []byte{CAN, CAN}, StatusTxPending, StatusSizeErr, true},
		{OutcomeWriteErr, []byte{CAN, CAN}, StatusTxPending, StatusWriteErr, true},
		{OutcomeAbort, []byte{CAN, CAN}, StatusTxPending, StatusAborted, true},
		{OutcomeAborted, []byte{WANTCRC}, StatusTxPending, StatusAborted, true},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			r := Respond(tt.outcome)
			if !bytes.Equal(r.Bytes(), tt.wire) {
				t.Errorf("wire = % x, want % x", r.Bytes(), tt.wire)
			}
			if r.Len() != len(tt.wire) {
				t.Errorf("Len() = %d, want %d", r.Len(), len(tt.wire))
			}
			if r.Status != tt.status {
				t.Errorf("Status = %s, want %s", r.Status, tt.status)
			}
			if r.Final != tt.final {
				t.Errorf("Final = %s, want %s", r.Final, tt.final)
			}
			if r.NotifyAbort != tt.notifyAbrt {
				t.Errorf("NotifyAbort = %v, want %v", r.NotifyAbort, tt.notifyAbrt)
			}
			if tt.outcome.Terminal() != (tt.final != StatusOK) {
				t.Errorf("Terminal() = %v disagrees with final status %s", tt.outcome.Terminal(), tt.final)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	if StatusTxPending.String() != "TX_PENDING" {
		t.Errorf("got %q", StatusTxPending.String())
	}
	if Status(99).String() != "UNKNOWN" {
		t.Errorf("got %q", Status(99).String())
	}
	for _, s := range []Status{StatusOK, StatusTxPending} {
		if s.Terminal() {
			t.Errorf("%s reported terminal", s)
		}
	}
	for _, s := range []Status{StatusAborted, StatusWriteErr, StatusSizeErr, StatusComplete} {
		if !s.Terminal() {
			t.Errorf("%s not reported terminal", s)
		}
	}
}
