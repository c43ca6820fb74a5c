package ymodem

import (
	"bytes"
	"errors"
	"strconv"
)

// buildPacket frames payload (zero padded to the packet size) as the sender would.
func buildPacket(start byte, seq byte, payload []byte) []byte {
	size := PacketSize
	if start == STX {
		size = PacketSize1K
	}
	body := make([]byte, size)
	copy(body, payload)

	crc := CRC16(body)
	pkt := []byte{start, seq, ^seq}
	pkt = append(pkt, body...)
	return append(pkt, byte(crc>>8), byte(crc))
}

func headerPacket(name string, size int) []byte {
	payload := append([]byte(name), 0)
	payload = append(payload, []byte(strconv.Itoa(size)+" ")...)
	return buildPacket(SOH, 0, payload)
}

// recordingSink records every event and can fail on a chosen kind.
type recordingSink struct {
	events []FileEvent
	data   bytes.Buffer
	failOn map[FileEventKind]bool
}

func (s *recordingSink) HandleFileEvent(ev FileEvent) error {
	rec := ev
	if ev.Data != nil {
		rec.Data = append([]byte(nil), ev.Data...)
		s.data.Write(ev.Data)
	}
	s.events = append(s.events, rec)
	if s.failOn[ev.Kind] {
		return errors.New("sink failure")
	}
	return nil
}

func (s *recordingSink) kinds() []FileEventKind {
	out := make([]FileEventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (s *recordingSink) count(kind FileEventKind) int {
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// feed pushes every byte into r and returns the status of the last one.
func feed(r *Receiver, in []byte) (Status, error) {
	var st Status
	for _, c := range in {
		var err error
		st, err = r.ReceiveByte(c)
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("line down") }
