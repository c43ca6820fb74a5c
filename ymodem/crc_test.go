package ymodem

import (
	"math/rand"
	"testing"

	"github.com/sigurn/crc16"
)

func TestCRC16(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"check string", []byte("123456789"), 0x31C3},
		{"empty", nil, 0x0000},
		{"single zero", []byte{0x00}, 0x0000},
		{"letter A", []byte("A"), 0x58E5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC16(tt.data); got != tt.want {
				t.Errorf("CRC16(%q) = 0x%04X, want 0x%04X", tt.data, got, tt.want)
			}
		})
	}
}

func TestCRC16MatchesXMODEMTable(t *testing.T) {
	table := crc16.MakeTable(crc16.CRC16_XMODEM)
	rng := rand.New(rand.NewSource(1))

	for _, size := range []int{1, 3, PacketSize, PacketSize1K} {
		buf := make([]byte, size)
		rng.Read(buf)
		if got, want := CRC16(buf), crc16.Checksum(buf, table); got != want {
			t.Errorf("size %d: CRC16 = 0x%04X, table CRC = 0x%04X", size, got, want)
		}
	}
}

func TestCheckCRC(t *testing.T) {
	payload := []byte("123456789")

	if !checkCRC(payload, []byte{0x31, 0xC3}) {
		t.Error("big-endian trailer rejected")
	}
	if checkCRC(payload, []byte{0xC3, 0x31}) {
		t.Error("byte-swapped trailer accepted")
	}
}
