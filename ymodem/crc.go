package ymodem

import "encoding/binary"

// crcPoly is the CCITT polynomial used by XMODEM/YMODEM.
const crcPoly = 0x1021

// crcUpdate shifts one bit into the register.
func crcUpdate(crc uint16, bit bool) uint16 {
	xor := crc&0x8000 != 0
	out := crc << 1
	if bit {
		out++
	}
	if xor {
		out ^= crcPoly
	}
	return out
}

// CRC16 computes the packet checksum bit by bit, most significant bit first,
// and flushes 16 zero bits through the register afterwards. The result is the
// CRC-16/XMODEM value the sender appends to each packet.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			crc = crcUpdate(crc, b&mask != 0)
		}
	}
	for i := 0; i < 16; i++ {
		crc = crcUpdate(crc, false)
	}
	return crc
}

// checkCRC compares the payload checksum against the big-endian trailer.
func checkCRC(payload, trailer []byte) bool {
	return CRC16(payload) == binary.BigEndian.Uint16(trailer)
}
