// Package crc16 implements CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF, no
// input/output reflection, xorout 0), the variant this module documents as
// its choice for PDU integrity checking per SPEC_FULL §4.5.
package crc16

const (
	poly    = 0x1021
	initial = 0xFFFF
)

// Checksum computes the CRC-16/CCITT-FALSE checksum of data.
func Checksum(data []byte) uint16 {
	crc := uint16(initial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Append returns data with its CRC-16 appended, big-endian.
func Append(data []byte) []byte {
	c := Checksum(data)
	return append(append([]byte{}, data...), byte(c>>8), byte(c))
}

// Verify reports whether the trailing two bytes of framed match the CRC-16
// of the preceding bytes, and returns the payload with the CRC stripped.
func Verify(framed []byte) (payload []byte, ok bool) {
	if len(framed) < 2 {
		return nil, false
	}
	payload = framed[:len(framed)-2]
	want := uint16(framed[len(framed)-2])<<8 | uint16(framed[len(framed)-1])
	return payload, Checksum(payload) == want
}
