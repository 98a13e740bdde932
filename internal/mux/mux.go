// Package mux packs and unpacks the SDU stream carried inside one MAC
// PDU's payload, per SPEC_FULL §4.4. Control SDUs are inserted ahead of
// Data SDUs at a running control offset; each SDU is framed with a 16-bit
// size/flag header, mirroring the reference stack's Multiplexer.
package mux

import (
	"fmt"

	"github.com/rangecore/mac5g/internal/macerr"
)

// FlagDataControl marks whether one multiplexed SDU is Data or Control.
type FlagDataControl uint8

const (
	FlagData    FlagDataControl = 0
	FlagControl FlagDataControl = 1
)

// headerSize is the two-byte MAC header: (source<<4)|destination nibble-
// packed into byte 0, number of SDUs in byte 1, matching insertMacHeader's
// buffer[0]=(sourceAddress<<4)|(destinationAddress&15); buffer[1]=numberSDUs.
const headerSize = 2

// sduHeaderSize is the per-SDU size+flag prefix: 15 bits of size packed
// with 1 bit of flag into a big-endian uint16 (flag in the MSB).
const sduHeaderSize = 2

// crcSize is the CRC-16 budget reserved in every PDU's byte count.
const crcSize = 2

// Multiplexer accumulates SDUs up to maxBytes, inserting Control SDUs at a
// running offset ahead of Data SDUs so a demultiplexer can recover both
// streams in the order they were added within each class.
type Multiplexer struct {
	maxBytes            int
	source, destination uint8
	controlCount        int // number of Control SDUs inserted so far
	controlBytes        int // running byte offset those SDUs occupy
	sizes               []uint16
	flags               []FlagDataControl
	payload             []byte
}

// New creates a Multiplexer with room for maxBytes total PDU payload bytes.
func New(maxBytes int, source, destination uint8) *Multiplexer {
	return &Multiplexer{maxBytes: maxBytes, source: source, destination: destination}
}

// CurrentBytes returns the number of bytes the PDU would occupy if finished
// now: the header, the 2-byte CRC budget, plus every SDU's own header and
// body. GetPDU's output is this minus the CRC budget.
func (m *Multiplexer) CurrentBytes() int {
	total := headerSize + crcSize
	for _, s := range m.sizes {
		total += sduHeaderSize + int(s)
	}
	return total
}

// IsEmpty reports whether any SDU has been added.
func (m *Multiplexer) IsEmpty() bool { return len(m.sizes) == 0 }

// AddSDU appends sdu to the multiplexed stream if it fits within maxBytes;
// Control SDUs are recorded ahead of the running control offset so they
// serialize before Data SDUs added later. Returns false (no error) if the
// SDU would overflow capacity -- the caller is expected to retry next
// subframe, per SPEC_FULL §4.3's capacity-exceeded handling.
func (m *Multiplexer) AddSDU(sdu []byte, flag FlagDataControl) (bool, error) {
	if len(sdu) > 0x7FFF {
		return false, fmt.Errorf("mux: sdu of %d bytes exceeds frame field: %w", len(sdu), macerr.ErrMalformedFrame)
	}
	if m.CurrentBytes()+sduHeaderSize+len(sdu) > m.maxBytes {
		return false, nil
	}
	if flag == FlagControl {
		m.payload = insertBytesAt(m.payload, m.controlBytes, sdu)
		m.sizes = insertAt(m.sizes, m.controlCount, uint16(len(sdu)))
		m.flags = insertAt(m.flags, m.controlCount, flag)
		m.controlCount++
		m.controlBytes += len(sdu)
	} else {
		m.payload = append(m.payload, sdu...)
		m.sizes = append(m.sizes, uint16(len(sdu)))
		m.flags = append(m.flags, flag)
	}
	return true, nil
}

func insertBytesAt(buf []byte, at int, sdu []byte) []byte {
	out := make([]byte, 0, len(buf)+len(sdu))
	out = append(out, buf[:at]...)
	out = append(out, sdu...)
	out = append(out, buf[at:]...)
	return out
}

// insertAt inserts v at index i of a generic slice, shifting the tail right.
func insertAt[T any](s []T, i int, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	out = append(out, s[i:]...)
	return out
}

// GetPDU finalizes the multiplexed payload, prepending the MAC header:
// (source<<4)|destination nibble-packed into byte 0, SDU count in byte 1,
// followed by each SDU's (flag<<15|size) header and bytes: Control SDUs
// first, then Data SDUs, each class in the order it was added.
func (m *Multiplexer) GetPDU() []byte {
	out := make([]byte, 0, headerSize+m.CurrentBytes())
	out = append(out, m.source<<4|(m.destination&0xF), uint8(len(m.sizes)))
	pos := 0
	for idx, size := range m.sizes {
		hdr := size & 0x7FFF
		if m.flags[idx] == FlagControl {
			hdr |= 0x8000
		}
		out = append(out, byte(hdr>>8), byte(hdr))
		out = append(out, m.payload[pos:pos+int(size)]...)
		pos += int(size)
	}
	return out
}

// Demultiplexer walks a PDU payload produced by Multiplexer.GetPDU, giving
// back each SDU and its flag in wire order.
type Demultiplexer struct {
	numSDUs             uint8
	source, destination uint8
	remaining           []byte
}

// NewDemultiplexer parses pdu's header and positions the reader at the
// first SDU.
func NewDemultiplexer(pdu []byte) (*Demultiplexer, error) {
	if len(pdu) < headerSize {
		return nil, fmt.Errorf("mux: pdu shorter than header: %w", macerr.ErrMalformedFrame)
	}
	return &Demultiplexer{
		numSDUs:     pdu[1],
		source:      pdu[0] >> 4,
		destination: pdu[0] & 0xF,
		remaining:   pdu[headerSize:],
	}, nil
}

func (d *Demultiplexer) Source() uint8      { return d.source }
func (d *Demultiplexer) Destination() uint8 { return d.destination }
func (d *Demultiplexer) NumSDUs() uint8     { return d.numSDUs }

// Next returns the next SDU and its flag, or ok=false once exhausted.
func (d *Demultiplexer) Next() (sdu []byte, flag FlagDataControl, ok bool, err error) {
	if len(d.remaining) == 0 {
		return nil, 0, false, nil
	}
	if len(d.remaining) < sduHeaderSize {
		return nil, 0, false, fmt.Errorf("mux: truncated sdu header: %w", macerr.ErrMalformedFrame)
	}
	hdr := uint16(d.remaining[0])<<8 | uint16(d.remaining[1])
	size := hdr & 0x7FFF
	if hdr&0x8000 != 0 {
		flag = FlagControl
	}
	body := d.remaining[sduHeaderSize:]
	if len(body) < int(size) {
		return nil, 0, false, fmt.Errorf("mux: truncated sdu body: %w", macerr.ErrMalformedFrame)
	}
	sdu = body[:size]
	d.remaining = body[size:]
	return sdu, flag, true, nil
}
