// Package wire implements the append-to-tail / pop-from-tail byte vector
// codec every MAC record serializes through. Values are appended in field
// declaration order; deserialization pops in the exact reverse order, the
// same push_bytes/pop_bytes discipline the 5G-Range reference stack uses,
// carried over from this codebase's ASDU codec (asdu/codec.go).
package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rangecore/mac5g/internal/macerr"
)

// Buffer is a little-endian byte vector with append-at-tail write methods
// and pop-from-tail read methods. The zero value is an empty write buffer;
// NewReader wraps an existing slice for decoding.
type Buffer struct {
	b []byte
}

// NewReader wraps buf for decoding. buf is not copied.
func NewReader(buf []byte) *Buffer {
	return &Buffer{b: buf}
}

// Bytes returns the buffer's current contents.
func (this *Buffer) Bytes() []byte {
	return this.b
}

// Len reports the number of bytes remaining.
func (this *Buffer) Len() int {
	return len(this.b)
}

func (this *Buffer) AppendU8(v uint8) *Buffer {
	this.b = append(this.b, v)
	return this
}

func (this *Buffer) AppendBool(v bool) *Buffer {
	if v {
		return this.AppendU8(1)
	}
	return this.AppendU8(0)
}

func (this *Buffer) AppendU16(v uint16) *Buffer {
	this.b = append(this.b, byte(v), byte(v>>8))
	return this
}

func (this *Buffer) AppendU32(v uint32) *Buffer {
	this.b = append(this.b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	return this
}

func (this *Buffer) AppendU64(v uint64) *Buffer {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	this.b = append(this.b, tmp[:]...)
	return this
}

func (this *Buffer) AppendFloat32(f float32) *Buffer {
	return this.AppendU32(math.Float32bits(f))
}

func (this *Buffer) AppendBytes(v ...byte) *Buffer {
	this.b = append(this.b, v...)
	return this
}

// AppendVector appends payload then its trailing length, matching the
// reference stack's serialize_vector convention (payload bytes, then size).
func (this *Buffer) AppendVector(v []byte) *Buffer {
	this.b = append(this.b, v...)
	return this.AppendU16(uint16(len(v)))
}

// AppendFloat32Vector is AppendVector specialised for []float32 (used by
// per-RB SNR reports).
func (this *Buffer) AppendFloat32Vector(v []float32) *Buffer {
	for _, f := range v {
		this.AppendFloat32(f)
	}
	return this.AppendU16(uint16(len(v)))
}

func (this *Buffer) need(n int) error {
	if len(this.b) < n {
		return fmt.Errorf("wire: need %d bytes, have %d: %w", n, len(this.b), macerr.ErrMalformedFrame)
	}
	return nil
}

func (this *Buffer) PopU8() (uint8, error) {
	if err := this.need(1); err != nil {
		return 0, err
	}
	v := this.b[len(this.b)-1]
	this.b = this.b[:len(this.b)-1]
	return v, nil
}

func (this *Buffer) PopBool() (bool, error) {
	v, err := this.PopU8()
	return v != 0, err
}

func (this *Buffer) PopU16() (uint16, error) {
	if err := this.need(2); err != nil {
		return 0, err
	}
	n := len(this.b)
	v := binary.LittleEndian.Uint16(this.b[n-2:])
	this.b = this.b[:n-2]
	return v, nil
}

func (this *Buffer) PopU32() (uint32, error) {
	if err := this.need(4); err != nil {
		return 0, err
	}
	n := len(this.b)
	v := binary.LittleEndian.Uint32(this.b[n-4:])
	this.b = this.b[:n-4]
	return v, nil
}

func (this *Buffer) PopU64() (uint64, error) {
	if err := this.need(8); err != nil {
		return 0, err
	}
	n := len(this.b)
	v := binary.LittleEndian.Uint64(this.b[n-8:])
	this.b = this.b[:n-8]
	return v, nil
}

func (this *Buffer) PopFloat32() (float32, error) {
	v, err := this.PopU32()
	return math.Float32frombits(v), err
}

// PopBytes pops the last n bytes.
func (this *Buffer) PopBytes(n int) ([]byte, error) {
	if err := this.need(n); err != nil {
		return nil, err
	}
	k := len(this.b)
	out := make([]byte, n)
	copy(out, this.b[k-n:])
	this.b = this.b[:k-n]
	return out, nil
}

// PopVector pops a trailing length then that many payload bytes, the mirror
// of AppendVector.
func (this *Buffer) PopVector() ([]byte, error) {
	n, err := this.PopU16()
	if err != nil {
		return nil, err
	}
	return this.PopBytes(int(n))
}

// PopFloat32Vector is PopVector specialised for []float32.
func (this *Buffer) PopFloat32Vector() ([]float32, error) {
	n, err := this.PopU16()
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := int(n) - 1; i >= 0; i-- {
		f, err := this.PopFloat32()
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
