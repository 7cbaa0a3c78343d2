package packet

import (
	"encoding/binary"
	"math"
)

// byteOrder is fixed for the whole protocol; client and server must agree.
var byteOrder = binary.BigEndian

// Buffer is a byte cursor used to encode and decode packet payloads.
// Writes append to the end; reads consume from the current position.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer wraps data for reading.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the whole underlying slice.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the total number of bytes in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.pos
}

// Pos returns the read cursor.
func (b *Buffer) Pos() int {
	return b.pos
}

func (b *Buffer) take(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, malformed("need %d bytes at offset %d, have %d", n, b.pos, b.Remaining())
	}
	out := b.data[b.pos : b.pos+n]
	b.pos += n
	return out, nil
}

// ReadU8 reads one byte.
func (b *Buffer) ReadU8() (uint8, error) {
	p, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadBool reads a byte that must be 0 or 1.
func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, malformed("invalid bool %d", v)
	}
}

// ReadU16 reads a u16.
func (b *Buffer) ReadU16() (uint16, error) {
	p, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(p), nil
}

// ReadU32 reads a u32.
func (b *Buffer) ReadU32() (uint32, error) {
	p, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(p), nil
}

// ReadI32 reads an i32.
func (b *Buffer) ReadI32() (int32, error) {
	v, err := b.ReadU32()
	return int32(v), err
}

// ReadU64 reads a u64.
func (b *Buffer) ReadU64() (uint64, error) {
	p, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint64(p), nil
}

// ReadF32 reads an IEEE-754 float32.
func (b *Buffer) ReadF32() (float32, error) {
	v, err := b.ReadU32()
	return math.Float32frombits(v), err
}

// ReadBytes reads exactly n bytes into a new slice.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	p, err := b.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), p...), nil
}

// ReadString reads a u16 length-prefixed string.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadU16()
	if err != nil {
		return "", err
	}
	p, err := b.take(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// ReadKey reads a fixed 32-byte public key.
func (b *Buffer) ReadKey() ([32]byte, error) {
	var key [32]byte
	p, err := b.take(len(key))
	if err != nil {
		return key, err
	}
	copy(key[:], p)
	return key, nil
}

// WriteU8 appends one byte.
func (b *Buffer) WriteU8(v uint8) {
	b.data = append(b.data, v)
}

// WriteBool appends 1 for true and 0 for false.
func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteU8(1)
		return
	}
	b.WriteU8(0)
}

// WriteU16 appends a u16.
func (b *Buffer) WriteU16(v uint16) {
	b.data = byteOrder.AppendUint16(b.data, v)
}

// WriteU32 appends a u32.
func (b *Buffer) WriteU32(v uint32) {
	b.data = byteOrder.AppendUint32(b.data, v)
}

// WriteI32 appends an i32.
func (b *Buffer) WriteI32(v int32) {
	b.WriteU32(uint32(v))
}

// WriteU64 appends a u64.
func (b *Buffer) WriteU64(v uint64) {
	b.data = byteOrder.AppendUint64(b.data, v)
}

// WriteF32 appends an IEEE-754 float32.
func (b *Buffer) WriteF32(v float32) {
	b.WriteU32(math.Float32bits(v))
}

// WriteBytes appends p verbatim.
func (b *Buffer) WriteBytes(p []byte) {
	b.data = append(b.data, p...)
}

// WriteString appends a u16 length-prefixed string, truncated to 65535 bytes.
func (b *Buffer) WriteString(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	b.WriteU16(uint16(len(s)))
	b.data = append(b.data, s...)
}

// WriteKey appends a fixed 32-byte public key.
func (b *Buffer) WriteKey(key [32]byte) {
	b.data = append(b.data, key[:]...)
}
