package cram

import (
	"fmt"
	"io"
)

// byteReader decodes the CRAM primitive types from an in-memory buffer.
// All methods record the first error; callers may batch calls and check
// err once.
type byteReader struct {
	data []byte
	pos  int
	err  error
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (b *byteReader) fail() {
	if b.err == nil {
		b.err = fmt.Errorf("%w: truncated value at offset %d", ErrCorrupt, b.pos)
	}
}

func (b *byteReader) u8() byte {
	if b.err != nil {
		return 0
	}
	if b.pos >= len(b.data) {
		b.fail()
		return 0
	}
	c := b.data[b.pos]
	b.pos++
	return c
}

func (b *byteReader) bytes(n int) []byte {
	if b.err != nil {
		return nil
	}
	if n < 0 || b.pos+n > len(b.data) {
		b.fail()
		return nil
	}
	s := b.data[b.pos : b.pos+n]
	b.pos += n
	return s
}

// bytesUntil returns the bytes up to (excluding) the next occurrence of
// stop, and consumes the stop byte.
func (b *byteReader) bytesUntil(stop byte) []byte {
	if b.err != nil {
		return nil
	}
	for i := b.pos; i < len(b.data); i++ {
		if b.data[i] == stop {
			s := b.data[b.pos:i]
			b.pos = i + 1
			return s
		}
	}
	b.fail()
	return nil
}

func (b *byteReader) len() int { return len(b.data) - b.pos }

// itf8 decodes one ITF8-encoded signed 32-bit integer. The number of
// leading one bits in the first byte gives the number of continuation
// bytes; the fifth byte, when present, contributes only its low nibble.
func (b *byteReader) itf8() int32 {
	b0 := uint32(b.u8())
	switch {
	case b0 < 0x80:
		return int32(b0)
	case b0 < 0xc0:
		return int32((b0&0x3f)<<8 | uint32(b.u8()))
	case b0 < 0xe0:
		return int32((b0&0x1f)<<16 | uint32(b.u8())<<8 | uint32(b.u8()))
	case b0 < 0xf0:
		return int32((b0&0x0f)<<24 | uint32(b.u8())<<16 | uint32(b.u8())<<8 | uint32(b.u8()))
	default:
		return int32((b0&0x0f)<<28 | uint32(b.u8())<<20 | uint32(b.u8())<<12 |
			uint32(b.u8())<<4 | uint32(b.u8())&0x0f)
	}
}

// ltf8 decodes one LTF8-encoded signed 64-bit integer.
func (b *byteReader) ltf8() int64 {
	b0 := b.u8()
	n := 0
	for mask := byte(0x80); mask != 0 && b0&mask != 0; mask >>= 1 {
		n++
	}
	var v uint64
	if n < 8 {
		v = uint64(b0 & (0xff >> uint(n+1)))
	}
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(b.u8())
	}
	return int64(v)
}

// itf8Array decodes a count-prefixed array of ITF8 values.
func (b *byteReader) itf8Array() []int32 {
	n := b.itf8()
	if b.err != nil || n < 0 || int(n) > b.len() {
		b.fail()
		return nil
	}
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = b.itf8()
	}
	return vals
}

// bitReader reads MSB-first bits from a slice, as used by the CRAM core
// block codecs.
type bitReader struct {
	data []byte
	pos  int // bit position
	err  error
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (b *bitReader) bit() uint32 {
	if b.err != nil {
		return 0
	}
	if b.pos>>3 >= len(b.data) {
		if b.err == nil {
			b.err = fmt.Errorf("%w: core block exhausted", ErrCorrupt)
		}
		return 0
	}
	v := uint32(b.data[b.pos>>3]>>(7-uint(b.pos&7))) & 1
	b.pos++
	return v
}

func (b *bitReader) bits(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | b.bit()
	}
	return v
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
