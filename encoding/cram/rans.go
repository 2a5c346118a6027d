package cram

import (
	"encoding/binary"
	"fmt"
)

// rANS-4x8 entropy decoder (CRAM 3.0 block compression method 4): four
// interleaved 32-bit range-ANS states over 12-bit normalized symbol
// frequencies, in order-0 (flat) or order-1 (byte context) form.

const (
	ransTotFreq = 1 << 12
	ransByteL   = 1 << 23
)

type ransStream struct {
	data []byte
	pos  int
}

func (s *ransStream) u8() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, fmt.Errorf("%w: truncated rANS stream", ErrCorrupt)
	}
	c := s.data[s.pos]
	s.pos++
	return c, nil
}

func (s *ransStream) u32() (uint32, error) {
	if s.pos+4 > len(s.data) {
		return 0, fmt.Errorf("%w: truncated rANS stream", ErrCorrupt)
	}
	v := binary.LittleEndian.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// peek returns the next byte without consuming it (0 at end of stream;
// the frequency tables are always followed by state words, so a bare
// end-of-stream here surfaces later as a truncation error).
func (s *ransStream) peek() byte {
	if s.pos >= len(s.data) {
		return 0
	}
	return s.data[s.pos]
}

// freqTable holds one context's normalized frequencies, cumulative
// frequencies and the 12-bit slot -> symbol lookup.
type freqTable struct {
	freq [256]uint32
	cum  [256]uint32
	slot []byte
}

// readFreqs reads one frequency table using the shared symbol
// run-length scheme: an explicit first symbol, then either explicit
// next symbols or {sym, runLength} pairs for consecutive runs, with a
// zero symbol byte terminating the table.
func readFreqs(s *ransStream, nextSym func() (byte, bool, error)) (*freqTable, error) {
	t := &freqTable{}
	var x uint32
	for {
		sym, done, err := nextSym()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		f0, err := s.u8()
		if err != nil {
			return nil, err
		}
		f := uint32(f0)
		if f >= 128 {
			f1, err := s.u8()
			if err != nil {
				return nil, err
			}
			f = (f&127)<<8 | uint32(f1)
		}
		t.freq[sym] = f
		t.cum[sym] = x
		x += f
	}
	if x > ransTotFreq {
		return nil, fmt.Errorf("%w: rANS frequencies exceed %d", ErrCorrupt, ransTotFreq)
	}
	t.slot = make([]byte, ransTotFreq)
	for sym := 0; sym < 256; sym++ {
		for i := t.cum[sym]; i < t.cum[sym]+t.freq[sym]; i++ {
			t.slot[i] = byte(sym)
		}
	}
	return t, nil
}

// symRLE returns a nextSym closure implementing the symbol run-length
// scheme over s.
func symRLE(s *ransStream) func() (byte, bool, error) {
	var (
		sym     byte
		rle     int
		started bool
	)
	return func() (byte, bool, error) {
		if !started {
			started = true
			c, err := s.u8()
			sym = c
			return sym, false, err
		}
		if rle > 0 {
			rle--
			sym++
			return sym, false, nil
		}
		if s.peek() == sym+1 {
			next, err := s.u8()
			if err != nil {
				return 0, false, err
			}
			run, err := s.u8()
			if err != nil {
				return 0, false, err
			}
			sym = next
			rle = int(run)
			return sym, false, nil
		}
		c, err := s.u8()
		if err != nil {
			return 0, false, err
		}
		if c == 0 {
			return 0, true, nil
		}
		sym = c
		return sym, false, nil
	}
}

func (t *freqTable) advance(r uint32, s *ransStream) (byte, uint32, error) {
	m := r & (ransTotFreq - 1)
	sym := t.slot[m]
	if t.freq[sym] == 0 {
		return 0, 0, fmt.Errorf("%w: rANS slot with zero frequency", ErrCorrupt)
	}
	r = t.freq[sym]*(r>>12) + m - t.cum[sym]
	for r < ransByteL {
		c, err := s.u8()
		if err != nil {
			return 0, 0, err
		}
		r = r<<8 | uint32(c)
	}
	return sym, r, nil
}

// ransDecode decompresses a complete rANS-4x8 block.
func ransDecode(in []byte, rawSize int) ([]byte, error) {
	if len(in) < 9 {
		return nil, fmt.Errorf("%w: short rANS block", ErrCorrupt)
	}
	order := in[0]
	// in[1:5] is the compressed payload size; the block framing already
	// delimits the payload, so it is not re-checked here.
	outSize := int(binary.LittleEndian.Uint32(in[5:9]))
	if outSize != rawSize {
		return nil, fmt.Errorf("%w: rANS raw size %d, block declares %d", ErrCorrupt, outSize, rawSize)
	}
	s := &ransStream{data: in[9:]}
	switch order {
	case 0:
		return ransDecode0(s, outSize)
	case 1:
		return ransDecode1(s, outSize)
	default:
		return nil, fmt.Errorf("%w: rANS order %d", ErrUnsupported, order)
	}
}

func ransDecode0(s *ransStream, outSize int) ([]byte, error) {
	t, err := readFreqs(s, symRLE(s))
	if err != nil {
		return nil, err
	}
	var r [4]uint32
	for k := range r {
		if r[k], err = s.u32(); err != nil {
			return nil, err
		}
	}
	out := make([]byte, outSize)
	for i := 0; i < outSize; i++ {
		k := i & 3
		var sym byte
		if sym, r[k], err = t.advance(r[k], s); err != nil {
			return nil, err
		}
		out[i] = sym
	}
	return out, nil
}

func ransDecode1(s *ransStream, outSize int) ([]byte, error) {
	var tables [256]*freqTable
	ctxNext := symRLE(s)
	for {
		ctx, done, err := ctxNext()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if tables[ctx], err = readFreqs(s, symRLE(s)); err != nil {
			return nil, err
		}
	}

	var (
		r   [4]uint32
		ctx [4]byte
		err error
	)
	for k := range r {
		if r[k], err = s.u32(); err != nil {
			return nil, err
		}
	}
	out := make([]byte, outSize)
	quarter := outSize >> 2
	step := func(k, pos int) error {
		t := tables[ctx[k]]
		if t == nil {
			return fmt.Errorf("%w: rANS context 0x%02x has no frequency table", ErrCorrupt, ctx[k])
		}
		sym, nr, err := t.advance(r[k], s)
		if err != nil {
			return err
		}
		r[k] = nr
		out[pos] = sym
		ctx[k] = sym
		return nil
	}
	for i := 0; i < quarter; i++ {
		for k := 0; k < 4; k++ {
			if err := step(k, i+k*quarter); err != nil {
				return nil, err
			}
		}
	}
	// State 3 carries the remainder when the output size is not a
	// multiple of four.
	for pos := 4 * quarter; pos < outSize; pos++ {
		if err := step(3, pos); err != nil {
			return nil, err
		}
	}
	return out, nil
}
