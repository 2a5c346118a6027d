package cram

import "fmt"

// Codec identifiers from the CRAM 3.0 specification.
const (
	codecExternal      = 1
	codecGolomb        = 2
	codecHuffman       = 3
	codecByteArrayLen  = 4
	codecByteArrayStop = 5
	codecBeta          = 6
	codecGamma         = 7
	codecSubexp        = 8
	codecGolombRice    = 9
)

// A codec decodes integer or byte-array values for one data series,
// pulling bits from the slice's core block and/or bytes from its
// external blocks. Codec parameters come from the container compression
// header; the same codec instance is shared by every slice in the
// container.
type codec struct {
	id int

	// external, byteArrayStop
	contentID int32
	// byteArrayStop
	stop byte
	// huffman
	huff *huffman
	// beta, gamma, subexp
	offset int32
	nbits  int32 // beta length, subexp k
	// byteArrayLen
	lenCodec, valCodec *codec
}

// streams is the per-slice decode state a codec draws from.
type streams struct {
	core *bitReader
	ext  map[int32]*byteReader
}

func (s *streams) external(id int32) (*byteReader, error) {
	b, ok := s.ext[id]
	if !ok {
		return nil, fmt.Errorf("%w: missing external block %d", ErrCorrupt, id)
	}
	return b, nil
}

// parseCodec reads one codec definition (id, parameter length,
// parameters) from a compression header.
func parseCodec(b *byteReader) (*codec, error) {
	id := b.itf8()
	n := b.itf8()
	if b.err != nil {
		return nil, b.err
	}
	params := newByteReader(b.bytes(int(n)))
	if b.err != nil {
		return nil, b.err
	}
	c := &codec{id: int(id)}
	switch c.id {
	case codecExternal:
		c.contentID = params.itf8()
	case codecHuffman:
		symbols := params.itf8Array()
		lengths := params.itf8Array()
		if params.err != nil {
			return nil, params.err
		}
		var err error
		if c.huff, err = newHuffman(symbols, lengths); err != nil {
			return nil, err
		}
	case codecByteArrayLen:
		var err error
		if c.lenCodec, err = parseCodec(params); err != nil {
			return nil, err
		}
		if c.valCodec, err = parseCodec(params); err != nil {
			return nil, err
		}
	case codecByteArrayStop:
		c.stop = params.u8()
		c.contentID = params.itf8()
	case codecBeta:
		c.offset = params.itf8()
		c.nbits = params.itf8()
		if c.nbits < 0 || c.nbits > 32 {
			return nil, fmt.Errorf("%w: beta codec width %d", ErrCorrupt, c.nbits)
		}
	case codecGamma:
		c.offset = params.itf8()
	case codecSubexp:
		c.offset = params.itf8()
		c.nbits = params.itf8()
	default:
		return nil, fmt.Errorf("%w: codec %d", ErrUnsupported, c.id)
	}
	return c, params.err
}

// decodeInt decodes one integer value.
func (c *codec) decodeInt(s *streams) (int32, error) {
	switch c.id {
	case codecExternal:
		b, err := s.external(c.contentID)
		if err != nil {
			return 0, err
		}
		v := b.itf8()
		return v, b.err
	case codecHuffman:
		return c.huff.decode(s.core)
	case codecBeta:
		v := s.core.bits(int(c.nbits))
		return int32(v) - c.offset, s.core.err
	case codecGamma:
		n := 0
		for s.core.bit() == 0 && s.core.err == nil {
			n++
			if n > 31 {
				return 0, fmt.Errorf("%w: gamma prefix overflow", ErrCorrupt)
			}
		}
		v := uint32(1)<<uint(n) | s.core.bits(n)
		return int32(v) - c.offset, s.core.err
	case codecSubexp:
		n := 0
		for s.core.bit() == 1 && s.core.err == nil {
			n++
			if n > 31 {
				return 0, fmt.Errorf("%w: subexp prefix overflow", ErrCorrupt)
			}
		}
		var v uint32
		if n == 0 {
			v = s.core.bits(int(c.nbits))
		} else {
			b := n + int(c.nbits) - 1
			if b > 31 {
				return 0, fmt.Errorf("%w: subexp width overflow", ErrCorrupt)
			}
			v = uint32(1)<<uint(b) | s.core.bits(b)
		}
		return int32(v) - c.offset, s.core.err
	default:
		return 0, fmt.Errorf("%w: codec %d cannot decode integers", ErrUnsupported, c.id)
	}
}

// decodeByte decodes one byte-valued item (e.g. the BA and QS series).
func (c *codec) decodeByte(s *streams) (byte, error) {
	if c.id == codecExternal {
		b, err := s.external(c.contentID)
		if err != nil {
			return 0, err
		}
		v := b.u8()
		return v, b.err
	}
	v, err := c.decodeInt(s)
	return byte(v), err
}

// decodeByteN decodes a run of n byte-valued items.
func (c *codec) decodeByteN(s *streams, n int) ([]byte, error) {
	if c.id == codecExternal {
		b, err := s.external(c.contentID)
		if err != nil {
			return nil, err
		}
		v := b.bytes(n)
		return v, b.err
	}
	out := make([]byte, n)
	for i := range out {
		var err error
		if out[i], err = c.decodeByte(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeBytes decodes one variable-length byte array (read names,
// inserted bases, soft clips, tag values).
func (c *codec) decodeBytes(s *streams) ([]byte, error) {
	switch c.id {
	case codecByteArrayStop:
		b, err := s.external(c.contentID)
		if err != nil {
			return nil, err
		}
		v := b.bytesUntil(c.stop)
		return v, b.err
	case codecByteArrayLen:
		n, err := c.lenCodec.decodeInt(s)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative byte array length", ErrCorrupt)
		}
		return c.valCodec.decodeByteN(s, int(n))
	default:
		return nil, fmt.Errorf("%w: codec %d cannot decode byte arrays", ErrUnsupported, c.id)
	}
}

// huffman is a canonical prefix-code decoder. The degenerate single
// symbol, zero-length code is common in practice (a constant series)
// and consumes no bits.
type huffman struct {
	constant   bool
	constValue int32
	// codes[length] -> (first code of that length, symbols in order)
	minLen, maxLen int
	firstCode      map[int]uint32
	symbols        map[int][]int32
}

func newHuffman(symbols []int32, lengths []int32) (*huffman, error) {
	if len(symbols) == 0 || len(symbols) != len(lengths) {
		return nil, fmt.Errorf("%w: huffman symbol/length mismatch", ErrCorrupt)
	}
	if len(symbols) == 1 && lengths[0] == 0 {
		return &huffman{constant: true, constValue: symbols[0]}, nil
	}
	h := &huffman{
		minLen:    int(lengths[0]),
		firstCode: make(map[int]uint32),
		symbols:   make(map[int][]int32),
	}
	// Canonical code assignment: symbols ordered by (length, position).
	type pair struct {
		sym int32
		len int
	}
	pairs := make([]pair, len(symbols))
	for i := range symbols {
		if lengths[i] <= 0 || lengths[i] > 31 {
			return nil, fmt.Errorf("%w: huffman code length %d", ErrCorrupt, lengths[i])
		}
		pairs[i] = pair{symbols[i], int(lengths[i])}
	}
	// Stable sort by length; ties keep the header order.
	for l := 1; l <= 31; l++ {
		for _, p := range pairs {
			if p.len == l {
				h.symbols[l] = append(h.symbols[l], p.sym)
			}
		}
	}
	code := uint32(0)
	lastLen := 0
	for l := 1; l <= 31; l++ {
		syms := h.symbols[l]
		if len(syms) == 0 {
			continue
		}
		if lastLen == 0 {
			h.minLen = l
		}
		code <<= uint(l - lastLen)
		h.firstCode[l] = code
		code += uint32(len(syms))
		lastLen = l
		h.maxLen = l
	}
	return h, nil
}

func (h *huffman) decode(core *bitReader) (int32, error) {
	if h.constant {
		return h.constValue, nil
	}
	var (
		code uint32
		l    int
	)
	for l < h.minLen {
		code = code<<1 | core.bit()
		l++
	}
	for {
		if core.err != nil {
			return 0, core.err
		}
		if first, ok := h.firstCode[l]; ok && code >= first && code < first+uint32(len(h.symbols[l])) {
			return h.symbols[l][code-first], nil
		}
		if l >= h.maxLen {
			return 0, fmt.Errorf("%w: invalid huffman code", ErrCorrupt)
		}
		code = code<<1 | core.bit()
		l++
	}
}
