package cram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codecDef serializes a codec definition (id, parameter length,
// parameters) the way a compression header carries it. All values here
// are small enough to be single-byte ITF8.
func codecDef(id byte, params ...byte) []byte {
	return append([]byte{id, byte(len(params))}, params...)
}

// packBits builds a core block from an MSB-first bit string; spaces are
// ignored and the final byte is zero padded.
func packBits(s string) []byte {
	var (
		out []byte
		cur byte
		n   int
	)
	for _, c := range s {
		switch c {
		case '0', '1':
			cur = cur<<1 | byte(c-'0')
			n++
			if n == 8 {
				out = append(out, cur)
				cur, n = 0, 0
			}
		}
	}
	if n > 0 {
		out = append(out, cur<<uint(8-n))
	}
	return out
}

func mustParseCodec(t *testing.T, def []byte) *codec {
	t.Helper()
	c, err := parseCodec(newByteReader(def))
	require.NoError(t, err)
	return c
}

func TestExternalCodec(t *testing.T) {
	c := mustParseCodec(t, codecDef(codecExternal, 7))
	s := &streams{ext: map[int32]*byteReader{
		7: newByteReader([]byte{0x05, 0xbf, 0xff, 'x', 'y'}),
	}}

	v, err := c.decodeInt(s)
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)
	v, err = c.decodeInt(s)
	require.NoError(t, err)
	assert.Equal(t, int32(0x3fff), v)

	b, err := c.decodeByte(s)
	require.NoError(t, err)
	assert.Equal(t, byte('x'), b)
	bs, err := c.decodeByteN(s, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), bs)

	_, err = c.decodeInt(&streams{ext: map[int32]*byteReader{}})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestHuffmanConstant(t *testing.T) {
	// One symbol with a zero-bit code decodes without touching the core
	// block at all.
	c := mustParseCodec(t, codecDef(codecHuffman, 1, 42, 1, 0))
	s := &streams{core: newBitReader(nil)}
	for i := 0; i < 3; i++ {
		v, err := c.decodeInt(s)
		require.NoError(t, err)
		assert.Equal(t, int32(42), v)
	}
	require.NoError(t, s.core.err)
}

func TestHuffmanCanonical(t *testing.T) {
	// Symbols A, C, G, T with code lengths 1, 2, 3, 3. Canonical codes:
	// A=0, C=10, G=110, T=111.
	c := mustParseCodec(t, codecDef(codecHuffman,
		4, 'A', 'C', 'G', 'T',
		4, 1, 2, 3, 3))
	s := &streams{core: newBitReader(packBits("0 10 110 111 0"))}
	for _, want := range []int32{'A', 'C', 'G', 'T', 'A'} {
		v, err := c.decodeInt(s)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestHuffmanInvalidCode(t *testing.T) {
	// Lengths 2, 2 assign codes 00 and 01; a stream starting with 1 can
	// never resolve.
	c := mustParseCodec(t, codecDef(codecHuffman, 2, 1, 2, 2, 2, 2))
	s := &streams{core: newBitReader(packBits("11"))}
	_, err := c.decodeInt(s)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBetaCodec(t *testing.T) {
	// offset 1, 4-bit values.
	c := mustParseCodec(t, codecDef(codecBeta, 1, 4))
	s := &streams{core: newBitReader(packBits("0000 1111 0101 0000"))}
	for _, want := range []int32{-1, 14, 4, -1} {
		v, err := c.decodeInt(s)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	_, err := c.decodeInt(s) // core exhausted
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestGammaCodec(t *testing.T) {
	c := mustParseCodec(t, codecDef(codecGamma, 0))
	// Elias gamma for 1, 2, 5: "1", "010", "00101".
	s := &streams{core: newBitReader(packBits("1 010 00101"))}
	for _, want := range []int32{1, 2, 5} {
		v, err := c.decodeInt(s)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestSubexpCodec(t *testing.T) {
	// offset 0, k=2. Values below 1<<k are "0" plus k bits; larger values
	// spend n ones selecting the bucket.
	c := mustParseCodec(t, codecDef(codecSubexp, 0, 2))
	s := &streams{core: newBitReader(packBits("0 11  10 10  110 101"))}
	for _, want := range []int32{3, 6, 13} {
		v, err := c.decodeInt(s)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestByteArrayStop(t *testing.T) {
	c := mustParseCodec(t, codecDef(codecByteArrayStop, '\t', 3))
	s := &streams{ext: map[int32]*byteReader{
		3: newByteReader([]byte("ACGT\tTT\t")),
	}}
	for _, want := range []string{"ACGT", "TT"} {
		v, err := c.decodeBytes(s)
		require.NoError(t, err)
		assert.Equal(t, want, string(v))
	}
	_, err := c.decodeBytes(s) // no stop byte left
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestByteArrayLen(t *testing.T) {
	// Length from one external block, values from another.
	def := []byte{codecByteArrayLen, 0}
	inner := append(codecDef(codecExternal, 1), codecDef(codecExternal, 2)...)
	def[1] = byte(len(inner))
	def = append(def, inner...)

	c := mustParseCodec(t, def)
	s := &streams{ext: map[int32]*byteReader{
		1: newByteReader([]byte{4, 2}),
		2: newByteReader([]byte("ACGTNN")),
	}}
	v, err := c.decodeBytes(s)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(v))
	v, err = c.decodeBytes(s)
	require.NoError(t, err)
	assert.Equal(t, "NN", string(v))
}

func TestParseCodecErrors(t *testing.T) {
	_, err := parseCodec(newByteReader(codecDef(codecGolomb, 0, 0)))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = parseCodec(newByteReader(codecDef(codecBeta, 0, 33)))
	assert.ErrorIs(t, err, ErrCorrupt)

	// Huffman with mismatched symbol and length arrays.
	_, err = parseCodec(newByteReader(codecDef(codecHuffman, 2, 1, 2, 1, 3)))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = parseCodec(newByteReader([]byte{codecExternal, 5}))
	assert.ErrorIs(t, err, ErrCorrupt)

	// beta codecs cannot produce byte arrays.
	beta := &codec{id: codecBeta}
	_, err = beta.decodeBytes(&streams{})
	assert.ErrorIs(t, err, ErrUnsupported)
}
