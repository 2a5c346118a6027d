package cram

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmoellmann/covtools/encoding/fasta"
)

// The helpers below write a minimal CRAM 3.0 file: definition, file
// header container, one data container with a two-record slice, and a
// recordless trailer container standing in for the EOF marker.

func itf8Enc(v int32) []byte {
	u := uint32(v)
	switch {
	case v >= 0 && u < 0x80:
		return []byte{byte(u)}
	case v >= 0 && u < 0x4000:
		return []byte{0x80 | byte(u>>8), byte(u)}
	case v >= 0 && u < 0x200000:
		return []byte{0xc0 | byte(u>>16), byte(u >> 8), byte(u)}
	case v >= 0 && u < 0x10000000:
		return []byte{0xe0 | byte(u>>24), byte(u >> 16), byte(u >> 8), byte(u)}
	default:
		return []byte{0xf0 | byte(u>>28), byte(u >> 20), byte(u >> 12), byte(u >> 4), byte(u & 0x0f)}
	}
}

func rawBlock(contentType byte, contentID int32, data []byte) []byte {
	out := []byte{methodRaw, contentType}
	out = append(out, itf8Enc(contentID)...)
	out = append(out, itf8Enc(int32(len(data)))...) // compressed size
	out = append(out, itf8Enc(int32(len(data)))...) // raw size
	out = append(out, data...)
	return append(out, 0, 0, 0, 0) // CRC
}

func container(refID, start, span, nRecords int32, blocks ...[]byte) []byte {
	var payload []byte
	for _, b := range blocks {
		payload = append(payload, b...)
	}
	var out []byte
	out = append(out, byte(len(payload)), byte(len(payload)>>8), byte(len(payload)>>16), byte(len(payload)>>24))
	out = append(out, itf8Enc(refID)...)
	out = append(out, itf8Enc(start)...)
	out = append(out, itf8Enc(span)...)
	out = append(out, itf8Enc(nRecords)...)
	out = append(out, 0, 0) // recordCounter, nBases (LTF8)
	out = append(out, itf8Enc(int32(len(blocks)))...)
	out = append(out, 0)          // landmark count
	out = append(out, 0, 0, 0, 0) // CRC
	return append(out, payload...)
}

const testSAMHeader = "@HD\tVN:1.6\n@SQ\tSN:ref1\tLN:20\n"

// buildTestCram writes a file holding two records against ref1: a
// mapped 6bp read at position 3 with one substitution, and an unmapped
// 4bp read with stored bases.
func buildTestCram() []byte {
	var f []byte
	f = append(f, cramMagic...)
	f = append(f, 3, 0)
	f = append(f, make([]byte, 20)...) // file id

	// File header container.
	text := []byte(testSAMHeader)
	hdrData := []byte{byte(len(text)), byte(len(text) >> 8), byte(len(text) >> 16), byte(len(text) >> 24)}
	hdrData = append(hdrData, text...)
	f = append(f, container(0, 0, 0, 0, rawBlock(blockFileHeader, 0, hdrData))...)

	// Compression header: substitution matrix, a tag dictionary with one
	// empty line, and an external codec per data series.
	var ch bytes.Buffer
	ch.WriteByte(0) // preservation map byte size, unused
	ch.WriteByte(2)
	ch.WriteString("SM")
	ch.Write([]byte{0x1b, 0x1b, 0x1b, 0x1b, 0x1b})
	ch.WriteString("TD")
	ch.WriteByte(1)
	ch.WriteByte(0)

	series := []struct {
		key string
		def []byte
	}{
		{"BF", codecDef(codecExternal, 1)},
		{"CF", codecDef(codecExternal, 2)},
		{"RL", codecDef(codecExternal, 3)},
		{"AP", codecDef(codecExternal, 4)},
		{"RG", codecDef(codecExternal, 5)},
		{"RN", codecDef(codecByteArrayStop, '\t', 6)},
		{"TL", codecDef(codecExternal, 7)},
		{"FN", codecDef(codecExternal, 8)},
		{"FC", codecDef(codecExternal, 9)},
		{"FP", codecDef(codecExternal, 10)},
		{"BS", codecDef(codecExternal, 11)},
		{"MQ", codecDef(codecExternal, 12)},
		{"BA", codecDef(codecExternal, 13)},
		{"QS", codecDef(codecExternal, 14)},
	}
	ch.WriteByte(0)
	ch.WriteByte(byte(len(series)))
	for _, s := range series {
		ch.WriteString(s.key)
		ch.Write(s.def)
	}
	ch.WriteByte(0) // tag map
	ch.WriteByte(0)

	// Slice header.
	var sh []byte
	sh = append(sh, itf8Enc(0)...)  // refID
	sh = append(sh, itf8Enc(3)...)  // start
	sh = append(sh, itf8Enc(6)...)  // span
	sh = append(sh, itf8Enc(2)...)  // nRecords
	sh = append(sh, 0)              // recordCounter (LTF8)
	sh = append(sh, itf8Enc(14)...) // nBlocks
	sh = append(sh, itf8Enc(14)...) // contentID count
	for id := int32(1); id <= 14; id++ {
		sh = append(sh, itf8Enc(id)...)
	}
	sh = append(sh, itf8Enc(-1)...)      // no embedded reference
	sh = append(sh, make([]byte, 16)...) // MD5

	ext := map[int32][]byte{
		1:  {0, 4},                                   // BF: mapped, then unmapped
		2:  {cfQualities, cfQualities},               // CF
		3:  {6, 4},                                   // RL
		4:  {0, 0},                                   // AP deltas from slice start
		5:  {0, 0},                                   // RG
		6:  []byte("read1\tread2\t"),                 // RN
		7:  {0, 0},                                   // TL: the empty tag line
		8:  {1},                                      // FN, mapped record only
		9:  {'X'},                                    // FC
		10: {3},                                      // FP: read position 3
		11: {2},                                      // BS: substitution code
		12: {60},                                     // MQ
		13: []byte("ACGT"),                           // BA, unmapped record only
		14: {30, 30, 30, 30, 30, 30, 20, 20, 20, 20}, // QS
	}
	blocks := [][]byte{rawBlock(blockCompressionHeader, 0, ch.Bytes()), rawBlock(blockSliceHeader, 0, sh)}
	for id := int32(1); id <= 14; id++ {
		blocks = append(blocks, rawBlock(blockExternal, id, ext[id]))
	}
	f = append(f, container(0, 3, 6, 2, blocks...)...)

	// Recordless trailer; the reader skips its payload.
	f = append(f, container(-1, 0, 0, 0, []byte{1, 2, 3, 4})...)
	return f
}

func testRef(t *testing.T) fasta.Fasta {
	t.Helper()
	ref, err := fasta.New(strings.NewReader(">ref1\nACGTACGTACGTACGTACGT\n"))
	require.NoError(t, err)
	return ref
}

func TestReader(t *testing.T) {
	r, err := NewReader(bytes.NewReader(buildTestCram()), testRef(t))
	require.NoError(t, err)
	require.NotNil(t, r.Header())
	require.Len(t, r.Header().Refs(), 1)
	assert.Equal(t, "ref1", r.Header().Refs()[0].Name())

	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "read1", rec.Name)
	assert.Equal(t, sam.Flags(0), rec.Flags)
	assert.Equal(t, "ref1", rec.Ref.Name())
	assert.Equal(t, 2, rec.Pos)
	assert.Equal(t, byte(60), rec.MapQ)
	// Reference GTACGT with the third base substituted by code 2 (A->T).
	assert.Equal(t, []byte("GTTCGT"), rec.Seq.Expand())
	assert.Equal(t, []byte{30, 30, 30, 30, 30, 30}, rec.Qual)

	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, "read2", rec.Name)
	assert.Equal(t, sam.Unmapped, rec.Flags)
	assert.Equal(t, []byte("ACGT"), rec.Seq.Expand())
	assert.Equal(t, []byte{20, 20, 20, 20}, rec.Qual)

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReaderMissingReference(t *testing.T) {
	r, err := NewReader(bytes.NewReader(buildTestCram()), nil)
	require.NoError(t, err)
	_, err = r.Read()
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestReaderReferenceMismatch(t *testing.T) {
	other, err := fasta.New(strings.NewReader(">chrOther\nACGT\n"))
	require.NoError(t, err)
	r, err := NewReader(bytes.NewReader(buildTestCram()), other)
	require.NoError(t, err)
	_, err = r.Read()
	assert.ErrorIs(t, err, ErrReferenceMismatch)
}

func TestReaderBadDefinition(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("BAMM")), nil)
	assert.ErrorIs(t, err, ErrCorrupt)

	bad := buildTestCram()
	bad[4] = 4 // major version
	_, err = NewReader(bytes.NewReader(bad), nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}
