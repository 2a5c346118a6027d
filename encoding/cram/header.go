package cram

import (
	"encoding/binary"
	"fmt"
	"io"
)

// containerHeader is the fixed preamble of every container.
type containerHeader struct {
	length        int32 // byte length of the container payload
	refID         int32 // -1 unmapped, -2 multi-reference
	start         int32
	span          int32
	nRecords      int32
	recordCounter int64
	nBases        int64
	nBlocks       int32
	landmarks     []int32
}

func readContainerHeader(r io.Reader) (*containerHeader, error) {
	var lenBytes [4]byte
	if err := readFull(r, lenBytes[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	h := &containerHeader{length: int32(binary.LittleEndian.Uint32(lenBytes[:]))}
	var err error
	for _, dst := range []*int32{&h.refID, &h.start, &h.span, &h.nRecords} {
		if *dst, err = readITF8(r); err != nil {
			return nil, err
		}
	}
	for _, dst := range []*int64{&h.recordCounter, &h.nBases} {
		if *dst, err = readLTF8(r); err != nil {
			return nil, err
		}
	}
	if h.nBlocks, err = readITF8(r); err != nil {
		return nil, err
	}
	n, err := readITF8(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 1<<20 {
		return nil, fmt.Errorf("%w: implausible landmark count %d", ErrCorrupt, n)
	}
	h.landmarks = make([]int32, n)
	for i := range h.landmarks {
		if h.landmarks[i], err = readITF8(r); err != nil {
			return nil, err
		}
	}
	// Container CRC32 (CRAM 3); consumed, not verified.
	var crc [4]byte
	if err := readFull(r, crc[:]); err != nil {
		return nil, err
	}
	return h, nil
}

// readLTF8 decodes an LTF8 value directly from an io.Reader.
func readLTF8(r io.Reader) (int64, error) {
	var buf [9]byte
	if err := readFull(r, buf[:1]); err != nil {
		return 0, err
	}
	n := 0
	for mask := byte(0x80); mask != 0 && buf[0]&mask != 0 && n < 8; mask >>= 1 {
		n++
	}
	if n > 0 {
		if err := readFull(r, buf[1:1+n]); err != nil {
			return 0, err
		}
	}
	br := newByteReader(buf[:1+n])
	v := br.ltf8()
	return v, br.err
}

// tagDef is one <tag, type> entry of a tag dictionary line.
type tagDef struct {
	tag [2]byte
	typ byte
}

// compressionHeader carries the per-container decoding configuration:
// preservation flags, the substitution matrix, the tag dictionary, and
// a codec per data series and per tag.
type compressionHeader struct {
	readNames   bool
	apDelta     bool
	refRequired bool
	// subst[refBase][code] = read base, bases indexed per baseIndex.
	subst   [5][4]byte
	tagDict [][]tagDef
	series  map[string]*codec
	tags    map[int32]*codec
}

var baseIndex = [256]byte{}

const baseAlphabet = "ACGTN"

func init() {
	for i := range baseIndex {
		baseIndex[i] = 4
	}
	for i := 0; i < len(baseAlphabet); i++ {
		baseIndex[baseAlphabet[i]] = byte(i)
	}
}

func parseCompressionHeader(data []byte) (*compressionHeader, error) {
	b := newByteReader(data)
	h := &compressionHeader{
		readNames:   true,
		apDelta:     true,
		refRequired: true,
		series:      make(map[string]*codec),
		tags:        make(map[int32]*codec),
	}

	// Preservation map.
	b.itf8() // byte size, unused
	n := b.itf8()
	for i := int32(0); i < n && b.err == nil; i++ {
		key := string(b.bytes(2))
		switch key {
		case "RN":
			h.readNames = b.u8() != 0
		case "AP":
			h.apDelta = b.u8() != 0
		case "RR":
			h.refRequired = b.u8() != 0
		case "SM":
			sm := b.bytes(5)
			if b.err != nil {
				break
			}
			for ref := 0; ref < 5; ref++ {
				// Each byte packs the 2-bit code of the four alternative
				// bases, in alphabet order, high bits first.
				k := 0
				for _, alt := range []byte(baseAlphabet) {
					if int(baseIndex[alt]) == ref {
						continue
					}
					code := sm[ref] >> uint(6-2*k) & 3
					h.subst[ref][code] = alt
					k++
				}
			}
		case "TD":
			raw := b.bytes(int(b.itf8()))
			if b.err != nil {
				break
			}
			dict, err := parseTagDict(raw)
			if err != nil {
				return nil, err
			}
			h.tagDict = dict
		default:
			return nil, fmt.Errorf("%w: preservation map key %q", ErrUnsupported, key)
		}
	}

	// Data series encoding map.
	b.itf8()
	n = b.itf8()
	for i := int32(0); i < n && b.err == nil; i++ {
		key := string(b.bytes(2))
		c, err := parseCodec(b)
		if err != nil {
			return nil, err
		}
		h.series[key] = c
	}

	// Tag encoding map, keyed by tag1<<16|tag2<<8|type.
	b.itf8()
	n = b.itf8()
	for i := int32(0); i < n && b.err == nil; i++ {
		key := b.itf8()
		c, err := parseCodec(b)
		if err != nil {
			return nil, err
		}
		h.tags[key] = c
	}
	if b.err != nil {
		return nil, b.err
	}
	return h, nil
}

// parseTagDict splits the tag dictionary blob: NUL-terminated lines of
// 3-byte <tag, tag, type> entries. Line indices are the TL series
// values.
func parseTagDict(raw []byte) ([][]tagDef, error) {
	var (
		dict [][]tagDef
		line []tagDef
		i    int
	)
	for i < len(raw) {
		if raw[i] == 0 {
			dict = append(dict, line)
			line = nil
			i++
			continue
		}
		if i+3 > len(raw) {
			return nil, fmt.Errorf("%w: truncated tag dictionary", ErrCorrupt)
		}
		line = append(line, tagDef{tag: [2]byte{raw[i], raw[i+1]}, typ: raw[i+2]})
		i += 3
	}
	if line != nil {
		dict = append(dict, line)
	}
	return dict, nil
}

// sliceHeader is the decoded content of a slice header block.
type sliceHeader struct {
	refID         int32
	start         int32
	span          int32
	nRecords      int32
	recordCounter int64
	nBlocks       int32
	contentIDs    []int32
	embeddedRefID int32
}

func parseSliceHeader(data []byte) (*sliceHeader, error) {
	b := newByteReader(data)
	h := &sliceHeader{}
	h.refID = b.itf8()
	h.start = b.itf8()
	h.span = b.itf8()
	h.nRecords = b.itf8()
	h.recordCounter = b.ltf8()
	h.nBlocks = b.itf8()
	h.contentIDs = b.itf8Array()
	h.embeddedRefID = b.itf8()
	b.bytes(16) // reference MD5; not verified
	if b.err != nil {
		return nil, b.err
	}
	return h, nil
}
