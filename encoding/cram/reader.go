package cram

import (
	"fmt"
	"io"

	"github.com/grailbio/hts/sam"
	"github.com/jmoellmann/covtools/encoding/fasta"
)

// Reader reads sam.Records from a CRAM stream. It mirrors the
// bam.Reader surface: NewReader, Header, and Read returning io.EOF at
// end of data. Readers are single-pass and not restartable.
type Reader struct {
	r      io.Reader
	ref    fasta.Fasta
	header *sam.Header
	refs   []*sam.Reference

	comp   *compressionHeader
	blocks []*block // remaining blocks of the current container
	queue  []*sam.Record
	qpos   int

	namePrefix string
	err        error
}

// NewReader reads the CRAM file definition and the embedded SAM header
// from r. The reference may be nil; decoding then fails for any slice
// that requires external reference bases.
func NewReader(r io.Reader, ref fasta.Fasta) (*Reader, error) {
	var def [26]byte
	if err := readFull(r, def[:]); err != nil {
		return nil, fmt.Errorf("%w: short file definition: %v", ErrCorrupt, err)
	}
	if string(def[:4]) != cramMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, def[:4])
	}
	major, minor := def[4], def[5]
	if major != 3 {
		return nil, fmt.Errorf("%w: CRAM version %d.%d", ErrUnsupported, major, minor)
	}

	cr := &Reader{r: r, ref: ref, namePrefix: "cram"}
	if err := cr.readFileHeader(); err != nil {
		return nil, err
	}
	return cr, nil
}

// Header returns the SAM header stored in the file.
func (r *Reader) Header() *sam.Header { return r.header }

// Read returns the next record, or io.EOF after the last one. Any
// other error is terminal.
func (r *Reader) Read() (*sam.Record, error) {
	for r.err == nil && r.qpos >= len(r.queue) {
		r.err = r.nextSlice()
	}
	if r.err != nil {
		return nil, r.err
	}
	rec := r.queue[r.qpos]
	r.queue[r.qpos] = nil
	r.qpos++
	return rec, nil
}

// readFileHeader consumes the mandatory first container holding the
// SAM header text.
func (r *Reader) readFileHeader() error {
	hdr, err := readContainerHeader(r.r)
	if err != nil {
		return fmt.Errorf("cram: reading file header container: %w", err)
	}
	var first *block
	for i := int32(0); i < hdr.nBlocks; i++ {
		b, err := readBlock(r.r)
		if err != nil {
			return err
		}
		if i == 0 {
			first = b
		}
	}
	if first == nil || first.contentType != blockFileHeader {
		return fmt.Errorf("%w: missing SAM header block", ErrCorrupt)
	}
	hb := newByteReader(first.data)
	n := int(int32(uint32(hb.u8()) | uint32(hb.u8())<<8 | uint32(hb.u8())<<16 | uint32(hb.u8())<<24))
	text := hb.bytes(n)
	if hb.err != nil {
		return fmt.Errorf("%w: truncated SAM header text", ErrCorrupt)
	}
	if r.header, err = sam.NewHeader(text, nil); err != nil {
		return fmt.Errorf("cram: parsing SAM header: %v", err)
	}
	r.refs = r.header.Refs()
	return nil
}

// nextSlice decodes the next slice into the record queue, reading the
// next container when the current one is exhausted. Returns io.EOF
// cleanly at end of data.
func (r *Reader) nextSlice() error {
	for len(r.blocks) == 0 {
		if err := r.nextContainer(); err != nil {
			return err
		}
	}
	sliceBlock := r.blocks[0]
	if sliceBlock.contentType != blockSliceHeader {
		return fmt.Errorf("%w: expected slice header block, got content type %d",
			ErrCorrupt, sliceBlock.contentType)
	}
	hdr, err := parseSliceHeader(sliceBlock.data)
	if err != nil {
		return err
	}
	if int(hdr.nBlocks)+1 > len(r.blocks) {
		return fmt.Errorf("%w: slice wants %d blocks, container has %d left",
			ErrCorrupt, hdr.nBlocks, len(r.blocks)-1)
	}
	data := r.blocks[1 : 1+int(hdr.nBlocks)]
	r.blocks = r.blocks[1+int(hdr.nBlocks):]

	s := &streams{ext: make(map[int32]*byteReader)}
	var embeddedRef []byte
	for _, b := range data {
		switch b.contentType {
		case blockCore:
			s.core = newBitReader(b.data)
		case blockExternal:
			s.ext[b.contentID] = newByteReader(b.data)
			if hdr.embeddedRefID >= 0 && b.contentID == hdr.embeddedRefID {
				embeddedRef = b.data
			}
		default:
			return fmt.Errorf("%w: unexpected block content type %d in slice", ErrCorrupt, b.contentType)
		}
	}
	if s.core == nil {
		s.core = newBitReader(nil)
	}

	d := &sliceDecoder{
		reader:      r,
		hdr:         hdr,
		comp:        r.comp,
		streams:     s,
		embeddedRef: embeddedRef,
		prevAP:      hdr.start,
	}
	queue := make([]*sam.Record, 0, hdr.nRecords)
	for i := int32(0); i < hdr.nRecords; i++ {
		rec, err := d.decodeRecord(int64(i))
		if err != nil {
			return err
		}
		queue = append(queue, rec)
	}
	r.queue, r.qpos = queue, 0
	return nil
}

// nextContainer reads the next container's blocks and compression
// header, skipping recordless containers such as the EOF sentinel.
func (r *Reader) nextContainer() error {
	for {
		hdr, err := readContainerHeader(r.r)
		if err != nil {
			return err // io.EOF here is a clean end of file
		}
		if hdr.nRecords == 0 {
			// EOF marker or other recordless container; skip the payload.
			if hdr.length < 0 {
				return fmt.Errorf("%w: negative container length", ErrCorrupt)
			}
			if _, err := io.CopyN(io.Discard, r.r, int64(hdr.length)); err != nil {
				return fmt.Errorf("%w: truncated container: %v", ErrCorrupt, err)
			}
			continue
		}
		blocks := make([]*block, 0, hdr.nBlocks)
		for i := int32(0); i < hdr.nBlocks; i++ {
			b, err := readBlock(r.r)
			if err != nil {
				return err
			}
			blocks = append(blocks, b)
		}
		if len(blocks) == 0 || blocks[0].contentType != blockCompressionHeader {
			return fmt.Errorf("%w: container missing compression header", ErrCorrupt)
		}
		if r.comp, err = parseCompressionHeader(blocks[0].data); err != nil {
			return err
		}
		r.blocks = blocks[1:]
		return nil
	}
}

// refBases returns the uppercased reference bases for the 0-based
// interval [start, end) of reference id refID.
func (d *sliceDecoder) refBases(refID int32, start, end int) ([]byte, error) {
	if end <= start {
		return nil, nil
	}
	if d.embeddedRef != nil && refID == d.hdr.refID {
		off := start - int(d.hdr.start-1)
		if off < 0 || end-int(d.hdr.start-1) > len(d.embeddedRef) {
			return nil, fmt.Errorf("%w: record outside embedded reference", ErrCorrupt)
		}
		return toUpper(d.embeddedRef[off : end-int(d.hdr.start-1)]), nil
	}
	if d.reader.ref == nil {
		if !d.comp.refRequired {
			// RR=false without an embedded reference: decoders are meant
			// to substitute N for reference bases.
			return nsOf(end - start), nil
		}
		return nil, ErrMissingReference
	}
	if refID < 0 || int(refID) >= len(d.reader.refs) {
		return nil, fmt.Errorf("%w: reference id %d out of range", ErrCorrupt, refID)
	}
	name := d.reader.refs[refID].Name()
	if !fasta.Has(d.reader.ref, name) {
		return nil, fmt.Errorf("%w: %q", ErrReferenceMismatch, name)
	}
	bases, err := d.reader.ref.Get(name, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrReferenceMismatch, name, err)
	}
	return toUpper([]byte(bases)), nil
}

func toUpper(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

func nsOf(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'N'
	}
	return out
}
