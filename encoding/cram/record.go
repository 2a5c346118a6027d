package cram

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

type sliceDecoder struct {
	reader      *Reader
	hdr         *sliceHeader
	comp        *compressionHeader
	streams     *streams
	embeddedRef []byte
	prevAP      int32
}

// A feature describes one difference between the read and the
// reference, at a 1-based position within the read.
type feature struct {
	code byte
	pos  int32
	val  int32  // BS/DL/RS/PD/HC payloads
	data []byte // IN/SC/BB payloads and single bases
	qual byte
}

func (d *sliceDecoder) series(key string) (*codec, error) {
	c, ok := d.comp.series[key]
	if !ok {
		return nil, fmt.Errorf("%w: no codec for data series %s", ErrCorrupt, key)
	}
	return c, nil
}

func (d *sliceDecoder) intSeries(key string) (int32, error) {
	c, err := d.series(key)
	if err != nil {
		return 0, err
	}
	return c.decodeInt(d.streams)
}

func (d *sliceDecoder) byteSeries(key string) (byte, error) {
	c, err := d.series(key)
	if err != nil {
		return 0, err
	}
	return c.decodeByte(d.streams)
}

func (d *sliceDecoder) bytesSeries(key string) ([]byte, error) {
	c, err := d.series(key)
	if err != nil {
		return nil, err
	}
	return c.decodeBytes(d.streams)
}

func (d *sliceDecoder) decodeRecord(i int64) (*sam.Record, error) {
	bf, err := d.intSeries("BF")
	if err != nil {
		return nil, err
	}
	cf, err := d.intSeries("CF")
	if err != nil {
		return nil, err
	}

	refID := d.hdr.refID
	if refID == -2 {
		if refID, err = d.intSeries("RI"); err != nil {
			return nil, err
		}
	}
	rl, err := d.intSeries("RL")
	if err != nil {
		return nil, err
	}
	if rl < 0 {
		return nil, fmt.Errorf("%w: negative read length", ErrCorrupt)
	}
	ap, err := d.intSeries("AP")
	if err != nil {
		return nil, err
	}
	if d.comp.apDelta {
		ap += d.prevAP
		d.prevAP = ap
	}
	if _, err = d.intSeries("RG"); err != nil {
		return nil, err
	}

	var name string
	if d.comp.readNames {
		nameBytes, err := d.bytesSeries("RN")
		if err != nil {
			return nil, err
		}
		name = string(nameBytes)
	}

	rec := &sam.Record{Flags: sam.Flags(bf)}

	switch {
	case cf&cfDetached != 0:
		mf, err := d.intSeries("MF")
		if err != nil {
			return nil, err
		}
		if mf&mateReversed != 0 {
			rec.Flags |= sam.MateReverse
		}
		if mf&mateUnmapped != 0 {
			rec.Flags |= sam.MateUnmapped
		}
		if !d.comp.readNames {
			nameBytes, err := d.bytesSeries("RN")
			if err != nil {
				return nil, err
			}
			name = string(nameBytes)
		}
		ns, err := d.intSeries("NS")
		if err != nil {
			return nil, err
		}
		np, err := d.intSeries("NP")
		if err != nil {
			return nil, err
		}
		ts, err := d.intSeries("TS")
		if err != nil {
			return nil, err
		}
		if ns >= 0 && int(ns) < len(d.reader.refs) {
			rec.MateRef = d.reader.refs[ns]
		}
		rec.MatePos = int(np) - 1
		rec.TempLen = int(ts)
	case cf&cfMateDownstream != 0:
		// Distance to the mate within this slice; mate fields are
		// reconstructed pairwise, which record filtering does not need.
		if _, err := d.intSeries("NF"); err != nil {
			return nil, err
		}
	}
	if name == "" {
		name = fmt.Sprintf("%s.%d.%d", d.reader.namePrefix, d.hdr.recordCounter, i)
	}
	rec.Name = name

	if err := d.skipTags(); err != nil {
		return nil, err
	}

	var (
		seq  []byte
		qual []byte
	)
	if bf&int32(sam.Unmapped) == 0 {
		var mq int32
		if seq, qual, mq, err = d.decodeMapped(refID, ap, int(rl), cf); err == nil {
			rec.MapQ = byte(mq)
		}
	} else {
		seq, qual, err = d.decodeUnmapped(int(rl), cf)
	}
	if err != nil {
		return nil, err
	}

	if refID >= 0 && int(refID) < len(d.reader.refs) {
		rec.Ref = d.reader.refs[refID]
	}
	rec.Pos = int(ap) - 1
	rec.Seq = sam.NewSeq(seq)
	rec.Qual = qual
	return rec, nil
}

// skipTags decodes the record's aux tag values to keep the value
// streams in sync; the values themselves are not retained.
func (d *sliceDecoder) skipTags() error {
	tl, err := d.intSeries("TL")
	if err != nil {
		return err
	}
	if tl < 0 || int(tl) >= len(d.comp.tagDict) {
		if tl == 0 && len(d.comp.tagDict) == 0 {
			return nil
		}
		return fmt.Errorf("%w: tag dictionary index %d out of range", ErrCorrupt, tl)
	}
	for _, def := range d.comp.tagDict[tl] {
		key := int32(def.tag[0])<<16 | int32(def.tag[1])<<8 | int32(def.typ)
		c, ok := d.comp.tags[key]
		if !ok {
			return fmt.Errorf("%w: no codec for tag %c%c:%c", ErrCorrupt, def.tag[0], def.tag[1], def.typ)
		}
		if _, err := c.decodeBytes(d.streams); err != nil {
			return err
		}
	}
	return nil
}

func (d *sliceDecoder) decodeMapped(refID, ap int32, rl int, cf int32) (seq, qual []byte, mq int32, err error) {
	fn, err := d.intSeries("FN")
	if err != nil {
		return nil, nil, 0, err
	}
	features := make([]feature, 0, fn)
	pos := int32(0)
	for i := int32(0); i < fn; i++ {
		code, err := d.byteSeries("FC")
		if err != nil {
			return nil, nil, 0, err
		}
		fp, err := d.intSeries("FP")
		if err != nil {
			return nil, nil, 0, err
		}
		pos += fp
		f := feature{code: code, pos: pos}
		switch code {
		case 'X':
			f.val, err = d.intSeries("BS")
		case 'D':
			f.val, err = d.intSeries("DL")
		case 'N':
			f.val, err = d.intSeries("RS")
		case 'P':
			f.val, err = d.intSeries("PD")
		case 'H':
			f.val, err = d.intSeries("HC")
		case 'I':
			f.data, err = d.bytesSeries("IN")
		case 'S':
			f.data, err = d.bytesSeries("SC")
		case 'b':
			f.data, err = d.bytesSeries("BB")
		case 'q':
			f.data, err = d.bytesSeries("QQ")
		case 'i':
			var b byte
			if b, err = d.byteSeries("BA"); err == nil {
				f.data = []byte{b}
			}
		case 'B':
			var b byte
			if b, err = d.byteSeries("BA"); err == nil {
				f.data = []byte{b}
				f.qual, err = d.byteSeries("QS")
			}
		case 'Q':
			f.qual, err = d.byteSeries("QS")
		default:
			return nil, nil, 0, fmt.Errorf("%w: feature code %q", ErrCorrupt, code)
		}
		if err != nil {
			return nil, nil, 0, err
		}
		features = append(features, f)
	}

	if mq, err = d.intSeries("MQ"); err != nil {
		return nil, nil, 0, err
	}

	if cf&cfUnknownBases != 0 {
		seq = nsOf(rl)
	} else if seq, qual, err = d.buildSeq(refID, ap, rl, features); err != nil {
		return nil, nil, 0, err
	}
	if cf&cfQualities != 0 {
		c, err := d.series("QS")
		if err != nil {
			return nil, nil, 0, err
		}
		if qual, err = c.decodeByteN(d.streams, rl); err != nil {
			return nil, nil, 0, err
		}
		qual = append([]byte(nil), qual...)
	} else if qual == nil {
		qual = missingQual(rl)
	}
	return seq, qual, mq, nil
}

func (d *sliceDecoder) decodeUnmapped(rl int, cf int32) (seq, qual []byte, err error) {
	if cf&cfUnknownBases != 0 {
		seq = nsOf(rl)
	} else {
		c, err := d.series("BA")
		if err != nil {
			return nil, nil, err
		}
		if seq, err = c.decodeByteN(d.streams, rl); err != nil {
			return nil, nil, err
		}
		seq = append([]byte(nil), seq...)
	}
	if cf&cfQualities != 0 {
		c, err := d.series("QS")
		if err != nil {
			return nil, nil, err
		}
		if qual, err = c.decodeByteN(d.streams, rl); err != nil {
			return nil, nil, err
		}
		qual = append([]byte(nil), qual...)
	} else {
		qual = missingQual(rl)
	}
	return seq, qual, nil
}

// buildSeq reconstructs the read bases from the reference and the
// record's feature list.
func (d *sliceDecoder) buildSeq(refID, ap int32, rl int, features []feature) ([]byte, []byte, error) {
	refSpan := rl
	for _, f := range features {
		switch f.code {
		case 'I', 'S':
			refSpan -= len(f.data)
		case 'i':
			refSpan--
		case 'D', 'N':
			refSpan += int(f.val)
		}
	}
	var (
		ref []byte
		err error
	)
	if refSpan > 0 {
		if ref, err = d.refBases(refID, int(ap)-1, int(ap)-1+refSpan); err != nil {
			return nil, nil, err
		}
	}

	var (
		seq    = make([]byte, 0, rl)
		qual   = missingQual(rl)
		refOff int
	)
	fillRef := func(upto int) error {
		for len(seq) < upto {
			if refOff >= len(ref) {
				return fmt.Errorf("%w: read extends past reference span", ErrCorrupt)
			}
			seq = append(seq, ref[refOff])
			refOff++
		}
		return nil
	}
	for _, f := range features {
		p := int(f.pos) - 1
		if p < 0 || p > rl {
			return nil, nil, fmt.Errorf("%w: feature position %d outside read of length %d", ErrCorrupt, f.pos, rl)
		}
		if err := fillRef(p); err != nil {
			return nil, nil, err
		}
		switch f.code {
		case 'X':
			if refOff >= len(ref) {
				return nil, nil, fmt.Errorf("%w: substitution past reference span", ErrCorrupt)
			}
			refBase := baseIndex[ref[refOff]]
			seq = append(seq, d.comp.subst[refBase][f.val&3])
			refOff++
		case 'I', 'S':
			seq = append(seq, f.data...)
		case 'i':
			seq = append(seq, f.data...)
		case 'b':
			seq = append(seq, f.data...)
			refOff += len(f.data)
		case 'B':
			seq = append(seq, f.data...)
			qual[p] = f.qual
			refOff++
		case 'Q':
			qual[p] = f.qual
		case 'q':
			copy(qual[p:], f.data)
		case 'D':
			refOff += int(f.val)
		case 'N':
			refOff += int(f.val)
		case 'P', 'H':
			// consume neither read nor reference bases
		}
		if len(seq) > rl {
			return nil, nil, fmt.Errorf("%w: features overflow read length", ErrCorrupt)
		}
	}
	if err := fillRef(rl); err != nil {
		return nil, nil, err
	}
	return seq, qual, nil
}

func missingQual(n int) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = 0xff
	}
	return q
}
