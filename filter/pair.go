package filter

import (
	"errors"
	"fmt"
	"io"

	"github.com/jmoellmann/covtools/encoding/fastq"
)

// PairReader scans one or two FASTQ streams. With two streams it
// enforces pairing: both must have the same length and the records at
// each step must carry the same normalized name. Any violation
// surfaces as ErrPairing from Err.
type PairReader struct {
	single *fastq.Scanner
	pair   *fastq.PairScanner
	err    error
}

// NewPairReader returns a PairReader over r1 and, if non-nil, r2.
func NewPairReader(r1, r2 io.Reader) *PairReader {
	if r2 == nil {
		return &PairReader{single: fastq.NewScanner(r1)}
	}
	return &PairReader{pair: fastq.NewPairScanner(r1, r2)}
}

// Scan reads the next record into read1 and, in paired mode, its mate
// into read2. It returns false at end of stream or on error.
func (p *PairReader) Scan(read1, read2 *fastq.Read) bool {
	if p.err != nil {
		return false
	}
	if p.single != nil {
		return p.single.Scan(read1)
	}
	if !p.pair.Scan(read1, read2) {
		return false
	}
	if Normalize(read1.ID) != Normalize(read2.ID) {
		p.err = fmt.Errorf("%w: %q does not pair with %q at record %d",
			ErrPairing, read1.Name(), read2.Name(), p.pair.N())
		return false
	}
	return true
}

// N returns the number of records (pairs, in paired mode) scanned so
// far.
func (p *PairReader) N() int {
	if p.single != nil {
		return p.single.N()
	}
	return p.pair.N()
}

// Err returns the first error encountered, or nil on clean end of
// stream. Length mismatches between the two streams are reported as
// ErrPairing.
func (p *PairReader) Err() error {
	var err error
	if p.single != nil {
		err = p.single.Err()
	} else {
		err = p.pair.Err()
	}
	if errors.Is(err, fastq.ErrDiscordant) {
		return fmt.Errorf("%w: one FASTQ ended before the other", ErrPairing)
	}
	if err != nil {
		return err
	}
	return p.err
}
