package fastq

import (
	"errors"
	"io"
)

// ErrDiscordant is returned when two underlying FASTQ files are
// discordant: one stream yields a record while the other is exhausted.
var ErrDiscordant = errors.New("discordant FASTQ pairs")

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams in lock step.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided R1
// and R2 readers.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{
		r1: NewScanner(r1),
		r2: NewScanner(r2),
	}
}

// Scan scans the next read pair into r1, r2. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check the
// Err method to determine whether scanning stopped because of an error
// or because the end of both streams was reached.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 && p.r1.Err() == nil && p.r2.Err() == nil {
		p.err = ErrDiscordant
	}
	return ok1 && ok2
}

// N returns the number of record pairs scanned so far.
func (p *PairScanner) N() int { return p.r1.n }

// Err returns the scanning error, if any. It should be checked after
// Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}
