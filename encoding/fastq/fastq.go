// Package fastq reads and writes FASTQ read data. The package validates
// only record framing: ID lines must begin with "@" and separator lines
// with "+". Sequence and quality content is passed through untouched.
package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a FASTQ stream ends in the middle of a
	// four-line record.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when record framing is malformed.
	ErrInvalid = errors.New("invalid FASTQ file")
)

var errEOF = errors.New("eof")

// A Read is one FASTQ record: an ID line, the sequence, the line-3
// separator (usually a bare "+"), and the quality string. ID retains the
// leading "@" and any comment following the name.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Name returns the read name: the ID line without the leading "@" and
// without the optional comment after the first whitespace.
func (r *Read) Name() string {
	id := strings.TrimPrefix(r.ID, "@")
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	return id
}

// Scanner reads FASTQ records sequentially from an underlying reader.
// The Scan method fills the next record and reports whether it
// succeeded; once it returns false it never returns true again, and the
// caller must consult Err to distinguish end of stream from failure.
// Scanners are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	n   int
	err error
}

// NewScanner returns a Scanner reading raw FASTQ data from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan reads the next record into read.
func (s *Scanner) Scan(read *Read) bool {
	if s.err != nil {
		return false
	}
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = errEOF
		}
		return false
	}
	id := s.b.Text()
	if len(id) == 0 || id[0] != '@' {
		s.err = ErrInvalid
		return false
	}
	read.ID = id
	if !s.scanLine(&read.Seq) {
		return false
	}
	if !s.scanLine(&read.Unk) {
		return false
	}
	if len(read.Unk) == 0 || read.Unk[0] != '+' {
		s.err = ErrInvalid
		return false
	}
	if !s.scanLine(&read.Qual) {
		return false
	}
	s.n++
	return true
}

func (s *Scanner) scanLine(dst *string) bool {
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = ErrShort
		}
		return false
	}
	*dst = s.b.Text()
	return true
}

// N returns the number of records scanned so far.
func (s *Scanner) N() int { return s.n }

// Err returns the first error encountered while scanning, or nil if the
// stream was exhausted cleanly.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}
