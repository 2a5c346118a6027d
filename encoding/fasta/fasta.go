// Package fasta reads (optionally .fai-indexed) FASTA files and writes
// FASTA records. A FASTA file holds named sequences that may be broken
// across lines:
//
//	>chr7 optional description
//	ACGTAC
//	GCG
//	>chr8
//	ACGT
//
// A sequence name is the text between '>' and the first space; anything
// after the space is ignored.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Fasta is a set of named sequences. Implementations are safe for
// concurrent use.
type Fasta interface {
	// Get returns the bases of the named sequence over the 0-based
	// half-open interval [start, end).
	Get(name string, start, end uint64) (string, error)

	// Len returns the length of the named sequence.
	Len(name string) (uint64, error)

	// SeqNames returns all sequence names in file order.
	SeqNames() []string
}

// Has reports whether f contains a sequence called name.
func Has(f Fasta, name string) bool {
	_, err := f.Len(name)
	return err == nil
}

type memFasta struct {
	seqs  map[string]string
	names []string
}

// New reads all FASTA data from r into memory.
func New(r io.Reader) (Fasta, error) {
	f := &memFasta{seqs: make(map[string]string)}
	var (
		name string
		seq  strings.Builder
	)
	flush := func() error {
		if seq.Len() == 0 && name == "" {
			return nil
		}
		if name == "" {
			return errors.New("malformed FASTA file: sequence data before any header")
		}
		if _, ok := f.seqs[name]; ok {
			return errors.Errorf("malformed FASTA file: duplicate sequence %s", name)
		}
		f.seqs[name] = seq.String()
		f.names = append(f.names, name)
		seq.Reset()
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1024*1024*256)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.SplitN(line[1:], " ", 2)[0]
			if name == "" {
				return nil, errors.New("malformed FASTA file: empty sequence name")
			}
		} else {
			seq.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *memFasta) Get(name string, start, end uint64) (string, error) {
	s, ok := f.seqs[name]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", name)
	}
	if end <= start || end > uint64(len(s)) {
		return "", errors.Errorf("invalid range [%d, %d) for sequence %s of length %d",
			start, end, name, len(s))
	}
	return s[start:end], nil
}

func (f *memFasta) Len(name string) (uint64, error) {
	s, ok := f.seqs[name]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", name)
	}
	return uint64(len(s)), nil
}

func (f *memFasta) SeqNames() []string {
	return f.names
}
