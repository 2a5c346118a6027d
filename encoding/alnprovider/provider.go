// Package alnprovider reads alignment records from BAM or CRAM files
// behind a single Provider interface, so callers stream sam.Records
// without caring about the container format.
package alnprovider

import (
	"strings"

	"github.com/grailbio/hts/sam"

	"github.com/jmoellmann/covtools/encoding/fasta"
)

// Opts defines options for NewProvider.
type Opts struct {
	// Reference holds the FASTA the alignments were compressed against.
	// It is required for CRAM, where mapped records store only their
	// differences from the reference. BAM ignores it.
	Reference fasta.Fasta
}

// Provider reads the records of one alignment file. Providers are
// thread safe; iterators are thread compatible.
type Provider interface {
	// GetHeader returns the file's header. The caller must not modify
	// the returned object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over all records in file order.
	// Errors opening the file surface through the iterator's Err.
	//
	// REQUIRES: Close has not been called.
	NewIterator() Iterator

	// Close must be called exactly once. It returns any error
	// encountered by the provider or by an iterator it created.
	//
	// REQUIRES: All iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records in file order.
type Iterator interface {
	// Scan advances the iterator to the next record, returning false at
	// the end of the file or on error.
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record. It must be called only after a
	// call to Scan returns true.
	Record() *sam.Record

	// Err returns the error encountered during iteration, or nil. An
	// io.EOF is translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// FileType represents the container format of an alignment file.
type FileType int

const (
	// Unknown is a sentinel.
	Unknown FileType = iota
	// BAM file
	BAM
	// CRAM file
	CRAM
)

// ParseFileType parses a file type string; "bam" returns BAM, for
// example. On error it returns Unknown.
func ParseFileType(name string) FileType {
	switch name {
	case "bam":
		return BAM
	case "cram":
		return CRAM
	default:
		return Unknown
	}
}

// GuessFileType returns the file type implied by the pathname.
func GuessFileType(path string) FileType {
	switch {
	case strings.HasSuffix(path, ".bam"):
		return BAM
	case strings.HasSuffix(path, ".cram"):
		return CRAM
	default:
		return Unknown
	}
}

// NewProvider creates a Provider for the alignment file at path. The
// file type is detected from the path; files without a recognized
// extension are treated as BAM.
func NewProvider(path string, opts Opts) Provider {
	switch GuessFileType(path) {
	case CRAM:
		return &CRAMProvider{Path: path, Reference: opts.Reference}
	default:
		return &BAMProvider{Path: path}
	}
}
