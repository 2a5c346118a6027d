// Package filter extracts sequencing reads named in an identifier list
// from BAM/CRAM alignment files and FASTQ read files, writing the
// matches as FASTA and/or FASTQ plus an optional manifest of the
// matched identifiers.
package filter

import (
	"errors"
	"fmt"

	"github.com/jmoellmann/covtools/encoding/alnprovider"
)

var (
	// ErrConfig is returned when the option set is contradictory or
	// incomplete. Configuration is validated before any output is
	// created.
	ErrConfig = errors.New("invalid filter configuration")
	// ErrPairing is returned when two FASTQ inputs fall out of sync:
	// unequal lengths or mismatched read names at the same step.
	ErrPairing = errors.New("FASTQ files are not properly paired")
	// ErrMissingReference mirrors alnprovider.ErrMissingReference for
	// configuration-time checks.
	ErrMissingReference = alnprovider.ErrMissingReference
)

// Opts configures one filtering run. It is built once and never
// modified afterwards.
type Opts struct {
	// List is the path of the identifier list, one read or sequence
	// name per line. May be gzip compressed. Required.
	List string

	// BAM and CRAM are the alignment input paths. Exactly one must be
	// set.
	BAM  string
	CRAM string

	// Fasta is the reference the CRAM input was compressed against.
	// Required when CRAM is set.
	Fasta string

	// Fastq1 and Fastq2 are raw read inputs, filtered in lock step when
	// both are set. Fastq2 requires Fastq1. May be gzip compressed.
	Fastq1 string
	Fastq2 string

	// Suffix is inserted between the input stem and the output
	// extension: <stem>.<suffix>.<ext>.
	Suffix string

	// FastaOut writes matched alignment records as FASTA.
	FastaOut bool
	// FastqOut writes matched FASTQ records, one output per input.
	FastqOut bool

	// ReadList, when set, is the path of the manifest listing every
	// matched identifier.
	ReadList string
}

// DefaultSuffix is used when Opts.Suffix is empty.
const DefaultSuffix = "filtered"

func (o *Opts) validate() error {
	if o.List == "" {
		return fmt.Errorf("%w: an identifier list is required", ErrConfig)
	}
	switch {
	case o.BAM == "" && o.CRAM == "":
		return fmt.Errorf("%w: either a BAM or a CRAM input is required", ErrConfig)
	case o.BAM != "" && o.CRAM != "":
		return fmt.Errorf("%w: BAM and CRAM inputs are mutually exclusive", ErrConfig)
	}
	if o.CRAM != "" && o.Fasta == "" {
		// CRAM records cannot be decoded without the reference they
		// were compressed against.
		return fmt.Errorf("%w: %s", ErrMissingReference, o.CRAM)
	}
	if o.Fastq2 != "" && o.Fastq1 == "" {
		return fmt.Errorf("%w: a second FASTQ requires a first FASTQ", ErrConfig)
	}
	if o.FastqOut && o.Fastq1 == "" {
		return fmt.Errorf("%w: FASTQ output requires a FASTQ input", ErrConfig)
	}
	return nil
}

func (o *Opts) suffix() string {
	if o.Suffix == "" {
		return DefaultSuffix
	}
	return o.Suffix
}

func (o *Opts) alignmentPath() string {
	if o.BAM != "" {
		return o.BAM
	}
	return o.CRAM
}
