// Package cram reads CRAM 3.0 alignment files, yielding the same
// *sam.Record values a BAM reader produces. CRAM stores aligned bases
// as differences against a reference sequence, so decoding mapped
// records requires the reference the file was compressed with, supplied
// as a fasta.Fasta (slices carrying an embedded reference block decode
// without it).
//
// The reader covers the encodings emitted by the common writers
// (htslib and its descendants): gzip, bzip2, lzma and rANS-4x8 block
// compression, and the EXTERNAL, HUFFMAN, BETA, GAMMA, SUBEXP,
// BYTE_ARRAY_LEN and BYTE_ARRAY_STOP value codecs. CRAM 3.1 and 4.0
// codecs are rejected with ErrUnsupported.
package cram

import "errors"

var (
	// ErrCorrupt is returned when container, block or record bytes do
	// not decode. Decoding cannot resume past a corrupt record.
	ErrCorrupt = errors.New("cram: corrupt data")
	// ErrUnsupported is returned for well-formed input using a CRAM
	// version, compression method or codec this package does not
	// implement.
	ErrUnsupported = errors.New("cram: unsupported feature")
	// ErrMissingReference is returned when decoding requires an external
	// reference sequence and none was supplied.
	ErrMissingReference = errors.New("cram: reference FASTA required")
	// ErrReferenceMismatch is returned when a record refers to a
	// sequence that is absent from the supplied reference FASTA.
	ErrReferenceMismatch = errors.New("cram: sequence absent from reference FASTA")
)

const (
	cramMagic = "CRAM"

	// Block content types.
	blockFileHeader        = 0
	blockCompressionHeader = 1
	blockSliceHeader       = 2
	blockExternal          = 4
	blockCore              = 5

	// Block compression methods.
	methodRaw   = 0
	methodGzip  = 1
	methodBzip2 = 2
	methodLzma  = 3
	methodRans  = 4
)

// BAM flag bits reconstructed from the CRAM mate flags (MF series).
const (
	mateReversed = 0x1
	mateUnmapped = 0x2
)

// CRAM record flag bits (CF series).
const (
	cfQualities      = 0x1 // quality scores stored as an array
	cfDetached       = 0x2 // mate information stored verbatim
	cfMateDownstream = 0x4 // mate is NF records downstream in this slice
	cfUnknownBases   = 0x8 // sequence not stored
)
