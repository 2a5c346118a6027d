package fasta

import (
	"context"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Open opens the FASTA file at path (any scheme supported by
// grailbio/base/file). When a sibling .fai index exists, sequences are
// served lazily from disk; otherwise the whole file is read into memory.
// The returned cleanup func must be called when the Fasta is no longer
// needed, and may be called on a nil Fasta result.
func Open(ctx context.Context, path string) (Fasta, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, noop, err
	}
	idx, err := file.Open(ctx, path+".fai")
	if err == nil {
		defer idx.Close(ctx) // nolint: errcheck
		f, err := NewIndexed(in.Reader(ctx), idx.Reader(ctx))
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, noop, err
		}
		return f, func() error { return in.Close(ctx) }, nil
	}
	log.Debug.Printf("fasta: no index for %s, reading into memory", path)
	defer in.Close(ctx) // nolint: errcheck
	f, err := New(in.Reader(ctx))
	if err != nil {
		return nil, noop, err
	}
	return f, noop, nil
}

func noop() error { return nil }
