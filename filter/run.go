package filter

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/jmoellmann/covtools/encoding/alnprovider"
	"github.com/jmoellmann/covtools/encoding/fasta"
	"github.com/jmoellmann/covtools/encoding/fastq"
)

// Stats summarizes one completed run.
type Stats struct {
	// IDs is the number of distinct identifiers in the list;
	// Duplicates the number of list lines dropped as repeats.
	IDs        int
	Duplicates int

	// Records seen and matched in the alignment input.
	AlignmentsSeen    int64
	AlignmentsMatched int64

	// Records (pairs, in paired mode) seen and matched in the FASTQ
	// input.
	ReadsSeen    int64
	ReadsMatched int64
}

const progressInterval = 1024 * 1024

// Run executes one filtering pass: it loads the identifier list, scans
// the configured inputs, writes matching records through the output
// router, and finalizes the outputs. The alignment and FASTQ inputs
// are independent and are scanned concurrently. On error no manifest
// is written and any partially written outputs must not be trusted.
func Run(ctx context.Context, opts Opts) (Stats, error) {
	var stats Stats
	if err := opts.validate(); err != nil {
		return stats, err
	}
	ids, dups, err := LoadIDSet(ctx, opts.List)
	if err != nil {
		return stats, err
	}
	stats.IDs = len(ids)
	stats.Duplicates = dups
	if dups > 0 {
		log.Printf("%s: dropped %d duplicate identifiers", opts.List, dups)
	}
	log.Debug.Printf("%s: %d identifiers", opts.List, len(ids))

	var providerOpts alnprovider.Opts
	if opts.CRAM != "" {
		ref, cleanup, err := fasta.Open(ctx, opts.Fasta)
		if err != nil {
			return stats, err
		}
		defer cleanup() // nolint: errcheck
		providerOpts.Reference = ref
	}
	provider := alnprovider.NewProvider(opts.alignmentPath(), providerOpts)
	// Fail before any output file exists if the alignment input cannot
	// be opened.
	if _, err := provider.GetHeader(); err != nil {
		_ = provider.Close()
		return stats, err
	}

	var (
		in1, in2 file.File
		r2       io.Reader
	)
	if opts.Fastq1 != "" {
		if in1, err = file.Open(ctx, opts.Fastq1); err != nil {
			_ = provider.Close()
			return stats, err
		}
		if opts.Fastq2 != "" {
			if in2, err = file.Open(ctx, opts.Fastq2); err != nil {
				_ = in1.Close(ctx)
				_ = provider.Close()
				return stats, err
			}
		}
	}
	closeInputs := func() {
		for _, f := range []file.File{in1, in2} {
			if f != nil {
				_ = f.Close(ctx)
			}
		}
		_ = provider.Close()
	}

	router, err := newRouter(ctx, &opts)
	if err != nil {
		closeInputs()
		return stats, err
	}

	passes := []func() error{
		func() error {
			return runAlignmentPass(provider, opts.alignmentPath(), ids, router, &stats)
		},
	}
	if opts.Fastq1 != "" {
		var r1 io.Reader = in1.Reader(ctx)
		if u := compress.NewReaderPath(r1, in1.Name()); u != nil {
			r1 = u
		}
		if in2 != nil {
			r2 = in2.Reader(ctx)
			if u := compress.NewReaderPath(r2, in2.Name()); u != nil {
				r2 = u
			}
		}
		passes = append(passes, func() error {
			return runFastqPass(r1, r2, opts.Fastq1, ids, router, &stats)
		})
	}
	err = traverse.Each(len(passes), func(i int) error { return passes[i]() })
	closeInputs()
	if err != nil {
		router.abort(ctx)
		return stats, err
	}
	if err := router.finalize(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

func runAlignmentPass(provider alnprovider.Provider, path string, ids IDSet, router *router, stats *Stats) error {
	iter := provider.NewIterator()
	for iter.Scan() {
		rec := iter.Record()
		stats.AlignmentsSeen++
		if stats.AlignmentsSeen%progressInterval == 0 {
			log.Printf("%s: %d records", path, stats.AlignmentsSeen)
		}
		if ids.Contains(rec.Name) {
			stats.AlignmentsMatched++
			if err := router.writeAlignment(rec); err != nil {
				_ = iter.Close()
				return err
			}
		}
	}
	return iter.Close()
}

func runFastqPass(r1, r2 io.Reader, path string, ids IDSet, router *router, stats *Stats) error {
	pr := NewPairReader(r1, r2)
	var read1, read2 fastq.Read
	for pr.Scan(&read1, &read2) {
		stats.ReadsSeen++
		if stats.ReadsSeen%progressInterval == 0 {
			log.Printf("%s: %d reads", path, stats.ReadsSeen)
		}
		if ids.Contains(read1.ID) {
			stats.ReadsMatched++
			if err := router.writeReadPair(&read1, &read2); err != nil {
				return err
			}
		}
	}
	return pr.Err()
}
