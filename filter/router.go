package filter

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/sam"
	"github.com/jmoellmann/covtools/encoding/fasta"
	"github.com/jmoellmann/covtools/encoding/fastq"
)

// outputPath derives the output name for an input path: the input's
// stem, in the input's directory, with ".<suffix><ext>" appended. A
// trailing ".gz" and the input's own extension are both stripped from
// the stem, so "dir/sample.fastq.gz" becomes "dir/sample.<suffix><ext>".
func outputPath(input, suffix, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), ".gz")
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return filepath.Join(filepath.Dir(input), base+"."+suffix+ext)
}

// manifest accumulates normalized identifiers, once each, in first-seen
// order.
type manifest struct {
	seen  map[string]struct{}
	order []string
}

func (m *manifest) add(id string) {
	id = Normalize(id)
	if m.seen == nil {
		m.seen = map[string]struct{}{}
	}
	if _, ok := m.seen[id]; ok {
		return
	}
	m.seen[id] = struct{}{}
	m.order = append(m.order, id)
}

// router owns the output writers for one run. All writes funnel
// through it; nothing else opens the output paths.
type router struct {
	fastaFile file.File
	fastaW    *fasta.Writer

	fq1File, fq2File file.File
	fq1W, fq2W       *fastq.Writer

	manifestPath string

	// With no output channel configured the manifest is the only
	// requested artifact, and records every match instead of only
	// persisted records.
	matchOnly bool

	// Each pass appends to its own manifest half; finalize concatenates
	// them in a fixed order so the manifest does not depend on how the
	// concurrent passes interleave.
	alignments manifest
	reads      manifest
}

// newRouter creates the outputs requested by opts. Files are created
// eagerly so that a doomed run fails before any record is processed.
func newRouter(ctx context.Context, opts *Opts) (*router, error) {
	r := &router{manifestPath: opts.ReadList}
	if opts.FastaOut {
		f, err := file.Create(ctx, outputPath(opts.alignmentPath(), opts.suffix(), ".fasta"))
		if err != nil {
			r.abort(ctx)
			return nil, err
		}
		r.fastaFile = f
		r.fastaW = fasta.NewWriter(f.Writer(ctx))
	}
	if opts.FastqOut {
		f, err := file.Create(ctx, outputPath(opts.Fastq1, opts.suffix(), ".fastq"))
		if err != nil {
			r.abort(ctx)
			return nil, err
		}
		r.fq1File = f
		r.fq1W = fastq.NewWriter(f.Writer(ctx))
		if opts.Fastq2 != "" {
			f, err := file.Create(ctx, outputPath(opts.Fastq2, opts.suffix(), ".fastq"))
			if err != nil {
				r.abort(ctx)
				return nil, err
			}
			r.fq2File = f
			r.fq2W = fastq.NewWriter(f.Writer(ctx))
		}
	}
	r.matchOnly = r.fastaW == nil && r.fq1W == nil
	return r, nil
}

// writeAlignment persists one matched alignment record as FASTA. The
// identifier enters the manifest only if the record was written (or no
// output channel exists at all).
func (r *router) writeAlignment(rec *sam.Record) error {
	if r.fastaW != nil {
		if err := r.fastaW.Write(rec.Name, string(rec.Seq.Expand())); err != nil {
			return err
		}
	}
	if r.fastaW != nil || r.matchOnly {
		r.alignments.add(rec.Name)
	}
	return nil
}

// writeReadPair persists one matched FASTQ record (and its mate, in
// paired mode). read2 is ignored unless a second output stream exists.
// The identifier enters the manifest only if the record was written (or
// no output channel exists at all).
func (r *router) writeReadPair(read1, read2 *fastq.Read) error {
	if r.fq1W != nil {
		if err := r.fq1W.Write(read1); err != nil {
			return err
		}
	}
	if r.fq2W != nil {
		if err := r.fq2W.Write(read2); err != nil {
			return err
		}
	}
	if r.fq1W != nil || r.matchOnly {
		r.reads.add(read1.Name())
	}
	return nil
}

// finalize closes the record writers and then, if requested, writes the
// manifest: the alignment pass's identifiers followed by the FASTQ
// pass's, deduplicated. Writers close before the manifest so it only
// ever names records already on disk. finalize must not be called after
// a streaming failure.
func (r *router) finalize(ctx context.Context) error {
	for _, f := range []file.File{r.fastaFile, r.fq1File, r.fq2File} {
		if f == nil {
			continue
		}
		if err := f.Close(ctx); err != nil {
			return err
		}
	}
	r.fastaFile, r.fq1File, r.fq2File = nil, nil, nil
	if r.manifestPath == "" {
		return nil
	}
	out, err := file.Create(ctx, r.manifestPath)
	if err != nil {
		return err
	}
	w := out.Writer(ctx)
	written := map[string]struct{}{}
	for _, half := range []*manifest{&r.alignments, &r.reads} {
		for _, id := range half.order {
			if _, ok := written[id]; ok {
				continue
			}
			written[id] = struct{}{}
			if _, err := io.WriteString(w, id+"\n"); err != nil {
				_ = out.Close(ctx)
				return errors.E(err, "write manifest:", r.manifestPath)
			}
		}
	}
	return out.Close(ctx)
}

// abort releases open outputs without flushing the manifest. The files
// written so far are left on disk, possibly truncated.
func (r *router) abort(ctx context.Context) {
	for _, f := range []file.File{r.fastaFile, r.fq1File, r.fq2File} {
		if f != nil {
			_ = f.Close(ctx)
		}
	}
	r.fastaFile, r.fq1File, r.fq2File = nil, nil, nil
}
