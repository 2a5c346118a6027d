package alnprovider

import (
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// BAMProvider implements Provider for BAM files. The path may be an S3
// URL, in which case the data is read from S3; otherwise it is read
// from the local filesystem.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	err  errors.Once

	mu      sync.Mutex
	nActive int
	header  *sam.Header
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader

	err  error
	next *sam.Record
	done bool
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}
	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close() // nolint: errcheck
	b.header = reader.Header()
	return b.header, nil
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator() Iterator {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return NewErrorIterator(err)
	}
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		_ = in.Close(ctx)
		b.err.Set(err)
		return NewErrorIterator(err)
	}
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()
	return &bamIterator{provider: b, in: in, reader: reader}
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive > 0 {
		log.Panicf("%d iterators still active for %+v", b.nActive, b)
	}
	return b.err.Err()
}

func (i *bamIterator) Scan() bool {
	if i.err != nil || i.done {
		return false
	}
	rec, err := i.reader.Read()
	if err != nil {
		i.done = true
		if err != io.EOF {
			i.err = err
		}
		return false
	}
	i.next = rec
	return true
}

func (i *bamIterator) Record() *sam.Record { return i.next }

func (i *bamIterator) Err() error { return i.err }

func (i *bamIterator) Close() error {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	i.provider.err.Set(i.err)
	i.provider.mu.Lock()
	i.provider.nActive--
	if i.provider.nActive < 0 {
		log.Panicf("negative active count for %+v", i.provider)
	}
	i.provider.mu.Unlock()
	return i.err
}
