package alnprovider

import (
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"

	"github.com/jmoellmann/covtools/encoding/cram"
	"github.com/jmoellmann/covtools/encoding/fasta"
)

// ErrMissingReference is returned when a CRAM provider is opened
// without a reference FASTA.
var ErrMissingReference = cram.ErrMissingReference

// CRAMProvider implements Provider for CRAM files. Reference must hold
// the sequences the file was compressed against; a nil Reference fails
// at open time with ErrMissingReference.
type CRAMProvider struct {
	// Path of the *.cram file. Must be nonempty.
	Path string
	// Reference is consulted for the bases of mapped records.
	Reference fasta.Fasta
	err       errors.Once

	mu      sync.Mutex
	nActive int
	header  *sam.Header
}

type cramIterator struct {
	provider *CRAMProvider
	in       file.File
	reader   *cram.Reader

	err  error
	next *sam.Record
	done bool
}

// GetHeader implements the Provider interface.
func (c *CRAMProvider) GetHeader() (*sam.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.header != nil {
		return c.header, nil
	}
	if c.Reference == nil {
		c.err.Set(ErrMissingReference)
		return nil, ErrMissingReference
	}
	ctx := vcontext.Background()
	in, err := file.Open(ctx, c.Path)
	if err != nil {
		c.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	reader, err := cram.NewReader(in.Reader(ctx), c.Reference)
	if err != nil {
		c.err.Set(err)
		return nil, err
	}
	c.header = reader.Header()
	return c.header, nil
}

// NewIterator implements the Provider interface.
func (c *CRAMProvider) NewIterator() Iterator {
	if c.Reference == nil {
		c.err.Set(ErrMissingReference)
		return NewErrorIterator(ErrMissingReference)
	}
	ctx := vcontext.Background()
	in, err := file.Open(ctx, c.Path)
	if err != nil {
		c.err.Set(err)
		return NewErrorIterator(err)
	}
	reader, err := cram.NewReader(in.Reader(ctx), c.Reference)
	if err != nil {
		_ = in.Close(ctx)
		c.err.Set(err)
		return NewErrorIterator(err)
	}
	c.mu.Lock()
	c.nActive++
	c.mu.Unlock()
	return &cramIterator{provider: c, in: in, reader: reader}
}

// Close implements the Provider interface.
func (c *CRAMProvider) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nActive > 0 {
		log.Panicf("%d iterators still active for %+v", c.nActive, c)
	}
	return c.err.Err()
}

func (i *cramIterator) Scan() bool {
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

func (i *cramIterator) Record() *sam.Record { return i.next }

func (i *cramIterator) Err() error { return i.err }

func (i *cramIterator) Close() error {
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
