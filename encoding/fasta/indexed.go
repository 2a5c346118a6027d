package fasta

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// An index entry, one per line of a .fai file. The format is
// "<name>\t<length>\t<byte offset>\t<bases per line>\t<bytes per line>".
type faiEntry struct {
	length    uint64
	offset    uint64
	lineBase  uint64
	lineWidth uint64
}

type indexedFasta struct {
	mu    sync.Mutex
	r     io.ReadSeeker
	seqs  map[string]faiEntry
	names []string
	buf   []byte
}

// NewIndexed returns a Fasta that serves random lookups directly from
// fasta using the .fai index read from index, without loading sequence
// data into memory.
func NewIndexed(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	f := &indexedFasta{r: fasta, seqs: make(map[string]faiEntry)}
	scanner := bufio.NewScanner(index)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			return nil, errors.Errorf("invalid index line: %q", line)
		}
		var (
			ent  faiEntry
			err  error
			vals = []*uint64{&ent.length, &ent.offset, &ent.lineBase, &ent.lineWidth}
		)
		for i, v := range vals {
			if *v, err = strconv.ParseUint(fields[i+1], 10, 64); err != nil {
				return nil, errors.Wrapf(err, "invalid index line: %q", line)
			}
		}
		if ent.lineBase == 0 || ent.lineWidth < ent.lineBase {
			return nil, errors.Errorf("invalid index line: %q", line)
		}
		if _, ok := f.seqs[fields[0]]; ok {
			return nil, errors.Errorf("duplicate index entry: %s", fields[0])
		}
		f.seqs[fields[0]] = ent
		f.names = append(f.names, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA index")
	}
	return f, nil
}

func (f *indexedFasta) Get(name string, start, end uint64) (string, error) {
	ent, ok := f.seqs[name]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", name)
	}
	if end <= start || end > ent.length {
		return "", errors.Errorf("invalid range [%d, %d) for sequence %s of length %d",
			start, end, name, ent.length)
	}

	// Map base coordinates to byte coordinates, allowing for the newline
	// bytes between lines.
	sep := ent.lineWidth - ent.lineBase
	off := ent.offset + start + sep*(start/ent.lineBase)
	lastOff := ent.offset + (end - 1) + sep*((end-1)/ent.lineBase)
	span := lastOff + 1 - off

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.r.Seek(int64(off), io.SeekStart); err != nil {
		return "", errors.Wrapf(err, "seek to %d in FASTA", off)
	}
	if uint64(cap(f.buf)) < span {
		f.buf = make([]byte, span)
	}
	f.buf = f.buf[:span]
	if _, err := io.ReadFull(f.r, f.buf); err != nil {
		return "", errors.Wrapf(err, "read sequence %s (truncated file or stale index?)", name)
	}

	out := make([]byte, 0, end-start)
	pos := (off - ent.offset) % ent.lineWidth
	for _, c := range f.buf {
		if pos < ent.lineBase {
			out = append(out, c)
		}
		pos++
		if pos == ent.lineWidth {
			pos = 0
		}
	}
	return string(out), nil
}

func (f *indexedFasta) Len(name string) (uint64, error) {
	ent, ok := f.seqs[name]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", name)
	}
	return ent.length, nil
}

func (f *indexedFasta) SeqNames() []string {
	return f.names
}
