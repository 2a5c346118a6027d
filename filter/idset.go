package filter

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// IDSet is the set of normalized identifiers to keep.
type IDSet map[string]struct{}

// Normalize canonicalizes a read or sequence name for matching: a
// leading FASTQ '@' is dropped, everything after the first whitespace
// is dropped, and a trailing mate marker (/1, /2, .1, .2) is dropped.
// "@read1/1 comment" and "read1" normalize to the same identifier.
func Normalize(id string) string {
	id = strings.TrimPrefix(id, "@")
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	if n := len(id); n > 2 {
		switch id[n-2:] {
		case "/1", "/2", ".1", ".2":
			id = id[:n-2]
		}
	}
	return id
}

// Contains reports whether the normalized form of id is in the set.
func (s IDSet) Contains(id string) bool {
	_, ok := s[Normalize(id)]
	return ok
}

// ReadIDSet parses an identifier list, one per line. Blank lines are
// skipped. dups counts lines whose normalized identifier was already
// present; duplicates are harmless and merely reported.
func ReadIDSet(in io.Reader) (ids IDSet, dups int, err error) {
	ids = IDSet{}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		id := Normalize(strings.TrimSpace(scanner.Text()))
		if id == "" {
			continue
		}
		if _, ok := ids[id]; ok {
			dups++
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, dups, scanner.Err()
}

// LoadIDSet reads the identifier list at path, transparently
// decompressing gzip inputs.
func LoadIDSet(ctx context.Context, path string) (IDSet, int, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	ids, dups, err := ReadIDSet(inr)
	if err != nil {
		_ = in.Close(ctx)
		return nil, 0, errors.E(err, "read identifier list:", path)
	}
	if err := in.Close(ctx); err != nil {
		return nil, 0, err
	}
	return ids, dups, nil
}
