package cram

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz/lzma"
)

// A block is the unit of storage inside a container: a small header
// followed by (possibly compressed) content.
type block struct {
	method      int
	contentType int
	contentID   int32
	data        []byte // decompressed
}

// readBlock reads and decompresses one block from r.
func readBlock(r io.Reader) (*block, error) {
	var fixed [2]byte
	if err := readFull(r, fixed[:]); err != nil {
		return nil, err
	}
	b := &block{method: int(fixed[0]), contentType: int(fixed[1])}

	// contentID, compressed size and raw size are ITF8; longest form is
	// five bytes each. Read conservatively byte by byte.
	var sizes [3]int32
	for i := range sizes {
		v, err := readITF8(r)
		if err != nil {
			return nil, err
		}
		sizes[i] = v
	}
	b.contentID = sizes[0]
	compressedSize, rawSize := sizes[1], sizes[2]
	if compressedSize < 0 || rawSize < 0 {
		return nil, fmt.Errorf("%w: negative block size", ErrCorrupt)
	}
	compressed := make([]byte, compressedSize)
	if err := readFull(r, compressed); err != nil {
		return nil, err
	}
	// Trailing block CRC32. Integrity is delegated to the transport; the
	// checksum is consumed but not verified.
	var crc [4]byte
	if err := readFull(r, crc[:]); err != nil {
		return nil, err
	}

	var err error
	if b.data, err = decompress(b.method, compressed, int(rawSize)); err != nil {
		return nil, err
	}
	if len(b.data) != int(rawSize) {
		return nil, fmt.Errorf("%w: block inflates to %d bytes, expected %d",
			ErrCorrupt, len(b.data), rawSize)
	}
	return b, nil
}

func decompress(method int, in []byte, rawSize int) ([]byte, error) {
	switch method {
	case methodRaw:
		return in, nil
	case methodGzip:
		zr, err := gzip.NewReader(bytes.NewReader(in))
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip block: %v", ErrCorrupt, err)
		}
		defer zr.Close() // nolint: errcheck
		return readAll(zr, rawSize)
	case methodBzip2:
		return readAll(bzip2.NewReader(bytes.NewReader(in)), rawSize)
	case methodLzma:
		zr, err := lzma.NewReader(bytes.NewReader(in))
		if err != nil {
			return nil, fmt.Errorf("%w: bad lzma block: %v", ErrCorrupt, err)
		}
		return readAll(zr, rawSize)
	case methodRans:
		return ransDecode(in, rawSize)
	default:
		return nil, fmt.Errorf("%w: block compression method %d", ErrUnsupported, method)
	}
}

func readAll(r io.Reader, rawSize int) ([]byte, error) {
	out := make([]byte, rawSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: short block: %v", ErrCorrupt, err)
	}
	// A well-formed block ends exactly at rawSize.
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("%w: block larger than declared raw size", ErrCorrupt)
	}
	return out, nil
}

// readITF8 decodes an ITF8 value directly from an io.Reader.
func readITF8(r io.Reader) (int32, error) {
	var b [5]byte
	if err := readFull(r, b[:1]); err != nil {
		return 0, err
	}
	n := 0
	for mask := byte(0x80); mask != 0 && b[0]&mask != 0 && n < 4; mask >>= 1 {
		n++
	}
	if n > 0 {
		if err := readFull(r, b[1:1+n]); err != nil {
			return 0, err
		}
	}
	br := newByteReader(b[:1+n])
	v := br.itf8()
	return v, br.err
}
