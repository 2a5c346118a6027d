package cram

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBlock(method, contentType byte, contentID byte, compressed []byte, rawSize byte) []byte {
	out := []byte{method, contentType, contentID, byte(len(compressed)), rawSize}
	out = append(out, compressed...)
	return append(out, 0, 0, 0, 0) // CRC, not verified
}

func TestReadBlockRaw(t *testing.T) {
	payload := []byte("hello")
	b, err := readBlock(bytes.NewReader(buildBlock(methodRaw, blockExternal, 9, payload, 5)))
	require.NoError(t, err)
	assert.Equal(t, methodRaw, b.method)
	assert.Equal(t, blockExternal, b.contentType)
	assert.Equal(t, int32(9), b.contentID)
	assert.Equal(t, payload, b.data)
}

func TestReadBlockGzip(t *testing.T) {
	payload := bytes.Repeat([]byte("acgt"), 24)
	var z bytes.Buffer
	zw := gzip.NewWriter(&z)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	raw := buildBlock(methodGzip, blockCore, 0, z.Bytes(), byte(len(payload)))
	b, err := readBlock(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, payload, b.data)

	// Declared raw size must match the inflated length.
	raw = buildBlock(methodGzip, blockCore, 0, z.Bytes(), byte(len(payload)-1))
	_, err = readBlock(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReadBlockErrors(t *testing.T) {
	_, err := readBlock(bytes.NewReader(buildBlock(99, blockExternal, 0, []byte("x"), 1)))
	assert.ErrorIs(t, err, ErrUnsupported)

	// Raw block whose payload disagrees with its raw size.
	_, err = readBlock(bytes.NewReader(buildBlock(methodRaw, blockExternal, 0, []byte("xy"), 3)))
	assert.ErrorIs(t, err, ErrCorrupt)

	// Truncated payload.
	raw := buildBlock(methodRaw, blockExternal, 0, []byte("abc"), 3)
	_, err = readBlock(bytes.NewReader(raw[:6]))
	assert.Error(t, err)
}

func TestReadBlockRans(t *testing.T) {
	payload := []byte("mississippi mississippi")
	raw := buildBlock(methodRans, blockExternal, 4, ransEncode0(payload), byte(len(payload)))
	b, err := readBlock(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, payload, b.data)
}
