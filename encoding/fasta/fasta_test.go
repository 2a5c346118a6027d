package fasta

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fa = `>seq1 first sequence
ACGTACGTAC
GTACGTACGT
ACG
>seq2
TTTTCCCCGG
GG
>seq3
A
`

// The .fai matching fa above: name, length, offset, bases/line, bytes/line.
const fai = "seq1\t23\t21\t10\t11\nseq2\t12\t53\t10\t11\nseq3\t1\t73\t10\t11\n"

func testFasta(t *testing.T, f Fasta) {
	assert.Equal(t, []string{"seq1", "seq2", "seq3"}, f.SeqNames())

	n, err := f.Len("seq1")
	require.NoError(t, err)
	assert.EqualValues(t, 23, n)

	got, err := f.Get("seq1", 0, 23)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTACGTACGTACGTACG", got)

	// Within one line.
	got, err = f.Get("seq1", 2, 6)
	require.NoError(t, err)
	assert.Equal(t, "GTAC", got)

	// Across a line break.
	got, err = f.Get("seq1", 8, 13)
	require.NoError(t, err)
	assert.Equal(t, "ACGTA", got)

	got, err = f.Get("seq2", 9, 12)
	require.NoError(t, err)
	assert.Equal(t, "GGG", got)

	got, err = f.Get("seq3", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", got)

	_, err = f.Get("seq1", 5, 5)
	assert.Error(t, err)
	_, err = f.Get("seq1", 0, 24)
	assert.Error(t, err)
	_, err = f.Get("nosuch", 0, 1)
	assert.Error(t, err)
	_, err = f.Len("nosuch")
	assert.Error(t, err)
	assert.True(t, Has(f, "seq2"))
	assert.False(t, Has(f, "nosuch"))
}

func TestInMemory(t *testing.T) {
	f, err := New(strings.NewReader(fa))
	require.NoError(t, err)
	testFasta(t, f)
}

func TestIndexed(t *testing.T) {
	f, err := NewIndexed(strings.NewReader(fa), strings.NewReader(fai))
	require.NoError(t, err)
	testFasta(t, f)
}

func TestMalformed(t *testing.T) {
	_, err := New(strings.NewReader("ACGT\n"))
	assert.Error(t, err)
	_, err = New(strings.NewReader(">a\nACGT\n>a\nACGT\n"))
	assert.Error(t, err)
	_, err = NewIndexed(strings.NewReader(fa), strings.NewReader("seq1\t23\t21\t10\n"))
	assert.Error(t, err)
	_, err = NewIndexed(strings.NewReader(fa), strings.NewReader("seq1\t23\t21\tx\t11\n"))
	assert.Error(t, err)
}

func TestWriter(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)
	require.NoError(t, w.Write("seq1", strings.Repeat("ACGTT", 25)))
	require.NoError(t, w.Write("seq2", "ACGT"))
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	assert.Equal(t, ">seq1", lines[0])
	assert.Len(t, lines, 6)
	assert.Equal(t, 60, len(lines[1]))
	assert.Equal(t, 5, len(lines[3]))
	assert.Equal(t, ">seq2", lines[4])
	assert.Equal(t, "ACGT", lines[5])

	f, err := New(strings.NewReader(b.String()))
	require.NoError(t, err)
	got, err := f.Get("seq1", 0, 125)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ACGTT", 25), got)
}
