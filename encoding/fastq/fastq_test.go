package fastq

import (
	"bytes"
	"strings"
	"testing"
)

const fq = `@SIM:1:FCX:1:15:6329:1045 1:N:0:ATCACG
TGGGCTACAGGCTTGTCACTC
+
AAFFFJJJJJJJJJJJJJJJJ
@SIM:1:FCX:1:15:6329:1046 1:N:0:ATCACG
CATCACCCATTGGTGCCTAGG
+
AAFFFJJJJJFJJJJJJJJJ<
@SIM:1:FCX:1:15:6330:1047 1:N:0:ATCACG
GTTGCTTCTGGCGTGGGTGGG
+
#AAFFJJJJJJJJJJJJJJJJ
`

func scanErr(s string) error {
	sc := NewScanner(strings.NewReader(s))
	var r Read
	for sc.Scan(&r) {
	}
	return sc.Err()
}

func TestScanner(t *testing.T) {
	sc := NewScanner(strings.NewReader(fq))
	var r Read
	if !sc.Scan(&r) {
		t.Fatal(sc.Err())
	}
	want := Read{
		ID:   "@SIM:1:FCX:1:15:6329:1045 1:N:0:ATCACG",
		Seq:  "TGGGCTACAGGCTTGTCACTC",
		Unk:  "+",
		Qual: "AAFFFJJJJJJJJJJJJJJJJ",
	}
	if r != want {
		t.Errorf("got %v, want %v", r, want)
	}
	if got, want := r.Name(), "SIM:1:FCX:1:15:6329:1045"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	n := 1
	for sc.Scan(&r) {
		n++
	}
	if err := sc.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if got, want := n, 3; got != want {
		t.Errorf("got %v records, want %v", got, want)
	}
	if got, want := sc.N(), 3; got != want {
		t.Errorf("got N %v, want %v", got, want)
	}
}

func TestBadInput(t *testing.T) {
	if got, want := scanErr("not a fastq line\n"), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@r1\nACGT\n"), ErrShort; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@r1\nACGT\nACGT\nFFFF\n"), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := scanErr(""); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	var (
		sc = NewScanner(strings.NewReader(fq))
		b  = new(bytes.Buffer)
		w  = NewWriter(b)
		r  Read
	)
	for sc.Scan(&r) {
		if err := w.Write(&r); err != nil {
			t.Fatal(err)
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), fq; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
