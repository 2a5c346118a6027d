package fastq

import "io"

// Writer writes FASTQ records to an underlying writer. Writers are
// sticky on error: once a write fails all subsequent writes report the
// same error.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter returns a Writer that writes records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes r in four-line FASTQ form.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = io.WriteString(w.w, line); w.err == nil {
		_, w.err = w.w.Write([]byte{'\n'})
	}
}
