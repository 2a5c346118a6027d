package fasta

import "io"

// DefaultLineWidth is the sequence line width used by NewWriter.
const DefaultLineWidth = 60

// Writer writes FASTA records, wrapping sequence lines at a fixed
// width. Writers are sticky on error.
type Writer struct {
	w     io.Writer
	width int
	err   error
}

// NewWriter returns a Writer that writes records to w with
// DefaultLineWidth-column sequence lines.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, width: DefaultLineWidth}
}

// Write writes one named sequence.
func (w *Writer) Write(name, seq string) error {
	w.writeString(">")
	w.writeString(name)
	w.writeString("\n")
	for len(seq) > 0 {
		n := w.width
		if n > len(seq) {
			n = len(seq)
		}
		w.writeString(seq[:n])
		w.writeString("\n")
		seq = seq[n:]
	}
	return w.err
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}
