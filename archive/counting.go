package archive

import "io"

// countingReader wraps an io.Reader and tracks the total number of bytes
// read through it, mirroring the teacher's countingWriter shape but on the
// read side: used while streaming a source file or payload through
// fixed-size reads so the writer knows exactly how many plaintext bytes
// were consumed, to detect a source that shrank mid-entry.
type countingReader struct {
	r io.Reader
	n uint64
}

func newCountingReader(r io.Reader) *countingReader {
	return &countingReader{r: r}
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += uint64(n)
	return n, err
}
