package archive

import "os"

// byteSink is the Byte Sink of spec.md §4.1: a scoped append-mode handle on
// one part file. Size() always restats — the cached file size is considered
// stale the moment anything outside this handle could have written to the
// file (e.g. a prior sink on the same path), so no running byte counter is
// kept here.
type byteSink struct {
	path string
	f    *os.File
}

// openByteSink opens path in binary-append mode, creating it with mode perm
// if it does not exist. A failure here is always KindSinkOpen (spec.md
// §4.1).
func openByteSink(path string, perm os.FileMode) (*byteSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm)
	if err != nil {
		return nil, newFatal(KindSinkOpen, "", "cannot write to target", err)
	}
	return &byteSink{path: path, f: f}, nil
}

// write returns the actual number of bytes written, per spec.md §4.1.
func (s *byteSink) write(p []byte) (int, error) {
	return s.f.Write(p)
}

// size restats the file; never cached.
func (s *byteSink) size() (uint64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(fi.Size()), nil
}

// close is idempotent: calling it more than once returns nil after the
// first call, so callers on error paths never need to track whether they
// already closed it.
func (s *byteSink) close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
