package archive

// formatOps is a small capability set in place of a format class hierarchy:
// a small set of operations a Writer calls without caring which concrete
// wire format is in play. formatA and formatE each implement it; the
// engine (writer.go) holds only the interface value, chosen once at
// Initialize time from Config.Format.
//
// Each per-entry operation is folded into a single writeEntry per format:
// Format-E's per-entry work (encrypt header, chunk and encrypt payload)
// doesn't decompose cleanly into an independent "build header bytes" /
// "write payload" pair the way Format-A's does, so splitting it further
// would just reintroduce a byte-reference in/out parameter to thread
// compiled-but-not-yet-written state between the two halves.
type formatOps interface {
	// writeStdHeader writes the placeholder standard header (and, for
	// Format-A, the split header) immediately after the first part is
	// opened by Initialize.
	writeStdHeader(w *Writer) error

	// writeEntry encodes and writes one full record (header plus payload)
	// for e. Recoverable problems (unreadable file, etc.) are queued as
	// warnings and reported via the skip return, leaving e out of the
	// archive; writeEntry still returns a nil error in that case. A
	// non-nil error is always fatal.
	writeEntry(w *Writer, e Entry) (skip bool, err error)

	// finalize writes whatever trailer the format requires once all
	// parts are closed and the terminal part has been renamed to
	// terminalPath.
	finalize(w *Writer, terminalPath string) error
}

func (w *Writer) ops() formatOps {
	if w.cfg.Format == FormatE {
		return formatE{}
	}
	return formatA{}
}

// writeAtomic ensures the current part has room for p, then writes all of
// p as a single indivisible unit. Used for every atomic prefix: standard
// headers, record signature/length prefixes, the Format-E data-block
// length prefix.
func (w *Writer) writeAtomic(p []byte) error {
	if err := w.pm.ensureRoom(uint64(len(p))); err != nil {
		return err
	}
	n, err := w.pm.write(p)
	if err != nil {
		return newFatal(KindSinkOpen, "", "short write to part", err)
	}
	if n != len(p) {
		return newFatal(KindSinkOpen, "", "short write to part", nil)
	}
	return nil
}

// writeStraddlable writes p, permitting it to split across a part
// boundary.
func (w *Writer) writeStraddlable(p []byte) error {
	n, err := w.pm.writeStraddlable(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return newFatal(KindShortRead, "", "short write while streaming payload", nil)
	}
	return nil
}
