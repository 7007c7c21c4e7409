package archive

import (
	"encoding/binary"
	"os"
)

// Format-A wire constants.
const (
	jpaMajor = 1
	jpaMinor = 2

	stdHeaderLenNoSplit = 19
	stdHeaderLenSplit   = 27
)

// formatA implements formatOps for the unencrypted .jpa container.
type formatA struct{}

func (formatA) writeStdHeader(w *Writer) error {
	buf := buildStdHeaderA(w.pm.split, 0, 0, 0, uint16(w.pm.totalParts))
	return w.writeAtomic(buf)
}

// buildStdHeaderA builds the full std_header (+ split_header, if split) for
// the given counters. Used once at Initialize time with zero counters, and
// again at finalize time with the final counters written directly into the
// first part.
func buildStdHeaderA(split bool, totalEntries uint32, totalUncompressed, totalCompressed uint64, totalParts uint16) []byte {
	headerLen := uint16(stdHeaderLenNoSplit)
	if split {
		headerLen = stdHeaderLenSplit
	}

	buf := make([]byte, 0, stdHeaderLenSplit)
	buf = append(buf, 'J', 'P', 'A')
	buf = binary.LittleEndian.AppendUint16(buf, headerLen)
	buf = append(buf, jpaMajor, jpaMinor)
	buf = binary.LittleEndian.AppendUint32(buf, totalEntries)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(totalUncompressed))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(totalCompressed))

	if split {
		buf = append(buf, 'J', 'P', 0x01, 0x01)
		buf = binary.LittleEndian.AppendUint16(buf, 4) // extra_len, a literal constant in this grammar
		buf = binary.LittleEndian.AppendUint16(buf, totalParts)
	}
	return buf
}

func (formatA) writeEntry(w *Writer, e Entry) (bool, error) {
	path := storedPathForWire(e)
	if len(path) > maxStoredPathBytes {
		w.warnings.push(newWarning(KindEncodingCorruption, e.StoredPath, "stored path exceeds 65535 bytes", nil))
		return true, nil
	}

	switch e.Kind {
	case KindDirectory:
		return false, w.writeRecordA(e, path, methodStore, nil, 0)

	case KindSymlink:
		target, err := w.readSymlinkTarget(e)
		if err != nil {
			w.warnings.push(err.(Problem))
			return true, nil
		}
		return false, w.writeRecordA(e, path, methodStore, target, uint64(len(target)))

	default: // KindFile
		return w.writeFileEntryA(e, path)
	}
}

// writeFileEntryA implements two file paths: small-enough files are fully
// buffered so the real post-compression length is known before the header
// (which carries compressed_len) is committed; large files commit a
// store-mode header against the entry's declared size first, then stream —
// so a size mismatch discovered mid-copy is unrecoverable and fatal rather
// than a warning, since the header has already gone to disk.
func (w *Writer) writeFileEntryA(e Entry, path string) (bool, error) {
	if e.Size < CompressionThreshold {
		stream, err := w.openContentStream(e)
		if err != nil {
			w.warnings.push(err.(Problem))
			return true, nil
		}
		raw, err := readFullBounded(stream)
		stream.Close()
		if err != nil {
			w.warnings.push(err.(Problem))
			return true, nil
		}
		if uint64(len(raw)) != e.Size {
			w.warnings.push(newWarning(KindShortRead, e.StoredPath, "file size changed while reading", nil))
			return true, nil
		}

		// chooseCompression treats a zero budget as "skip the check", so an
		// exhausted budget is handled here: the entry is stored.
		method, payload := uint8(methodStore), raw
		if budget := remainingHeapBudget(); budget > 0 {
			method, payload, _ = chooseCompression(e.Kind, raw, budget)
		}
		if err := w.writeRecordA(e, path, method, payload, uint64(len(raw))); err != nil {
			return false, err
		}
		return false, nil
	}

	stream, err := w.openContentStream(e)
	if err != nil {
		w.warnings.push(err.(Problem))
		return true, nil
	}
	defer stream.Close()

	if err := w.writeRecordHeaderA(e, path, methodStore, e.Size, e.Size); err != nil {
		return false, err
	}

	written, err := w.streamPayload(stream)
	if err != nil {
		return false, err
	}
	if written != e.Size {
		return false, newFatal(KindShortRead, e.StoredPath, "file shrank after its header was committed", nil)
	}
	return false, nil
}

// writeRecordA writes a complete record (header plus payload) where payload
// is already fully in memory.
func (w *Writer) writeRecordA(e Entry, path string, method uint8, payload []byte, uncompressedLen uint64) error {
	if err := w.writeRecordHeaderA(e, path, method, uint64(len(payload)), uncompressedLen); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return w.writeStraddlable(payload)
}

func (w *Writer) writeRecordHeaderA(e Entry, path string, method uint8, compressedLen, uncompressedLen uint64) error {
	hasMtime := e.Mtime > 0
	pathLen := len(path)

	blockLen := 21 + pathLen
	if hasMtime {
		blockLen += 8
	}

	buf := make([]byte, 0, 5+blockLen)
	buf = append(buf, 'J', 'P', 'F')
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockLen))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(pathLen))
	buf = append(buf, path...)
	buf = append(buf, byte(e.Kind), method)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(compressedLen))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(uncompressedLen))
	buf = binary.LittleEndian.AppendUint32(buf, e.Perms)
	if hasMtime {
		buf = append(buf, 0x00, 0x01)
		buf = binary.LittleEndian.AppendUint16(buf, 8)
		buf = binary.LittleEndian.AppendUint32(buf, e.Mtime)
	}

	if err := w.writeAtomic(buf); err != nil {
		return err
	}

	w.totalCompressed += compressedLen
	return nil
}

// finalize rewrites the standard header in place against the first part
// now that the real counters are known. Format-A's trailer is a rewrite of
// the first part, not an append to the terminal one, so terminalPath (which
// formatE.finalize uses) goes unused here.
func (formatA) finalize(w *Writer, _ string) error {
	firstPath := w.pm.firstPartPath()

	f, err := os.OpenFile(firstPath, os.O_WRONLY, 0o666)
	if err != nil {
		return newFatal(KindFinalRename, "", "cannot reopen first part to finalize header", err)
	}
	defer f.Close()

	buf := buildStdHeaderA(w.pm.split, w.totalEntries, w.totalUncompressed, w.totalCompressed, uint16(w.pm.totalParts))
	if _, err := f.WriteAt(buf, 0); err != nil {
		return newFatal(KindFinalRename, "", "cannot write final header", err)
	}
	return nil
}
