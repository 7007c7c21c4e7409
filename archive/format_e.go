package archive

import (
	"crypto/md5"
	"encoding/binary"
	"io"
	"os"
)

// Format-E wire constants.
const (
	jpsMajor = 2
	jpsMinor = 0

	extraHeaderFieldLen = 76 // a literal constant in this grammar: 12 + len(static_salt)
)

// formatE implements formatOps for the AES-128-CBC encrypted .jps container.
type formatE struct{}

func (formatE) writeStdHeader(w *Writer) error {
	buf := make([]byte, 0, 6+2+4+extraHeaderFieldLen)
	buf = append(buf, 'J', 'P', 'S', jpsMajor, jpsMinor)
	if w.pm.split {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = binary.LittleEndian.AppendUint16(buf, extraHeaderFieldLen)
	buf = append(buf, 'J', 'H', 0x00, 0x01)
	buf = binary.LittleEndian.AppendUint16(buf, extraHeaderFieldLen)
	buf = append(buf, byte(w.kdf.Algorithm))
	buf = binary.LittleEndian.AppendUint32(buf, w.kdf.Iterations)
	if w.kdf.HasStaticSalt {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, w.kdf.StaticSalt[:]...)

	return w.writeAtomic(buf)
}

func (formatE) writeEntry(w *Writer, e Entry) (bool, error) {
	path := storedPathForWire(e)
	if len(path) > maxStoredPathBytes {
		w.warnings.push(newWarning(KindEncodingCorruption, e.StoredPath, "stored path exceeds 65535 bytes", nil))
		return true, nil
	}

	switch e.Kind {
	case KindDirectory:
		if err := w.writeHeaderPayloadE(e, path, methodStore); err != nil {
			return false, err
		}
		return false, nil

	case KindSymlink:
		target, err := w.readSymlinkTarget(e)
		if err != nil {
			w.warnings.push(err.(Problem))
			return true, nil
		}
		if uint64(len(target)) != e.Size {
			w.warnings.push(newWarning(KindShortRead, e.StoredPath, "symlink target length changed while reading", nil))
			return true, nil
		}
		if err := w.writeHeaderPayloadE(e, path, methodStore); err != nil {
			return false, err
		}
		for _, chunk := range splitIntoFormatEChunks(e.Kind, target) {
			if err := w.writeDataBlockE(chunk); err != nil {
				return false, err
			}
		}
		return false, nil

	default: // KindFile
		stream, err := w.openContentStream(e)
		if err != nil {
			w.warnings.push(err.(Problem))
			return true, nil
		}
		defer stream.Close()

		if err := w.writeHeaderPayloadE(e, path, methodDeflate); err != nil {
			return false, err
		}

		written, err := w.streamDataBlocksE(stream)
		if err != nil {
			return false, err
		}
		if written != e.Size {
			return false, newFatal(KindShortRead, e.StoredPath, "file shrank after its header was committed", nil)
		}
		return false, nil
	}
}

// writeHeaderPayloadE builds the plaintext header_payload, encrypts it, and
// writes the record's "JPF" signature-plus-length prefix together with the
// ciphertext as a single atomic unit: straddle permission is granted only
// to data-block ciphertext, never to the header record.
func (w *Writer) writeHeaderPayloadE(e Entry, path string, method uint8) error {
	plain := make([]byte, 0, 2+len(path)+1+1+4+4+4)
	plain = binary.LittleEndian.AppendUint16(plain, uint16(len(path)))
	plain = append(plain, path...)
	plain = append(plain, byte(e.Kind), method)
	plain = binary.LittleEndian.AppendUint32(plain, uint32(e.Size))
	plain = binary.LittleEndian.AppendUint32(plain, e.Perms)
	plain = binary.LittleEndian.AppendUint32(plain, e.Mtime)

	ciphertext, err := w.crypto.EncryptRecord(plain)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 3+2+2+len(ciphertext))
	buf = append(buf, 'J', 'P', 'F')
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(ciphertext)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(plain)))
	buf = append(buf, ciphertext...)
	return w.writeAtomic(buf)
}

// writeDataBlockE encrypts and writes one data block. It does no
// compression itself: callers pass bytes that are already deflated (regular
// files, via streamDataBlocksE) or raw stored bytes (symlink targets).
func (w *Writer) writeDataBlockE(chunkPlain []byte) error {
	ciphertext, err := w.crypto.EncryptRecord(chunkPlain)
	if err != nil {
		return err
	}

	prefix := make([]byte, 0, 8)
	prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(ciphertext)))
	prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(chunkPlain)))
	if err := w.writeAtomic(prefix); err != nil {
		return err
	}

	w.totalCompressed += uint64(len(chunkPlain))
	return w.writeCiphertextBodyE(ciphertext)
}

// writeCiphertextBodyE writes a data block's ciphertext body, which is
// explicitly permitted to straddle a part boundary, and applies a split
// consistency check: the full ciphertext must have been handed to the part
// manager, and the MD5 of the pre-split ciphertext must equal the MD5 of the
// written prefix of the buffer. The check runs once per data block, after
// all of its pieces are written; the parts are not read back from disk. In
// a byte-safe language like Go, writeStraddlable's exact byte accounting
// makes this hold trivially (the hazard the check guards against is a
// multibyte-string slicing bug in less careful implementations).
func (w *Writer) writeCiphertextBodyE(ciphertext []byte) error {
	want := md5.Sum(ciphertext)

	n, err := w.pm.writeStraddlable(ciphertext)
	if err != nil {
		return err
	}
	if n != len(ciphertext) || md5.Sum(ciphertext[:n]) != want {
		return newFatal(KindEncodingCorruption, "", "ciphertext split consistency check failed", nil)
	}
	return nil
}

// streamDataBlocksE reads stream in fixed formatEChunkSize pieces and
// deflates each independently: Format-E always compresses regular-file and
// virtual payloads this way, regardless of the Format-A heuristic. Every
// chunk is deflated unconditionally, even if a particular
// chunk doesn't shrink: header_payload carries a single compression byte for
// the whole entry, not one per chunk, so there is no per-chunk store
// fallback to fall back to without losing that byte's meaning. Returns the
// number of plaintext bytes actually read from stream.
func (w *Writer) streamDataBlocksE(stream io.Reader) (uint64, error) {
	cr := newCountingReader(stream)
	buf := make([]byte, formatEChunkSize)
	for {
		n, rerr := cr.Read(buf)
		if n > 0 {
			compressed, cerr := deflateRaw(buf[:n])
			if cerr != nil {
				return cr.n, newFatal(KindShortRead, "", "compression failed", cerr)
			}
			if err := w.writeDataBlockE(compressed); err != nil {
				return cr.n, err
			}
		}
		if rerr == io.EOF {
			return cr.n, nil
		}
		if rerr != nil {
			return cr.n, newFatal(KindShortRead, "", "short read while streaming payload", rerr)
		}
	}
}

// finalize appends the end_header to the terminal part, bypassing the part
// manager's room check entirely: the terminal part is explicitly allowed to
// exceed part_size by the trailer's size, so there is nothing to roll over
// for.
func (formatE) finalize(w *Writer, terminalPath string) error {
	f, err := os.OpenFile(terminalPath, os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return newFatal(KindFinalRename, "", "cannot reopen terminal part to append trailer", err)
	}
	defer f.Close()

	buf := make([]byte, 0, 3+2+4+4+4)
	buf = append(buf, 'J', 'P', 'E')
	buf = binary.LittleEndian.AppendUint16(buf, uint16(w.pm.totalParts))
	buf = binary.LittleEndian.AppendUint32(buf, w.totalEntries)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(w.totalUncompressed))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(w.totalCompressed))

	if _, err := f.Write(buf); err != nil {
		return newFatal(KindFinalRename, "", "cannot write end header", err)
	}
	return nil
}
