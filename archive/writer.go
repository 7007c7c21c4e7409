package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// CHUNK_BYTES: large-file reads are chunked at this size to bound
// steady-state memory, per spec.md §5.
const ChunkBytes = 10 * 1024 * 1024

// Writer is the Archive Writer of spec.md §4.5: the engine that owns the
// part file(s), builds per-entry headers, drives compression and (for
// Format-E) encryption, enforces part-boundary invariants, and accumulates
// the counters written into the terminal record at finalization.
//
// Modeled on the teacher's Writer (writer.go): one struct holding every
// pipeline stage plus running counters, a Close()-style finalize that
// unwinds stages and aggregates failures, generalized from "one image, one
// pass" to "N entries, one record each" and given the explicit state
// machine spec.md §4.5.5 requires.
type Writer struct {
	cfg        Config
	targetBase string

	state   writerState
	failure error

	pm     *partManager
	crypto *cryptoCore
	kdf    KeyDerivationParams

	totalEntries      uint32
	totalUncompressed uint64
	totalCompressed   uint64

	warnings problemQueue
	errs     problemQueue
}

// NewWriter constructs a Writer in the Fresh state (spec.md §6's
// new(part_size, dereference_symlinks, format, key, use_static_salt)).
func NewWriter(cfg Config) *Writer {
	return &Writer{cfg: cfg, state: stateFresh}
}

// Initialize opens the target and writes the placeholder standard header,
// transitioning Fresh -> Initialized.
func (w *Writer) Initialize(targetPath string, _ Options) error {
	if w.state != stateFresh {
		return fmt.Errorf("archive: Initialize called in state %s, want fresh", w.state)
	}

	ext := w.cfg.Format.Extension()
	base := strings.TrimSuffix(targetPath, ext)
	w.targetBase = base
	w.pm = newPartManager(base, ext, w.cfg.PartSize)

	if w.cfg.Format == FormatE {
		if len(w.cfg.Key) == 0 {
			w.warnings.push(newWarning(KindEmptyPassword, "", "Format-E password is empty", nil))
		}

		kdf, err := newKeyDerivationParams(w.cfg)
		if err != nil {
			return w.fail(asProblem(err))
		}
		w.kdf = kdf

		cc, err := newCryptoCore(w.cfg.Key, kdf)
		if err != nil {
			return w.fail(asProblem(err))
		}
		w.crypto = cc
	}

	if err := w.pm.open(); err != nil {
		return w.fail(asProblem(err))
	}

	if err := w.ops().writeStdHeader(w); err != nil {
		return w.fail(asProblem(err))
	}

	w.state = stateInitialized
	return nil
}

// AddEntry encodes and writes one entry. A recoverable problem with this
// specific entry is queued as a warning and the entry is skipped — AddEntry
// still returns nil in that case. A fatal problem transitions the writer
// to Failed and is returned.
func (w *Writer) AddEntry(e Entry) error {
	if !w.state.canMutate() {
		return fmt.Errorf("archive: AddEntry called in state %s", w.state)
	}
	w.state = stateWriting

	skip, err := w.ops().writeEntry(w, e)
	if err != nil {
		return w.fail(asProblem(err))
	}
	if skip {
		return nil
	}

	w.totalEntries++
	w.totalUncompressed += e.Size
	return nil
}

// AddEntries adds each entry in order, stopping at the first fatal error.
func (w *Writer) AddEntries(entries []Entry) error {
	for _, e := range entries {
		if err := w.AddEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// AddEntryFromPath builds an Entry from an on-disk path and adds it, per
// spec.md §6's add_entry_from_path(abs_path, stored_path). storedPath is
// taken as-is: normalization, ./ elision, and backslash handling are the
// caller's responsibility (spec.md §6's CLI collaborator contract). The
// writer's own DereferenceSymlinks policy decides whether a symlink at
// absPath is stored as a link or resolved and stored as the file/directory
// it points to.
func (w *Writer) AddEntryFromPath(absPath, storedPath string) error {
	var fi os.FileInfo
	var err error
	if w.cfg.DereferenceSymlinks {
		fi, err = os.Stat(absPath)
	} else {
		fi, err = os.Lstat(absPath)
	}
	if err != nil {
		w.warnings.push(newWarning(KindUnreadableFile, storedPath, "cannot stat source path", err))
		return nil
	}

	switch {
	case fi.Mode()&os.ModeSymlink != 0 && !w.cfg.DereferenceSymlinks:
		target, rerr := os.Readlink(absPath)
		if rerr != nil {
			w.warnings.push(newWarning(KindUnreadableFile, storedPath, "cannot read symlink target", rerr))
			return nil
		}
		return w.AddEntry(Entry{
			StoredPath: storedPath,
			Kind:       KindSymlink,
			Source:     Source{Virtual: []byte(target)},
			Perms:      uint32(fi.Mode().Perm()),
			Size:       uint64(len(target)),
		})

	case fi.IsDir():
		return w.AddEntry(Entry{
			StoredPath: storedPath,
			Kind:       KindDirectory,
			Perms:      uint32(fi.Mode().Perm()),
			Mtime:      uint32(fi.ModTime().Unix()),
		})

	default:
		return w.AddEntry(Entry{
			StoredPath: storedPath,
			Kind:       KindFile,
			Source:     Source{Path: absPath},
			Perms:      uint32(fi.Mode().Perm()),
			Mtime:      uint32(fi.ModTime().Unix()),
			Size:       uint64(fi.Size()),
		})
	}
}

// AddVirtualEntry adds an in-memory entry, per spec.md §6's
// add_virtual_entry(stored_path, content).
func (w *Writer) AddVirtualEntry(storedPath string, content []byte) error {
	return w.AddEntry(NewVirtualEntry(storedPath, content))
}

// Finalize closes all parts, renames the terminal part to its canonical
// extension, and writes the format's trailer. A second call on an already
// Finalized writer is a documented no-op (spec.md P5).
func (w *Writer) Finalize() error {
	if w.state == stateFinalized {
		return nil
	}
	if w.state == stateFailed {
		return w.failure
	}
	if !w.state.canMutate() {
		return fmt.Errorf("archive: Finalize called in state %s", w.state)
	}

	if err := w.pm.close(); err != nil {
		return w.fail(newFatal(KindSinkOpen, "", "cannot close part", err))
	}

	terminalPath, err := w.pm.finalizeRename()
	if err != nil {
		return w.fail(asProblem(err))
	}

	if err := w.ops().finalize(w, terminalPath); err != nil {
		return w.fail(asProblem(err))
	}

	w.state = stateFinalized
	return nil
}

// DrainWarnings returns and clears all queued warnings, oldest first.
func (w *Writer) DrainWarnings() []string { return w.warnings.drain() }

// DrainErrors returns and clears all queued errors, oldest first.
func (w *Writer) DrainErrors() []string { return w.errs.drain() }

func (w *Writer) fail(p Problem) error {
	w.errs.push(p)
	w.state = stateFailed
	w.failure = p
	return p
}

func asProblem(err error) Problem {
	if p, ok := err.(Problem); ok {
		return p
	}
	return newFatal(KindSinkOpen, "", err.Error(), err)
}

// storedPathForWire appends the trailing slash directory entries require
// before path_len is computed (spec.md §4.5.1).
func storedPathForWire(e Entry) string {
	if e.Kind == KindDirectory && !strings.HasSuffix(e.StoredPath, "/") {
		return e.StoredPath + "/"
	}
	return e.StoredPath
}

// contentStream is the minimal reader abstraction over an entry's payload
// source, whether an on-disk file, a symlink target, or an in-memory
// virtual buffer.
type contentStream struct {
	io.Reader
	closer io.Closer
}

func (c *contentStream) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// openContentStream opens e's payload source for reading. Directories have
// no payload and are never passed here.
func (w *Writer) openContentStream(e Entry) (*contentStream, error) {
	if e.Kind == KindSymlink {
		target, err := w.readSymlinkTarget(e)
		if err != nil {
			return nil, err
		}
		return &contentStream{Reader: bytes.NewReader(target)}, nil
	}

	if e.Source.Path == "" {
		return &contentStream{Reader: bytes.NewReader(e.Source.Virtual)}, nil
	}

	f, err := os.Open(e.Source.Path)
	if err != nil {
		return nil, newWarning(KindUnreadableFile, e.StoredPath, "cannot open source file", err)
	}
	return &contentStream{Reader: f, closer: f}, nil
}

func (w *Writer) readSymlinkTarget(e Entry) ([]byte, error) {
	if e.Source.Virtual != nil {
		return e.Source.Virtual, nil
	}
	target, err := os.Readlink(e.Source.Path)
	if err != nil {
		return nil, newWarning(KindUnreadableFile, e.StoredPath, "cannot read symlink target", err)
	}
	return []byte(target), nil
}

// streamPayload copies all of stream's content into the current part via
// writeStraddlable, in ChunkBytes-sized pieces to bound working-set memory
// (spec.md §5). It returns the number of bytes actually copied; a short
// read here always happens after the caller has already committed a header
// naming the expected length, so callers treat any mismatch against the
// entry's declared size as fatal (spec.md §4.6).
func (w *Writer) streamPayload(stream io.Reader) (uint64, error) {
	cr := newCountingReader(stream)
	buf := make([]byte, ChunkBytes)
	for {
		n, rerr := cr.Read(buf)
		if n > 0 {
			if werr := w.writeStraddlable(buf[:n]); werr != nil {
				return cr.n, werr
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

// readFullBounded reads all of stream's content, up to CompressionThreshold+1
// bytes, for the entries small enough that attempting compression requires
// knowing the whole buffer up front (spec.md §4.3). Entries whose declared
// size is at or above the threshold are never routed through this path.
func readFullBounded(stream *contentStream) ([]byte, error) {
	limited := io.LimitReader(stream, CompressionThreshold+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, newWarning(KindUnreadableFile, "", "short read while buffering entry", err)
	}
	return data, nil
}
