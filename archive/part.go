package archive

import (
	"fmt"
	"math"
	"os"
)

// partManager is the Part Manager of spec.md §4.2. It maintains
// size(current_part) <= part_size except inside a single indivisible write,
// names successive parts, and rolls over to a fresh one on request.
//
// Adapted from the teacher's chunkWriter (chunk_writer.go): the same
// rotate-on-exhaustion shape, generalized from a fixed 10 MiB chunk size to
// spec.md's configurable part_size, including part_size == 0 meaning
// splitting is disabled — a mode the teacher's chunkWriter never needed
// because AWS bundle parts are always fixed-size.
type partManager struct {
	base         string // target path without any extension
	canonicalExt string
	partSize     uint64 // 0 disables splitting
	split        bool

	sink       *byteSink
	index      int // 0 before the first part is opened
	totalParts int
}

func newPartManager(base, canonicalExt string, partSize uint64) *partManager {
	return &partManager{
		base:         base,
		canonicalExt: canonicalExt,
		partSize:     partSize,
		split:        partSize > 0,
	}
}

// open creates the very first part. In single-part mode this is the
// canonically-named file from the start; in split mode it is "<base>.j01" —
// the canonical extension is only ever applied to the terminal part, and
// only at finalization (spec.md "Part" invariants).
func (pm *partManager) open() error {
	var path string
	if pm.split {
		pm.index = 1
		path = pm.partName(pm.index)
	} else {
		pm.index = 1
		path = pm.base + pm.canonicalExt
	}

	sink, err := openByteSink(path, 0o666)
	if err != nil {
		return err
	}
	pm.sink = sink
	pm.totalParts = 1
	return nil
}

func (pm *partManager) partName(index int) string {
	return fmt.Sprintf("%s.j%02d", pm.base, index)
}

func (pm *partManager) currentPath() string {
	if pm.sink == nil {
		return ""
	}
	return pm.sink.path
}

// freeSpace returns part_size - size(current_part), or math.MaxUint64 if
// splitting is disabled.
func (pm *partManager) freeSpace() (uint64, error) {
	if !pm.split {
		return math.MaxUint64, nil
	}
	size, err := pm.sink.size()
	if err != nil {
		return 0, err
	}
	if size >= pm.partSize {
		return 0, nil
	}
	return pm.partSize - size, nil
}

// ensureRoom rolls over to a new part if n would not fit in the current
// part's free space. It is invoked before every indivisible ("atomic")
// write — header bytes, length-prefix fields, etc. (spec.md §4.2).
func (pm *partManager) ensureRoom(n uint64) error {
	if !pm.split {
		return nil
	}
	free, err := pm.freeSpace()
	if err != nil {
		return err
	}
	if free < n {
		return pm.rollover()
	}
	return nil
}

// rollover closes the current part and opens the next "<base>.jNN" part.
// Only called mid-stream; finalization renames the existing last part in
// place rather than calling rollover again (see the Open Question
// decisions in SPEC_FULL.md §7 on spec.md §4.5.4).
func (pm *partManager) rollover() error {
	if err := pm.sink.close(); err != nil {
		return newFatal(KindRollover, "", "cannot create next part", err)
	}

	pm.index++
	path := pm.partName(pm.index)

	sink, err := openByteSink(path, 0o666)
	if err != nil {
		return newFatal(KindRollover, "", "cannot create next part", err)
	}
	pm.sink = sink
	pm.totalParts = pm.index
	return nil
}

// write writes directly to the current part, without any room check —
// callers must call ensureRoom for the atomic prefix of whatever they're
// about to write, then may write a straddlable payload across as many
// rollovers as needed via writeStraddlable.
func (pm *partManager) write(p []byte) (int, error) {
	return pm.sink.write(p)
}

// writeStraddlable writes p across as many parts as necessary, per spec.md
// §4.5.3: a Format-A stored payload or a Format-E ciphertext body is
// explicitly permitted to straddle a part boundary. It writes as many
// bytes as the current part's free space allows, rolls over, and
// continues; the caller's read cursor only ever advances by the actual
// byte count written.
func (pm *partManager) writeStraddlable(p []byte) (int, error) {
	if !pm.split {
		return pm.write(p)
	}

	var written int
	for len(p) > 0 {
		free, err := pm.freeSpace()
		if err != nil {
			return written, err
		}
		if free == 0 {
			if err := pm.rollover(); err != nil {
				return written, err
			}
			continue
		}

		chunk := p
		if uint64(len(chunk)) > free {
			chunk = chunk[:free]
		}

		n, err := pm.write(chunk)
		written += n
		p = p[n:]
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (pm *partManager) close() error {
	if pm.sink == nil {
		return nil
	}
	return pm.sink.close()
}

// finalizeRename implements spec.md §4.5.4 step 2: if split and the current
// (final) part does not already carry the canonical extension, rename it.
// In single-part mode the one part is already canonically named.
func (pm *partManager) finalizeRename() (string, error) {
	if !pm.split {
		return pm.base + pm.canonicalExt, nil
	}

	oldPath := pm.partName(pm.index)
	newPath := pm.base + pm.canonicalExt
	if err := os.Rename(oldPath, newPath); err != nil {
		return "", newFatal(KindFinalRename, "", "cannot finalize extension", err)
	}
	return newPath, nil
}

// firstPartPath returns the path of the first part, used at finalization
// to rewrite Format-A's standard header in place (spec.md §4.5.1). Must be
// called after finalizeRename. When a split archive never actually rolled
// over, the first part and the terminal part are the same file, which
// finalizeRename has already renamed to the canonical extension — so the
// "first part" to reopen is the canonical path, not "<base>.j01".
func (pm *partManager) firstPartPath() string {
	if !pm.split || pm.index == 1 {
		return pm.base + pm.canonicalExt
	}
	return pm.partName(1)
}
