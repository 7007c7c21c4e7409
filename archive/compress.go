package archive

import (
	"bytes"
	"runtime"

	"github.com/klauspost/compress/flate"
)

// Compression method tags, written into each record's compression byte.
const (
	methodStore   = 0
	methodDeflate = 1
)

// CompressionThreshold is the size at or above which a file is always
// stored rather than compressed.
const CompressionThreshold = 24 * 1024 * 1024 // 24 MiB

// formatEChunkSize is the fixed chunk size Format-E uses for regular-file
// and virtual payloads: 64 KiB - 1.
const formatEChunkSize = 65535

// heapBudgetFraction: a file whose compressed input would exceed this
// fraction of the remaining heap budget is stored instead of compressed.
const heapBudgetFraction = 0.40

// heapBudgetCeiling is the fixed memory ceiling chooseCompression's
// heap-budget check measures against. Go has no analogue of the source's
// ini memory_limit, so we pick a ceiling with headroom over
// CompressionThreshold (the largest single buffer readFullBounded ever
// holds before this check runs) and treat whatever HeapAlloc hasn't
// already consumed of it as the remaining budget.
const heapBudgetCeiling = 64 * 1024 * 1024 // 64 MiB

// remainingHeapBudget reports how much of heapBudgetCeiling is left,
// sampled via runtime.MemStats at the point a file's compression decision
// is made. Zero once HeapAlloc has met or exceeded the ceiling.
func remainingHeapBudget() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapAlloc >= heapBudgetCeiling {
		return 0
	}
	return heapBudgetCeiling - m.HeapAlloc
}

// deflateRaw compresses p with raw DEFLATE — equivalent to zlib compression
// with its 2-byte header and 4-byte Adler-32 trailer stripped.
// klauspost/compress/flate emits pure raw DEFLATE directly, so there is no
// framing to strip.
func deflateRaw(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// shouldAlwaysStore reports whether kind always uses method 0 regardless
// of size: directories and symlinks are always stored.
func shouldAlwaysStore(kind Kind) bool {
	return kind == KindDirectory || kind == KindSymlink
}

// chooseCompression implements the Format-A/general per-file policy:
// compress unless the entry is always-stored, too large, or would eat too
// much of the remaining heap budget; and fall back to storing if
// compression fails or expands the data.
//
// heapBudgetRemaining is the caller's current estimate of how much heap is
// left for this operation; pass 0 to skip that check (e.g. in tests).
func chooseCompression(kind Kind, raw []byte, heapBudgetRemaining uint64) (method uint8, payload []byte, err error) {
	if shouldAlwaysStore(kind) {
		return methodStore, raw, nil
	}

	if len(raw) >= CompressionThreshold {
		return methodStore, raw, nil
	}

	if heapBudgetRemaining > 0 && float64(len(raw)) > float64(heapBudgetRemaining)*heapBudgetFraction {
		return methodStore, raw, nil
	}

	compressed, cerr := deflateRaw(raw)
	if cerr != nil || len(compressed) >= len(raw) {
		return methodStore, raw, nil
	}
	return methodDeflate, compressed, nil
}

// splitIntoFormatEChunks breaks raw into the fixed 64 KiB-1 chunks Format-E
// always uses for regular-file and virtual payloads, independent of the
// heuristic chooseCompression applies for Format-A. Directories and
// symlinks are exempt and remain a single stored chunk.
func splitIntoFormatEChunks(kind Kind, raw []byte) [][]byte {
	if shouldAlwaysStore(kind) {
		if len(raw) == 0 {
			return nil
		}
		return [][]byte{raw}
	}

	if len(raw) == 0 {
		return nil
	}

	var chunks [][]byte
	for len(raw) > 0 {
		n := formatEChunkSize
		if n > len(raw) {
			n = len(raw)
		}
		chunks = append(chunks, raw[:n])
		raw = raw[n:]
	}
	return chunks
}
