package archive

import (
	"bytes"
	"testing"
)

func TestDeflateRawRoundTrip(t *testing.T) {
	input := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	compressed, err := deflateRaw(input)
	if err != nil {
		t.Fatalf("deflateRaw: %v", err)
	}
	if len(compressed) >= len(input) {
		t.Errorf("expected compression to shrink a repetitive input")
	}
	if !bytes.Equal(inflateRaw(t, compressed), input) {
		t.Errorf("round trip mismatch")
	}
}

func TestChooseCompressionAlwaysStoresDirectoriesAndSymlinks(t *testing.T) {
	raw := []byte("anything")
	for _, kind := range []Kind{KindDirectory, KindSymlink} {
		method, payload, err := chooseCompression(kind, raw, 0)
		if err != nil {
			t.Fatalf("chooseCompression: %v", err)
		}
		if method != methodStore {
			t.Errorf("%s: method = %d, want store", kind, method)
		}
		if !bytes.Equal(payload, raw) {
			t.Errorf("%s: payload mutated", kind)
		}
	}
}

func TestChooseCompressionStoresAboveThreshold(t *testing.T) {
	raw := make([]byte, CompressionThreshold)
	method, _, err := chooseCompression(KindFile, raw, 0)
	if err != nil {
		t.Fatalf("chooseCompression: %v", err)
	}
	if method != methodStore {
		t.Errorf("method = %d, want store for a file at the threshold", method)
	}
}

func TestChooseCompressionRespectsHeapBudget(t *testing.T) {
	raw := pseudoRandomBytes(1000)
	method, _, err := chooseCompression(KindFile, raw, 1000) // 40% of 1000 = 400 < 1000
	if err != nil {
		t.Fatalf("chooseCompression: %v", err)
	}
	if method != methodStore {
		t.Errorf("method = %d, want store when input exceeds the heap budget fraction", method)
	}
}

func TestRemainingHeapBudgetIsLive(t *testing.T) {
	budget := remainingHeapBudget()
	if budget == 0 || budget > heapBudgetCeiling {
		t.Errorf("remainingHeapBudget() = %d, want a live sample in (0, %d]", budget, uint64(heapBudgetCeiling))
	}
}

func TestSplitIntoFormatEChunks(t *testing.T) {
	raw := make([]byte, formatEChunkSize*2+10)
	chunks := splitIntoFormatEChunks(KindFile, raw)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != formatEChunkSize || len(chunks[1]) != formatEChunkSize || len(chunks[2]) != 10 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	if chunks := splitIntoFormatEChunks(KindDirectory, nil); chunks != nil {
		t.Errorf("empty directory payload should produce no chunks")
	}
}
