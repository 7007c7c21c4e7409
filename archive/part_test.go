package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func testPartManager(t *testing.T, writeSize int) {
	dir := t.TempDir()
	pm := newPartManager(filepath.Join(dir, "test"), ".out", 100)
	if err := pm.open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	input := []byte(`Lorem ipsum dolor sit amet, consectetur adipiscing elit. Praesent felis leo, rhoncus id aliquam ac, volutpat eu magna. Integer id tortor nulla. Donec vitae consequat lacus. Maecenas porta, elit quis dapibus elementum, eros nunc suscipit dui, vel tempus diam nisi quis elit.`)

	toWrite := input
	for len(toWrite) > 0 {
		thisWrite := writeSize
		if thisWrite > len(toWrite) {
			thisWrite = len(toWrite)
		}
		now, later := toWrite[:thisWrite], toWrite[thisWrite:]
		toWrite = later

		n, err := pm.writeStraddlable(now)
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if n != len(now) {
			t.Errorf("wrote %d bytes instead of %d", n, len(now))
		}
	}

	if err := pm.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	var got []byte
	for i := 1; i <= pm.totalParts; i++ {
		b, err := os.ReadFile(pm.partName(i))
		if err != nil {
			t.Fatalf("reading part %d: %v", i, err)
		}
		if i < pm.totalParts && len(b) != 100 {
			t.Errorf("part %d has %d bytes, want 100", i, len(b))
		}
		got = append(got, b...)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("reassembled parts do not match input")
	}
}

func TestPartManagerStraddle(t *testing.T) {
	for _, size := range []int{1024, 101, 100, 99, 51, 50, 49, 3, 2, 1} {
		testPartManager(t, size)
	}
}

func TestPartManagerSinglePartNoRollover(t *testing.T) {
	dir := t.TempDir()
	pm := newPartManager(filepath.Join(dir, "test"), ".out", 1000)
	if err := pm.open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := pm.writeStraddlable([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := pm.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	final, err := pm.finalizeRename()
	if err != nil {
		t.Fatalf("finalizeRename: %v", err)
	}
	if final != filepath.Join(dir, "test.out") {
		t.Errorf("finalizeRename returned %q", final)
	}
	if pm.firstPartPath() != final {
		t.Errorf("firstPartPath() = %q, want %q (no rollover ever happened)", pm.firstPartPath(), final)
	}
	if _, err := os.Stat(filepath.Join(dir, "test.j01")); err == nil {
		t.Errorf("test.j01 should not exist once the only part is renamed")
	}
}

func TestPartManagerFreeSpaceUnsplit(t *testing.T) {
	dir := t.TempDir()
	pm := newPartManager(filepath.Join(dir, "test"), ".out", 0)
	if err := pm.open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	free, err := pm.freeSpace()
	if err != nil {
		t.Fatalf("freeSpace: %v", err)
	}
	if free == 0 {
		t.Errorf("unsplit part manager should report effectively unlimited free space")
	}
	if err := pm.ensureRoom(1 << 40); err != nil {
		t.Errorf("ensureRoom should never roll over when splitting is disabled: %v", err)
	}
	if pm.totalParts != 1 {
		t.Errorf("totalParts = %d, want 1", pm.totalParts)
	}
}
