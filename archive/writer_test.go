package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAddEntryFromPathFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.txt")
	if err := os.WriteFile(srcPath, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	outDir := t.TempDir()
	w := buildWriterA(t, outDir, 0)
	if err := w.AddEntryFromPath(srcPath, "nested/source.txt"); err != nil {
		t.Fatalf("AddEntryFromPath: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	data := readAllPartsA(t, filepath.Join(outDir, "test"), false)
	parsed := parseArchiveA(t, data)
	if len(parsed.records) != 1 {
		t.Fatalf("got %d records, want 1", len(parsed.records))
	}
	if parsed.records[0].path != "nested/source.txt" {
		t.Errorf("path = %q", parsed.records[0].path)
	}
	got := parsed.records[0].payload
	if parsed.records[0].compression == methodDeflate {
		got = inflateRaw(t, got)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Errorf("payload mismatch: got %q", got)
	}
}

func TestAddEntryFromPathUnreadableIsWarning(t *testing.T) {
	outDir := t.TempDir()
	w := buildWriterA(t, outDir, 0)
	if err := w.AddEntryFromPath(filepath.Join(outDir, "does-not-exist"), "missing"); err != nil {
		t.Fatalf("AddEntryFromPath should warn, not fail: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if warnings := w.DrainWarnings(); len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
}

func TestAddVirtualEntry(t *testing.T) {
	outDir := t.TempDir()
	w := buildWriterA(t, outDir, 0)
	if err := w.AddVirtualEntry("v.txt", []byte("hello")); err != nil {
		t.Fatalf("AddVirtualEntry: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	data := readAllPartsA(t, filepath.Join(outDir, "test"), false)
	parsed := parseArchiveA(t, data)
	if len(parsed.records) != 1 || parsed.records[0].path != "v.txt" {
		t.Fatalf("unexpected records: %+v", parsed.records)
	}
}

func TestStateMachineRejectsMutationAfterFinalize(t *testing.T) {
	outDir := t.TempDir()
	w := buildWriterA(t, outDir, 0)
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := w.AddEntry(NewVirtualEntry("a", []byte("x"))); err == nil {
		t.Errorf("AddEntry after Finalize should return an error")
	}
}

func TestStateMachineRejectsInitializeTwice(t *testing.T) {
	outDir := t.TempDir()
	w := buildWriterA(t, outDir, 0)
	if err := w.Initialize(filepath.Join(outDir, "test.jpa"), Options{}); err == nil {
		t.Errorf("second Initialize should return an error")
	}
}
