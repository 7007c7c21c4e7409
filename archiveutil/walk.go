package archiveutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dazzle-joomla/cliarchiver/archive"
)

// Walk visits every entry under root (a directory), in deterministic,
// depth-first, lexical order, and adds each one to w via
// archive.Writer.AddEntryFromPath — spec.md §5's ordering guarantee only
// binds what the caller submits, so this is where that order is decided.
// Whether a symlink is stored as a link or dereferenced is w's own
// Config.DereferenceSymlinks policy, consulted inside AddEntryFromPath.
func Walk(w *archive.Writer, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}

		storedPath := NormalizePath(rel)
		return w.AddEntryFromPath(path, storedPath)
	})
}

// StoredBaseName returns the final path component of storedPath, used by
// callers that want to report progress without printing the whole path.
func StoredBaseName(storedPath string) string {
	if i := strings.LastIndexByte(storedPath, '/'); i >= 0 {
		return storedPath[i+1:]
	}
	return storedPath
}
