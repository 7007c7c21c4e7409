// Package archiveutil is an explicitly non-normative filesystem collaborator
// for archive.Writer: it walks directory trees and normalizes stored paths.
// None of this is core writer behavior — spec.md treats traversal, filtering,
// and path normalization as the caller's responsibility, and this package is
// the minimal concrete form of that contract, enough to make cmd/jparchive
// runnable end to end. Building an Entry from a single on-disk path is core
// Writer API (spec.md §6's add_entry_from_path) and lives on archive.Writer
// itself, not here.
package archiveutil

import "strings"

// NormalizePath converts an OS path into the forward-slash, no-leading-dot
// form archive.Entry.StoredPath requires. Backslashes become slashes,
// repeated slashes collapse, and a leading "./" is stripped — the minimal
// rules spec.md §6 names as the collaborator's job.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return p
}
