package archive

import "time"

// Kind identifies the filesystem type an Entry represents.
type Kind uint8

const (
	KindDirectory Kind = 0
	KindFile      Kind = 1
	KindSymlink   Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// maxStoredPathBytes is the wire-format bound on StoredPath.
const maxStoredPathBytes = 65535

// Source supplies the bytes for a File or Symlink entry. Exactly one of
// Path or Virtual should be set; Path entries are read from disk, Virtual
// entries are served from an in-memory buffer.
type Source struct {
	// Path is an absolute (or otherwise directly openable) filesystem path.
	// For a Symlink entry, Path is the path of the link itself; the target
	// is read via os.Readlink and used as the payload.
	Path string

	// Virtual holds the entry's content directly. Set only for entries with
	// no on-disk origin.
	Virtual []byte
}

// Entry is the unit passed to the writer.
type Entry struct {
	// StoredPath is a normalized, forward-slash, octet-exact relative path.
	// The writer treats it as authoritative; it does not normalize,
	// validate characters, or resolve ".."  — that is the caller's job.
	StoredPath string

	Kind Kind

	Source Source

	// Perms is the 32-bit POSIX mode. 0o755 is synthesized for virtual
	// entries by NewVirtualEntry.
	Perms uint32

	// Mtime is seconds since epoch. Zero for symlinks, now() for virtual
	// entries, the filesystem value for real files.
	Mtime uint32

	// Size is the uncompressed byte size: 0 for directories, the readlink
	// length for symlinks, the buffer length for virtual entries, the
	// stat'd size for real files.
	Size uint64
}

// NewVirtualEntry builds a File-kind Entry backed by in-memory content.
func NewVirtualEntry(storedPath string, content []byte) Entry {
	return Entry{
		StoredPath: storedPath,
		Kind:       KindFile,
		Source:     Source{Virtual: content},
		Perms:      0o755,
		Mtime:      uint32(time.Now().Unix()),
		Size:       uint64(len(content)),
	}
}
