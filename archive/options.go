package archive

// Format selects the on-disk container: FormatA is the unencrypted .jpa
// container, FormatE is the AES-encrypted .jps container.
type Format uint8

const (
	FormatA Format = iota
	FormatE
)

// Extension returns the canonical file extension for f: ".jpa" or ".jps".
func (f Format) Extension() string {
	switch f {
	case FormatA:
		return ".jpa"
	case FormatE:
		return ".jps"
	default:
		panic("archive: unknown format")
	}
}

// KDFAlgorithm selects the PBKDF2 digest used for Format-E key derivation.
type KDFAlgorithm uint8

const (
	KDFSHA1 KDFAlgorithm = iota
	KDFSHA256
	KDFSHA512
)

// Config is the construction-time configuration of a Writer: part size,
// symlink dereferencing policy, container format, and Format-E key
// derivation settings.
type Config struct {
	// PartSize is the maximum size in bytes of any non-terminal part.
	// Zero disables splitting (single-part mode).
	PartSize uint64

	// DereferenceSymlinks tells AddEntryFromPath to follow symlinks and
	// store their target's content as a regular file instead of storing
	// the link itself. The core writer never probes the platform for
	// symlink support; that policy is the caller's.
	DereferenceSymlinks bool

	Format Format

	// Key is the Format-E password; ignored for FormatA. An empty password
	// is accepted for FormatE but queued as a KindEmptyPassword warning.
	Key []byte

	// UseStaticSalt selects a single 64-byte salt fixed for the archive's
	// lifetime (128000 PBKDF2 iterations) versus a fresh per-record salt
	// (2500 iterations).
	UseStaticSalt bool

	// KDFAlgorithm selects the PBKDF2 digest. Defaults to KDFSHA1, the
	// default configuration.
	KDFAlgorithm KDFAlgorithm

	// StaticSalt, if non-nil, fixes the 64-byte static salt instead of
	// generating one randomly at Initialize time. Ignored unless
	// UseStaticSalt is set. Primarily useful for deterministic tests.
	StaticSalt []byte
}

// Options is reserved for future Initialize-time parameters; it carries no
// fields today because every current configuration belongs to Config.
type Options struct{}
