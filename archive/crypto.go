package archive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

const (
	aesBlockSize      = 16
	derivedKeyLength  = 32 // first 16 bytes -> AES-128 key, last 16 reserved
	staticSaltLength  = 64
	staticSaltIters   = 128000
	perRecordSaltIter = 2500
)

// KeyDerivationParams is the Format-E-only key-derivation configuration, as
// it appears in the wire format's extra header.
type KeyDerivationParams struct {
	Algorithm     KDFAlgorithm
	Iterations    uint32
	HasStaticSalt bool
	StaticSalt    [staticSaltLength]byte // zero-filled placeholder when !HasStaticSalt
}

func newKeyDerivationParams(cfg Config) (KeyDerivationParams, error) {
	p := KeyDerivationParams{
		Algorithm:     cfg.KDFAlgorithm,
		HasStaticSalt: cfg.UseStaticSalt,
	}

	if cfg.UseStaticSalt {
		p.Iterations = staticSaltIters
		if len(cfg.StaticSalt) > 0 {
			if len(cfg.StaticSalt) != staticSaltLength {
				return p, newFatal(KindCryptoUnavailable, "", "static salt must be 64 bytes", nil)
			}
			copy(p.StaticSalt[:], cfg.StaticSalt)
		} else if _, err := rand.Read(p.StaticSalt[:]); err != nil {
			return p, newFatal(KindCryptoUnavailable, "", "cannot generate static salt", err)
		}
	} else {
		p.Iterations = perRecordSaltIter
	}

	return p, nil
}

func (a KDFAlgorithm) newHash() func() hash.Hash {
	switch a {
	case KDFSHA256:
		return sha256.New
	case KDFSHA512:
		return sha512.New
	default:
		return sha1.New
	}
}

// cryptoCore performs PBKDF2-HMAC-<algorithm> key derivation plus
// AES-128-CBC/PKCS#7 record encryption with a fresh random IV per record.
//
// Built as a single EncryptRecord call rather than a streaming
// io.WriteCloser, because every record this writer ever produces (a header
// blob, or a bounded 64 KiB-1 payload chunk) is available in memory up
// front, so there's nothing to stream incrementally.
type cryptoCore struct {
	password []byte
	params   KeyDerivationParams
}

func newCryptoCore(password []byte, params KeyDerivationParams) (*cryptoCore, error) {
	// Exercise the cipher once at construction time so a platform lacking
	// AES fails fast with the right ErrorKind; on every Go platform AES is
	// implemented in software if no hardware support exists, so this is
	// not expected to fail in practice.
	var probe [aesBlockSize]byte
	if _, err := aes.NewCipher(probe[:]); err != nil {
		return nil, newFatal(KindCryptoUnavailable, "", "platform lacks AES", err)
	}
	return &cryptoCore{password: password, params: params}, nil
}

// deriveKey runs PBKDF2-HMAC-<algorithm>(password, salt, iterations, 32)
// and returns the 16-byte AES-128 key (the first half of the 32-byte
// output; the second half is reserved for future HMAC use).
func (c *cryptoCore) deriveKey(salt []byte) []byte {
	full := pbkdf2.Key(c.password, salt, int(c.params.Iterations), derivedKeyLength, c.params.Algorithm.newHash())
	return full[:aesBlockSize]
}

// EncryptRecord produces IV || AES-128-CBC(PKCS#7(plaintext)), using a
// fresh random 16-byte IV. When the archive's key derivation is not using a
// static salt, the same freshly generated IV bytes double as the PBKDF2
// salt for this record — the only per-record secret available to a reader,
// since no other per-record salt field exists on the wire. With a static
// salt, the fixed archive-wide salt from the extra header is used instead,
// and the IV remains independently random.
func (c *cryptoCore) EncryptRecord(plaintext []byte) ([]byte, error) {
	iv := make([]byte, aesBlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, newFatal(KindCryptoUnavailable, "", "cannot generate IV", err)
	}

	salt := iv
	if c.params.HasStaticSalt {
		salt = c.params.StaticSalt[:]
	}
	key := c.deriveKey(salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newFatal(KindCryptoUnavailable, "", "cannot initialize AES cipher", err)
	}

	padded := pkcs7Pad(plaintext, aesBlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(iv)+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out, nil
}

// pkcs7Pad pads plaintext to a multiple of blockSize, always adding at
// least one byte of padding (so a block-size-aligned input gets a full
// extra block).
func pkcs7Pad(plaintext []byte, blockSize int) []byte {
	padLen := blockSize - (len(plaintext) % blockSize)
	out := make([]byte, len(plaintext)+padLen)
	copy(out, plaintext)
	for i := len(plaintext); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

// EncryptedRecordLength returns the ciphertext length for a plaintext of
// length n: 16 + 16*ceil((n+1)/16).
func EncryptedRecordLength(n int) int {
	return aesBlockSize + ((n+1+aesBlockSize-1)/aesBlockSize)*aesBlockSize
}
