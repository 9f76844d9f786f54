package crypto

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// FormatVersion identifies the on-disk/on-wire layout of a chunk's
// envelope. Bumping it is how a future incompatible envelope change
// would be introduced without breaking older chunks already stored on
// a server.
const FormatVersion uint32 = 1

// nonceLen is the nonce length used: ChaCha20-Poly1305's
// standard 96-bit nonce, not XChaCha's 192-bit one. A 96-bit random
// nonce is safe here because each chunk gets a freshly generated one
// and the number of chunks any single passphrase will ever encrypt
// stays far below the birthday bound for 2^96 draws.
const nonceLen = chacha20poly1305.NonceSize

const hmacLen = sha256.Size

// Codec seals and opens the AEAD envelope every chunk is wrapped in:
//
//	u32 format_version (little-endian, =1)
//	12-byte nonce
//	AEAD(ciphertext || 16-byte Poly1305 tag)
//	32-byte HMAC-SHA256 over (format_version || nonce)
//
// The trailing HMAC exists because format_version and the nonce must
// be readable before any AEAD key material is even consulted (a
// server-unsupported version needs to fail fast), so they sit outside
// the AEAD's own authentication. The MAC key gives them integrity
// protection that doesn't depend on the AEAD tag succeeding first.
type Codec struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewCodec builds a Codec from a KeyManager's derived keys.
func NewCodec(km *KeyManager) (*Codec, error) {
	aead, err := chacha20poly1305.New(km.EncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("initializing chunk cipher: %w", err)
	}
	return &Codec{aead: aead, macKey: km.MACKey()}, nil
}

// Seal encrypts plaintext under associatedData (typically the chunk
// kind, e.g. "data" or "index" or "generation") and returns a complete
// envelope ready to upload to the chunk server.
func (c *Codec) Seal(plaintext, associatedData []byte) ([]byte, error) {
	header := make([]byte, 4+nonceLen)
	binary.LittleEndian.PutUint32(header[:4], FormatVersion)

	nonce := header[4:]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, plaintext, associatedData)

	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(header)
	tag := mac.Sum(nil)

	envelope := make([]byte, 0, len(header)+len(ciphertext)+len(tag))
	envelope = append(envelope, header...)
	envelope = append(envelope, ciphertext...)
	envelope = append(envelope, tag...)
	return envelope, nil
}

// Open verifies and decrypts an envelope produced by Seal.
// associatedData must match exactly what was passed to Seal.
func (c *Codec) Open(envelope, associatedData []byte) ([]byte, error) {
	if len(envelope) < 4+nonceLen+hmacLen {
		return nil, ErrEnvelopeTooShort
	}

	header := envelope[:4+nonceLen]
	body := envelope[4+nonceLen : len(envelope)-hmacLen]
	gotTag := envelope[len(envelope)-hmacLen:]

	version := binary.LittleEndian.Uint32(header[:4])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(header)
	wantTag := mac.Sum(nil)
	if !hmac.Equal(gotTag, wantTag) {
		return nil, ErrAuthenticationFailed
	}

	nonce := header[4:]
	plaintext, err := c.aead.Open(nil, nonce, body, associatedData)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// PeekVersion reads only the format_version field of an envelope,
// without needing any key material. Server code that must reject
// unsupported versions before ever touching ciphertext uses this.
func PeekVersion(envelope []byte) (uint32, error) {
	if len(envelope) < 4 {
		return 0, ErrEnvelopeTooShort
	}
	return binary.LittleEndian.Uint32(envelope[:4]), nil
}
