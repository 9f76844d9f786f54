package crypto

import (
	"crypto/subtle"
	"errors"
)

// ErrWrongPassphrase is returned by Unlock when the supplied passphrase
// does not re-derive the keys stored on disk.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// ErrUnsupportedVersion is returned by Codec.Open when a chunk's
// envelope format_version is not one this build knows how to read.
var ErrUnsupportedVersion = errors.New("unsupported chunk envelope version")

// ErrEnvelopeTooShort is returned when a chunk is too small to contain
// a valid envelope header and authentication tag.
var ErrEnvelopeTooShort = errors.New("chunk envelope truncated")

// ErrAuthenticationFailed is returned when either the envelope HMAC or
// the AEAD tag fails to verify, meaning the chunk was corrupted or
// tampered with.
var ErrAuthenticationFailed = errors.New("chunk authentication failed")

func constantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
