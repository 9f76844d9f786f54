package crypto

import (
	"bytes"
	"path/filepath"
	"testing"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	dir := t.TempDir()
	km, err := initForTest(filepath.Join(dir, "keys.toml"), "passphrase")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	codec, err := NewCodec(km)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return codec
}

func TestCodec_SealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "short", data: []byte("hello, chunk")},
		{name: "binary", data: []byte{0x00, 0xff, 0x10, 0x20, 0x30}},
		{name: "large", data: bytes.Repeat([]byte("chunk-data-"), 100000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			codec := newTestCodec(t)

			sealed, err := codec.Seal(tt.data, []byte("data"))
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}

			opened, err := codec.Open(sealed, []byte("data"))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(opened, tt.data) {
				t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(opened), len(tt.data))
			}
		})
	}
}

func TestCodec_SealProducesDistinctCiphertexts(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	plaintext := []byte("identical content")
	a, err := codec.Seal(plaintext, []byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	b, err := codec.Seal(plaintext, []byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if bytes.Equal(a, b) {
		t.Error("sealing the same plaintext twice produced identical envelopes; nonces must differ")
	}
}

func TestCodec_OpenRejectsWrongAssociatedData(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	sealed, err := codec.Seal([]byte("payload"), []byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := codec.Open(sealed, []byte("index")); err != ErrAuthenticationFailed {
		t.Errorf("Open() with wrong associated data error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestCodec_OpenRejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	sealed, err := codec.Seal([]byte("payload"), []byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := codec.Open(sealed, []byte("data")); err != ErrAuthenticationFailed {
		t.Errorf("Open() on tampered envelope error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestCodec_OpenRejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	sealed, err := codec.Seal([]byte("payload"), []byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	sealed[0] = 0xff // corrupt format_version's low byte

	if _, err := codec.Open(sealed, []byte("data")); err == nil {
		t.Error("Open() with unsupported version should fail")
	}
}

func TestCodec_OpenRejectsTruncatedEnvelope(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	if _, err := codec.Open([]byte{0x01, 0x00}, []byte("data")); err != ErrEnvelopeTooShort {
		t.Errorf("Open() on truncated envelope error = %v, want ErrEnvelopeTooShort", err)
	}
}

func TestPeekVersion(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	sealed, err := codec.Seal([]byte("payload"), []byte("data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	version, err := PeekVersion(sealed)
	if err != nil {
		t.Fatalf("PeekVersion() error = %v", err)
	}
	if version != FormatVersion {
		t.Errorf("PeekVersion() = %d, want %d", version, FormatVersion)
	}
}
