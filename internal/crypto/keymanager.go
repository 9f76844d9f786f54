// Package crypto implements the backup client's key management and
// chunk encryption: deriving symmetric keys from a passphrase, storing
// them on disk, and sealing/opening the AEAD envelope every chunk is
// wrapped in before it ever leaves the client.
package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	encryptionKeySize = chacha20poly1305.KeySize // 32
	macKeySize        = 32
	saltSize          = 16

	// scrypt cost parameters. N=2^17 costs roughly a tenth of a second
	// of CPU and ~128MiB of RAM on a modern core, which is the range
	// Obnam's own key derivation targets: slow enough to make offline
	// passphrase guessing expensive, fast enough that "obnam init"
	// doesn't feel broken.
	scryptN = 1 << 17
	scryptR = 8
	scryptP = 1
)

// keyFile is the on-disk, TOML-encoded representation of a KeyManager.
// The passphrase itself is never written here; only the salt needed to
// re-derive the same keys from it next time.
type keyFile struct {
	Salt          []byte `toml:"salt"`
	EncryptionKey []byte `toml:"encryption_key"`
	MACKey        []byte `toml:"mac_key"`
	ScryptN       int    `toml:"scrypt_n"`
	ScryptR       int    `toml:"scrypt_r"`
	ScryptP       int    `toml:"scrypt_p"`
}

// KeyManager holds the two symmetric keys derived from the backup
// passphrase: an encryption key used with ChaCha20-Poly1305, and a MAC
// key used to authenticate the envelope header that comes before the
// AEAD ciphertext (see Codec).
type KeyManager struct {
	path          string
	encryptionKey []byte
	macKey        []byte
}

// Init derives a new pair of keys from passphrase, writes them to path
// with mode 0600, and returns the resulting KeyManager. It fails if a
// key file already exists at path, mirroring "obnam init" refusing to
// clobber an existing setup.
func Init(path, passphrase string) (*KeyManager, error) {
	return initWithParams(path, passphrase, scryptN, scryptR, scryptP)
}

func initWithParams(path, passphrase string, n, r, p int) (*KeyManager, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("key file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking for existing key file: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	km, err := deriveKeys(passphrase, salt, n, r, p)
	if err != nil {
		return nil, err
	}
	km.path = path

	kf := keyFile{
		Salt:          salt,
		EncryptionKey: km.encryptionKey,
		MACKey:        km.macKey,
		ScryptN:       n,
		ScryptR:       r,
		ScryptP:       p,
	}
	if err := writeKeyFile(path, &kf); err != nil {
		return nil, err
	}

	return km, nil
}

// Load reads an existing key file. The passphrase is not needed again
// once the derived keys are on disk; Load exists purely to read them
// back, not to re-run the KDF. Unlock is the counterpart that
// re-derives keys from a passphrase for verification or recovery.
func Load(path string) (*KeyManager, error) {
	kf, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	if len(kf.EncryptionKey) != encryptionKeySize || len(kf.MACKey) != macKeySize {
		return nil, fmt.Errorf("key file %s is corrupt: wrong key sizes", path)
	}
	return &KeyManager{
		path:          path,
		encryptionKey: kf.EncryptionKey,
		macKey:        kf.MACKey,
	}, nil
}

// Unlock re-derives the keys stored at path from passphrase and
// verifies they match what's on disk, returning ErrWrongPassphrase if
// not. This is how "obnam config export-recovery" and passphrase
// changes confirm the caller actually knows the passphrase, since the
// derived keys themselves are stored unencrypted on disk for normal
// operation.
func Unlock(path, passphrase string) (*KeyManager, error) {
	kf, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}

	km, err := deriveKeys(passphrase, kf.Salt, kf.ScryptN, kf.ScryptR, kf.ScryptP)
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual(km.encryptionKey, kf.EncryptionKey) || !constantTimeEqual(km.macKey, kf.MACKey) {
		return nil, ErrWrongPassphrase
	}
	km.path = path
	return km, nil
}

func deriveKeys(passphrase string, salt []byte, n, r, p int) (*KeyManager, error) {
	material, err := scrypt.Key([]byte(passphrase), salt, n, r, p, encryptionKeySize+macKeySize)
	if err != nil {
		return nil, fmt.Errorf("deriving keys: %w", err)
	}
	return &KeyManager{
		encryptionKey: material[:encryptionKeySize],
		macKey:        material[encryptionKeySize:],
	}, nil
}

func readKeyFile(path string) (*keyFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("key file %s has loose permissions %o; refusing to use it", path, info.Mode().Perm())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening key file: %w", err)
	}
	defer f.Close()

	var kf keyFile
	md, err := toml.NewDecoder(f).Decode(&kf)
	if err != nil {
		return nil, fmt.Errorf("parsing key file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing key file: unknown key %q", undecoded[0].String())
	}
	return &kf, nil
}

func writeKeyFile(path string, kf *keyFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	tmp, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer tmp.Cleanup()

	if err := toml.NewEncoder(tmp).Encode(kf); err != nil {
		return fmt.Errorf("encoding key file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("setting key file permissions: %w", err)
	}
	if err := tmp.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// EncryptionKey returns the ChaCha20-Poly1305 key used by Codec.
func (km *KeyManager) EncryptionKey() []byte { return km.encryptionKey }

// MACKey returns the key used to authenticate envelope headers.
func (km *KeyManager) MACKey() []byte { return km.macKey }
