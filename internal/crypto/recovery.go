package crypto

import (
	"fmt"
	"io"
	"os"

	"filippo.io/age"
)

// ExportRecovery writes an age-passphrase-encrypted copy of the key
// file at keyPath to destPath. It exists for the "obnam config
// export-recovery" command: an operator who is about to change
// machines, or who simply wants an offline copy of their backup keys,
// gets one file they can store anywhere without leaving raw key
// material lying around unencrypted.
//
// This is deliberately not how chunk encryption itself works — the
// wire envelope format chunks use (Codec) has a fixed layout the
// server and every client build must agree on byte-for-byte, and
// age's own container format doesn't produce that layout. Recovery
// export has no such constraint, so it uses age directly the way this
// codebase's original key storage did.
func ExportRecovery(keyPath, destPath, recoveryPassphrase string) error {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("reading key file: %w", err)
	}

	recipient, err := age.NewScryptRecipient(recoveryPassphrase)
	if err != nil {
		return fmt.Errorf("creating recovery recipient: %w", err)
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating recovery file: %w", err)
	}
	defer out.Close()

	w, err := age.Encrypt(out, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(keyData); err != nil {
		return fmt.Errorf("writing recovery data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing recovery file: %w", err)
	}
	return nil
}

// ImportRecovery reverses ExportRecovery, decrypting a recovery file
// back into a usable key file at destPath.
func ImportRecovery(recoveryPath, destPath, recoveryPassphrase string) error {
	f, err := os.Open(recoveryPath)
	if err != nil {
		return fmt.Errorf("opening recovery file: %w", err)
	}
	defer f.Close()

	identity, err := age.NewScryptIdentity(recoveryPassphrase)
	if err != nil {
		return fmt.Errorf("creating recovery identity: %w", err)
	}

	r, err := age.Decrypt(f, identity)
	if err != nil {
		return fmt.Errorf("decrypting recovery file: %w", err)
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("restoring key file: %w", err)
	}
	return nil
}
