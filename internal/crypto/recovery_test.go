package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExportImportRecoveryRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "keys.toml")
	if _, err := initForTest(keyPath, "backup-passphrase"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	original, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("reading key file: %v", err)
	}

	recoveryPath := filepath.Join(dir, "recovery.age")
	if err := ExportRecovery(keyPath, recoveryPath, "recovery-passphrase"); err != nil {
		t.Fatalf("ExportRecovery() error = %v", err)
	}

	restoredPath := filepath.Join(dir, "restored.toml")
	if err := ImportRecovery(recoveryPath, restoredPath, "recovery-passphrase"); err != nil {
		t.Fatalf("ImportRecovery() error = %v", err)
	}

	restored, err := os.ReadFile(restoredPath)
	if err != nil {
		t.Fatalf("reading restored key file: %v", err)
	}
	if string(restored) != string(original) {
		t.Error("restored key file does not match the original")
	}
}

func TestImportRecovery_WrongPassphrase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "keys.toml")
	if _, err := initForTest(keyPath, "backup-passphrase"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	recoveryPath := filepath.Join(dir, "recovery.age")
	if err := ExportRecovery(keyPath, recoveryPath, "correct"); err != nil {
		t.Fatalf("ExportRecovery() error = %v", err)
	}

	restoredPath := filepath.Join(dir, "restored.toml")
	if err := ImportRecovery(recoveryPath, restoredPath, "incorrect"); err == nil {
		t.Error("ImportRecovery() with wrong passphrase should fail")
	}
}
