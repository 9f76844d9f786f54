package fswalk

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHasCacheDirTag(t *testing.T) {
	t.Parallel()

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeCacheTag(t, dir, cacheDirSignature+"\n# comment\n")
		if !hasCacheDirTag(dir) {
			t.Error("expected tag to be detected")
		}
	})

	t.Run("missing tag file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		if hasCacheDirTag(dir) {
			t.Error("expected no tag in empty directory")
		}
	})

	t.Run("wrong signature", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeCacheTag(t, dir, "not the right signature at all, padded out to length")
		if hasCacheDirTag(dir) {
			t.Error("expected mismatched signature to be rejected")
		}
	})

	t.Run("truncated file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeCacheTag(t, dir, "Signature: 8a47")
		if hasCacheDirTag(dir) {
			t.Error("expected truncated signature to be rejected")
		}
	})
}

func writeCacheTag(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, cacheDirTagFile), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", cacheDirTagFile, err)
	}
}
