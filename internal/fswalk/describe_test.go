package fswalk

import (
	"os"
	"path/filepath"
	"testing"

	"obnam-go/internal/index"
)

func TestDescribe_RegularFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	mustWriteFile(t, path, "hello")

	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}

	fe, err := Describe(Entry{AbsPath: path, RelPath: "a.txt", Info: info})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if fe.Kind != index.KindRegular {
		t.Errorf("Kind = %v, want %v", fe.Kind, index.KindRegular)
	}
	if fe.Size != 5 {
		t.Errorf("Size = %d, want 5", fe.Size)
	}
	if fe.Path != "a.txt" {
		t.Errorf("Path = %q, want a.txt", fe.Path)
	}
}

func TestDescribe_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	mustMkdirAll(t, sub)

	info, err := os.Lstat(sub)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}

	fe, err := Describe(Entry{AbsPath: sub, RelPath: "sub", Info: info})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if fe.Kind != index.KindDirectory {
		t.Errorf("Kind = %v, want %v", fe.Kind, index.KindDirectory)
	}
}

func TestDescribe_Symlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	mustWriteFile(t, target, "x")
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}

	fe, err := Describe(Entry{AbsPath: link, RelPath: "link", Info: info})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if fe.Kind != index.KindSymlink {
		t.Errorf("Kind = %v, want %v", fe.Kind, index.KindSymlink)
	}
	if fe.SymlinkTarget != target {
		t.Errorf("SymlinkTarget = %q, want %q", fe.SymlinkTarget, target)
	}
}
