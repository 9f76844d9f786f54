package index

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Create(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreate_SetsSchemaVersion(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != CurrentSchemaVersion {
		t.Errorf("SchemaVersion() = %v, want %v", v, CurrentSchemaVersion)
	}
}

func TestInsertFileEntry_RoundTrip(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	entry := FileEntry{
		Path:      "/home/user/notes.txt",
		Kind:      KindRegular,
		Mode:      0644,
		UID:       1000,
		GID:       1000,
		Dev:       2049,
		Ino:       123456,
		Nlink:     1,
		Size:      42,
		MTimeSec:  1700000000,
		MTimeNsec: 123,
		ChunkIDs:  []string{"chunk-a", "chunk-b", "chunk-c"},
	}

	if err := db.InsertFileEntry(ctx, entry); err != nil {
		t.Fatalf("InsertFileEntry() error = %v", err)
	}

	got, err := db.FileEntryByPath(ctx, entry.Path)
	if err != nil {
		t.Fatalf("FileEntryByPath() error = %v", err)
	}
	if got == nil {
		t.Fatal("FileEntryByPath() = nil, want entry")
	}
	if got.Path != entry.Path || got.Size != entry.Size || got.Ino != entry.Ino {
		t.Errorf("FileEntryByPath() = %+v, want fields matching %+v", got, entry)
	}
	if len(got.ChunkIDs) != 3 || got.ChunkIDs[0] != "chunk-a" || got.ChunkIDs[2] != "chunk-c" {
		t.Errorf("FileEntryByPath() chunk ids = %v, want [chunk-a chunk-b chunk-c] in order", got.ChunkIDs)
	}
}

func TestFileEntryByPath_NotFound(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	got, err := db.FileEntryByPath(context.Background(), "/does/not/exist")
	if err != nil {
		t.Fatalf("FileEntryByPath() error = %v", err)
	}
	if got != nil {
		t.Errorf("FileEntryByPath() = %+v, want nil", got)
	}
}

func TestAllFileEntries_OrderedByPath(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	paths := []string{"/z", "/a", "/m"}
	for _, p := range paths {
		if err := db.InsertFileEntry(ctx, FileEntry{Path: p, Kind: KindDirectory}); err != nil {
			t.Fatalf("InsertFileEntry(%s) error = %v", p, err)
		}
	}

	entries, err := db.AllFileEntries(ctx)
	if err != nil {
		t.Fatalf("AllFileEntries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	want := []string{"/a", "/m", "/z"}
	for i, e := range entries {
		if e.Path != want[i] {
			t.Errorf("entries[%d].Path = %s, want %s", i, e.Path, want[i])
		}
	}
}

func TestInsertFileEntry_SymlinkTarget(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	entry := FileEntry{Path: "/link", Kind: KindSymlink, SymlinkTarget: "/actual/target"}
	if err := db.InsertFileEntry(ctx, entry); err != nil {
		t.Fatalf("InsertFileEntry() error = %v", err)
	}

	got, err := db.FileEntryByPath(ctx, "/link")
	if err != nil {
		t.Fatalf("FileEntryByPath() error = %v", err)
	}
	if got.SymlinkTarget != "/actual/target" {
		t.Errorf("SymlinkTarget = %q, want %q", got.SymlinkTarget, "/actual/target")
	}
}

func TestOpen_DoesNotRerunMigrations(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	db, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := db.InsertFileEntry(context.Background(), FileEntry{Path: "/a", Kind: KindDirectory}); err != nil {
		t.Fatalf("InsertFileEntry() error = %v", err)
	}
	db.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.AllFileEntries(context.Background())
	if err != nil {
		t.Fatalf("AllFileEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after reopen, want 1", len(entries))
	}
}
