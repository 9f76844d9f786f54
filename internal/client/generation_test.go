package client

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"
	"testing"

	"obnam-go/internal/chunkserver"
	"obnam-go/internal/config"
	"obnam-go/internal/crypto"
	"obnam-go/internal/index"
	"obnam-go/internal/testutil"
)

func newTestGenerationBuilder(t *testing.T) (*GenerationBuilder, *Uploader, *testutil.FakeTransport) {
	t.Helper()
	km, err := crypto.Init(t.TempDir()+"/keys.toml", "hunter2")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	codec, err := crypto.NewCodec(km)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	transport := testutil.NewFakeTransport()
	uploader := NewUploader(transport, codec, 4, nil)
	builder := NewGenerationBuilder(uploader, testutil.FixedClock(), testutil.NewStubIDGenerator(), nil)
	return builder, uploader, transport
}

func TestGenerationBuilder_Build_SingleRootHappyPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "data.dat"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	b, _, transport := newTestGenerationBuilder(t)
	res, err := b.Build(context.Background(), BuildOptions{
		Roots:       []string{root},
		ChunkSize:   1 << 16,
		ChunkerKind: config.ChunkerFixed,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.GenerationID == "" {
		t.Error("GenerationID is empty")
	}
	if res.Counters.FilesDiscovered == 0 {
		t.Error("FilesDiscovered = 0, want > 0")
	}
	if res.Counters.FilesBackedUp != 1 {
		t.Errorf("FilesBackedUp = %d, want 1", res.Counters.FilesBackedUp)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
	if transport.Len() == 0 {
		t.Error("expected chunks to be uploaded")
	}
}

func TestGenerationBuilder_Build_HonoursRootLocalIgnoreFileAndOptions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "keep.txt"), []byte("keep me"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "debug.log"), []byte("noisy"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "secret.env"), []byte("shh"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".obnamignore"), []byte("*.log\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, uploader, transport := newTestGenerationBuilder(t)
	res, err := b.Build(context.Background(), BuildOptions{
		Roots:          []string{root},
		ChunkSize:      1 << 16,
		ChunkerKind:    config.ChunkerFixed,
		IgnorePatterns: []string{"*.env"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	db := reassembleIndexDB(t, uploader, transport, res.GenerationID)
	defer db.Close()

	entries, err := db.AllFileEntries(context.Background())
	if err != nil {
		t.Fatalf("AllFileEntries: %v", err)
	}

	rootLabel := filepath.Base(root)
	byPath := make(map[string]bool)
	for _, e := range entries {
		byPath[e.Path] = true
	}

	if !byPath[path.Join(rootLabel, "keep.txt")] {
		t.Error("keep.txt should have been backed up")
	}
	if byPath[path.Join(rootLabel, "debug.log")] {
		t.Error("debug.log matches the root's .obnamignore and should have been excluded")
	}
	if byPath[path.Join(rootLabel, "secret.env")] {
		t.Error("secret.env matches an IgnorePatterns entry and should have been excluded")
	}
	if byPath[path.Join(rootLabel, ".obnamignore")] {
		t.Error(".obnamignore itself should never be backed up")
	}
}

func TestGenerationBuilder_Build_MissingRootFails(t *testing.T) {
	t.Parallel()

	b, _, _ := newTestGenerationBuilder(t)
	_, err := b.Build(context.Background(), BuildOptions{
		Roots:       []string{filepath.Join(t.TempDir(), "does-not-exist")},
		ChunkSize:   1 << 16,
		ChunkerKind: config.ChunkerFixed,
	})
	if err == nil {
		t.Fatal("Build() error = nil, want ErrRootMissing")
	}
}

func TestGenerationBuilder_Build_IncrementalOptimisationReusesUnchangedFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	target := filepath.Join(root, "data.dat")
	if err := os.WriteFile(target, []byte("stable content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, uploader, transport := newTestGenerationBuilder(t)
	opts := BuildOptions{Roots: []string{root}, ChunkSize: 1 << 16, ChunkerKind: config.ChunkerFixed}

	first, err := b.Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}

	prevDB := reassembleIndexDB(t, uploader, transport, first.GenerationID)
	defer prevDB.Close()

	opts.Previous = prevDB
	second, err := b.Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if second.Counters.FilesBackedUp != 0 {
		t.Errorf("FilesBackedUp = %d, want 0 (unchanged file should be skipped)", second.Counters.FilesBackedUp)
	}
}

// reassembleIndexDB downloads and decrypts a generation's index parts
// and opens the reassembled database file, mirroring the first steps
// of the Restorer's own reassembly logic.
func reassembleIndexDB(t *testing.T, uploader *Uploader, transport *testutil.FakeTransport, genID chunkserver.ID) *index.DB {
	t.Helper()

	_, body, err := transport.Get(genID)
	if err != nil {
		t.Fatalf("Get generation: %v", err)
	}
	envelope, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		t.Fatalf("reading generation envelope: %v", err)
	}
	plaintext, err := uploader.codec.Open(envelope, []byte(generationKind))
	if err != nil {
		t.Fatalf("decrypting generation: %v", err)
	}
	var gen GenerationPlaintext
	if err := json.Unmarshal(plaintext, &gen); err != nil {
		t.Fatalf("unmarshaling generation: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "reassembled.db")
	out, err := os.Create(dbPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, partID := range gen.IndexParts {
		_, body, err := transport.Get(chunkserver.ID(partID))
		if err != nil {
			t.Fatalf("Get index part: %v", err)
		}
		envelope, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			t.Fatalf("reading index part: %v", err)
		}
		part, err := uploader.codec.Open(envelope, []byte(indexPartKind))
		if err != nil {
			t.Fatalf("decrypting index part: %v", err)
		}
		if _, err := out.Write(part); err != nil {
			t.Fatalf("writing reassembled db: %v", err)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatalf("closing reassembled db: %v", err)
	}

	db, err := index.Open(dbPath)
	if err != nil {
		t.Fatalf("opening reassembled index: %v", err)
	}
	return db
}
