package client

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"obnam-go/internal/chunkserver"
)

func newTestServer(t *testing.T) (*ServerClient, *httptest.Server) {
	t.Helper()
	store, err := chunkserver.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	srv := httptest.NewTLSServer(chunkserver.NewServer(store, nil))
	client := NewServerClient(srv.URL, false)
	return client, srv
}

func TestServerClient_PutGetRoundTrip(t *testing.T) {
	t.Parallel()

	client, srv := newTestServer(t)
	defer srv.Close()

	meta := chunkserver.NewMeta("sha256:deadbeef")
	id, err := client.Put(meta, bytes.NewReader([]byte("chunk body")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == "" {
		t.Fatal("Put returned empty id")
	}

	gotMeta, body, err := client.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != "chunk body" {
		t.Errorf("body = %q, want %q", data, "chunk body")
	}
	if gotMeta.Label != meta.Label {
		t.Errorf("Label = %q, want %q", gotMeta.Label, meta.Label)
	}
}

func TestServerClient_FindByLabel(t *testing.T) {
	t.Parallel()

	client, srv := newTestServer(t)
	defer srv.Close()

	id1, err := client.Put(chunkserver.NewMeta("sha256:shared"), bytes.NewReader([]byte("a")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	id2, err := client.Put(chunkserver.NewMeta("sha256:shared"), bytes.NewReader([]byte("b")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	matches, err := client.FindByLabel("sha256:shared")
	if err != nil {
		t.Fatalf("FindByLabel: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if _, ok := matches[id1]; !ok {
		t.Errorf("matches missing %s", id1)
	}
	if _, ok := matches[id2]; !ok {
		t.Errorf("matches missing %s", id2)
	}

	none, err := client.FindByLabel("sha256:nonexistent")
	if err != nil {
		t.Fatalf("FindByLabel: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len(none) = %d, want 0", len(none))
	}
}

func TestServerClient_Delete(t *testing.T) {
	t.Parallel()

	client, srv := newTestServer(t)
	defer srv.Close()

	id, err := client.Put(chunkserver.NewMeta("sha256:tobedeleted"), bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := client.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := client.Get(id); err == nil {
		t.Error("Get after Delete succeeded, want not-found error")
	}
}

func TestServerClient_Get_NotFound(t *testing.T) {
	t.Parallel()

	client, srv := newTestServer(t)
	defer srv.Close()

	if _, _, err := client.Get(chunkserver.ID("nope")); err == nil {
		t.Fatal("Get() error = nil, want not-found error")
	}
}
