package chunkserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Logger is the structured logging seam the HTTP handlers write
// through, matching the shape of client.Logger so the same
// *slog.Logger adapter can satisfy both.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Server is the HTTP frontend to a Store: the whole of the chunk
// server's wire API, versioned under /v1/chunks.
type Server struct {
	store  Store
	logger Logger
	mux    *http.ServeMux
}

// NewServer wires handlers for the /v1/chunks API onto a fresh mux.
func NewServer(store Store, logger Logger) *Server {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Server{store: store, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /v1/chunks", s.handleCreate)
	s.mux.HandleFunc("GET /v1/chunks", s.handleSearch)
	s.mux.HandleFunc("GET /v1/chunks/{id}", s.handleGet)
	s.mux.HandleFunc("DELETE /v1/chunks/{id}", s.handleDelete)
	return s
}

// ServeHTTP implements http.Handler, so Server can be handed directly
// to http.Server or wrapped by a logging middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type createResponse struct {
	ChunkID string `json:"chunk_id"`
}

// handleCreate implements POST /v1/chunks: the body is the (already
// client-encrypted) chunk content, and the Chunk-Meta header carries
// the label the server indexes it under. The server never inspects the
// body itself and never deduplicates on the server side — clients are
// expected to search by label first via handleSearch.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	meta, err := ParseMeta(r.Header.Get("Chunk-Meta"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.store.Put(meta, r.Body)
	if err != nil {
		s.logger.Error("storing chunk", "error", err)
		httpError(w, http.StatusInternalServerError, fmt.Errorf("storing chunk: %w", err))
		return
	}

	s.logger.Info(fmt.Sprintf("created chunk %s", id), "label", meta.Label)
	writeJSON(w, http.StatusCreated, createResponse{ChunkID: id.String()})
}

// handleGet implements GET /v1/chunks/{id}: the raw chunk body, with
// its Chunk-Meta header restored, or 404 if the id is unknown.
//
// Get writes the body straight into a buffer first rather than
// streaming into w: the Chunk-Meta header has to be set before any
// body byte is written, and Store.Get only reveals the metadata as
// part of the same call that produces the body.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := ID(r.PathValue("id"))

	var buf bytes.Buffer
	meta, err := s.store.Get(id, &buf)
	if err != nil {
		if IsNotFound(err) {
			httpError(w, http.StatusNotFound, err)
			return
		}
		s.logger.Error("reading chunk", "id", id, "error", err)
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	header, err := meta.Header()
	if err != nil {
		s.logger.Error("encoding chunk metadata", "id", id, "error", err)
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Chunk-Meta", header)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleSearch implements GET /v1/chunks?label=<label>: returns the
// set of chunk ids currently filed under the given label, so a client
// can decide whether a candidate chunk has already been uploaded.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	labels := r.URL.Query()["label"]
	if len(labels) != 1 || labels[0] == "" {
		httpError(w, http.StatusBadRequest, ErrLabelQueryRequired)
		return
	}

	matches, err := s.store.FindByLabel(labels[0])
	if err != nil {
		s.logger.Error("searching by label", "error", err)
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	ids := make(map[string]json.RawMessage, len(matches))
	for id, meta := range matches {
		header, err := meta.Header()
		if err != nil {
			continue
		}
		ids[id.String()] = json.RawMessage(header)
	}
	writeJSON(w, http.StatusOK, ids)
}

// handleDelete implements DELETE /v1/chunks/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := ID(r.PathValue("id"))
	if err := s.store.Delete(id); err != nil {
		if IsNotFound(err) {
			httpError(w, http.StatusNotFound, err)
			return
		}
		s.logger.Error("deleting chunk", "id", id, "error", err)
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("chunk deleted", "id", id)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
