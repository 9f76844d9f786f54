package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"obnam-go/internal/chunkserver"
)

// defaultRequestTimeout bounds every chunk-server HTTP request; no
// request is allowed to wait indefinitely.
const defaultRequestTimeout = 30 * time.Second

// ServerClient talks to the chunk server's /v1/chunks HTTP API. It
// implements the client-side half of the chunk transport protocol.
type ServerClient struct {
	baseURL string
	http    *http.Client
}

// NewServerClient builds a ServerClient against baseURL (e.g.
// "https://chunks.example.com"). When verifyTLS is false, the server's
// certificate chain is not validated — intended only for test
// environments with self-signed certificates.
func NewServerClient(baseURL string, verifyTLS bool) *ServerClient {
	transport := &http.Transport{}
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &ServerClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: defaultRequestTimeout},
	}
}

// Put uploads a new chunk and returns its server-assigned id. r
// should be a type net/http recognises for automatic Content-Length
// detection (e.g. *bytes.Reader) so the request is not chunk-encoded.
func (c *ServerClient) Put(meta chunkserver.Meta, r io.Reader) (chunkserver.ID, error) {
	header, err := meta.Header()
	if err != nil {
		return "", fmt.Errorf("encoding chunk metadata: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/chunks", r)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Chunk-Meta", header)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", classifyStatus(resp)
	}

	var body struct {
		ChunkID string `json:"chunk_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding upload response: %v", ErrServerError, err)
	}
	return chunkserver.ID(body.ChunkID), nil
}

// Get downloads a chunk's body and metadata by id.
func (c *ServerClient) Get(id chunkserver.ID) (chunkserver.Meta, io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/v1/chunks/"+id.String(), nil)
	if err != nil {
		return chunkserver.Meta{}, nil, fmt.Errorf("building get request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return chunkserver.Meta{}, nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return chunkserver.Meta{}, nil, chunkserver.NewNotFoundError(id)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return chunkserver.Meta{}, nil, classifyStatus(resp)
	}

	meta, err := chunkserver.ParseMeta(resp.Header.Get("Chunk-Meta"))
	if err != nil {
		resp.Body.Close()
		return chunkserver.Meta{}, nil, fmt.Errorf("%w: parsing Chunk-Meta header: %v", ErrServerError, err)
	}
	return meta, resp.Body, nil
}

// FindByLabel returns every id currently stored under label.
func (c *ServerClient) FindByLabel(label string) (map[chunkserver.ID]chunkserver.Meta, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/v1/chunks?label="+url.QueryEscape(label), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var raw map[string]chunkserver.Meta
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %v", ErrServerError, err)
	}

	out := make(map[chunkserver.ID]chunkserver.Meta, len(raw))
	for id, meta := range raw {
		out[chunkserver.ID(id)] = meta
	}
	return out, nil
}

// Delete removes a chunk by id.
func (c *ServerClient) Delete(id chunkserver.ID) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/v1/chunks/"+id.String(), nil)
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return chunkserver.NewNotFoundError(id)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classifyStatus(resp)
	}
	return nil
}

func (c *ServerClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

// classifyStatus turns a non-success HTTP status into a Transport
// (5xx and 408/429, retryable) or ServerError (other 4xx, a client
// bug) classification.
func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: server returned %s: %s", ErrTransport, resp.Status, bytes.TrimSpace(body))
	}
	return fmt.Errorf("%w: server returned %s: %s", ErrServerError, resp.Status, bytes.TrimSpace(body))
}
