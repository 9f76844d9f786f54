package client

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"obnam-go/internal/chunkerimpl"
	"obnam-go/internal/chunkserver"
	"obnam-go/internal/crypto"
)

// defaultUploadWorkers is the default bounded worker pool size for
// concurrent chunk uploads.
const defaultUploadWorkers = 8

// Retry parameters for transport calls a chunk upload makes
// (FindByLabel, Put). A network blip or a 5xx/408/429 response is
// retried with doubling backoff up to defaultRetryMaxDelay; anything
// else, or the last attempt, is returned to the caller unchanged.
const (
	defaultRetryAttempts    = 5
	defaultRetryInitialWait = 200 * time.Millisecond
	defaultRetryMaxDelay    = 5 * time.Second
)

// Counters accumulates per-run performance counters: files
// discovered, files backed up, chunks uploaded and reused.
type Counters struct {
	FilesDiscovered int64
	FilesBackedUp   int64
	ChunksUploaded  int64
	ChunksReused    int64
}

// Transport is the client-side view of the chunk server's HTTP API,
// abstracted so the Uploader, Generation Builder, and Restorer can be
// tested against an in-memory double instead of a real HTTP server.
type Transport interface {
	Put(meta chunkserver.Meta, r io.Reader) (chunkserver.ID, error)
	Get(id chunkserver.ID) (chunkserver.Meta, io.ReadCloser, error)
	FindByLabel(label string) (map[chunkserver.ID]chunkserver.Meta, error)
	Delete(id chunkserver.ID) error
}

var _ Transport = (*ServerClient)(nil)

// Uploader deduplicates and uploads chunks to the chunk server,
// encrypting via codec only when no existing chunk already carries the
// content's label.
type Uploader struct {
	server  Transport
	codec   *crypto.Codec
	workers int
	logger  Logger

	retryAttempts    int
	retryInitialWait time.Duration
	retryMaxDelay    time.Duration
}

// NewUploader builds an Uploader. workers <= 0 uses
// defaultUploadWorkers.
func NewUploader(server Transport, codec *crypto.Codec, workers int, logger Logger) *Uploader {
	if workers <= 0 {
		workers = defaultUploadWorkers
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Uploader{
		server:           server,
		codec:            codec,
		workers:          workers,
		logger:           logger,
		retryAttempts:    defaultRetryAttempts,
		retryInitialWait: defaultRetryInitialWait,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
}

// Label computes the content-hash label for a chunk's plaintext:
// "sha256:<hex>".
func Label(plaintext []byte) string {
	sum := sha256.Sum256(plaintext)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// UploadChunks uploads each of chunks (already read into memory by the
// Chunker), deduplicating by label, and returns the resulting
// chunk-id list in the same order as chunks. kind is the AEAD
// associated-data tag ("data", "indexpart", ...). Order within the
// list is preserved regardless of upload completion order.
func (u *Uploader) UploadChunks(kind string, chunks []chunkerimpl.Chunk, counters *Counters) ([]chunkserver.ID, error) {
	ids := make([]chunkserver.ID, len(chunks))

	group := new(errgroup.Group)
	group.SetLimit(u.workers)

	for i, ch := range chunks {
		i, ch := i, ch
		group.Go(func() error {
			id, reused, err := u.uploadOne(kind, ch.Data)
			if err != nil {
				return fmt.Errorf("uploading chunk %d: %w", i, err)
			}
			ids[i] = id
			if counters != nil {
				if reused {
					counters.ChunksReused++
				} else {
					counters.ChunksUploaded++
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// uploadOne handles a single chunk's dedup-then-upload decision.
func (u *Uploader) uploadOne(kind string, plaintext []byte) (chunkserver.ID, bool, error) {
	label := Label(plaintext)

	var existing map[chunkserver.ID]chunkserver.Meta
	err := u.withTransportRetry("find-by-label", func() error {
		var err error
		existing, err = u.server.FindByLabel(label)
		return err
	})
	if err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		for id := range existing {
			u.logger.Debug("reusing chunk", "label", label, "id", id.String())
			return id, true, nil
		}
	}

	envelope, err := u.codec.Seal(plaintext, []byte(kind))
	if err != nil {
		return "", false, fmt.Errorf("encrypting chunk: %w", err)
	}

	meta := chunkserver.NewMeta(label)
	var id chunkserver.ID
	err = u.withTransportRetry("put", func() error {
		var err error
		id, err = u.server.Put(meta, bytes.NewReader(envelope))
		return err
	})
	if err != nil {
		return "", false, err
	}
	u.logger.Debug("uploaded chunk", "label", label, "id", id.String(), "kind", kind)
	return id, false, nil
}

// withTransportRetry runs fn, retrying with doubling backoff while it
// fails with ErrTransport (a network error or a 5xx/408/429
// response). Any other error, or exhausting retryAttempts, returns
// the failure to the caller unchanged so it can be demoted to a
// per-file warning.
func (u *Uploader) withTransportRetry(op string, fn func() error) error {
	delay := u.retryInitialWait
	var err error
	for attempt := 1; attempt <= u.retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransport) || attempt == u.retryAttempts {
			return err
		}
		u.logger.Debug("retrying after transport error", "op", op, "attempt", attempt, "delay", delay.String(), "error", err)
		time.Sleep(delay)
		delay *= 2
		if delay > u.retryMaxDelay {
			delay = u.retryMaxDelay
		}
	}
	return err
}
