// Package client implements the backup client's engine: the
// filesystem walker, chunker, uploader, generation builder, trust
// root, and restorer, wired together behind small, mockable
// interfaces.
package client

import "errors"

// ConfigInvalid and KeyMissing/KeyInsecure are raised by
// internal/config and internal/crypto respectively and are not
// redeclared here.
var (
	// ErrRootMissing means a configured backup root does not exist at
	// start. Fatal before any upload.
	ErrRootMissing = errors.New("backup root missing or unreadable")

	// ErrTransport is a network error or 5xx response from the chunk
	// server. Retried with bounded backoff; exhaustion becomes a
	// Warning for that chunk's file.
	ErrTransport = errors.New("chunk server transport error")

	// ErrSchemaUnsupported means a generation's schema version is not
	// understood by this build. Fatal for that generation.
	ErrSchemaUnsupported = errors.New("unsupported generation schema version")

	// ErrIntegrityFailure is an AEAD authentication failure, a
	// content-hash mismatch, or a referenced chunk that does not
	// exist. Fatal for the restore operation.
	ErrIntegrityFailure = errors.New("integrity failure")

	// ErrServerError means the server rejected a request in a way
	// that indicates a client-side bug rather than a transient
	// condition. Fatal.
	ErrServerError = errors.New("server rejected request")
)

// Warning is an unreadable file or directory, an unsupported file
// kind, or a fallback from a failed hard-link restore. Collected
// during a run and summarised at the end rather than aborting it.
type Warning struct {
	Path string
	Err  error
}

func (w *Warning) Error() string {
	return w.Path + ": " + w.Err.Error()
}

func (w *Warning) Unwrap() error {
	return w.Err
}

// NewCacheTagDiscoveredError names a newly discovered CACHEDIR.TAG. A
// new tag does not fail the run; the `backup` command exits non-zero
// when BackupResult.NewCacheTags is non-empty once the run has
// otherwise completed successfully.
type NewCacheTagDiscoveredError struct {
	Path string
}

func (e *NewCacheTagDiscoveredError) Error() string {
	return "new cache tag discovered: " + e.Path
}
