package chunkserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store is an alternate Store backend for operators who would rather
// let object storage carry chunk durability than manage disks under
// the server themselves. It lays chunks out as two objects per chunk,
// mirroring FilesystemStore's blob/meta split:
//
//	<prefix>/blobs/<id>
//	<prefix>/blobs/<id>.meta
//
// The label index is still kept locally (see labelIndex): S3 has no
// cheap secondary-index primitive, and re-deriving FindByLabel from a
// ListObjects-and-fetch-every-meta scan would make deduplication scale
// with total chunk count instead of with the size of one generation.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	index    *labelIndex
}

// S3StoreConfig configures NewS3Store.
type S3StoreConfig struct {
	Bucket string
	Prefix string
	// IndexPath is where the local label index is persisted; it must
	// be on a filesystem local to this server process.
	IndexPath string
}

// NewS3Store creates a Store backed by the given S3 client and bucket.
func NewS3Store(client *s3.Client, cfg S3StoreConfig) (*S3Store, error) {
	idx, err := newLabelIndex(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("loading chunk index: %w", err)
	}
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		index:    idx,
	}, nil
}

func (s *S3Store) blobKey(id ID) string {
	if s.prefix == "" {
		return "blobs/" + string(id)
	}
	return s.prefix + "/blobs/" + string(id)
}

func (s *S3Store) metaKey(id ID) string {
	return s.blobKey(id) + ".meta"
}

// Put implements Store.
func (s *S3Store) Put(meta Meta, r io.Reader) (ID, error) {
	ctx := context.Background()
	id := NewID()

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blobKey(id)),
		Body:   r,
	}); err != nil {
		return "", fmt.Errorf("uploading chunk blob: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding chunk metadata: %w", err)
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(id)),
		Body:   bytes.NewReader(metaJSON),
	}); err != nil {
		return "", fmt.Errorf("uploading chunk metadata: %w", err)
	}

	if err := s.index.Put(meta.Label, id); err != nil {
		return "", fmt.Errorf("indexing chunk: %w", err)
	}
	return id, nil
}

// Get implements Store.
func (s *S3Store) Get(id ID, w io.Writer) (Meta, error) {
	meta, err := s.readMeta(id)
	if err != nil {
		return Meta{}, err
	}

	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blobKey(id)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return Meta{}, NewNotFoundError(id)
		}
		return Meta{}, fmt.Errorf("downloading chunk blob: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return Meta{}, fmt.Errorf("reading chunk blob: %w", err)
	}
	return meta, nil
}

func (s *S3Store) readMeta(id ID) (Meta, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(id)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return Meta{}, NewNotFoundError(id)
		}
		return Meta{}, fmt.Errorf("downloading chunk metadata: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Meta{}, fmt.Errorf("reading chunk metadata: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parsing chunk metadata: %w", err)
	}
	return meta, nil
}

// FindByLabel implements Store.
func (s *S3Store) FindByLabel(label string) (map[ID]Meta, error) {
	ids := s.index.Lookup(label)
	out := make(map[ID]Meta, len(ids))
	for _, id := range ids {
		meta, err := s.readMeta(id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out[id] = meta
	}
	return out, nil
}

// Delete implements Store.
func (s *S3Store) Delete(id ID) error {
	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blobKey(id)),
	}); err != nil {
		return fmt.Errorf("removing chunk blob: %w", err)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(id)),
	}); err != nil {
		return fmt.Errorf("removing chunk metadata: %w", err)
	}
	return s.index.Remove(meta.Label, id)
}

// Close implements Store.
func (s *S3Store) Close() error { return nil }

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

var _ Store = (*S3Store)(nil)
