// Package objectstore keeps uploaded documents and finished podcasts in a
// NATS JetStream object store bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const headerContentType = "Content-Type"

// ErrObjectNotFound indicates the key does not exist (or has expired).
var ErrObjectNotFound = errors.New("object not found")

// Options tunes the bucket. Zero values mean "no limit" and file storage.
type Options struct {
	Description string
	TTL         time.Duration
	MaxBytes    int64
	InMemory    bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// NatsObjectStore implements the core.ObjectStore interface using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string, opts Options) (*NatsObjectStore, error) {
	storage := nats.FileStorage
	if opts.InMemory {
		storage = nats.MemoryStorage
	}

	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("Storage for the %s bucket.", bucketName)
	}

	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: description,
		TTL:         opts.TTL,
		MaxBytes:    opts.MaxBytes,
		Storage:     storage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{bucket: bucketName, store: store}, nil
}

// Bucket returns the bucket name.
func (n *NatsObjectStore) Bucket() string {
	return n.bucket
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	reader, _, err := n.Open(ctx, key)
	if err != nil {
		return nil, err
	}

	data, readErr := io.ReadAll(reader)
	closeErr := reader.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload saves an object to the NATS object store.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	_, err := n.Put(ctx, key, "", bytes.NewReader(data))

	return err
}

// Put streams reader into key and records contentType in the object headers.
func (n *NatsObjectStore) Put(ctx context.Context, key, contentType string, reader io.Reader) (ObjectInfo, error) {
	meta := &nats.ObjectMeta{Name: key}
	if contentType != "" {
		meta.Headers = nats.Header{headerContentType: []string{contentType}}
	}

	info, err := n.store.Put(meta, reader, nats.Context(ctx))
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return toObjectInfo(info), nil
}

// Open returns a reader over the object; the caller must close it.
func (n *NatsObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := n.store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, ObjectInfo{}, n.wrapGetErr(key, err)
	}

	info, err := obj.Info()
	if err != nil {
		_ = obj.Close()

		return nil, ObjectInfo{}, n.wrapGetErr(key, err)
	}

	return obj, toObjectInfo(info), nil
}

// Stat returns metadata for key without reading it.
func (n *NatsObjectStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := n.store.GetInfo(key, nats.Context(ctx))
	if err != nil {
		return ObjectInfo{}, n.wrapGetErr(key, err)
	}

	return toObjectInfo(info), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (n *NatsObjectStore) Delete(_ context.Context, key string) error {
	err := n.store.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

func (n *NatsObjectStore) wrapGetErr(key string, err error) error {
	if errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("%w: '%s' in bucket '%s'", ErrObjectNotFound, key, n.bucket)
	}

	return fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
}

func toObjectInfo(info *nats.ObjectInfo) ObjectInfo {
	if info == nil {
		return ObjectInfo{}
	}

	objectInfo := ObjectInfo{
		Key:     info.Name,
		Size:    int64(info.Size),
		ModTime: info.ModTime,
	}

	if info.Headers != nil {
		objectInfo.ContentType = info.Headers.Get(headerContentType)
	}

	return objectInfo
}
