// Package filestore defines the unified interface for object storage backends.
//
// All providers (MinIO, AWS S3, in-memory) implement the Store interface.
// Callers depend only on this package, never on a specific provider package.
//
// Usage:
//
//	creds, err := filestore.CredentialRef{AccessKeyEnv: "AWS_ACCESS_KEY_ID", SecretKeyEnv: "AWS_SECRET_ACCESS_KEY"}.Resolve(os.LookupEnv)
//	if err != nil { ... }
//	cfg := filestore.DefaultConfig("localhost:9000", "xetra-1234", creds)
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	objs, err := store.ListObjects(ctx, cfg.Bucket, filestore.ListOptions{Prefix: "2021-04-22", Recursive: true})
package filestore

import (
	"context"
	"io"
)

// Store is the single interface all object storage providers implement.
//
// Implementations are not required to be safe for concurrent use; each
// documents its own guarantee.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// ListObjects returns the objects in bucket that match opts.
	// Virtual directory entries (common prefixes) are included when opts.Recursive is false.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key inside bucket
	// without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PutObject stores size bytes from body under key, replacing any
	// existing object at that key.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)
}
