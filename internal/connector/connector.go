// Package connector bridges object storage and the table model.
//
// A Connector owns one store session bound to a bucket and exposes
// prefix listing, object-to-table decoding and table-to-object encoding.
// It performs no retries, no locking and sets no timeouts: callers that
// need a deadline put it on the context. A Connector is meant for a single
// owner; sharing it across goroutines is only as safe as the underlying
// driver and is not guaranteed.
package connector

import (
	"bytes"
	"context"
	"errors"

	"github.com/koustreak/xetra/internal/codec"
	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/filestore"
	"github.com/koustreak/xetra/internal/filestore/memory"
	"github.com/koustreak/xetra/internal/filestore/minio"
	"github.com/koustreak/xetra/internal/filestore/s3"
	"github.com/koustreak/xetra/internal/logger"
	"github.com/koustreak/xetra/internal/table"
)

// Connector reads and writes tables in one bucket.
type Connector struct {
	store     filestore.Store
	endpoint  string
	bucket    string
	log       *logger.Logger
	codecs    *codec.Registry
	writeOpts codec.Options
}

// Option customises a Connector.
type Option func(*Connector)

// WithRegistry replaces the default codec registry.
func WithRegistry(r *codec.Registry) Option {
	return func(c *Connector) { c.codecs = r }
}

// WithWriteOptions sets the text options used when encoding delimited output.
func WithWriteOptions(o codec.Options) Option {
	return func(c *Connector) { c.writeOpts = o }
}

// Open validates cfg, opens the driver named by cfg.Provider and returns a
// Connector bound to cfg.Bucket. The session is never re-established; if
// it breaks, open a new Connector.
func Open(ctx context.Context, cfg *filestore.Config, log *logger.Logger, opts ...Option) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store filestore.Store
		err   error
	)
	switch cfg.Provider {
	case filestore.ProviderMinIO:
		store, err = minio.New(ctx, cfg)
	case filestore.ProviderS3:
		store, err = s3.New(ctx, cfg)
	case filestore.ProviderMemory:
		store = memory.New(cfg.Bucket)
	}
	if err != nil {
		return nil, err
	}

	return New(store, cfg.Endpoint, cfg.Bucket, log, opts...), nil
}

// New wraps an already opened store.
func New(store filestore.Store, endpoint, bucket string, log *logger.Logger, opts ...Option) *Connector {
	if log == nil {
		log = logger.Global()
	}
	c := &Connector{
		store:     store,
		endpoint:  endpoint,
		bucket:    bucket,
		log:       log,
		codecs:    codec.NewRegistry(),
		writeOpts: codec.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bucket returns the bucket this connector targets.
func (c *Connector) Bucket() string { return c.bucket }

// Endpoint returns the configured service endpoint.
func (c *Connector) Endpoint() string { return c.endpoint }

// Close releases the store session.
func (c *Connector) Close() error { return c.store.Close() }

// ListFilesInPrefix returns every key in the bucket that starts with
// prefix, in the store's native order, including keys that end in "/".
// An empty prefix matches all keys.
// No match yields an empty slice, not an error.
func (c *Connector) ListFilesInPrefix(ctx context.Context, prefix string) ([]string, error) {
	objs, err := c.store.ListObjects(ctx, c.bucket, filestore.ListOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		if o.IsDir {
			continue
		}
		keys = append(keys, o.Key)
	}
	return keys, nil
}

// ReadOption customises ReadTable.
type ReadOption func(*readConfig)

type readConfig struct {
	format codec.Format
	opts   codec.Options
}

// WithEncoding sets the charset of the stored text. Default "utf-8".
func WithEncoding(name string) ReadOption {
	return func(r *readConfig) { r.opts.Encoding = name }
}

// WithDelimiter sets the field separator of delimited text. Default ','.
func WithDelimiter(d rune) ReadOption {
	return func(r *readConfig) { r.opts.Delimiter = d }
}

// WithFormat selects the decoder. Default codec.FormatCSV.
func WithFormat(f codec.Format) ReadOption {
	return func(r *readConfig) { r.format = f }
}

// ReadTable fetches key and decodes it into a table. Delimited text uses
// its first record as the header and rejects records with a different
// field count. One info entry naming the key is logged before the object
// is fetched.
func (c *Connector) ReadTable(ctx context.Context, key string, opts ...ReadOption) (*table.Table, error) {
	rc := readConfig{format: codec.FormatCSV, opts: codec.DefaultOptions()}
	for _, opt := range opts {
		opt(&rc)
	}

	cd, err := c.codecs.Lookup(rc.format)
	if err != nil {
		return nil, err
	}

	c.log.ForObject(c.endpoint, c.bucket, key).Info("reading file")

	obj, err := c.store.GetObject(ctx, c.bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	t, err := cd.Decode(obj, rc.opts)
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) && e.Subject == "" {
			return nil, e.WithSubject(key)
		}
		return nil, err
	}
	return t, nil
}

// WriteTable encodes t with the codec for format and stores it under key,
// replacing any existing object. It reports whether a write happened: a
// table without rows is skipped and (false, nil) is returned. An
// unsupported format fails before anything is written.
func (c *Connector) WriteTable(ctx context.Context, t *table.Table, key string, format codec.Format) (bool, error) {
	if t == nil || t.Empty() {
		c.log.With().Str("key", key).Logger().Info("no data to write")
		return false, nil
	}

	cd, err := c.codecs.Lookup(format)
	if err != nil {
		return false, err
	}

	var buf bytes.Buffer
	if err := cd.Encode(&buf, t, c.writeOpts); err != nil {
		return false, err
	}

	c.log.ForObject(c.endpoint, c.bucket, key).Info("writing file")

	if _, err := c.store.PutObject(ctx, c.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		filestore.PutOptions{ContentType: cd.ContentType}); err != nil {
		return false, err
	}
	return true, nil
}
