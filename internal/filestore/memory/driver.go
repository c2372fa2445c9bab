// Package memory provides an in-process filestore.Store.
//
// It backs tests and dry runs. Buckets are created on first write, or up
// front with CreateBucket; reading from an unknown bucket is a not-found
// error like it is on a real backend.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/filestore"
)

type entry struct {
	data []byte
	info filestore.ObjectInfo
}

// Driver is an in-memory filestore.Store. It is safe for concurrent use.
type Driver struct {
	mu      sync.RWMutex
	buckets map[string]map[string]entry
	puts    int
	now     func() time.Time
}

var _ filestore.Store = (*Driver)(nil)

// New returns an empty store holding the given buckets.
func New(buckets ...string) *Driver {
	d := &Driver{
		buckets: make(map[string]map[string]entry),
		now:     time.Now,
	}
	for _, b := range buckets {
		d.CreateBucket(b)
	}
	return d
}

// CreateBucket adds an empty bucket if it does not exist yet.
func (d *Driver) CreateBucket(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buckets[name]; !ok {
		d.buckets[name] = make(map[string]entry)
	}
}

// Puts returns how many PutObject calls succeeded.
func (d *Driver) Puts() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.puts
}

// Ping always succeeds.
func (d *Driver) Ping(context.Context) error { return nil }

// Close is a no-op.
func (d *Driver) Close() error { return nil }

// ListObjects returns matching keys in lexical order, like S3 does.
func (d *Driver) ListObjects(_ context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	objs, ok := d.buckets[bucket]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "bucket does not exist").WithSubject(bucket)
	}

	keys := make([]string, 0, len(objs))
	for k := range objs {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	results := make([]filestore.ObjectInfo, 0, len(keys))
	seen := make(map[string]bool)
	for _, k := range keys {
		if !opts.Recursive {
			rest := k[len(opts.Prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				dir := opts.Prefix + rest[:i+1]
				if !seen[dir] {
					seen[dir] = true
					results = append(results, filestore.ObjectInfo{Key: dir, Size: -1, IsDir: true})
				}
				continue
			}
		}
		results = append(results, objs[k].info)
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}

func (d *Driver) lookup(bucket, key string) (entry, error) {
	objs, ok := d.buckets[bucket]
	if !ok {
		return entry{}, errs.New(errs.ErrKindNotFound, "bucket does not exist").WithSubject(bucket)
	}
	e, ok := objs[key]
	if !ok {
		return entry{}, errs.New(errs.ErrKindNotFound, "object does not exist").WithSubject(key)
	}
	return e, nil
}

// GetObject returns a reader over a snapshot of the object body.
func (d *Driver) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, err := d.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := e.info
	return &object{Reader: bytes.NewReader(e.data), info: &info}, nil
}

// StatObject returns the stored metadata for key.
func (d *Driver) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, err := d.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := e.info
	return &info, nil
}

// PutObject stores a copy of body, replacing any existing object.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to put object", err).WithSubject(key)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStoreUnavailable, "failed to read upload body", err).WithSubject(key)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, errs.New(errs.ErrKindInvalidInput, "body size does not match declared size").WithSubject(key)
	}

	sum := md5.Sum(data)
	info := filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: d.now().UTC(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	objs, ok := d.buckets[bucket]
	if !ok {
		objs = make(map[string]entry)
		d.buckets[bucket] = objs
	}
	objs[key] = entry{data: data, info: info}
	d.puts++

	out := info
	return &out, nil
}

type object struct {
	*bytes.Reader
	info *filestore.ObjectInfo
}

func (o *object) Close() error { return nil }

func (o *object) Info() *filestore.ObjectInfo { return o.info }
