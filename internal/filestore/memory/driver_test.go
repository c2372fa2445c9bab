package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/filestore"
)

func put(t *testing.T, d *Driver, bucket, key, body string) {
	t.Helper()
	_, err := d.PutObject(context.Background(), bucket, key, strings.NewReader(body), int64(len(body)), filestore.PutOptions{})
	require.NoError(t, err)
}

func keys(infos []filestore.ObjectInfo) []string {
	out := make([]string, len(infos))
	for i, o := range infos {
		out[i] = o.Key
	}
	return out
}

func TestListObjects(t *testing.T) {
	ctx := context.Background()
	d := New("b")
	put(t, d, "b", "prefix/test2.csv", "x")
	put(t, d, "b", "prefix/test1.csv", "x")
	put(t, d, "b", "prefix/sub/test3.csv", "x")
	put(t, d, "b", "prefixed.csv", "x")
	put(t, d, "b", "other/test.csv", "x")

	tests := []struct {
		name string
		opts filestore.ListOptions
		want []string
	}{
		{
			name: "recursive prefix",
			opts: filestore.ListOptions{Prefix: "prefix/", Recursive: true},
			want: []string{"prefix/sub/test3.csv", "prefix/test1.csv", "prefix/test2.csv"},
		},
		{
			name: "byte prefix is not a path match",
			opts: filestore.ListOptions{Prefix: "prefix", Recursive: true},
			want: []string{"prefix/sub/test3.csv", "prefix/test1.csv", "prefix/test2.csv", "prefixed.csv"},
		},
		{
			name: "non recursive groups directories",
			opts: filestore.ListOptions{Prefix: "prefix/"},
			want: []string{"prefix/sub/", "prefix/test1.csv", "prefix/test2.csv"},
		},
		{
			name: "limit",
			opts: filestore.ListOptions{Prefix: "prefix/", Recursive: true, Limit: 1},
			want: []string{"prefix/sub/test3.csv"},
		},
		{
			name: "no match",
			opts: filestore.ListOptions{Prefix: "no-prefix/", Recursive: true},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.ListObjects(ctx, "b", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(got))
		})
	}
}

func TestGetPutStat(t *testing.T) {
	ctx := context.Background()
	d := New("b")

	_, err := d.GetObject(ctx, "b", "test.csv")
	assert.True(t, errs.IsNotFound(err))

	put(t, d, "b", "test.csv", "col1,col2\nval1,val2\n")
	put(t, d, "b", "test.csv", "col1\nval1\n")

	obj, err := d.GetObject(ctx, "b", "test.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	assert.Equal(t, "col1\nval1\n", string(body))

	info, err := d.StatObject(ctx, "b", "test.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)
	assert.NotEmpty(t, info.ETag)
	assert.Equal(t, 2, d.Puts())
}

func TestUnknownBucket(t *testing.T) {
	d := New()

	_, err := d.ListObjects(context.Background(), "missing", filestore.ListOptions{})
	assert.True(t, errs.IsNotFound(err))

	_, err = d.StatObject(context.Background(), "missing", "k")
	assert.True(t, errs.IsNotFound(err))
}

func TestPutObject_SizeMismatch(t *testing.T) {
	d := New("b")

	_, err := d.PutObject(context.Background(), "b", "k", strings.NewReader("abc"), 5, filestore.PutOptions{})

	assert.True(t, errs.IsInvalidInput(err))
	assert.Equal(t, 0, d.Puts())
}

func TestPutObject_CancelledContext(t *testing.T) {
	d := New("b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.PutObject(ctx, "b", "k", strings.NewReader("abc"), 3, filestore.PutOptions{})

	assert.True(t, errs.IsTimeout(err))
}
