package connector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/xetra/internal/codec"
	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/filestore"
	"github.com/koustreak/xetra/internal/filestore/memory"
	"github.com/koustreak/xetra/internal/logger"
	"github.com/koustreak/xetra/internal/table"
)

const (
	testEndpoint = "https://s3.us-east-1.amazonaws.com"
	testBucket   = "xetra-test"
)

type fixture struct {
	store *memory.Driver
	conn  *Connector
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(testBucket)
	logs := &bytes.Buffer{}
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: logs})
	return &fixture{
		store: store,
		conn:  New(store, testEndpoint, testBucket, log),
		logs:  logs,
	}
}

func (f *fixture) put(t *testing.T, key, body string) {
	t.Helper()
	_, err := f.store.PutObject(context.Background(), testBucket, key, strings.NewReader(body), int64(len(body)), filestore.PutOptions{})
	require.NoError(t, err)
}

func (f *fixture) entries(t *testing.T) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(f.logs.Bytes()))
	for sc.Scan() {
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	return out
}

func (f *fixture) keys(t *testing.T) []string {
	t.Helper()
	keys, err := f.conn.ListFilesInPrefix(context.Background(), "")
	require.NoError(t, err)
	return keys
}

func TestListFilesInPrefix_KeepsKeysEndingInSlash(t *testing.T) {
	f := newFixture(t)
	f.put(t, "2021-04-22/", "")
	f.put(t, "2021-04-22/a.csv", "col1\nv\n")

	got, err := f.conn.ListFilesInPrefix(context.Background(), "2021-04-22")
	require.NoError(t, err)

	assert.Equal(t, []string{"2021-04-22/", "2021-04-22/a.csv"}, got)
}

func TestListFilesInPrefix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	csvContent := "col1,col2\nvalA,valB\n"
	f.put(t, "prefix/test1.csv", csvContent)
	f.put(t, "prefix/test2.csv", csvContent)
	f.put(t, "other/test3.csv", csvContent)

	got, err := f.conn.ListFilesInPrefix(ctx, "prefix/")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"prefix/test1.csv", "prefix/test2.csv"}, got)

	got, err = f.conn.ListFilesInPrefix(ctx, "no-prefix/")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = f.conn.ListFilesInPrefix(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestListFilesInPrefix_SubsetProperty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	all := []string{"2021-04-21/a.csv", "2021-04-22/a.csv", "2021-04-22/b.csv", "2021-04-2", "report1/x.parquet"}
	for _, k := range all {
		f.put(t, k, "h\nv\n")
	}

	for _, prefix := range []string{"", "2021-04-2", "2021-04-22/", "2021-04-22/b", "report", "zzz"} {
		got, err := f.conn.ListFilesInPrefix(ctx, prefix)
		require.NoError(t, err)

		var want []string
		for _, k := range all {
			if strings.HasPrefix(k, prefix) {
				want = append(want, k)
			}
		}
		assert.ElementsMatch(t, want, got, "prefix %q", prefix)
	}
}

func TestReadTable(t *testing.T) {
	f := newFixture(t)
	f.put(t, "test.csv", "col1,col2\nval1,val2\n")

	tbl, err := f.conn.ReadTable(context.Background(), "test.csv")
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.NumRows())
	assert.Equal(t, 2, tbl.NumCols())
	assert.Equal(t, []string{"col1", "col2"}, tbl.Columns())
	v, _ := tbl.Value(0, "col1")
	assert.Equal(t, "val1", v)
	v, _ = tbl.Value(0, "col2")
	assert.Equal(t, "val2", v)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "test.csv", entries[0]["key"])
	assert.Equal(t, testBucket, entries[0]["bucket"])
}

func TestReadTable_Options(t *testing.T) {
	f := newFixture(t)
	f.put(t, "latin.csv", "Name;Ort\nB\xf6rse;Frankfurt\n")

	tbl, err := f.conn.ReadTable(context.Background(), "latin.csv", WithEncoding("latin1"), WithDelimiter(';'))
	require.NoError(t, err)

	v, _ := tbl.Value(0, "Name")
	assert.Equal(t, "Börse", v)
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		key   string
		opts  []ReadOption
		check func(error) bool
	}{
		{
			name:  "missing key",
			key:   "absent.csv",
			check: errs.IsNotFound,
		},
		{
			name:  "uneven rows",
			key:   "ragged.csv",
			body:  "col1,col2\nval1\n",
			check: errs.IsParse,
		},
		{
			name:  "invalid utf-8",
			key:   "binary.csv",
			body:  "col1\n\xc3\x28\n",
			check: errs.IsDecode,
		},
		{
			name:  "json read is unsupported",
			key:   "data.json",
			body:  "[]",
			opts:  []ReadOption{WithFormat(codec.FormatJSON)},
			check: errs.IsUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.body != "" {
				f.put(t, tt.key, tt.body)
			}

			tbl, err := f.conn.ReadTable(context.Background(), tt.key, tt.opts...)

			require.Error(t, err)
			assert.Nil(t, tbl)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestReadTable_ParseErrorNamesKey(t *testing.T) {
	f := newFixture(t)
	f.put(t, "ragged.csv", "a,b\n1,2,3\n")

	_, err := f.conn.ReadTable(context.Background(), "ragged.csv")

	assert.Equal(t, "ragged.csv", errs.SubjectOf(err))
}

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.MustNew("isin", "date", "closing_price_eur")
	require.NoError(t, tbl.Append("AT0000A0E9W5", "2021-04-22", 20.21))
	require.NoError(t, tbl.Append("DE000A0DJ6J9", "2021-04-22", 33.4))
	return tbl
}

func TestWriteTable_CSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := sampleTable(t)

	ok, err := f.conn.WriteTable(ctx, src, "report1/out.csv", codec.FormatCSV)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.conn.ReadTable(ctx, "report1/out.csv")
	require.NoError(t, err)
	assert.Equal(t, src.Columns(), got.Columns())
	assert.Equal(t, []any{"AT0000A0E9W5", "2021-04-22", "20.21"}, got.Row(0))

	entries := f.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "writing file", entries[0]["message"])
	assert.Equal(t, testEndpoint, entries[0]["endpoint"])
	assert.Equal(t, testBucket, entries[0]["bucket"])
	assert.Equal(t, "report1/out.csv", entries[0]["key"])
}

func TestWriteTable_ParquetRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := sampleTable(t)

	ok, err := f.conn.WriteTable(ctx, src, "report1/out.parquet", codec.FormatParquet)
	require.NoError(t, err)
	require.True(t, ok)

	info, err := f.store.StatObject(ctx, testBucket, "report1/out.parquet")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.apache.parquet", info.ContentType)

	got, err := f.conn.ReadTable(ctx, "report1/out.parquet", WithFormat(codec.FormatParquet))
	require.NoError(t, err)
	assert.Equal(t, src.Rows(), got.Rows())
}

func TestWriteTable_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := sampleTable(t)

	_, err := f.conn.WriteTable(ctx, src, "out.csv", codec.FormatCSV)
	require.NoError(t, err)
	first, err := f.store.StatObject(ctx, testBucket, "out.csv")
	require.NoError(t, err)

	_, err = f.conn.WriteTable(ctx, src, "out.csv", codec.FormatCSV)
	require.NoError(t, err)
	second, err := f.store.StatObject(ctx, testBucket, "out.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"out.csv"}, f.keys(t))
	assert.Equal(t, first.ETag, second.ETag)
	assert.Equal(t, first.Size, second.Size)
}

func TestWriteTable_EmptyTableIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, format := range []codec.Format{codec.FormatCSV, codec.FormatParquet, codec.FormatJSON} {
		ok, err := f.conn.WriteTable(ctx, table.MustNew("a", "b"), "empty."+format.String(), format)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := f.conn.WriteTable(ctx, nil, "nil.csv", codec.FormatCSV)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 0, f.store.Puts())
	assert.Empty(t, f.keys(t))
	_, err = f.store.StatObject(ctx, testBucket, "empty.csv")
	assert.True(t, errs.IsNotFound(err))
}

func TestWriteTable_UnsupportedFormat(t *testing.T) {
	for _, format := range []codec.Format{codec.FormatJSON, codec.Format("xlsx")} {
		t.Run(format.String(), func(t *testing.T) {
			f := newFixture(t)

			ok, err := f.conn.WriteTable(context.Background(), sampleTable(t), "out", format)

			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, errs.IsUnsupportedFormat(err))
			assert.Equal(t, format.String(), errs.SubjectOf(err))
			assert.Equal(t, 0, f.store.Puts())
			assert.Empty(t, f.logs.String())
		})
	}
}

func TestWriteTable_EncodeFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	tbl := table.MustNew("v")
	require.NoError(t, tbl.Append("text"))
	require.NoError(t, tbl.Append(true))

	ok, err := f.conn.WriteTable(context.Background(), tbl, "bad.parquet", codec.FormatParquet)

	assert.False(t, ok)
	assert.True(t, errs.IsEncode(err))
	assert.Equal(t, 0, f.store.Puts())
}

// failingStore simulates a backend that is down for writes.
type failingStore struct {
	*memory.Driver
}

func (failingStore) PutObject(context.Context, string, string, io.Reader, int64, filestore.PutOptions) (*filestore.ObjectInfo, error) {
	return nil, errs.Wrap(errs.ErrKindStoreUnavailable, "failed to put object", errors.New("connection refused"))
}

func TestWriteTable_StoreUnavailablePropagates(t *testing.T) {
	store := failingStore{Driver: memory.New(testBucket)}
	conn := New(store, testEndpoint, testBucket, logger.Nop())

	ok, err := conn.WriteTable(context.Background(), sampleTable(t), "out.csv", codec.FormatCSV)

	assert.False(t, ok)
	assert.True(t, errs.IsStoreUnavailable(err))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, &filestore.Config{Provider: filestore.ProviderS3, Bucket: testBucket}, logger.Nop())
	assert.True(t, errs.IsConfig(err), "missing credentials must be a config error")

	conn, err := Open(ctx, &filestore.Config{Provider: filestore.ProviderMemory, Bucket: testBucket}, logger.Nop())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, testBucket, conn.Bucket())

	ok, err := conn.WriteTable(ctx, sampleTable(t), "a.csv", codec.FormatCSV)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithWriteOptions(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testBucket)
	conn := New(store, "", testBucket, logger.Nop(), WithWriteOptions(codec.Options{Delimiter: ';'}))

	_, err := conn.WriteTable(ctx, sampleTable(t), "semi.csv", codec.FormatCSV)
	require.NoError(t, err)

	obj, err := store.GetObject(ctx, testBucket, "semi.csv")
	require.NoError(t, err)
	body, _ := io.ReadAll(obj)
	assert.True(t, strings.HasPrefix(string(body), "isin;date;closing_price_eur\n"))
}

func TestWithRegistry(t *testing.T) {
	reg := codec.NewRegistry()
	reg.Register(codec.Codec{
		Format:      codec.FormatJSON,
		ContentType: "application/json",
		Encode: func(w io.Writer, t *table.Table, _ codec.Options) error {
			return json.NewEncoder(w).Encode(t.Rows())
		},
	})
	store := memory.New(testBucket)
	conn := New(store, "", testBucket, logger.Nop(), WithRegistry(reg))

	ok, err := conn.WriteTable(context.Background(), sampleTable(t), "out.json", codec.FormatJSON)

	require.NoError(t, err)
	assert.True(t, ok)
}
