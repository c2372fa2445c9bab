package xetra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/table"
)

func sourceTable(t *testing.T, rows ...[]any) *table.Table {
	t.Helper()
	src := table.MustNew(SourceColumns...)
	for _, r := range rows {
		require.NoError(t, src.Append(r...))
	}
	return src
}

// ISIN, Mnemonic, Date, Time, StartPrice, MaxPrice, MinPrice, EndPrice, TradedVolume
var trades = [][]any{
	{"DE000A", "AAA", "2021-04-01", "09:00", "11", "12.5", "10.9", "12.5", "50"},
	{"DE000A", "AAA", "2021-04-01", "08:00", "10", "11.2", "9.5", "11", "100"},
	{"DE000B", "BBB", "2021-04-02", "08:00", "5", "5.001", "3.999", "4", "7"},
	{"DE000A", "AAA", "2021-04-02", "08:00", "12.5", "14", "12", "13.75", "10"},
}

func TestTransformReport1(t *testing.T) {
	got, err := TransformReport1(sourceTable(t, trades...), "2021-04-01")
	require.NoError(t, err)

	assert.Equal(t, ReportColumns, got.Columns())
	assert.Equal(t, [][]any{
		{"DE000A", "2021-04-01", 10.0, 12.5, 9.5, 12.5, int64(150), nil},
		{"DE000A", "2021-04-02", 12.5, 13.75, 12.0, 14.0, int64(10), 10.0},
		{"DE000B", "2021-04-02", 5.0, 4.0, 4.0, 5.0, int64(7), nil},
	}, got.Rows())
}

func TestTransformReport1_FiltersBeforeMinDate(t *testing.T) {
	got, err := TransformReport1(sourceTable(t, trades...), "2021-04-02")
	require.NoError(t, err)

	require.Equal(t, 2, got.NumRows())
	change, _ := got.Value(0, TrgChangePrevPct)
	assert.Equal(t, 10.0, change, "previous closing still comes from the filtered day")
	date, _ := got.Value(1, TrgDate)
	assert.Equal(t, "2021-04-02", date)
}

func TestTransformReport1_Empty(t *testing.T) {
	got, err := TransformReport1(table.MustNew(SourceColumns...), "2021-04-01")
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Equal(t, ReportColumns, got.Columns())

	got, err = TransformReport1(nil, "2021-04-01")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestTransformReport1_ZeroPreviousClosing(t *testing.T) {
	src := sourceTable(t,
		[]any{"DE000C", "CCC", "2021-04-01", "08:00", "0", "0", "0", "0", "1"},
		[]any{"DE000C", "CCC", "2021-04-02", "08:00", "1", "1", "1", "1", "1"},
	)

	got, err := TransformReport1(src, "2021-04-02")
	require.NoError(t, err)
	change, _ := got.Value(0, TrgChangePrevPct)
	assert.Nil(t, change)
}

func TestTransformReport1_Errors(t *testing.T) {
	partial := table.MustNew(SrcISIN, SrcDate)
	require.NoError(t, partial.Append("DE000A", "2021-04-01"))

	tests := []struct {
		name    string
		src     *table.Table
		subject string
	}{
		{
			name:    "missing column",
			src:     partial,
			subject: SrcMnemonic,
		},
		{
			name:    "bad price",
			src:     sourceTable(t, []any{"DE000A", "AAA", "2021-04-01", "08:00", "n/a", "1", "1", "1", "1"}),
			subject: SrcStartPrice,
		},
		{
			name:    "fractional volume",
			src:     sourceTable(t, []any{"DE000A", "AAA", "2021-04-01", "08:00", "1", "1", "1", "1", "1.5"}),
			subject: SrcTradedVolume,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TransformReport1(tt.src, "2021-04-01")
			require.Error(t, err)
			assert.True(t, errs.IsParse(err), "got %v", err)
			assert.Equal(t, tt.subject, errs.SubjectOf(err))
		})
	}
}
