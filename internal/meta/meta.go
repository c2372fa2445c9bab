// Package meta tracks which source dates the job has already processed.
//
// The meta file is a CSV object in the target bucket with one row per
// processed source date and the time it was processed.
package meta

import (
	"context"
	"time"

	"github.com/koustreak/xetra/internal/codec"
	"github.com/koustreak/xetra/internal/connector"
	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/table"
)

const (
	DateFormat        = "2006-01-02"
	ProcessDateFormat = "2006-01-02 15:04:05"
	SourceDateColumn  = "source_date"
	ProcessColumn     = "datetime_of_processing"
	FileFormat        = codec.FormatCSV
)

// ReturnDateList works out which source dates still need processing.
//
// Candidate dates run from the day before firstDate through today; the
// extra day provides the previous closing price. Without a meta file every
// candidate is returned and minDate is firstDate. Otherwise, if d is the
// earliest candidate after the first that the meta file does not list,
// the result is every candidate from d-1 on and minDate is d. When nothing
// is missing both results are empty.
func ReturnDateList(ctx context.Context, conn *connector.Connector, firstDate time.Time, metaKey string, today time.Time) (string, []string, error) {
	start := truncateDay(firstDate).AddDate(0, 0, -1)
	today = truncateDay(today)
	candidates := days(start, today)

	processed, err := readProcessed(ctx, conn, metaKey)
	if errs.IsNotFound(err) {
		return truncateDay(firstDate).Format(DateFormat), formatDays(candidates), nil
	}
	if err != nil {
		return "", nil, err
	}

	for i, d := range candidates {
		if i == 0 || processed[d.Format(DateFormat)] {
			continue
		}
		return d.Format(DateFormat), formatDays(candidates[i-1:]), nil
	}
	return "", []string{}, nil
}

// UpdateMetaFile appends one row per processed date, all stamped with now,
// and rewrites the meta file.
func UpdateMetaFile(ctx context.Context, conn *connector.Connector, dates []string, metaKey string, now time.Time) error {
	if len(dates) == 0 {
		return nil
	}

	fresh := table.MustNew(SourceDateColumn, ProcessColumn)
	stamp := now.Format(ProcessDateFormat)
	for _, d := range dates {
		if _, err := time.Parse(DateFormat, d); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "source date has the wrong format", err).WithSubject(d)
		}
		if err := fresh.Append(d, stamp); err != nil {
			return err
		}
	}

	existing, err := conn.ReadTable(ctx, metaKey)
	switch {
	case errs.IsNotFound(err):
		existing = table.MustNew(SourceDateColumn, ProcessColumn)
	case err != nil:
		return err
	}
	if err := checkColumns(existing, metaKey); err != nil {
		return err
	}
	if err := existing.Concat(fresh); err != nil {
		return err
	}

	_, err = conn.WriteTable(ctx, existing, metaKey, FileFormat)
	return err
}

func readProcessed(ctx context.Context, conn *connector.Connector, metaKey string) (map[string]bool, error) {
	t, err := conn.ReadTable(ctx, metaKey)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(t, metaKey); err != nil {
		return nil, err
	}

	col, _ := t.Column(SourceDateColumn)
	out := make(map[string]bool, len(col))
	for _, v := range col {
		s, _ := v.(string)
		d, err := time.Parse(DateFormat, s)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindParse, "meta file holds an invalid source date", err).WithSubject(metaKey)
		}
		out[d.Format(DateFormat)] = true
	}
	return out, nil
}

func checkColumns(t *table.Table, metaKey string) error {
	cols := t.Columns()
	if len(cols) != 2 || cols[0] != SourceDateColumn || cols[1] != ProcessColumn {
		return errs.New(errs.ErrKindParse, "meta file has unexpected columns").WithSubject(metaKey)
	}
	return nil
}

func days(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDays(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Format(DateFormat)
	}
	return out
}
