// Package xetra implements the daily report1 ETL job over Xetra trading
// files: extract by date prefix, aggregate per instrument and day, load
// the report and record the processed dates in the meta file.
package xetra

import (
	"context"
	"time"

	"github.com/koustreak/xetra/internal/codec"
	"github.com/koustreak/xetra/internal/config"
	"github.com/koustreak/xetra/internal/connector"
	"github.com/koustreak/xetra/internal/logger"
	"github.com/koustreak/xetra/internal/meta"
	"github.com/koustreak/xetra/internal/table"
)

// Report1 runs the report1 job between a source and a target bucket.
type Report1 struct {
	src *connector.Connector
	trg *connector.Connector
	cfg *config.Config
	log *logger.Logger
	now func() time.Time
}

// Result summarises one run.
type Result struct {
	MinDate string
	Dates   []string
	Key     string
	Rows    int
	Written bool
}

// NewReport1 builds the job. cfg must already be validated.
func NewReport1(src, trg *connector.Connector, cfg *config.Config, log *logger.Logger) *Report1 {
	if log == nil {
		log = logger.Global()
	}
	return &Report1{src: src, trg: trg, cfg: cfg, log: log, now: time.Now}
}

// SetClock replaces the time source used for date lists, report keys and
// meta timestamps.
func (r *Report1) SetClock(now func() time.Time) { r.now = now }

// Extract reads every object under each date prefix and concatenates them.
// Dates without objects contribute nothing.
func (r *Report1) Extract(ctx context.Context, dates []string) (*table.Table, error) {
	opts := r.cfg.ReadOptions()
	all := table.MustNew()

	for _, date := range dates {
		keys, err := r.src.ListFilesInPrefix(ctx, date)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			t, err := r.src.ReadTable(ctx, key,
				connector.WithEncoding(opts.Encoding),
				connector.WithDelimiter(opts.Delimiter))
			if err != nil {
				return nil, err
			}
			sel, err := t.Select(SourceColumns...)
			if err != nil {
				return nil, err
			}
			if err := all.Concat(sel); err != nil {
				return nil, err
			}
		}
	}
	return all, nil
}

// Load writes the report under a timestamped key and, when something was
// written, records dates in the meta file.
func (r *Report1) Load(ctx context.Context, report *table.Table, dates []string) (string, bool, error) {
	now := r.now()
	format := r.cfg.LoadFormat()
	key := r.cfg.Load.KeyPrefix + now.Format(r.cfg.Load.KeyDateFormat) + "." + extension(format)

	written, err := r.trg.WriteTable(ctx, report, key, format)
	if err != nil || !written {
		return key, written, err
	}
	if err := meta.UpdateMetaFile(ctx, r.trg, dates, r.cfg.Meta.Key, now); err != nil {
		return key, true, err
	}
	return key, true, nil
}

// Run executes extract, transform and load for every date not yet listed
// in the meta file.
func (r *Report1) Run(ctx context.Context) (*Result, error) {
	r.log.Info("xetra report1 job started")

	minDate, dates, err := meta.ReturnDateList(ctx, r.trg, r.cfg.FirstDate(), r.cfg.Meta.Key, r.now())
	if err != nil {
		return nil, err
	}
	res := &Result{MinDate: minDate, Dates: dates}
	if len(dates) == 0 {
		r.log.Info("no new dates to process")
		return res, nil
	}

	src, err := r.Extract(ctx, dates)
	if err != nil {
		return nil, err
	}
	report, err := TransformReport1(src, minDate)
	if err != nil {
		return nil, err
	}
	res.Rows = report.NumRows()
	r.log.With().
		Str("min_date", minDate).
		Int("source_rows", src.NumRows()).
		Int("report_rows", res.Rows).
		Logger().Info("report1 transformed")

	processed := make([]string, 0, len(dates))
	for _, d := range dates {
		if d >= minDate {
			processed = append(processed, d)
		}
	}
	res.Key, res.Written, err = r.Load(ctx, report, processed)
	if err != nil {
		return nil, err
	}

	r.log.With().Str("key", res.Key).Logger().Info("xetra report1 job finished")
	return res, nil
}

func extension(f codec.Format) string {
	if cd, err := codec.NewRegistry().Lookup(f); err == nil {
		return cd.Extension
	}
	return string(f)
}
