package xetra

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/table"
)

// Source columns read from the Xetra trading files.
const (
	SrcISIN         = "ISIN"
	SrcMnemonic     = "Mnemonic"
	SrcDate         = "Date"
	SrcTime         = "Time"
	SrcStartPrice   = "StartPrice"
	SrcMaxPrice     = "MaxPrice"
	SrcMinPrice     = "MinPrice"
	SrcEndPrice     = "EndPrice"
	SrcTradedVolume = "TradedVolume"
)

// Report columns.
const (
	TrgISIN          = "isin"
	TrgDate          = "date"
	TrgOpeningPrice  = "opening_price_eur"
	TrgClosingPrice  = "closing_price_eur"
	TrgMinimumPrice  = "minimum_price_eur"
	TrgMaximumPrice  = "maximum_price_eur"
	TrgDailyVolume   = "daily_traded_volume"
	TrgChangePrevPct = "change_prev_closing_%"
)

// SourceColumns lists the columns the transform needs, in file order.
var SourceColumns = []string{
	SrcISIN, SrcMnemonic, SrcDate, SrcTime,
	SrcStartPrice, SrcMaxPrice, SrcMinPrice, SrcEndPrice, SrcTradedVolume,
}

// ReportColumns lists the report columns in output order.
var ReportColumns = []string{
	TrgISIN, TrgDate, TrgOpeningPrice, TrgClosingPrice,
	TrgMinimumPrice, TrgMaximumPrice, TrgDailyVolume, TrgChangePrevPct,
}

type trade struct {
	isin, date, time string
	start, end       float64
	min, max         float64
	volume           int64
}

type daily struct {
	isin, date       string
	opening, closing float64
	min, max         float64
	volume           int64
}

// TransformReport1 aggregates trading records into one row per ISIN and
// day. Opening and closing prices come from the earliest and latest record
// of the day, ordered by time. The change column compares the closing
// price with the ISIN's previous closing price in percent and is nil on
// the first day seen for an ISIN. Prices are rounded to two decimals.
// Rows dated before minDate only serve as previous closings and are
// dropped from the result.
func TransformReport1(src *table.Table, minDate string) (*table.Table, error) {
	out := table.MustNew(ReportColumns...)
	if src == nil || src.Empty() {
		return out, nil
	}

	trades, err := parseTrades(src)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if a.isin != b.isin {
			return a.isin < b.isin
		}
		if a.date != b.date {
			return a.date < b.date
		}
		return a.time < b.time
	})

	var days []daily
	for _, tr := range trades {
		n := len(days)
		if n > 0 && days[n-1].isin == tr.isin && days[n-1].date == tr.date {
			d := &days[n-1]
			d.closing = tr.end
			d.min = math.Min(d.min, tr.min)
			d.max = math.Max(d.max, tr.max)
			d.volume += tr.volume
			continue
		}
		days = append(days, daily{
			isin:    tr.isin,
			date:    tr.date,
			opening: tr.start,
			closing: tr.end,
			min:     tr.min,
			max:     tr.max,
			volume:  tr.volume,
		})
	}

	for i, d := range days {
		var change any
		if i > 0 && days[i-1].isin == d.isin && days[i-1].closing != 0 {
			prev := days[i-1].closing
			change = round2((d.closing - prev) / prev * 100)
		}
		if d.date < minDate {
			continue
		}
		if err := out.Append(
			d.isin,
			d.date,
			round2(d.opening),
			round2(d.closing),
			round2(d.min),
			round2(d.max),
			d.volume,
			change,
		); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseTrades(src *table.Table) ([]trade, error) {
	for _, c := range SourceColumns {
		if !src.HasColumn(c) {
			return nil, errs.New(errs.ErrKindParse, "source data is missing a column").WithSubject(c)
		}
	}

	trades := make([]trade, 0, src.NumRows())
	for i := 0; i < src.NumRows(); i++ {
		var (
			tr  trade
			err error
		)
		str := func(col string) string {
			v, _ := src.Value(i, col)
			return cellString(v)
		}
		tr.isin, tr.date, tr.time = str(SrcISIN), str(SrcDate), str(SrcTime)

		floats := []struct {
			col string
			dst *float64
		}{
			{SrcStartPrice, &tr.start},
			{SrcEndPrice, &tr.end},
			{SrcMinPrice, &tr.min},
			{SrcMaxPrice, &tr.max},
		}
		for _, f := range floats {
			if *f.dst, err = strconv.ParseFloat(str(f.col), 64); err != nil {
				return nil, rowErr(i, f.col, err)
			}
		}
		if tr.volume, err = strconv.ParseInt(str(SrcTradedVolume), 10, 64); err != nil {
			return nil, rowErr(i, SrcTradedVolume, err)
		}
		trades = append(trades, tr)
	}
	return trades, nil
}

func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func rowErr(row int, col string, err error) error {
	return errs.Wrap(errs.ErrKindParse, fmt.Sprintf("invalid value in row %d", row+1), err).WithSubject(col)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
