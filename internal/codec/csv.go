package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/table"
)

// CSV returns the delimited-text codec.
//
// The first record is the header. Decoded cells are always strings; no
// type inference happens. Records whose field count differs from the
// header are rejected, never padded or truncated. A leading UTF-8 byte
// order mark is dropped. Inside quoted fields a CRLF pair reads back as a
// single LF; lone CR and LF characters are kept as written.
func CSV() Codec {
	return Codec{
		Format:      FormatCSV,
		ContentType: "text/csv",
		Extension:   "csv",
		Encode:      encodeCSV,
		Decode:      decodeCSV,
	}
}

func checkDelimiter(d rune) error {
	if d == '"' || d == '\r' || d == '\n' || !utf8.ValidRune(d) || d == utf8.RuneError {
		return errs.New(errs.ErrKindInvalidInput, "invalid delimiter").WithSubject(string(d))
	}
	return nil
}

func decodeCSV(r io.Reader, opts Options) (*table.Table, error) {
	opts = opts.withDefaults()
	if err := checkDelimiter(opts.Delimiter); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStoreUnavailable, "failed to read body", err)
	}
	text, err := decodeText(raw, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.New(errs.ErrKindParse, "no header row")
	}
	if err != nil {
		return nil, parseErr(err)
	}

	t, err := table.New(header...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindParse, "invalid header", err)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseErr(err)
		}
		cells := make([]any, len(rec))
		for i, v := range rec {
			cells[i] = v
		}
		if err := t.Append(cells...); err != nil {
			return nil, errs.Wrap(errs.ErrKindParse, "invalid record", err)
		}
	}
	return t, nil
}

func parseErr(err error) error {
	if errors.Is(err, csv.ErrFieldCount) {
		return errs.Wrap(errs.ErrKindParse, "inconsistent field count", err)
	}
	return errs.Wrap(errs.ErrKindParse, "malformed delimited text", err)
}

func encodeCSV(w io.Writer, t *table.Table, opts Options) error {
	opts = opts.withDefaults()
	if err := checkDelimiter(opts.Delimiter); err != nil {
		return err
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = opts.Delimiter

	if err := writeRecord(cw, &buf, t.Columns()); err != nil {
		return errs.Wrap(errs.ErrKindEncode, "failed to write header", err)
	}
	rec := make([]string, t.NumCols())
	for _, row := range t.Rows() {
		for i, cell := range row {
			rec[i] = formatCell(cell)
		}
		if err := writeRecord(cw, &buf, rec); err != nil {
			return errs.Wrap(errs.ErrKindEncode, "failed to write record", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(errs.ErrKindEncode, "failed to flush records", err)
	}

	out, err := encodeText(buf.Bytes(), opts.Encoding)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return errs.Wrap(errs.ErrKindEncode, "failed to write output", err)
	}
	return nil
}

// writeRecord writes rec through cw. A record of one empty field would
// come out as a blank line, which readers skip, so it is written quoted.
func writeRecord(cw *csv.Writer, buf *bytes.Buffer, rec []string) error {
	if len(rec) != 1 || rec[0] != "" {
		return cw.Write(rec)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	buf.WriteString("\"\"\n")
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
