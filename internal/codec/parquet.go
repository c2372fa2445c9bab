package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/table"
)

// Parquet returns the columnar-binary codec.
//
// Column types are inferred from the cells: strings, integers, floats,
// bools and time.Time map to STRING, INT64, DOUBLE, BOOLEAN and
// TIMESTAMP(us, UTC). Integers mixed with floats widen to DOUBLE; any
// other mix is an encode error. A column holding only nils is a nullable
// string column. Decoding restores string, int64, float64, bool and
// time.Time cells.
func Parquet() Codec {
	return Codec{
		Format:      FormatParquet,
		ContentType: "application/vnd.apache.parquet",
		Extension:   "parquet",
		Encode:      encodeParquet,
		Decode:      decodeParquet,
	}
}

type colKind int

const (
	kindNull colKind = iota
	kindString
	kindInt
	kindFloat
	kindBool
	kindTime
)

func cellKind(v any) (colKind, bool) {
	switch v.(type) {
	case nil:
		return kindNull, true
	case string:
		return kindString, true
	case int, int32, int64:
		return kindInt, true
	case float32, float64:
		return kindFloat, true
	case bool:
		return kindBool, true
	case time.Time:
		return kindTime, true
	default:
		return kindNull, false
	}
}

func inferKind(t *table.Table, col int) (colKind, error) {
	kind := kindNull
	for _, row := range t.Rows() {
		k, ok := cellKind(row[col])
		if !ok {
			return 0, errs.New(errs.ErrKindEncode,
				fmt.Sprintf("unsupported cell type %T", row[col])).WithSubject(t.Columns()[col])
		}
		switch {
		case k == kindNull || k == kind:
		case kind == kindNull:
			kind = k
		case (kind == kindInt && k == kindFloat) || (kind == kindFloat && k == kindInt):
			kind = kindFloat
		default:
			return 0, errs.New(errs.ErrKindEncode, "column mixes incompatible types").WithSubject(t.Columns()[col])
		}
	}
	if kind == kindNull {
		kind = kindString
	}
	return kind, nil
}

func arrowType(k colKind) arrow.DataType {
	switch k {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindTime:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	default:
		return x.(int64)
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return float64(toInt64(v))
	}
}

func encodeParquet(w io.Writer, t *table.Table, _ Options) error {
	cols := t.Columns()
	kinds := make([]colKind, len(cols))
	fields := make([]arrow.Field, len(cols))
	for i, name := range cols {
		k, err := inferKind(t, i)
		if err != nil {
			return err
		}
		kinds[i] = k
		fields[i] = arrow.Field{Name: name, Type: arrowType(k), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	mem := memory.DefaultAllocator
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i := range cols {
		fb := b.Field(i)
		for _, row := range t.Rows() {
			v := row[i]
			if v == nil {
				fb.AppendNull()
				continue
			}
			switch kinds[i] {
			case kindInt:
				fb.(*array.Int64Builder).Append(toInt64(v))
			case kindFloat:
				fb.(*array.Float64Builder).Append(toFloat64(v))
			case kindBool:
				fb.(*array.BooleanBuilder).Append(v.(bool))
			case kindTime:
				fb.(*array.TimestampBuilder).Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
			default:
				fb.(*array.StringBuilder).Append(v.(string))
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return errs.Wrap(errs.ErrKindEncode, "failed to create parquet writer", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return errs.Wrap(errs.ErrKindEncode, "failed to write parquet record", err)
	}
	if err := fw.Close(); err != nil {
		return errs.Wrap(errs.ErrKindEncode, "failed to finalize parquet file", err)
	}
	return nil
}

func decodeParquet(r io.Reader, _ Options) (*table.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStoreUnavailable, "failed to read body", err)
	}

	mem := memory.DefaultAllocator
	at, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(raw),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindParse, "malformed parquet body", err)
	}
	defer at.Release()

	ncols := int(at.NumCols())
	nrows := int(at.NumRows())
	names := make([]string, ncols)
	cells := make([][]any, nrows)
	for i := range cells {
		cells[i] = make([]any, ncols)
	}

	for j := 0; j < ncols; j++ {
		col := at.Column(j)
		names[j] = col.Name()
		offset := 0
		for _, chunk := range col.Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				v, err := arrowValue(chunk, i)
				if err != nil {
					return nil, errs.Wrap(errs.ErrKindParse, "unsupported parquet column", err).WithSubject(names[j])
				}
				cells[offset+i][j] = v
			}
			offset += chunk.Len()
		}
	}

	t, err := table.New(names...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindParse, "invalid parquet schema", err)
	}
	for _, row := range cells {
		if err := t.Append(row...); err != nil {
			return nil, errs.Wrap(errs.ErrKindParse, "invalid parquet row", err)
		}
	}
	return t, nil
}

func arrowValue(a arrow.Array, i int) (any, error) {
	if a.IsNull(i) {
		return nil, nil
	}
	switch x := a.(type) {
	case *array.String:
		return x.Value(i), nil
	case *array.LargeString:
		return x.Value(i), nil
	case *array.Int64:
		return x.Value(i), nil
	case *array.Int32:
		return int64(x.Value(i)), nil
	case *array.Float64:
		return x.Value(i), nil
	case *array.Float32:
		return float64(x.Value(i)), nil
	case *array.Boolean:
		return x.Value(i), nil
	case *array.Timestamp:
		unit := x.DataType().(*arrow.TimestampType).Unit
		return x.Value(i).ToTime(unit), nil
	default:
		return nil, fmt.Errorf("arrow type %s", a.DataType())
	}
}
