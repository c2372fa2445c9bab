// Package codec converts tables to and from stored bytes.
//
// Each Format maps to a Codec holding a paired encode/decode strategy.
// Codecs are stateless: every call is a pure function of its input.
// Encoders write to an io.Writer so callers handle text and binary
// formats the same way.
package codec

import (
	"io"
	"strings"

	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/table"
)

// Format identifies a file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ParseFormat normalises a format name. Unknown names are returned as-is
// so that the registry reports them as unsupported.
func ParseFormat(s string) Format {
	return Format(strings.ToLower(strings.TrimSpace(s)))
}

func (f Format) String() string { return string(f) }

// Options carries the text settings for delimited formats.
// Binary formats ignore them.
type Options struct {
	Encoding  string // charset name, e.g. "utf-8", "latin1"
	Delimiter rune
}

// DefaultOptions returns UTF-8 text separated by commas.
func DefaultOptions() Options {
	return Options{Encoding: "utf-8", Delimiter: ','}
}

func (o Options) withDefaults() Options {
	if o.Encoding == "" {
		o.Encoding = "utf-8"
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	return o
}

// EncodeFunc serializes t to w.
type EncodeFunc func(w io.Writer, t *table.Table, opts Options) error

// DecodeFunc materializes a table from r.
type DecodeFunc func(r io.Reader, opts Options) (*table.Table, error)

// Codec is the encode/decode pair registered for one Format.
type Codec struct {
	Format      Format
	ContentType string
	Extension   string
	Encode      EncodeFunc
	Decode      DecodeFunc
}

// Registry maps formats to codecs.
type Registry struct {
	codecs map[Format]Codec
}

// NewRegistry returns a registry with the CSV and Parquet codecs.
// FormatJSON is declared but deliberately has no codec.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[Format]Codec)}
	r.Register(CSV())
	r.Register(Parquet())
	return r
}

// Register adds or replaces the codec for c.Format.
func (r *Registry) Register(c Codec) {
	r.codecs[c.Format] = c
}

// Lookup returns the codec for f. A miss is an unsupported-format error
// carrying f, whether f is declared or unknown.
func (r *Registry) Lookup(f Format) (Codec, error) {
	c, ok := r.codecs[f]
	if !ok {
		return Codec{}, errs.UnsupportedFormat(string(f))
	}
	return c, nil
}

// Supports reports whether f has a codec.
func (r *Registry) Supports(f Format) bool {
	_, ok := r.codecs[f]
	return ok
}
