package codec

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/koustreak/xetra/internal/errs"
)

func lookupCharset(name string) (encoding.Encoding, bool, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, false, errs.Wrap(errs.ErrKindInvalidInput, "unknown text encoding", err).WithSubject(name)
	}
	canonical, _ := htmlindex.Name(enc)
	return enc, canonical == "utf-8", nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

// decodeText converts data from the named charset to UTF-8.
// UTF-8 input is validated rather than repaired, and a leading byte order
// mark is dropped.
func decodeText(data []byte, name string) ([]byte, error) {
	enc, isUTF8, err := lookupCharset(name)
	if err != nil {
		return nil, err
	}
	if isUTF8 {
		if !utf8.Valid(data) {
			return nil, errs.New(errs.ErrKindDecode, "input is not valid utf-8")
		}
		return bytes.TrimPrefix(data, utf8BOM), nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindDecode, "failed to decode text", err).WithSubject(name)
	}
	return out, nil
}

// encodeText converts UTF-8 data to the named charset.
func encodeText(data []byte, name string) ([]byte, error) {
	enc, isUTF8, err := lookupCharset(name)
	if err != nil {
		return nil, err
	}
	if isUTF8 {
		return data, nil
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindEncode, "text not representable in target encoding", err).WithSubject(name)
	}
	return out, nil
}
