// Package textenc converts display names between Go strings and the byte
// encodings used by MMD model files: fixed-width Shift-JIS (CP932) for the
// legacy format and UTF-16LE for the extended one.
package textenc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// OverflowPolicy decides what happens to a name whose encoding does not fit
// a fixed-width field.
type OverflowPolicy int

const (
	// Truncate cuts the name on a character boundary.
	Truncate OverflowPolicy = iota
	// Reject fails with a NameTooLongError.
	Reject
)

func (p OverflowPolicy) String() string {
	switch p {
	case Truncate:
		return "truncate"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// ParsePolicy parses "truncate" or "reject". Anything else is Truncate.
func ParsePolicy(s string) OverflowPolicy {
	if strings.EqualFold(s, "reject") {
		return Reject
	}
	return Truncate
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func encodeRune(enc *encoding.Encoder, r rune) ([]byte, bool) {
	if r == utf8.RuneError {
		return nil, false
	}
	if r < utf8.RuneSelf {
		return []byte{byte(r)}, true
	}
	b, err := enc.Bytes([]byte(string(r)))
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

// EncodeShiftJIS encodes s with CP932.
func EncodeShiftJIS(s string) ([]byte, error) {
	b, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err == nil {
		return b, nil
	}
	// locate the offending rune for the error report
	enc := japanese.ShiftJIS.NewEncoder()
	for i, r := range s {
		if _, ok := encodeRune(enc, r); !ok {
			return nil, EncodingError{Text: s, Rune: r, Offset: i}
		}
	}
	return nil, EncodingError{Text: s, Rune: utf8.RuneError, Offset: -1}
}

// DecodeShiftJIS decodes CP932 bytes.
func DecodeShiftJIS(b []byte) (string, error) {
	r, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(r), nil
}

// FixedShiftJIS encodes s into a zero padded field of exactly width bytes.
// truncated reports that the name was cut to fit.
func FixedShiftJIS(s string, width int, policy OverflowPolicy) (b []byte, truncated bool, err error) {
	encoded, err := EncodeShiftJIS(s)
	if err != nil {
		return nil, false, err
	}
	field := make([]byte, width)
	if len(encoded) <= width {
		copy(field, encoded)
		return field, false, nil
	}
	if policy == Reject {
		return nil, false, NameTooLongError{Text: s, Len: len(encoded), Width: width}
	}

	// cut on a character boundary so no lead byte is left dangling
	enc := japanese.ShiftJIS.NewEncoder()
	n := 0
	for _, r := range s {
		rb, _ := encodeRune(enc, r)
		if n+len(rb) > width {
			break
		}
		n += copy(field[n:], rb)
	}
	return field, true, nil
}

// Overflows reports whether the encoded name leaves no room for a
// terminating NUL in a field of width bytes.
func Overflows(s string, width int) bool {
	b, err := EncodeShiftJIS(s)
	if err != nil {
		return false
	}
	return len(b) >= width
}

// DecodeFixed decodes a NUL terminated Shift-JIS field.
func DecodeFixed(b []byte) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return DecodeShiftJIS(b)
}

// Sanitize replaces every rune that Shift-JIS cannot represent with
// placeholder.
func Sanitize(s string, placeholder rune) string {
	enc := japanese.ShiftJIS.NewEncoder()
	var sb strings.Builder
	for _, r := range s {
		if _, ok := encodeRune(enc, r); ok {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(placeholder)
		}
	}
	return sb.String()
}

// EncodeUTF16LE encodes s as UTF-16 little endian without a BOM.
func EncodeUTF16LE(s string) ([]byte, error) {
	b, _, err := transform.Bytes(utf16le.NewEncoder(), []byte(s))
	return b, err
}

// DecodeUTF16LE decodes UTF-16 little endian bytes.
func DecodeUTF16LE(b []byte) (string, error) {
	r, _, err := transform.Bytes(utf16le.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(r), nil
}
