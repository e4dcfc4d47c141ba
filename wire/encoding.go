package wire

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// TextEncoding converts between Go strings and the bytes of a text field
type TextEncoding interface {
	// Name returns the canonical encoding name
	Name() string
	// UnitSize returns the byte size of one code unit
	UnitSize() int
	// Encode fails with ErrUnencodableText when s cannot be represented
	Encode(s string) ([]byte, error)
	// Decode replaces invalid sequences with U+FFFD
	Decode(b []byte) (string, error)
}

// Supported text encodings.
var (
	UTF8    TextEncoding = utf8Encoding{}
	UTF16LE TextEncoding = &xtextEncoding{
		name: "utf-16le",
		unit: 2,
		enc:  unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	}
)

// LookupEncoding returns the encoding registered under name. The empty name
// selects UTF8.
func LookupEncoding(name string) (TextEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "utf-16le", "utf16le", "utf-16":
		return UTF16LE, nil
	default:
		return nil, fmt.Errorf("unsupported text encoding %q", name)
	}
}

type utf8Encoding struct{}

func (utf8Encoding) Name() string { return "utf-8" }
func (utf8Encoding) UnitSize() int { return 1 }

func (utf8Encoding) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, newFieldError(ErrUnencodableText, "invalid UTF-8 in %q", s)
	}
	return []byte(s), nil
}

func (utf8Encoding) Decode(b []byte) (string, error) {
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

type xtextEncoding struct {
	name string
	unit int
	enc  encoding.Encoding
}

func (e *xtextEncoding) Name() string { return e.name }
func (e *xtextEncoding) UnitSize() int { return e.unit }

func (e *xtextEncoding) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, newFieldError(ErrUnencodableText, "invalid UTF-8 in %q", s)
	}
	b, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, newFieldError(ErrUnencodableText, "%s: %v", e.name, err)
	}
	return b, nil
}

func (e *xtextEncoding) Decode(b []byte) (string, error) {
	s, err := e.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", e.name, err)
	}
	return string(s), nil
}
