package wire

import (
	"math"
	"reflect"

	"github.com/anirudhraja/structlite/schema"
)

type bufferKind int

const (
	kindRaw bufferKind = iota
	kindClamped
	kindText
)

// ClampedBytes is the logical value of a Clamped field. Values written into
// it are clamped to 0..255 instead of wrapping around.
type ClampedBytes []byte

// BufferType is a byte-buffer-like catalog entry
type BufferType struct {
	name schema.PrimitiveType
	kind bufferKind
}

// Name returns the catalog name
func (t *BufferType) Name() schema.PrimitiveType { return t.name }

// Width is always VariableWidth; the length comes from the field definition
func (t *BufferType) Width() int { return VariableWidth }

func (t *BufferType) String() string { return string(t.name) }

// UnitSize returns the byte size of one element. Only text elements can be
// wider than a byte.
func (t *BufferType) UnitSize(enc TextEncoding) int {
	if t.kind == kindText {
		return enc.UnitSize()
	}
	return 1
}

// ENCODER METHODS

// Encode converts a caller value to its wire bytes and its normalized
// logical value
func (t *BufferType) Encode(v any, enc TextEncoding) ([]byte, any, error) {
	switch t.kind {
	case kindText:
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case []byte:
			s = string(x)
		case nil:
			return nil, nil, newFieldError(ErrInvalidValue, "nil value for text")
		default:
			return nil, nil, newFieldError(ErrInvalidValue, "expected string, got %T", v)
		}
		b, err := enc.Encode(s)
		if err != nil {
			return nil, nil, err
		}
		return b, s, nil

	case kindClamped:
		b, err := clampedBytes(v)
		if err != nil {
			return nil, nil, err
		}
		return b, ClampedBytes(b), nil

	default:
		b, err := rawBytes(v)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
}

// DECODER METHODS

// Decode converts wire bytes to the logical value. Raw and clamped buffers
// are copied unless share is set.
func (t *BufferType) Decode(b []byte, enc TextEncoding, share bool) (any, error) {
	switch t.kind {
	case kindText:
		return enc.Decode(b)
	case kindClamped:
		if !share {
			b = append([]byte(nil), b...)
		}
		return ClampedBytes(b), nil
	default:
		if !share {
			b = append([]byte{}, b...)
		}
		return b, nil
	}
}

// UTILITY FUNCTIONS

// Clamp converts a number to a byte the way a clamped byte array stores it:
// NaN and negatives become 0, values above 255 become 255, the rest round
// half to even.
func Clamp(f float64) byte {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return byte(math.RoundToEven(f))
}

func rawBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append([]byte{}, x...), nil
	case ClampedBytes:
		return append([]byte{}, x...), nil
	case string:
		return []byte(x), nil
	case nil:
		return nil, newFieldError(ErrInvalidValue, "nil value for buffer")
	}

	// numeric slices such as []int or the []any produced by JSON decoding
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, newFieldError(ErrInvalidValue, "expected byte buffer, got %T", v)
	}
	out := make([]byte, rv.Len())
	for i := range out {
		u, err := coerceToUint64(rv.Index(i).Interface())
		if err != nil {
			return nil, newFieldError(ErrInvalidValue, "element %d: %v", i, err)
		}
		if u > math.MaxUint8 {
			return nil, newFieldError(ErrOutOfRange, "element %d: %d does not fit a byte", i, u)
		}
		out[i] = byte(u)
	}
	return out, nil
}

func clampedBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append([]byte{}, x...), nil
	case ClampedBytes:
		return append([]byte{}, x...), nil
	case nil:
		return nil, newFieldError(ErrInvalidValue, "nil value for clamped buffer")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, newFieldError(ErrInvalidValue, "expected numeric slice, got %T", v)
	}
	out := make([]byte, rv.Len())
	for i := range out {
		f, err := coerceToFloat64(rv.Index(i).Interface())
		if err != nil {
			return nil, newFieldError(ErrInvalidValue, "element %d: %v", i, err)
		}
		out[i] = Clamp(f)
	}
	return out, nil
}
