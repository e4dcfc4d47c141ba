package wire

import (
	"encoding/binary"
	"math"

	"github.com/anirudhraja/structlite/schema"
)

// NumberType is a fixed-width integer catalog entry
type NumberType struct {
	name   schema.PrimitiveType
	width  int
	signed bool
}

// Name returns the catalog name
func (t *NumberType) Name() schema.PrimitiveType { return t.name }

// Width returns the byte width (1, 2, 4 or 8)
func (t *NumberType) Width() int { return t.width }

// Signed reports whether the entry is two's complement signed
func (t *NumberType) Signed() bool { return t.signed }

func (t *NumberType) String() string { return string(t.name) }

// Coerce converts v to the entry's Go type. Values outside the entry's
// range fail with ErrOutOfRange; they are never wrapped around.
func (t *NumberType) Coerce(v any) (any, error) {
	if v == nil {
		return nil, newFieldError(ErrInvalidValue, "nil value for %s", t.name)
	}

	if t.signed {
		i, err := coerceToInt64(v)
		if err != nil {
			return nil, err
		}
		bits := uint(t.width * 8)
		lo, hi := int64(-1)<<(bits-1), int64(uint64(1)<<(bits-1)-1)
		if i < lo || i > hi {
			return nil, newFieldError(ErrOutOfRange, "%d does not fit %s", i, t.name)
		}
		switch t.width {
		case 1:
			return int8(i), nil
		case 2:
			return int16(i), nil
		case 4:
			return int32(i), nil
		default:
			return i, nil
		}
	}

	u, err := coerceToUint64(v)
	if err != nil {
		return nil, err
	}
	if t.width < 8 && u > uint64(1)<<(t.width*8)-1 {
		return nil, newFieldError(ErrOutOfRange, "%d does not fit %s", u, t.name)
	}
	switch t.width {
	case 1:
		return uint8(u), nil
	case 2:
		return uint16(u), nil
	case 4:
		return uint32(u), nil
	default:
		return u, nil
	}
}

// ENCODER METHODS

// Put writes an already coerced value into buf[:Width()]
func (t *NumberType) Put(buf []byte, order binary.ByteOrder, v any) {
	bits := rawBits(v)
	switch t.width {
	case 1:
		buf[0] = byte(bits)
	case 2:
		order.PutUint16(buf, uint16(bits))
	case 4:
		order.PutUint32(buf, uint32(bits))
	default:
		order.PutUint64(buf, bits)
	}
}

// DECODER METHODS

// Decode reads buf[:Width()] into the entry's Go type
func (t *NumberType) Decode(buf []byte, order binary.ByteOrder) any {
	switch t.width {
	case 1:
		if t.signed {
			return int8(buf[0])
		}
		return buf[0]
	case 2:
		v := order.Uint16(buf)
		if t.signed {
			return int16(v)
		}
		return v
	case 4:
		v := order.Uint32(buf)
		if t.signed {
			return int32(v)
		}
		return v
	default:
		v := order.Uint64(buf)
		if t.signed {
			return int64(v)
		}
		return v
	}
}

// rawBits returns the two's complement bit pattern of a coerced value
func rawBits(v any) uint64 {
	switch n := v.(type) {
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	case int8:
		return uint64(n)
	case int16:
		return uint64(n)
	case int32:
		return uint64(n)
	case int64:
		return uint64(n)
	default:
		return 0
	}
}

// UTILITY FUNCTIONS

// MaxValue returns the largest value the entry can hold
func (t *NumberType) MaxValue() uint64 {
	if t.signed {
		return uint64(1)<<(t.width*8-1) - 1
	}
	if t.width == 8 {
		return math.MaxUint64
	}
	return uint64(1)<<(t.width*8) - 1
}
