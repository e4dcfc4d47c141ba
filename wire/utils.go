package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// Helpers to coerce caller inputs to integers (accept exponent/float forms if integral)
func coerceToInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint, uint8, uint16, uint32, uint64, uintptr:
		u := reflect.ValueOf(t).Uint()
		if u > math.MaxInt64 {
			return 0, newFieldError(ErrOutOfRange, "%d does not fit a signed 64-bit integer", u)
		}
		return int64(u), nil
	case *big.Int:
		if t == nil {
			return 0, newFieldError(ErrInvalidValue, "nil big integer")
		}
		if !t.IsInt64() {
			return 0, newFieldError(ErrOutOfRange, "%s does not fit a signed 64-bit integer", t)
		}
		return t.Int64(), nil
	case float32:
		return floatToInt64(float64(t))
	case float64:
		return floatToInt64(t)
	case json.Number:
		return parseInt64(t.String())
	case string:
		return parseInt64(t)
	case fmt.Stringer:
		// other JSON decoders' number types
		return parseInt64(t.String())
	default:
		return 0, newFieldError(ErrInvalidValue, "expected integer-like, got %T", v)
	}
}

func coerceToUint64(v any) (uint64, error) {
	switch t := v.(type) {
	case uint:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint32:
		return uint64(t), nil
	case uint64:
		return t, nil
	case uintptr:
		return uint64(t), nil
	case int, int8, int16, int32, int64:
		i := reflect.ValueOf(t).Int()
		if i < 0 {
			return 0, newFieldError(ErrOutOfRange, "%d is negative", i)
		}
		return uint64(i), nil
	case *big.Int:
		if t == nil {
			return 0, newFieldError(ErrInvalidValue, "nil big integer")
		}
		if !t.IsUint64() {
			return 0, newFieldError(ErrOutOfRange, "%s does not fit an unsigned 64-bit integer", t)
		}
		return t.Uint64(), nil
	case float32:
		return floatToUint64(float64(t))
	case float64:
		return floatToUint64(t)
	case json.Number:
		return parseUint64(t.String())
	case string:
		return parseUint64(t)
	case fmt.Stringer:
		return parseUint64(t.String())
	default:
		return 0, newFieldError(ErrInvalidValue, "expected unsigned-integer-like, got %T", v)
	}
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, newFieldError(ErrInvalidValue, "non-integer numeric %v for integer field", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, newFieldError(ErrOutOfRange, "%v does not fit a signed 64-bit integer", f)
	}
	return int64(f), nil
}

func floatToUint64(f float64) (uint64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, newFieldError(ErrInvalidValue, "non-integer numeric %v for unsigned field", f)
	}
	if f < 0 || f >= math.MaxUint64 {
		return 0, newFieldError(ErrOutOfRange, "%v does not fit an unsigned 64-bit integer", f)
	}
	return uint64(f), nil
}

func parseInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if isFloatLiteral(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, newFieldError(ErrInvalidValue, "%q: %v", s, err)
		}
		return floatToInt64(f)
	}
	iv, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, newFieldError(ErrOutOfRange, "%q does not fit a signed 64-bit integer", s)
		}
		return 0, newFieldError(ErrInvalidValue, "%q: %v", s, err)
	}
	return iv, nil
}

func parseUint64(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, newFieldError(ErrOutOfRange, "%q is negative", s)
	}
	if isFloatLiteral(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, newFieldError(ErrInvalidValue, "%q: %v", s, err)
		}
		return floatToUint64(f)
	}
	uv, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, newFieldError(ErrOutOfRange, "%q does not fit an unsigned 64-bit integer", s)
		}
		return 0, newFieldError(ErrInvalidValue, "%q: %v", s, err)
	}
	return uv, nil
}

func isFloatLiteral(s string) bool {
	if strings.Contains(strings.ToLower(s), "0x") {
		return false
	}
	return strings.ContainsAny(s, ".eE")
}

// coerceToFloat64 is used for clamped byte inputs, where any number is accepted
func coerceToFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int, int8, int16, int32, int64:
		return float64(reflect.ValueOf(t).Int()), nil
	case uint, uint8, uint16, uint32, uint64, uintptr:
		return float64(reflect.ValueOf(t).Uint()), nil
	case json.Number:
		return t.Float64()
	case string:
		return parseFloat64(t)
	case fmt.Stringer:
		return parseFloat64(t.String())
	default:
		return 0, newFieldError(ErrInvalidValue, "expected number, got %T", v)
	}
}

func parseFloat64(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, newFieldError(ErrInvalidValue, "%q: %v", s, err)
	}
	return f, nil
}

// toLength converts a decoded or supplied length value to a byte count
func toLength(v any) (int, error) {
	u, err := coerceToUint64(v)
	if err != nil {
		return 0, err
	}
	if u > math.MaxInt {
		return 0, newFieldError(ErrOutOfRange, "length %d too large", u)
	}
	return int(u), nil
}
