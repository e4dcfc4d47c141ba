package wire

import (
	"encoding/binary"

	"github.com/anirudhraja/structlite/deferred"
)

// ===== FIELD DEFINITIONS =====

// Context carries the struct-wide options a field needs while binding or
// reading a value. It performs no I/O.
type Context struct {
	ByteOrder binary.ByteOrder
	Encoding  TextEncoding
}

// DefaultContext returns the global default byte order with UTF-8 text
func DefaultContext() *Context {
	return &Context{
		ByteOrder: DefaultByteOrder(),
		Encoding:  UTF8,
	}
}

// Scope is the object under construction, seen from one field.
type Scope interface {
	// Lookup returns the runtime value of a field bound or read earlier
	Lookup(name string) (Value, bool)
	// Replace swaps the runtime value of a field bound earlier
	Replace(name string, v Value)
	// Values returns the initializer while creating, or the fields
	// resolved so far while deserializing
	Values() Values
}

// Definition is the declared type and options of one named field.
type Definition interface {
	// Type returns the catalog entry
	Type() FieldType
	// IsFixed reports whether the byte size is known at definition time
	IsFixed() bool
	// StaticSize returns the fixed byte contribution, 0 for variable length
	StaticSize(ctx *Context) int
	// LengthField returns the sibling holding this field's length, if any
	LengthField() string
	// Bind produces the runtime value for the initializer slot of name
	Bind(name string, scope Scope, ctx *Context) (Value, error)
	// Read produces the runtime value of name by consuming bytes from src
	Read(name string, src Source, scope Scope, ctx *Context) deferred.Value[Value]
}

// NUMBER DEFINITION

type numberDefinition struct {
	t *NumberType
}

// NewNumber defines an integer field of the given catalog entry
func NewNumber(t *NumberType) Definition {
	return &numberDefinition{t: t}
}

func (d *numberDefinition) Type() FieldType { return d.t }
func (d *numberDefinition) IsFixed() bool { return true }
func (d *numberDefinition) StaticSize(*Context) int { return d.t.width }
func (d *numberDefinition) LengthField() string { return "" }

func (d *numberDefinition) Bind(name string, scope Scope, ctx *Context) (Value, error) {
	raw, ok := scope.Values()[name]
	if !ok {
		return nil, ErrMissingField
	}
	return NewNumberValue(d.t, raw, ctx)
}

func (d *numberDefinition) Read(name string, src Source, scope Scope, ctx *Context) deferred.Value[Value] {
	return deferred.Map(src.ReadExactly(d.t.width), func(b []byte) (Value, error) {
		return &numberValue{t: d.t, value: d.t.Decode(b, ctx.ByteOrder), order: ctx.ByteOrder}, nil
	})
}

// LENGTH SPECIFICATIONS

type lengthKind int

const (
	lengthFixed lengthKind = iota
	lengthField
	lengthFunc
)

// LengthFunc computes a variable length from the initializer (while
// creating) or from the fields resolved so far (while deserializing).
type LengthFunc func(values Values) (int, error)

// Length selects how a buffer-like field finds its byte length
type Length struct {
	kind  lengthKind
	n     int
	field string
	fn    LengthFunc
}

// Fixed is a length known when the struct is defined. For text fields n
// counts code units of the struct's encoding. Values shorter than the
// length are zero padded, and the padding is part of the field's value.
func Fixed(n int) Length {
	return Length{kind: lengthFixed, n: n}
}

// FromField reads the length from an integer field declared earlier.
func FromField(name string) Length {
	return Length{kind: lengthField, field: name}
}

// FromFunc computes the length with fn.
func FromFunc(fn LengthFunc) Length {
	return Length{kind: lengthFunc, fn: fn}
}

// IsFixed reports whether the length is known at definition time
func (l Length) IsFixed() bool { return l.kind == lengthFixed }

// BUFFER DEFINITION

type bufferDefinition struct {
	t      *BufferType
	length Length
}

// NewBuffer defines a buffer-like field
func NewBuffer(t *BufferType, length Length) Definition {
	return &bufferDefinition{t: t, length: length}
}

func (d *bufferDefinition) Type() FieldType { return d.t }

func (d *bufferDefinition) IsFixed() bool { return d.length.IsFixed() }

func (d *bufferDefinition) StaticSize(ctx *Context) int {
	if d.length.kind != lengthFixed {
		return 0
	}
	return d.length.n * d.t.UnitSize(ctx.Encoding)
}

func (d *bufferDefinition) LengthField() string {
	if d.length.kind != lengthField {
		return ""
	}
	return d.length.field
}

// Length returns the field's length rule
func (d *bufferDefinition) Length() Length { return d.length }

func (d *bufferDefinition) Bind(name string, scope Scope, ctx *Context) (Value, error) {
	values := scope.Values()
	raw, ok := values[name]
	if !ok {
		return nil, ErrMissingField
	}
	data, logical, err := d.t.Encode(raw, ctx.Encoding)
	if err != nil {
		return nil, err
	}

	switch d.length.kind {
	case lengthFixed:
		size := d.StaticSize(ctx)
		if len(data) > size {
			return nil, newFieldError(ErrLengthMismatch, "%d bytes exceed fixed length %d", len(data), size)
		}
		if len(data) < size {
			padded := make([]byte, size)
			copy(padded, data)
			data = padded
			// the logical value reads back what is on the wire
			if logical, err = d.t.Decode(data, ctx.Encoding, false); err != nil {
				return nil, err
			}
		}

	case lengthField:
		if err := d.deriveLength(len(data), scope, ctx); err != nil {
			return nil, WithField(err, d.length.field)
		}

	case lengthFunc:
		n, err := d.length.fn(values)
		if err != nil {
			return nil, err
		}
		if n != len(data) {
			return nil, newFieldError(ErrLengthMismatch, "length function returned %d, value encodes to %d bytes", n, len(data))
		}
	}

	return &bufferValue{t: d.t, value: logical, data: data}, nil
}

// deriveLength replaces the sibling length field with the encoded size of
// this field. An explicitly supplied sibling value must agree.
func (d *bufferDefinition) deriveLength(size int, scope Scope, ctx *Context) error {
	sibling, ok := scope.Lookup(d.length.field)
	if !ok {
		return ErrMissingField
	}
	nt, ok := sibling.(*numberValue)
	if !ok {
		return newFieldError(ErrInvalidValue, "length field is not an integer")
	}

	if explicit, ok := scope.Values()[d.length.field]; ok {
		n, err := toLength(explicit)
		if err != nil {
			return err
		}
		if n != size {
			return newFieldError(ErrLengthMismatch, "length %d given, value encodes to %d bytes", n, size)
		}
	}

	derived, err := NewNumberValue(nt.t, size, ctx)
	if err != nil {
		return err
	}
	scope.Replace(d.length.field, derived)
	return nil
}

func (d *bufferDefinition) Read(name string, src Source, scope Scope, ctx *Context) deferred.Value[Value] {
	var n int
	switch d.length.kind {
	case lengthFixed:
		n = d.StaticSize(ctx)

	case lengthField:
		sibling, ok := scope.Lookup(d.length.field)
		if !ok {
			return deferred.Rejected[Value](WithField(ErrMissingField, d.length.field))
		}
		size, err := toLength(sibling.Get())
		if err != nil {
			return deferred.Rejected[Value](WithField(err, d.length.field))
		}
		n = size

	case lengthFunc:
		size, err := d.length.fn(scope.Values())
		if err != nil {
			return deferred.Rejected[Value](err)
		}
		if size < 0 {
			return deferred.Rejected[Value](newFieldError(ErrInvalidValue, "length function returned %d", size))
		}
		n = size
	}

	share := config.ShareDecodedBuffers
	return deferred.Map(src.ReadExactly(n), func(b []byte) (Value, error) {
		logical, err := d.t.Decode(b, ctx.Encoding, share)
		if err != nil {
			return nil, err
		}
		data := b
		if !share {
			data = append([]byte{}, b...)
		}
		return &bufferValue{t: d.t, value: logical, data: data}, nil
	})
}
