package wire

import (
	"encoding/binary"
)

// ===== FIELD RUNTIME VALUES =====

// Value is one field of one live object: its current logical value, its
// resolved byte size and its encoder.
type Value interface {
	// Size returns the number of bytes Serialize writes
	Size() int
	// Get returns the logical value
	Get() any
	// Serialize writes exactly Size() bytes to buf at offset
	Serialize(buf []byte, offset int)
}

type numberValue struct {
	t     *NumberType
	value any
	order binary.ByteOrder
}

// NewNumberValue coerces v to t and binds it with the context's byte order
func NewNumberValue(t *NumberType, v any, ctx *Context) (Value, error) {
	coerced, err := t.Coerce(v)
	if err != nil {
		return nil, err
	}
	return &numberValue{t: t, value: coerced, order: ctx.ByteOrder}, nil
}

func (v *numberValue) Size() int { return v.t.width }
func (v *numberValue) Get() any { return v.value }

func (v *numberValue) Serialize(buf []byte, offset int) {
	v.t.Put(buf[offset:offset+v.t.width], v.order, v.value)
}

type bufferValue struct {
	t     *BufferType
	value any
	data  []byte
}

func (v *bufferValue) Size() int { return len(v.data) }
func (v *bufferValue) Get() any { return v.value }

func (v *bufferValue) Serialize(buf []byte, offset int) {
	copy(buf[offset:offset+len(v.data)], v.data)
}
