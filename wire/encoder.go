package wire

// Encoder writes runtime values back to back into one preallocated buffer
type Encoder struct {
	buf []byte
	pos int
}

// NewEncoder creates an encoder over a zeroed buffer of size bytes
func NewEncoder(size int) *Encoder {
	return &Encoder{
		buf: make([]byte, size),
	}
}

// Write serializes v at the current offset and advances past it
func (e *Encoder) Write(v Value) {
	v.Serialize(e.buf, e.pos)
	e.pos += v.Size()
}

// Offset returns the number of bytes written so far
func (e *Encoder) Offset() int {
	return e.pos
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// EncodeValues is the two-pass serializer: it sums the resolved sizes,
// allocates exactly one buffer and writes each value at its cumulative
// offset.
func EncodeValues(values []Value) []byte {
	size := 0
	for _, v := range values {
		size += v.Size()
	}

	encoder := NewEncoder(size)
	for _, v := range values {
		encoder.Write(v)
	}
	return encoder.Bytes()
}
