package wire

import (
	"github.com/anirudhraja/structlite/schema"
)

// ===== FIELD TYPE CATALOG =====

// VariableWidth is the width reported by catalog entries whose byte size
// depends on the value.
const VariableWidth = -1

// FieldType is one entry of the catalog
type FieldType interface {
	// Name returns the catalog name, e.g. "uint16"
	Name() schema.PrimitiveType
	// Width returns the intrinsic byte width or VariableWidth
	Width() int
}

// Integer entries. 1, 2 and 4 byte entries decode to the exact-width Go
// integer; 8 byte entries decode to uint64/int64, which hold the full range
// losslessly, and also accept *big.Int on construction.
var (
	Uint8  = &NumberType{name: schema.TypeUint8, width: 1}
	Int8   = &NumberType{name: schema.TypeInt8, width: 1, signed: true}
	Uint16 = &NumberType{name: schema.TypeUint16, width: 2}
	Int16  = &NumberType{name: schema.TypeInt16, width: 2, signed: true}
	Uint32 = &NumberType{name: schema.TypeUint32, width: 4}
	Int32  = &NumberType{name: schema.TypeInt32, width: 4, signed: true}
	Uint64 = &NumberType{name: schema.TypeUint64, width: 8}
	Int64  = &NumberType{name: schema.TypeInt64, width: 8, signed: true}
)

// Buffer-like entries.
var (
	Buffer  = &BufferType{name: schema.TypeBuffer, kind: kindRaw}
	Clamped = &BufferType{name: schema.TypeClamped, kind: kindClamped}
	Text    = &BufferType{name: schema.TypeText, kind: kindText}
)

var catalog = map[schema.PrimitiveType]FieldType{
	schema.TypeUint8:   Uint8,
	schema.TypeInt8:    Int8,
	schema.TypeUint16:  Uint16,
	schema.TypeInt16:   Int16,
	schema.TypeUint32:  Uint32,
	schema.TypeInt32:   Int32,
	schema.TypeUint64:  Uint64,
	schema.TypeInt64:   Int64,
	schema.TypeBuffer:  Buffer,
	schema.TypeClamped: Clamped,
	schema.TypeText:    Text,
}

// LookupType returns the catalog entry for name
func LookupType(name schema.PrimitiveType) (FieldType, bool) {
	t, ok := catalog[name]
	return t, ok
}

// Values is both the initializer handed to construction and the plain
// field view of a produced object, keyed by field name.
type Values map[string]any
