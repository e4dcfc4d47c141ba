package schema

// Repo represents a collection of layout files and their definitions.
type Repo struct {
	Files map[string]*File `json:"files" yaml:"files"`
}

// File represents a single layout file (.proto, .yaml or .json)
type File struct {
	Name    string    `json:"name" yaml:"name"`       // adb.proto
	Package string    `json:"package" yaml:"package"` // package name
	Layouts []*Layout `json:"layouts" yaml:"layouts"` // layout definitions
}

// Layout represents an ordered binary struct definition
type Layout struct {
	Name      string    `json:"name" yaml:"name"`                                 // "AdbPacketHeader"
	ByteOrder ByteOrder `json:"byte_order,omitempty" yaml:"byte_order,omitempty"` // little (default) or big
	Encoding  string    `json:"encoding,omitempty" yaml:"encoding,omitempty"`     // text encoding, utf-8 by default
	Fields    []*Field  `json:"fields" yaml:"fields"`                             // fields in wire order
}

// Field represents one entry of a layout. Exactly one of Type or Embed is set.
type Field struct {
	Name        string        `json:"name,omitempty" yaml:"name,omitempty"`                 // "payload"
	Type        PrimitiveType `json:"type,omitempty" yaml:"type,omitempty"`                 // catalog entry
	Length      int           `json:"length,omitempty" yaml:"length,omitempty"`             // fixed length for buffer-like types
	LengthField string        `json:"length_field,omitempty" yaml:"length_field,omitempty"` // earlier integer field holding the length
	Embed       string        `json:"embed,omitempty" yaml:"embed,omitempty"`               // layout whose fields are flattened in place
}

// IsEmbed reports whether the entry pulls in another layout
func (f *Field) IsEmbed() bool {
	return f.Embed != ""
}

// ByteOrder names the integer byte order of a layout
type ByteOrder string

const (
	LittleEndian ByteOrder = "little"
	BigEndian    ByteOrder = "big"
)

// PrimitiveType represents the field type catalog entries
type PrimitiveType string

const (
	TypeUint8   PrimitiveType = "uint8"
	TypeInt8    PrimitiveType = "int8"
	TypeUint16  PrimitiveType = "uint16"
	TypeInt16   PrimitiveType = "int16"
	TypeUint32  PrimitiveType = "uint32"
	TypeInt32   PrimitiveType = "int32"
	TypeUint64  PrimitiveType = "uint64"
	TypeInt64   PrimitiveType = "int64"
	TypeBuffer  PrimitiveType = "buffer"
	TypeClamped PrimitiveType = "clamped"
	TypeText    PrimitiveType = "text"
)

var bufferLike = map[PrimitiveType]struct{}{
	TypeBuffer:  {},
	TypeClamped: {},
	TypeText:    {},
}

// IsBufferLike checks and returns if the primitive type needs a length
func IsBufferLike(t PrimitiveType) bool {
	_, ok := bufferLike[t]
	return ok
}
