package structlite

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/anirudhraja/structlite/schema"
	"github.com/anirudhraja/structlite/wire"
)

// LayoutResolver finds a layout by name for embedding
type LayoutResolver func(name string) (*schema.Layout, error)

// Compile builds a Struct from a declarative layout. Embedded layouts are
// looked up with resolve and flattened in place using the outer layout's
// byte order and encoding.
func Compile(layout *schema.Layout, resolve LayoutResolver) (s *Struct, err error) {
	defer func() {
		if r := recover(); r != nil {
			var de *DefinitionError
			if e, ok := r.(error); ok && errors.As(e, &de) {
				s, err = nil, fmt.Errorf("layout %s: %w", layout.Name, de)
				return
			}
			panic(r)
		}
	}()

	opts, err := layoutOptions(layout)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", layout.Name, err)
	}
	s = NewStruct(opts...)
	if err := appendLayout(s, layout, resolve, map[string]bool{layout.Name: true}); err != nil {
		return nil, fmt.Errorf("layout %s: %w", layout.Name, err)
	}
	return s, nil
}

func layoutOptions(layout *schema.Layout) ([]Option, error) {
	var opts []Option
	switch layout.ByteOrder {
	case "":
	case schema.LittleEndian:
		opts = append(opts, WithByteOrder(binary.LittleEndian))
	case schema.BigEndian:
		opts = append(opts, WithByteOrder(binary.BigEndian))
	default:
		return nil, fmt.Errorf("unknown byte order %q", layout.ByteOrder)
	}

	if layout.Encoding != "" {
		enc, err := wire.LookupEncoding(layout.Encoding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithEncoding(enc))
	}
	return opts, nil
}

// appendLayout declares the fields of layout on s, recursing into embeds
func appendLayout(s *Struct, layout *schema.Layout, resolve LayoutResolver, visiting map[string]bool) error {
	for _, f := range layout.Fields {
		if f.IsEmbed() {
			if resolve == nil {
				return fmt.Errorf("cannot resolve embedded layout %s", f.Embed)
			}
			inner, err := resolve(f.Embed)
			if err != nil {
				return err
			}
			if visiting[inner.Name] {
				return fmt.Errorf("embedding %s forms a cycle", inner.Name)
			}
			visiting[inner.Name] = true
			if err := appendLayout(s, inner, resolve, visiting); err != nil {
				return fmt.Errorf("embedded %s: %w", inner.Name, err)
			}
			delete(visiting, inner.Name)
			continue
		}

		def, err := fieldDefinition(f)
		if err != nil {
			return wire.WithField(err, f.Name)
		}
		s.Field(f.Name, def)
	}
	return nil
}

// fieldDefinition maps one declarative field onto the catalog
func fieldDefinition(f *schema.Field) (wire.Definition, error) {
	t, ok := wire.LookupType(f.Type)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", f.Type)
	}

	switch ft := t.(type) {
	case *wire.NumberType:
		if f.Length != 0 || f.LengthField != "" {
			return nil, fmt.Errorf("%s fields take no length", f.Type)
		}
		return wire.NewNumber(ft), nil
	case *wire.BufferType:
		switch {
		case f.LengthField != "" && f.Length != 0:
			return nil, fmt.Errorf("length and length_field are exclusive")
		case f.LengthField != "":
			return wire.NewBuffer(ft, wire.FromField(f.LengthField)), nil
		case f.Length > 0:
			return wire.NewBuffer(ft, wire.Fixed(f.Length)), nil
		default:
			return nil, fmt.Errorf("%s fields need a length or length_field", f.Type)
		}
	default:
		return nil, fmt.Errorf("unsupported type %q", f.Type)
	}
}
