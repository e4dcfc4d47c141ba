package registry

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/structlite/schema"
)

// Protobuf syntax is used as a declaration language for layouts:
//
//	message AdbPacketHeader {
//	  option (byte_order) = "little";
//	  uint32 command = 1;
//	  uint32 payload_length = 4;
//	  bytes payload = 7 [(length_field) = "payload_length"];
//	}
//
// Fields are laid out in field number order. Custom field options:
// (width) narrows 32-bit integers to 1 or 2 bytes, (length) gives a fixed
// buffer length, (length_field) names the earlier field holding it and
// (clamped) turns bytes into a clamped byte array. A message-typed field
// embeds that message's fields in place.

var protoScalars = map[string]schema.PrimitiveType{
	"uint32":   schema.TypeUint32,
	"fixed32":  schema.TypeUint32,
	"int32":    schema.TypeInt32,
	"sint32":   schema.TypeInt32,
	"sfixed32": schema.TypeInt32,
	"uint64":   schema.TypeUint64,
	"fixed64":  schema.TypeUint64,
	"int64":    schema.TypeInt64,
	"sint64":   schema.TypeInt64,
	"sfixed64": schema.TypeInt64,
	"string":   schema.TypeText,
	"bytes":    schema.TypeBuffer,
}

var narrowed = map[schema.PrimitiveType]map[int]schema.PrimitiveType{
	schema.TypeUint32: {1: schema.TypeUint8, 2: schema.TypeUint16, 4: schema.TypeUint32},
	schema.TypeInt32:  {1: schema.TypeInt8, 2: schema.TypeInt16, 4: schema.TypeInt32},
}

// parseProto converts every message of a .proto file into a layout
func parseProto(r io.Reader, name string) (*schema.File, error) {
	parsed, err := protoparser.Parse(r)
	if err != nil {
		return nil, err
	}

	file := &schema.File{Name: name}
	for _, body := range parsed.ProtoBody {
		switch b := body.(type) {
		case *protoparserparser.Package:
			file.Package = b.Name
		case *protoparserparser.Message:
			layouts, err := messageLayouts(b, "")
			if err != nil {
				return nil, err
			}
			file.Layouts = append(file.Layouts, layouts...)
		}
	}
	return file, nil
}

// messageLayouts converts a message and its nested messages
func messageLayouts(msg *protoparserparser.Message, prefix string) ([]*schema.Layout, error) {
	layout := &schema.Layout{Name: prefix + msg.MessageName}
	layouts := []*schema.Layout{layout}

	type numbered struct {
		number int
		field  *schema.Field
	}
	var fields []numbered

	for _, element := range msg.MessageBody {
		switch e := element.(type) {
		case *protoparserparser.Option:
			switch optionName(e.OptionName) {
			case "byte_order":
				layout.ByteOrder = schema.ByteOrder(unquote(e.Constant))
			case "encoding":
				layout.Encoding = unquote(e.Constant)
			}
		case *protoparserparser.Field:
			f, err := protoField(e)
			if err != nil {
				return nil, fmt.Errorf("message %s field %s: %w", layout.Name, e.FieldName, err)
			}
			number, err := strconv.Atoi(e.FieldNumber)
			if err != nil {
				return nil, fmt.Errorf("message %s field %s: bad number %q", layout.Name, e.FieldName, e.FieldNumber)
			}
			fields = append(fields, numbered{number: number, field: f})
		case *protoparserparser.Message:
			nested, err := messageLayouts(e, layout.Name+".")
			if err != nil {
				return nil, err
			}
			layouts = append(layouts, nested...)
		}
	}

	// Sort entries by field number in increasing order.
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].number < fields[j].number
	})
	for _, f := range fields {
		layout.Fields = append(layout.Fields, f.field)
	}
	return layouts, nil
}

// protoField converts one field declaration
func protoField(e *protoparserparser.Field) (*schema.Field, error) {
	if e.IsRepeated {
		return nil, fmt.Errorf("repeated fields are not supported")
	}

	options := make(map[string]string, len(e.FieldOptions))
	for _, opt := range e.FieldOptions {
		options[optionName(opt.OptionName)] = unquote(opt.Constant)
	}

	t, ok := protoScalars[e.Type]
	if !ok {
		// message-typed field: embed that layout
		return &schema.Field{Name: e.FieldName, Embed: strings.TrimPrefix(e.Type, ".")}, nil
	}
	f := &schema.Field{Name: e.FieldName, Type: t}

	if w, ok := options["width"]; ok {
		widths, ok := narrowed[t]
		if !ok {
			return nil, fmt.Errorf("(width) applies to 32-bit integers only")
		}
		n, err := strconv.Atoi(w)
		if err != nil {
			return nil, fmt.Errorf("bad (width) %q", w)
		}
		if f.Type, ok = widths[n]; !ok {
			return nil, fmt.Errorf("(width) must be 1, 2 or 4, got %d", n)
		}
	}

	if !schema.IsBufferLike(t) {
		return f, nil
	}
	if options["clamped"] == "true" {
		if t != schema.TypeBuffer {
			return nil, fmt.Errorf("(clamped) applies to bytes only")
		}
		f.Type = schema.TypeClamped
	}
	if l, ok := options["length"]; ok {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad (length) %q", l)
		}
		f.Length = n
	}
	f.LengthField = options["length_field"]
	return f, nil
}

// optionName strips the parentheses and package of a custom option name,
// "(structlite.length)" -> "length"
func optionName(name string) string {
	name = strings.Trim(name, "()")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, `"'`)
}
