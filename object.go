package structlite

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/anirudhraja/structlite/wire"
)

// ===== RUNTIME OBJECT =====

// Object is one instance of a Struct. It keeps the runtime value of every
// field (size plus encoder bound to the current value) apart from the plain
// values handed to callers, and carries the struct's extra properties.
type Object struct {
	s       *Struct
	runtime map[string]wire.Value
}

func newObject(s *Struct) *Object {
	return &Object{
		s:       s,
		runtime: make(map[string]wire.Value, len(s.fields)),
	}
}

// store records the runtime value of a field
func (o *Object) store(name string, v wire.Value) {
	o.runtime[name] = v
}

// Lookup returns the runtime value of a field
func (o *Object) Lookup(name string) (wire.Value, bool) {
	v, ok := o.runtime[name]
	return v, ok
}

// Replace swaps the runtime value of a field
func (o *Object) Replace(name string, v wire.Value) {
	o.runtime[name] = v
}

// Values returns the plain field values populated so far. Extras are not
// included.
func (o *Object) Values() wire.Values {
	values := make(wire.Values, len(o.runtime))
	for name, v := range o.runtime {
		values[name] = v.Get()
	}
	return values
}

// Struct returns the struct that produced the object
func (o *Object) Struct() *Struct { return o.s }

// Names returns the field names in declaration order
func (o *Object) Names() []string { return o.s.FieldNames() }

// Field returns the value of a declared field
func (o *Object) Field(name string) (any, bool) {
	v, ok := o.runtime[name]
	if !ok {
		return nil, false
	}
	return v.Get(), true
}

// Extra returns the value of an extra property, evaluating getters
func (o *Object) Extra(name string) (any, bool) {
	e, ok := o.s.extras[name]
	if !ok {
		return nil, false
	}
	if getter, ok := e.(func(*Object) any); ok {
		return getter(o), true
	}
	return e, true
}

// Get returns a field value, or an extra property when no field has that
// name. It returns nil for unknown names.
func (o *Object) Get(name string) any {
	if v, ok := o.Field(name); ok {
		return v
	}
	v, _ := o.Extra(name)
	return v
}

// Has reports whether name is a field or an extra property
func (o *Object) Has(name string) bool {
	if _, ok := o.runtime[name]; ok {
		return true
	}
	_, ok := o.s.extras[name]
	return ok
}

// Size returns the resolved byte size of the object
func (o *Object) Size() int {
	size := 0
	for _, f := range o.s.fields {
		size += o.runtime[f.Name].Size()
	}
	return size
}

// Bytes serializes the object: every field at the sum of the sizes of
// the fields before it.
func (o *Object) Bytes() []byte {
	values := make([]wire.Value, len(o.s.fields))
	for i, f := range o.s.fields {
		values[i] = o.runtime[f.Name]
	}
	return wire.EncodeValues(values)
}

// Decode stores fields and extras into the struct pointed to by v, matched
// by `struct:"name"` tag or Go field name, converting types where Go allows.
func (o *Object) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode target must be a pointer to struct")
	}
	return o.mapToStruct(rv.Elem())
}

// mapToStruct maps object values to struct fields
func (o *Object) mapToStruct(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		name := fieldName(field)
		if name == "-" || !o.Has(name) {
			continue
		}
		if err := setFieldValue(fieldValue, o.Get(name)); err != nil {
			return fmt.Errorf("failed to set field %s: %v", field.Name, err)
		}
	}
	return nil
}

// setFieldValue sets a struct field with type conversion
func setFieldValue(fieldValue reflect.Value, value any) error {
	if value == nil {
		return nil
	}

	sourceValue := reflect.ValueOf(value)
	if sourceValue.Type().AssignableTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue)
		return nil
	}

	if sourceValue.Type().ConvertibleTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue.Convert(fieldValue.Type()))
		return nil
	}

	return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
}

// fieldName returns the layout name of a Go struct field
func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("struct"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" {
			return name
		}
	}
	return field.Name
}

// MarshalJSON renders the fields in declaration order followed by the
// extras sorted by name. Byte buffers are rendered as arrays of numbers so
// the output can be fed back as an initializer.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(name string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		val, err := json.Marshal(jsonValue(v))
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	for _, f := range o.s.fields {
		if err := write(f.Name, o.runtime[f.Name].Get()); err != nil {
			return nil, err
		}
	}
	for _, name := range o.s.ExtraNames() {
		v, _ := o.Extra(name)
		if err := write(name, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	var b []byte
	switch x := v.(type) {
	case []byte:
		b = x
	case wire.ClampedBytes:
		b = x
	default:
		return v
	}
	out := make([]int, len(b))
	for i, c := range b {
		out[i] = int(c)
	}
	return out
}

// String renders the object as JSON
func (o *Object) String() string {
	b, err := o.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
