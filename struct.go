package structlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"github.com/anirudhraja/structlite/deferred"
	"github.com/anirudhraja/structlite/internal/logging"
	"github.com/anirudhraja/structlite/wire"
)

// ===== STRUCT BUILDER =====

// Struct is an ordered list of typed fields that can construct, serialize
// and deserialize instances of its binary layout. Fields are written and
// read in declaration order, back to back, with no padding.
//
// A Struct is built with chained calls and becomes immutable on the first
// call to Create, Serialize or Deserialize; building it further after that
// panics. Definition mistakes (duplicate names, a length field that is not
// an earlier integer field) also panic with a *DefinitionError, since they
// are programming errors in the layout itself.
type Struct struct {
	fields     []wire.NamedField
	index      map[string]int
	staticSize int
	lengthOf   map[string]string // length field -> variable field it sizes
	extras     Extras
	post       PostDeserializeFunc
	ctx        *wire.Context
	frozen     atomic.Bool
}

// Extras are non-wire properties attached to every produced object. A value
// of type func(*Object) any is evaluated on access, anything else is a
// static value.
type Extras map[string]any

// PostDeserializeFunc runs once per deserialize with the populated object.
// A non-nil result replaces the object as the deserialize result; nil, or a
// typed nil such as (*T)(nil), keeps the object. An error rejects the
// deserialize.
type PostDeserializeFunc func(obj *Object) (any, error)

// Option configures struct-wide behavior
type Option func(*Struct)

// WithByteOrder sets the byte order of integer fields
func WithByteOrder(order binary.ByteOrder) Option {
	return func(s *Struct) {
		s.ctx.ByteOrder = order
	}
}

// WithEncoding sets the text encoding of text fields
func WithEncoding(enc wire.TextEncoding) Option {
	return func(s *Struct) {
		s.ctx.Encoding = enc
	}
}

// NewStruct creates an empty struct. Integers default to the wire package's
// default byte order (little-endian unless configured) and text to UTF-8.
func NewStruct(opts ...Option) *Struct {
	s := &Struct{
		index:    make(map[string]int),
		lengthOf: make(map[string]string),
		extras:   make(Extras),
		ctx:      wire.DefaultContext(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefinitionError reports an invalid struct definition
type DefinitionError struct {
	Field string
	Msg   string
}

func (e *DefinitionError) Error() string {
	if e.Field == "" {
		return "structlite: " + e.Msg
	}
	return fmt.Sprintf("structlite: field %q: %s", e.Field, e.Msg)
}

func definitionPanic(field, format string, args ...any) {
	panic(&DefinitionError{Field: field, Msg: fmt.Sprintf(format, args...)})
}

func (s *Struct) mutable(field, op string) {
	if s.frozen.Load() {
		definitionPanic(field, "%s after the struct was first used", op)
	}
}

// Field appends one field. Its static size contribution is added to the
// struct's static size.
func (s *Struct) Field(name string, def wire.Definition) *Struct {
	s.mutable(name, "Field")
	if name == "" {
		definitionPanic(name, "empty field name")
	}
	if def == nil {
		definitionPanic(name, "nil definition")
	}
	if _, dup := s.index[name]; dup {
		definitionPanic(name, "declared twice")
	}
	if _, dup := s.extras[name]; dup {
		definitionPanic(name, "collides with an extra property")
	}

	size := def.StaticSize(s.ctx)
	if size < 0 {
		definitionPanic(name, "negative length %d", size)
	}

	if lf := def.LengthField(); lf != "" {
		i, ok := s.index[lf]
		if !ok {
			definitionPanic(name, "length field %q must be declared earlier", lf)
		}
		if _, ok := s.fields[i].Definition.Type().(*wire.NumberType); !ok {
			definitionPanic(name, "length field %q is not an integer", lf)
		}
		if other, taken := s.lengthOf[lf]; taken {
			definitionPanic(name, "length field %q already sizes %q", lf, other)
		}
		s.lengthOf[lf] = name
	}

	s.index[name] = len(s.fields)
	s.fields = append(s.fields, wire.NamedField{Name: name, Definition: def})
	s.staticSize += size
	return s
}

// Fields flattens other's fields and extras into s, as if each had been
// declared on s in place. Sizes are computed with s's options.
func (s *Struct) Fields(other *Struct) *Struct {
	s.mutable("", "Fields")
	for _, f := range other.fields {
		s.Field(f.Name, f.Definition)
	}
	return s.Extra(other.extras)
}

// Uint8 appends an unsigned 1 byte integer field
func (s *Struct) Uint8(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Uint8)) }

// Int8 appends a signed 1 byte integer field
func (s *Struct) Int8(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Int8)) }

// Uint16 appends an unsigned 2 byte integer field
func (s *Struct) Uint16(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Uint16)) }

// Int16 appends a signed 2 byte integer field
func (s *Struct) Int16(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Int16)) }

// Uint32 appends an unsigned 4 byte integer field
func (s *Struct) Uint32(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Uint32)) }

// Int32 appends a signed 4 byte integer field
func (s *Struct) Int32(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Int32)) }

// Uint64 appends an unsigned 8 byte integer field
func (s *Struct) Uint64(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Uint64)) }

// Int64 appends a signed 8 byte integer field
func (s *Struct) Int64(name string) *Struct { return s.Field(name, wire.NewNumber(wire.Int64)) }

// Buffer appends a raw byte buffer field
func (s *Struct) Buffer(name string, length wire.Length) *Struct {
	return s.Field(name, wire.NewBuffer(wire.Buffer, length))
}

// Clamped appends a clamped byte array field
func (s *Struct) Clamped(name string, length wire.Length) *Struct {
	return s.Field(name, wire.NewBuffer(wire.Clamped, length))
}

// Text appends a text field encoded with the struct's encoding
func (s *Struct) Text(name string, length wire.Length) *Struct {
	return s.Field(name, wire.NewBuffer(wire.Text, length))
}

// Extra attaches non-wire properties. Later calls overwrite earlier
// properties of the same name.
func (s *Struct) Extra(props Extras) *Struct {
	s.mutable("", "Extra")
	for name, v := range props {
		if _, clash := s.index[name]; clash {
			definitionPanic(name, "extra property collides with a field")
		}
		s.extras[name] = v
	}
	return s
}

// PostDeserialize sets the hook run at the end of every deserialize
func (s *Struct) PostDeserialize(fn PostDeserializeFunc) *Struct {
	s.mutable("", "PostDeserialize")
	s.post = fn
	return s
}

// ===== INTROSPECTION =====

// StaticSize returns the sum of the fixed-size fields
func (s *Struct) StaticSize() int { return s.staticSize }

// FieldNames returns the field names in declaration order
func (s *Struct) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Definition returns the definition of a field
func (s *Struct) Definition(name string) (wire.Definition, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i].Definition, true
}

// Omitted returns the fields whose value is derived from a variable-length
// field and may be left out of an initializer, in declaration order.
func (s *Struct) Omitted() []string {
	var names []string
	for _, f := range s.fields {
		if _, ok := s.lengthOf[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}

// ExtraNames returns the extra property names, sorted
func (s *Struct) ExtraNames() []string {
	names := make([]string, 0, len(s.extras))
	for name := range s.extras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsFixedSize reports whether every field has a static size
func (s *Struct) IsFixedSize() bool {
	for _, f := range s.fields {
		if !f.Definition.IsFixed() {
			return false
		}
	}
	return true
}

// ByteOrder returns the integer byte order
func (s *Struct) ByteOrder() binary.ByteOrder { return s.ctx.ByteOrder }

// Encoding returns the text encoding
func (s *Struct) Encoding() wire.TextEncoding { return s.ctx.Encoding }

// ===== ENTRY POINTS =====

// Create builds an object from a fully supplied initializer without any
// I/O. Length fields sized by a variable-length field may be omitted.
func (s *Struct) Create(init wire.Values) (*Object, error) {
	s.frozen.Store(true)
	if init == nil {
		init = wire.Values{}
	}

	obj := newObject(s)
	scope := &createScope{Object: obj, init: init}
	for _, f := range s.fields {
		v, err := s.bind(f, scope, init)
		if err != nil {
			return nil, wire.WithField(err, f.Name)
		}
		obj.store(f.Name, v)
	}
	return obj, nil
}

func (s *Struct) bind(f wire.NamedField, scope wire.Scope, init wire.Values) (wire.Value, error) {
	if _, derived := s.lengthOf[f.Name]; derived {
		if _, supplied := init[f.Name]; !supplied {
			// placeholder until the variable-length field replaces it
			return wire.NewNumberValue(f.Definition.Type().(*wire.NumberType), 0, s.ctx)
		}
	}
	return f.Definition.Bind(f.Name, scope, s.ctx)
}

// Serialize creates an object from init and encodes it. The sizes of all
// fields are resolved first so exactly one buffer is allocated.
func (s *Struct) Serialize(init wire.Values) ([]byte, error) {
	obj, err := s.Create(init)
	if err != nil {
		return nil, err
	}
	return obj.Bytes(), nil
}

// Deserialize reads an object from src, one field at a time in declaration
// order, then runs the post-deserialize hook. The result is settled
// immediately when src already holds every byte; it is pending only while
// src waits for data. The resolved value is an *Object unless the hook
// replaced it.
func (s *Struct) Deserialize(src wire.Source) deferred.Value[any] {
	s.frozen.Store(true)

	obj := newObject(s)
	done := wire.NewDecoder(src, s.ctx).DecodeFields(s.fields, obj, obj.store)
	return deferred.Then(done, func(struct{}) deferred.Value[any] {
		if s.post == nil {
			return deferred.Resolved[any](obj)
		}
		out, err := s.post(obj)
		if err != nil {
			logging.Debug(logging.ComponentStruct, "post-deserialize rejected", "error", err)
			return deferred.Rejected[any](err)
		}
		if !isNil(out) {
			return deferred.Resolved(out)
		}
		return deferred.Resolved[any](obj)
	})
}

// DeserializeObject waits for Deserialize and returns the object. It fails
// if the post-deserialize hook replaced the object with another value.
func (s *Struct) DeserializeObject(ctx context.Context, src wire.Source) (*Object, error) {
	v, err := s.Deserialize(src).Await(ctx)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("post-deserialize returned %T, not an object", v)
	}
	return obj, nil
}

// Marshal serializes a wire.Values, a map[string]any or a Go struct.
// Struct fields are matched by their `struct:"name"` tag, else by their Go
// name; a zero-valued derived length field is treated as omitted.
func (s *Struct) Marshal(v any) ([]byte, error) {
	init, err := s.toValues(v)
	if err != nil {
		return nil, err
	}
	return s.Serialize(init)
}

// Unmarshal deserializes data and stores the fields into the struct
// pointed to by v. Trailing bytes are ignored.
func (s *Struct) Unmarshal(data []byte, v any) error {
	obj, err := s.DeserializeObject(context.Background(), wire.NewBufferSource(data))
	if err != nil {
		return err
	}
	return obj.Decode(v)
}

func (s *Struct) toValues(v any) (wire.Values, error) {
	switch m := v.(type) {
	case wire.Values:
		return m, nil
	case map[string]any:
		return wire.Values(m), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("marshal source is a nil pointer")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("marshal source must be a map or struct, got %T", v)
	}

	init := make(wire.Values)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}
		if _, declared := s.index[name]; !declared {
			continue
		}
		fv := rv.Field(i)
		if _, derived := s.lengthOf[name]; derived && fv.IsZero() {
			continue
		}
		init[name] = fv.Interface()
	}
	return init, nil
}

// createScope is the object under construction with the initializer as its
// value view
type createScope struct {
	*Object
	init wire.Values
}

func (c *createScope) Values() wire.Values { return c.init }

// isNil reports whether v is nil or a nil pointer, map, slice, func,
// channel or interface
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
