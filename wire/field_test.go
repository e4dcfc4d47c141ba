package wire

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/anirudhraja/structlite/deferred"
)

// testScope is a minimal object under construction
type testScope struct {
	init    Values
	runtime map[string]Value
	order   []string
}

func newTestScope(init Values) *testScope {
	return &testScope{init: init, runtime: make(map[string]Value)}
}

func (s *testScope) Lookup(name string) (Value, bool) {
	v, ok := s.runtime[name]
	return v, ok
}

func (s *testScope) Replace(name string, v Value) { s.runtime[name] = v }

func (s *testScope) Values() Values {
	if s.init != nil {
		return s.init
	}
	out := make(Values, len(s.runtime))
	for k, v := range s.runtime {
		out[k] = v.Get()
	}
	return out
}

func (s *testScope) store(name string, v Value) {
	s.runtime[name] = v
	s.order = append(s.order, name)
}

func (s *testScope) bind(t *testing.T, name string, def Definition, ctx *Context) error {
	t.Helper()
	v, err := def.Bind(name, s, ctx)
	if err != nil {
		return err
	}
	s.store(name, v)
	return nil
}

func (s *testScope) encode() []byte {
	values := make([]Value, 0, len(s.order))
	for _, name := range s.order {
		values = append(values, s.runtime[name])
	}
	return EncodeValues(values)
}

func littleContext() *Context {
	return &Context{ByteOrder: binary.LittleEndian, Encoding: UTF8}
}

func TestNumberDefinition_Bind(t *testing.T) {
	def := NewNumber(Uint16)
	ctx := littleContext()

	scope := newTestScope(Values{"port": 0x1234})
	if err := scope.bind(t, "port", def, ctx); err != nil {
		t.Fatal(err)
	}
	if got := scope.encode(); !bytes.Equal(got, []byte{0x34, 0x12}) {
		t.Errorf("encoded = %x", got)
	}
	if def.StaticSize(ctx) != 2 || !def.IsFixed() || def.LengthField() != "" {
		t.Error("unexpected number definition metadata")
	}

	_, err := def.Bind("port", newTestScope(Values{}), ctx)
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
	_, err = def.Bind("port", newTestScope(Values{"port": 70000}), ctx)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestBufferDefinition_Fixed(t *testing.T) {
	ctx := littleContext()
	tests := []struct {
		name    string
		def     Definition
		input   any
		wire    []byte
		logical any
		err     error
	}{
		{"exact", NewBuffer(Buffer, Fixed(3)), []byte{1, 2, 3}, []byte{1, 2, 3}, []byte{1, 2, 3}, nil},
		{"padded", NewBuffer(Buffer, Fixed(4)), []byte{1}, []byte{1, 0, 0, 0}, []byte{1, 0, 0, 0}, nil},
		{"too long", NewBuffer(Buffer, Fixed(1)), []byte{1, 2}, nil, nil, ErrLengthMismatch},
		{"text padded", NewBuffer(Text, Fixed(4)), "ab", []byte{'a', 'b', 0, 0}, "ab\x00\x00", nil},
		{"clamped", NewBuffer(Clamped, Fixed(2)), []float64{-3, 999}, []byte{0, 255}, ClampedBytes{0, 255}, nil},
		{"clamped padded", NewBuffer(Clamped, Fixed(3)), []int{7}, []byte{7, 0, 0}, ClampedBytes{7, 0, 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := newTestScope(Values{"f": tt.input})
			err := scope.bind(t, "f", tt.def, ctx)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := scope.encode(); !bytes.Equal(got, tt.wire) {
				t.Errorf("encoded = %x, want %x", got, tt.wire)
			}
			if got := scope.runtime["f"].Get(); !reflect.DeepEqual(got, tt.logical) {
				t.Errorf("value = %#v, want %#v", got, tt.logical)
			}
			if got := tt.def.StaticSize(ctx); got != len(tt.wire) {
				t.Errorf("StaticSize = %d, want %d", got, len(tt.wire))
			}
		})
	}
}

func TestBufferDefinition_FixedTextUnits(t *testing.T) {
	ctx := &Context{ByteOrder: binary.LittleEndian, Encoding: UTF16LE}
	def := NewBuffer(Text, Fixed(3))
	if got := def.StaticSize(ctx); got != 6 {
		t.Errorf("StaticSize = %d, want 6", got)
	}

	scope := newTestScope(Values{"name": "ok"})
	if err := scope.bind(t, "name", def, ctx); err != nil {
		t.Fatal(err)
	}
	if got := scope.encode(); !bytes.Equal(got, []byte{'o', 0, 'k', 0, 0, 0}) {
		t.Errorf("encoded = %x", got)
	}
}

func TestBufferDefinition_FromField(t *testing.T) {
	ctx := littleContext()
	lengthDef := NewNumber(Uint16)
	payloadDef := NewBuffer(Text, FromField("len"))

	if payloadDef.IsFixed() || payloadDef.StaticSize(ctx) != 0 || payloadDef.LengthField() != "len" {
		t.Error("unexpected variable definition metadata")
	}

	t.Run("derived", func(t *testing.T) {
		scope := newTestScope(Values{"payload": "hi"})
		// no explicit length: a placeholder is bound first
		v, err := NewNumberValue(Uint16, 0, ctx)
		if err != nil {
			t.Fatal(err)
		}
		scope.store("len", v)
		if err := scope.bind(t, "payload", payloadDef, ctx); err != nil {
			t.Fatal(err)
		}
		if got := scope.encode(); !bytes.Equal(got, []byte{0x02, 0x00, 'h', 'i'}) {
			t.Errorf("encoded = %x", got)
		}
		if n, _ := scope.Lookup("len"); n.Get() != uint16(2) {
			t.Errorf("derived length = %v", n.Get())
		}
	})

	t.Run("explicit agrees", func(t *testing.T) {
		scope := newTestScope(Values{"len": 2, "payload": "hi"})
		if err := scope.bind(t, "len", lengthDef, ctx); err != nil {
			t.Fatal(err)
		}
		if err := scope.bind(t, "payload", payloadDef, ctx); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("explicit disagrees", func(t *testing.T) {
		scope := newTestScope(Values{"len": 5, "payload": "hi"})
		if err := scope.bind(t, "len", lengthDef, ctx); err != nil {
			t.Fatal(err)
		}
		err := scope.bind(t, "payload", payloadDef, ctx)
		if !errors.Is(err, ErrLengthMismatch) {
			t.Fatalf("expected ErrLengthMismatch, got %v", err)
		}
		var fe *FieldError
		if !errors.As(err, &fe) || fe.FieldPath[0] != "len" {
			t.Errorf("expected error at field len, got %v", err)
		}
	})

	t.Run("length does not fit", func(t *testing.T) {
		narrow := NewBuffer(Buffer, FromField("n"))
		scope := newTestScope(Values{"data": make([]byte, 300)})
		v, _ := NewNumberValue(Uint8, 0, ctx)
		scope.store("n", v)
		if err := scope.bind(t, "data", narrow, ctx); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	})
}

func TestBufferDefinition_FromFunc(t *testing.T) {
	ctx := littleContext()
	def := NewBuffer(Buffer, FromFunc(func(values Values) (int, error) {
		n, err := toLength(values["count"])
		return n * 2, err
	}))

	scope := newTestScope(Values{"count": 2, "pairs": []byte{1, 2, 3, 4}})
	if err := scope.bind(t, "pairs", def, ctx); err != nil {
		t.Fatal(err)
	}

	scope = newTestScope(Values{"count": 1, "pairs": []byte{1, 2, 3, 4}})
	if err := scope.bind(t, "pairs", def, ctx); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestDecoder_Sequential(t *testing.T) {
	ctx := littleContext()
	fields := []NamedField{
		{Name: "kind", Definition: NewNumber(Uint8)},
		{Name: "len", Definition: NewNumber(Uint16)},
		{Name: "body", Definition: NewBuffer(Buffer, FromField("len"))},
		{Name: "tail", Definition: NewBuffer(Text, Fixed(2))},
	}
	data := []byte{7, 3, 0, 'a', 'b', 'c', 'o', 'k', 0xEE}

	scope := newTestScope(nil)
	res := NewDecoder(NewBufferSource(data), ctx).DecodeFields(fields, scope, scope.store)
	if res.State() != deferred.StateResolved {
		t.Fatalf("expected synchronous decode, got %s", res.State())
	}
	if _, err := res.Sync(); err != nil {
		t.Fatal(err)
	}

	want := Values{"kind": uint8(7), "len": uint16(3), "body": []byte("abc"), "tail": "ok"}
	if got := scope.Values(); !reflect.DeepEqual(got, want) {
		t.Errorf("decoded = %#v, want %#v", got, want)
	}
	if !reflect.DeepEqual(scope.order, []string{"kind", "len", "body", "tail"}) {
		t.Errorf("store order = %v", scope.order)
	}
	// re-serializing yields the consumed prefix
	if got := scope.encode(); !bytes.Equal(got, data[:8]) {
		t.Errorf("re-encoded = %x", got)
	}
}

func TestDecoder_ErrorPath(t *testing.T) {
	ctx := littleContext()
	fields := []NamedField{
		{Name: "len", Definition: NewNumber(Uint8)},
		{Name: "body", Definition: NewBuffer(Buffer, FromField("len"))},
	}

	scope := newTestScope(nil)
	_, err := NewDecoder(NewBufferSource([]byte{5, 1, 2}), ctx).DecodeFields(fields, scope, scope.store).Sync()
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.FieldPath[0] != "body" {
		t.Errorf("expected error at field body, got %v", err)
	}
	if _, ok := scope.runtime["body"]; ok {
		t.Error("failed field was stored")
	}
}

func TestDecoder_Suspends(t *testing.T) {
	ctx := &Context{ByteOrder: binary.BigEndian, Encoding: UTF8}
	fields := []NamedField{
		{Name: "a", Definition: NewNumber(Uint16)},
		{Name: "b", Definition: NewNumber(Uint32)},
	}

	src := NewStreamSource()
	if err := src.Push([]byte{0x00, 0x01, 0x00}); err != nil {
		t.Fatal(err)
	}

	scope := newTestScope(nil)
	res := NewDecoder(src, ctx).DecodeFields(fields, scope, scope.store)
	if res.State() != deferred.StatePending {
		t.Fatalf("expected pending decode, got %s", res.State())
	}
	// the first field was decoded before suspending
	if v, ok := scope.Lookup("a"); !ok || v.Get() != uint16(1) {
		t.Errorf("field a = %v, %v", v, ok)
	}

	if err := src.Push([]byte{0x00, 0x00, 0x02}); err != nil {
		t.Fatal(err)
	}
	if _, err := res.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, _ := scope.Lookup("b"); v.Get() != uint32(2) {
		t.Errorf("field b = %v", v.Get())
	}
}

func TestDecoder_PendingFailure(t *testing.T) {
	fields := []NamedField{
		{Name: "magic", Definition: NewNumber(Uint32)},
	}
	src := NewStreamSource()
	scope := newTestScope(nil)
	res := NewDecoder(src, nil).DecodeFields(fields, scope, scope.store)
	src.Close()

	_, err := res.Await(context.Background())
	if !errors.Is(err, ErrSourceExhausted) {
		t.Fatalf("expected ErrSourceExhausted, got %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.FieldPath[0] != "magic" {
		t.Errorf("expected error at field magic, got %v", err)
	}
}

func TestEncoder(t *testing.T) {
	ctx := littleContext()
	a, _ := NewNumberValue(Uint8, 1, ctx)
	b, _ := NewNumberValue(Int16, -2, ctx)

	enc := NewEncoder(3)
	enc.Write(a)
	if enc.Offset() != 1 {
		t.Errorf("offset = %d", enc.Offset())
	}
	enc.Write(b)
	if !bytes.Equal(enc.Bytes(), []byte{1, 0xFE, 0xFF}) {
		t.Errorf("bytes = %x", enc.Bytes())
	}

	if got := EncodeValues(nil); len(got) != 0 {
		t.Errorf("empty encode = %x", got)
	}
}

func TestConfig(t *testing.T) {
	saved := CurrentConfig()
	defer SetConfig(saved)

	SetConfig(Config{BigEndianDefault: true})
	if DefaultByteOrder() != binary.BigEndian {
		t.Error("expected big-endian default")
	}
	if DefaultContext().ByteOrder != binary.BigEndian {
		t.Error("DefaultContext ignores config")
	}

	SetConfig(Config{})
	if DefaultByteOrder() != binary.LittleEndian {
		t.Error("expected little-endian default")
	}
}

func TestConfig_ShareDecodedBuffers(t *testing.T) {
	saved := CurrentConfig()
	defer SetConfig(saved)

	data := []byte{1, 2}
	def := NewBuffer(Buffer, Fixed(2))

	SetConfig(Config{ShareDecodedBuffers: true})
	v, err := def.Read("b", NewBufferSource(data), newTestScope(nil), littleContext()).Sync()
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 9
	if v.Get().([]byte)[0] != 9 {
		t.Error("shared buffer does not alias the source")
	}

	SetConfig(Config{})
	v, err = def.Read("b", NewBufferSource(data), newTestScope(nil), littleContext()).Sync()
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 1
	if v.Get().([]byte)[0] != 9 {
		t.Error("copied buffer aliases the source")
	}
}
