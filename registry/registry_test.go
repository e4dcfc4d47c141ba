package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anirudhraja/structlite/schema"
)

const adbProto = `syntax = "proto3";
package adb;

message Header {
  option (byte_order) = "little";
  uint32 command = 1;
  uint32 arg0 = 2;
  uint32 arg1 = 3;
  uint32 payload_length = 4;
  uint32 checksum = 5;
  uint32 magic = 6;
}

message Packet {
  bytes payload = 2 [(length_field) = "payload_length"];
  Header header = 1;
}

message Small {
  option (byte_order) = "big";
  option (encoding) = "utf-16le";
  uint32 flags = 1 [(width) = 1];
  int32 delta = 2 [(width) = 2];
  bytes tag = 3 [(length) = 4];
  bytes pixels = 4 [(length) = 3, (clamped) = true];
  string name = 5 [(length) = 8];

  message Inner {
    uint64 id = 1;
  }
}
`

const deviceYAML = `package: device
layouts:
  - name: Frame
    byte_order: big
    fields:
      - name: kind
        type: uint8
      - name: size
        type: uint16
      - name: body
        type: buffer
        length_field: size
`

const deviceJSON = `{
  "package": "device",
  "layouts": [
    {"name": "Ack", "fields": [{"name": "seq", "type": "uint32"}]}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	if registry == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if registry.layouts != nil {
		t.Error("Expected layouts map to be nil initially")
	}
	if names := registry.ListLayouts(); len(names) != 0 {
		t.Errorf("Expected no layouts, got %v", names)
	}
}

func TestLoadSchema_NonExistentPath(t *testing.T) {
	registry := NewRegistry()

	err := registry.LoadSchema("/nonexistent/path")
	if err == nil {
		t.Fatal("Expected error for non-existent path")
	}
	if !contains(err.Error(), "path does not exist") {
		t.Errorf("Expected 'path does not exist' error, got: %v", err)
	}
}

func TestLoadSchema_UnsupportedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "not a layout")

	registry := NewRegistry()
	err := registry.LoadSchema(path)
	if err == nil {
		t.Fatal("Expected error for unsupported file")
	}
	if !contains(err.Error(), "is not a supported layout file") {
		t.Errorf("Expected 'is not a supported layout file' error, got: %v", err)
	}
}

func TestLoadSchema_ProtoFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "adb.proto", adbProto)

	registry := NewRegistry()
	if err := registry.LoadSchema(path); err != nil {
		t.Fatalf("LoadSchema failed: %v", err)
	}

	file := registry.Repo().Files[path]
	if file == nil {
		t.Fatal("file not recorded in repo")
	}
	if file.Package != "adb" {
		t.Errorf("Expected package 'adb', got '%s'", file.Package)
	}

	want := []string{"adb.Header", "adb.Packet", "adb.Small", "adb.Small.Inner"}
	got := registry.ListLayouts()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ListLayouts() = %v, want %v", got, want)
	}

	header, err := registry.GetLayout("adb.Header")
	if err != nil {
		t.Fatalf("GetLayout failed: %v", err)
	}
	if header.ByteOrder != schema.LittleEndian {
		t.Errorf("Expected little byte order, got %q", header.ByteOrder)
	}
	if len(header.Fields) != 6 || header.Fields[3].Name != "payload_length" {
		t.Errorf("unexpected header fields: %+v", header.Fields)
	}
}

func TestLoadSchema_ProtoFieldMapping(t *testing.T) {
	path := writeFile(t, t.TempDir(), "adb.proto", adbProto)
	registry := NewRegistry()
	if err := registry.LoadSchema(path); err != nil {
		t.Fatalf("LoadSchema failed: %v", err)
	}

	packet, err := registry.GetLayout("Packet")
	if err != nil {
		t.Fatalf("GetLayout failed: %v", err)
	}
	// fields follow field numbers, not declaration order
	if len(packet.Fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(packet.Fields))
	}
	if !packet.Fields[0].IsEmbed() || packet.Fields[0].Embed != "Header" {
		t.Errorf("Expected embed of Header first, got %+v", packet.Fields[0])
	}
	if packet.Fields[1].Type != schema.TypeBuffer || packet.Fields[1].LengthField != "payload_length" {
		t.Errorf("unexpected payload field: %+v", packet.Fields[1])
	}

	small, err := registry.GetLayout("Small")
	if err != nil {
		t.Fatalf("GetLayout failed: %v", err)
	}
	if small.ByteOrder != schema.BigEndian || small.Encoding != "utf-16le" {
		t.Errorf("unexpected options: order=%q encoding=%q", small.ByteOrder, small.Encoding)
	}

	tests := []struct {
		name   string
		typ    schema.PrimitiveType
		length int
	}{
		{"flags", schema.TypeUint8, 0},
		{"delta", schema.TypeInt16, 0},
		{"tag", schema.TypeBuffer, 4},
		{"pixels", schema.TypeClamped, 3},
		{"name", schema.TypeText, 8},
	}
	for i, tt := range tests {
		f := small.Fields[i]
		if f.Name != tt.name || f.Type != tt.typ || f.Length != tt.length {
			t.Errorf("field %d = %+v, want name=%s type=%s length=%d", i, f, tt.name, tt.typ, tt.length)
		}
	}
}

func TestLoadSchema_ProtoErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "repeated",
			content: "syntax = \"proto3\";\nmessage M { repeated uint32 a = 1; }\n",
			errMsg:  "repeated fields are not supported",
		},
		{
			name:    "bad width",
			content: "syntax = \"proto3\";\nmessage M { uint32 a = 1 [(width) = 3]; }\n",
			errMsg:  "(width) must be 1, 2 or 4",
		},
		{
			name:    "width on text",
			content: "syntax = \"proto3\";\nmessage M { string a = 1 [(width) = 1]; }\n",
			errMsg:  "(width) applies to 32-bit integers only",
		},
		{
			name:    "clamped text",
			content: "syntax = \"proto3\";\nmessage M { string a = 1 [(clamped) = true, (length) = 2]; }\n",
			errMsg:  "(clamped) applies to bytes only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "m.proto", tt.content)
			err := NewRegistry().LoadSchema(path)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected %q in error, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestLoadSchema_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frame.yaml", deviceYAML)
	writeFile(t, dir, "nested/ack.json", deviceJSON)
	writeFile(t, dir, "README.md", "ignored")

	registry := NewRegistry()
	if err := registry.LoadSchema(dir); err != nil {
		t.Fatalf("LoadSchema failed: %v", err)
	}

	if len(registry.Repo().Files) != 2 {
		t.Errorf("Expected 2 files, got %d", len(registry.Repo().Files))
	}

	frame, err := registry.GetLayout("device.Frame")
	if err != nil {
		t.Fatalf("GetLayout failed: %v", err)
	}
	if frame.ByteOrder != schema.BigEndian {
		t.Errorf("Expected big byte order, got %q", frame.ByteOrder)
	}
	if len(frame.Fields) != 3 || frame.Fields[2].LengthField != "size" {
		t.Errorf("unexpected frame fields: %+v", frame.Fields)
	}

	ack, err := registry.GetLayout("Ack")
	if err != nil {
		t.Fatalf("GetLayout failed: %v", err)
	}
	if ack.Fields[0].Type != schema.TypeUint32 {
		t.Errorf("Expected uint32 seq, got %q", ack.Fields[0].Type)
	}
}

func TestLoadSchema_Accumulates(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "frame.yaml", deviceYAML)
	jsonPath := writeFile(t, dir, "ack.json", deviceJSON)

	registry := NewRegistry()
	if err := registry.LoadSchema(yamlPath); err != nil {
		t.Fatal(err)
	}
	if err := registry.LoadSchema(jsonPath); err != nil {
		t.Fatal(err)
	}
	if got := registry.ListLayouts(); len(got) != 2 {
		t.Errorf("Expected 2 layouts, got %v", got)
	}

	// loading the same file twice redefines its layouts
	err := registry.LoadSchema(yamlPath)
	if err == nil || !contains(err.Error(), "duplicate layout device.Frame") {
		t.Errorf("Expected duplicate layout error, got: %v", err)
	}
}

func TestLoadRepo(t *testing.T) {
	repo := &schema.Repo{Files: map[string]*schema.File{
		"a": {Name: "a", Package: "one", Layouts: []*schema.Layout{{Name: "Msg"}}},
		"b": {Name: "b", Package: "two", Layouts: []*schema.Layout{{Name: "Msg"}}},
	}}

	registry := NewRegistry()
	if err := registry.LoadRepo(repo); err != nil {
		t.Fatalf("LoadRepo failed: %v", err)
	}

	if _, err := registry.GetLayout("one.Msg"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	_, err := registry.GetLayout("Msg")
	if err == nil || !contains(err.Error(), "ambiguous") {
		t.Errorf("Expected ambiguous error, got: %v", err)
	}

	if err := registry.LoadRepo(nil); err == nil {
		t.Error("Expected error for nil repo")
	}

	bad := &schema.Repo{Files: map[string]*schema.File{
		"c": {Name: "c", Layouts: []*schema.Layout{{}}},
	}}
	if err := registry.LoadRepo(bad); err == nil || !contains(err.Error(), "without a name") {
		t.Errorf("Expected unnamed layout error, got: %v", err)
	}
}

func TestGetFullName(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		pkg      string
		name     string
		expected string
	}{
		{"", "Layout", "Layout"},
		{"pkg", "Layout", "pkg.Layout"},
		{"com.example", "Layout", "com.example.Layout"},
	}

	for _, test := range tests {
		result := registry.getFullName(test.pkg, test.name)
		if result != test.expected {
			t.Errorf("getFullName(%q, %q) = %q, expected %q",
				test.pkg, test.name, result, test.expected)
		}
	}
}

func TestGetLayout_NotFound(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.GetLayout("NonExistent")
	if err == nil {
		t.Fatal("Expected error for non-existent layout")
	}
	if !contains(err.Error(), "layout not found") {
		t.Errorf("Expected 'layout not found' error, got: %v", err)
	}
}

func TestOptionName(t *testing.T) {
	tests := map[string]string{
		"(length)":            "length",
		"(structlite.length)": "length",
		"byte_order":          "byte_order",
	}
	for in, want := range tests {
		if got := optionName(in); got != want {
			t.Errorf("optionName(%q) = %q, want %q", in, got, want)
		}
	}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
