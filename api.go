package structlite

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/anirudhraja/structlite/registry"
	"github.com/anirudhraja/structlite/schema"
	"github.com/anirudhraja/structlite/wire"
)

// ===== SCHEMA-AWARE API =====

// Structlite serves struct layouts by name, from layout files loaded into
// its registry or from structs registered in code.
type Structlite struct {
	registry *registry.Registry

	mu       sync.Mutex
	structs  map[string]*Struct // registered in code
	compiled map[string]*Struct // compiled from the registry
}

// New creates a new Structlite instance
func New() *Structlite {
	return &Structlite{
		registry: registry.NewRegistry(),
		structs:  make(map[string]*Struct),
		compiled: make(map[string]*Struct),
	}
}

// LoadSchema loads layout files (.proto, .yaml, .yml, .json) from a file or directory
func (p *Structlite) LoadSchema(path string) error {
	p.resetCompiled()
	return p.registry.LoadSchema(path)
}

// LoadRepo loads already parsed layout files
func (p *Structlite) LoadRepo(repo *schema.Repo) error {
	p.resetCompiled()
	return p.registry.LoadRepo(repo)
}

// resetCompiled drops compiled layouts, whose embeds may resolve
// differently once more files are loaded
func (p *Structlite) resetCompiled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compiled = make(map[string]*Struct)
}

// Register makes a struct built in code available under name
func (p *Structlite) Register(name string, s *Struct) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.structs[name] = s
}

// Struct returns the struct registered or loaded under name. Loaded layouts
// are compiled once and cached.
func (p *Structlite) Struct(name string) (*Struct, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.structs[name]; ok {
		return s, nil
	}
	if s, ok := p.compiled[name]; ok {
		return s, nil
	}

	layout, err := p.registry.GetLayout(name)
	if err != nil {
		return nil, err
	}
	s, err := Compile(layout, p.registry.GetLayout)
	if err != nil {
		return nil, err
	}
	p.compiled[name] = s
	return s, nil
}

// Marshal encodes values with the named layout
func (p *Structlite) Marshal(data wire.Values, layout string) ([]byte, error) {
	s, err := p.Struct(layout)
	if err != nil {
		return nil, err
	}
	return s.Serialize(data)
}

// Parse decodes bytes with the named layout
func (p *Structlite) Parse(data []byte, layout string) (*Object, error) {
	s, err := p.Struct(layout)
	if err != nil {
		return nil, err
	}
	return s.DeserializeObject(context.Background(), wire.NewBufferSource(data))
}

// Unmarshal decodes bytes into a Go struct, using its type name as the layout name
func (p *Structlite) Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal target must be a pointer to struct")
	}

	obj, err := p.Parse(data, rv.Elem().Type().Name())
	if err != nil {
		return err
	}
	return obj.Decode(v)
}

// ===== REGISTRY ACCESS =====

func (p *Structlite) GetRegistry() *registry.Registry { return p.registry }

// ListLayouts returns every name Struct accepts, sorted
func (p *Structlite) ListLayouts() []string {
	p.mu.Lock()
	seen := make(map[string]struct{})
	for name := range p.structs {
		seen[name] = struct{}{}
	}
	p.mu.Unlock()
	for _, name := range p.registry.ListLayouts() {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
