package registry

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/structlite/internal/logging"
	"github.com/anirudhraja/structlite/schema"
)

// Registry stores the layouts loaded from schema files. We look layouts up
// by name when we need to build, serialize or parse a struct.
type Registry struct {
	repo    *schema.Repo
	layouts map[string]*schema.Layout // fully qualified name -> layout
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) init() {
	if r.repo == nil {
		r.repo = &schema.Repo{Files: make(map[string]*schema.File)}
	}
	if r.layouts == nil {
		r.layouts = make(map[string]*schema.Layout)
	}
}

// LoadSchema loads a layout file, or recursively every layout file below a
// directory. Supported extensions are .proto, .yaml, .yml and .json. Files
// accumulate across calls.
func (r *Registry) LoadSchema(path string) error {
	r.init()

	// Check if the path exists
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	var loaded []*schema.File
	if !info.IsDir() {
		if !isSchemaFile(path) {
			return fmt.Errorf("file %s is not a supported layout file", path)
		}
		file, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load layout file: %w", err)
		}
		loaded = append(loaded, file)
	} else {
		// If it's a directory, walk through it recursively
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isSchemaFile(p) {
				return nil
			}
			file, err := loadFile(p)
			if err != nil {
				return fmt.Errorf("failed to load layout file %s: %w", p, err)
			}
			loaded = append(loaded, file)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk directory: %w", err)
		}
	}

	repo := &schema.Repo{Files: make(map[string]*schema.File)}
	for _, file := range loaded {
		repo.Files[file.Name] = file
	}
	return r.LoadRepo(repo)
}

// LoadRepo adds already parsed files to the symbol table
func (r *Registry) LoadRepo(repo *schema.Repo) error {
	r.init()
	if repo == nil {
		return fmt.Errorf("nil repo")
	}

	// validate every name before touching the table
	pending := make(map[string]*schema.Layout)
	for _, file := range repo.Files {
		for _, layout := range file.Layouts {
			if layout.Name == "" {
				return fmt.Errorf("file %s: layout without a name", file.Name)
			}
			fullName := r.getFullName(file.Package, layout.Name)
			if _, dup := r.layouts[fullName]; dup {
				return fmt.Errorf("duplicate layout %s", fullName)
			}
			if _, dup := pending[fullName]; dup {
				return fmt.Errorf("duplicate layout %s", fullName)
			}
			pending[fullName] = layout
		}
	}

	for name, file := range repo.Files {
		r.repo.Files[name] = file
	}
	for fullName, layout := range pending {
		r.layouts[fullName] = layout
		logging.Debug(logging.ComponentRegistry, "layout registered", "layout", fullName, "fields", len(layout.Fields))
	}
	return nil
}

func (r *Registry) getFullName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// GetLayout retrieves a layout by fully qualified name, or by a suffix of
// it when that is unambiguous
func (r *Registry) GetLayout(name string) (*schema.Layout, error) {
	if layout, exists := r.layouts[name]; exists {
		return layout, nil
	}

	// Try without package prefix
	var (
		found   *schema.Layout
		matches []string
	)
	for fullName, layout := range r.layouts {
		if strings.HasSuffix(fullName, "."+name) {
			found = layout
			matches = append(matches, fullName)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("layout not found: %s", name)
	case 1:
		return found, nil
	default:
		sort.Strings(matches)
		return nil, fmt.Errorf("layout name %s is ambiguous: %s", name, strings.Join(matches, ", "))
	}
}

// ListLayouts returns all registered layout names, sorted
func (r *Registry) ListLayouts() []string {
	names := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Repo returns the loaded files
func (r *Registry) Repo() *schema.Repo {
	r.init()
	return r.repo
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".proto", ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// loadFile parses one layout file according to its extension
func loadFile(path string) (*schema.File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file *schema.File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".proto":
		file, err = parseProto(bytes.NewReader(content), filepath.Base(path))
	case ".yaml", ".yml":
		file = &schema.File{}
		err = yaml.Unmarshal(content, file)
	case ".json":
		file = &schema.File{}
		err = json.Unmarshal(content, file)
	}
	if err != nil {
		return nil, err
	}

	// files are keyed by path so two directories may hold the same base name
	file.Name = path
	logging.Debug(logging.ComponentRegistry, "layout file loaded", "path", path, "layouts", len(file.Layouts))
	return file, nil
}
