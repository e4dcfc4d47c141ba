package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/structlite"
	"github.com/anirudhraja/structlite/internal/logging"
)

// Config represents the structlite configuration file
// (~/.config/structlite/config.yaml). Flags win over the file.
type Config struct {
	SchemaPath string `yaml:"schema_path"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "structlite", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// apply fills the globals that were not given on the command line
func (g *globals) apply(cfg Config) {
	if g.schemaPath == "" {
		g.schemaPath = cfg.SchemaPath
	}
	if g.logLevel == "" {
		g.logLevel = cfg.LogLevel
	}
	if g.logFormat == "" {
		g.logFormat = cfg.LogFormat
	}
}

// setup applies the config file, configures logging and loads the layouts
func (g *globals) setup(errw io.Writer) (*structlite.Structlite, error) {
	g.apply(LoadConfig())

	format := logging.FormatText
	if strings.EqualFold(g.logFormat, "json") {
		format = logging.FormatJSON
	}
	logging.SetFormat(errw, format)
	logging.SetLevel(logging.ParseLevel(g.logLevel))

	if g.schemaPath == "" {
		return nil, fmt.Errorf("no layouts: pass --schema or set schema_path in %s", configPath())
	}
	p := structlite.New()
	if err := p.LoadSchema(g.schemaPath); err != nil {
		return nil, err
	}
	logging.Debug(logging.ComponentCLI, "layouts loaded", "path", g.schemaPath, "count", len(p.ListLayouts()))
	return p, nil
}
