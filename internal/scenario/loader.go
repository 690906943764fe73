package scenario

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// Registry holds the available scenarios by name
type Registry struct {
	scenarios map[string]*Scenario
}

func NewRegistry() *Registry {
	return &Registry{scenarios: make(map[string]*Scenario)}
}

// DefaultRegistry returns a registry loaded with the built-in scenarios
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadFromFS(builtin, "scenarios"); err != nil {
		return nil, err
	}
	return r, nil
}

// Parse decodes and validates one scenario document
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario has no name")
	}
	if !validDuration(s.Duration) {
		return nil, fmt.Errorf("scenario %s: invalid duration %q", s.Name, s.Duration)
	}
	for _, p := range s.Phases {
		if !validDuration(p.Duration) {
			return nil, fmt.Errorf("scenario %s: phase %s: invalid duration %q", s.Name, p.Name, p.Duration)
		}
	}
	return &s, nil
}

// LoadFromFile loads a scenario from a YAML file
func (r *Registry) LoadFromFile(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	r.scenarios[s.Name] = s
	return nil
}

// LoadFromDir loads every .yaml/.yml file in dir
func (r *Registry) LoadFromDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read scenarios directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		if err := r.LoadFromFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromFS loads every YAML file in dir of fsys
func (r *Registry) LoadFromFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read embedded scenarios: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		name := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", name, err)
		}
		s, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.scenarios[s.Name] = s
	}
	return nil
}

// Get retrieves a scenario by name
func (r *Registry) Get(name string) (*Scenario, error) {
	s, ok := r.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("scenario '%s' not found", name)
	}
	return s, nil
}

// List returns the scenario names sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validDuration(s string) bool {
	if s == "" || s == "unlimited" {
		return true
	}
	_, err := time.ParseDuration(s)
	return err == nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
