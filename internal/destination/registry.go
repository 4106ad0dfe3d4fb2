package destination

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	dErrors "entrypass/pkg/domain-errors"
)

//go:embed destinations.yaml
var builtin []byte

type file struct {
	Destinations []Config `yaml:"destinations"`
}

// Registry looks destinations up by id.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Config
	order []string
}

// Parse builds a registry from YAML.
func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse destinations: %w", err)
	}
	r := &Registry{byID: make(map[string]Config, len(f.Destinations))}
	for _, c := range f.Destinations {
		if err := c.compile(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate destination %s", c.ID)
		}
		r.byID[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r, nil
}

// Load reads destinations from path, or the built-in set when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Parse(builtin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read destinations file: %w", err)
	}
	return Parse(raw)
}

// Default returns the built-in registry. It panics if the embedded file is
// invalid, which tests catch.
func Default() *Registry {
	r, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(destinationID string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[destinationID]
	if !ok {
		return Config{}, dErrors.New(dErrors.CodeNotFound, "unknown destination "+destinationID)
	}
	return c, nil
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
