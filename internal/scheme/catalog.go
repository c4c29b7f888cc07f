// Package scheme holds the catalog of argumentation schemes and turns scheme
// bindings into argument nodes with their critical questions.
package scheme

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/agora/internal/model"
)

// Catalog is a concurrency-safe registry of schemes keyed by scheme key.
type Catalog struct {
	mu      sync.RWMutex
	schemes map[string]*model.Scheme
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{schemes: make(map[string]*model.Scheme)}
}

// NewBuiltinCatalog returns a catalog preloaded with the builtin schemes.
func NewBuiltinCatalog() *Catalog {
	c := NewCatalog()
	for _, s := range Builtin() {
		if err := c.Register(s); err != nil {
			panic(fmt.Sprintf("scheme: invalid builtin %q: %v", s.Key, err))
		}
	}
	return c
}

// Register validates s and adds it, replacing any scheme with the same key.
func (c *Catalog) Register(s *model.Scheme) error {
	if err := model.ValidateScheme(s); err != nil {
		return fmt.Errorf("register scheme %q: %w", s.Key, err)
	}
	cp := *s
	cp.Slots = append([]model.Slot(nil), s.Slots...)
	cp.CQTemplates = append([]model.CQTemplate(nil), s.CQTemplates...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemes[s.Key] = &cp
	return nil
}

// Get returns the scheme registered under key.
func (c *Catalog) Get(key string) (*model.Scheme, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemes[key]
	if !ok {
		return nil, &model.UnknownSchemeError{Key: key}
	}
	return s, nil
}

// List returns every registered scheme sorted by key.
func (c *Catalog) List() []*model.Scheme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*model.Scheme, 0, len(c.schemes))
	for _, s := range c.schemes {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// catalogFile is the on-disk TOML layout:
//
//	[[schemes]]
//	key = "expert_opinion"
//	[[schemes.slots]]
//	role = "source"
//	min = 1
//	[[schemes.critical_questions]]
//	key = "credentials"
//	attack_type = "UNDERMINES"
//	scope = "premise"
type catalogFile struct {
	Schemes []*model.Scheme `toml:"schemes"`
}

// LoadFile registers every scheme declared in a TOML file. Nothing is
// registered if any scheme in the file is invalid.
func (c *Catalog) LoadFile(path string) (int, error) {
	var f catalogFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return 0, fmt.Errorf("decode scheme file %s: %w", path, err)
	}
	for _, s := range f.Schemes {
		if err := model.ValidateScheme(s); err != nil {
			return 0, fmt.Errorf("scheme file %s: scheme %q: %w", path, s.Key, err)
		}
	}
	for _, s := range f.Schemes {
		if err := c.Register(s); err != nil {
			return 0, err
		}
	}
	return len(f.Schemes), nil
}
