package presets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/rules"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Preset is the suggested blocking rule set for a known integration.
type Preset struct {
	Slug     string      `json:"slug" yaml:"-"`
	Name     string      `json:"name" yaml:"name"`
	Provider string      `json:"provider" yaml:"provider"`
	Category string      `json:"category" yaml:"category"`
	Rules    rules.Entry `json:"rules" yaml:"rules"`
}

// Catalog is a read-only slug → preset lookup table.
type Catalog struct {
	presets map[string]Preset
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := parse(defaultCatalog)
	if err != nil {
		// The embedded file is part of the build; a parse failure is a programming error.
		panic(fmt.Sprintf("presets: embedded catalog: %v", err))
	}
	return c
}

// Load returns the embedded catalog with the presets from path layered on top.
// A preset in the file replaces the embedded preset with the same slug.
// An empty path or a missing file yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read presets: %w", err)
	}

	overlay, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	for slug, p := range overlay.presets {
		c.presets[slug] = p
	}
	return c, nil
}

// New builds a catalog from explicit presets. Used by tests and embedders.
func New(list ...Preset) *Catalog {
	c := &Catalog{presets: make(map[string]Preset, len(list))}
	for _, p := range list {
		p.Slug = rules.SanitizeKey(p.Slug)
		p.Rules = p.Rules.Normalized()
		p.Rules.Managed = false
		c.presets[p.Slug] = p
	}
	return c
}

// Lookup returns the preset for slug.
func (c *Catalog) Lookup(slug string) (Preset, bool) {
	p, ok := c.presets[slug]
	if !ok {
		return Preset{}, false
	}
	p.Rules = p.Rules.Clone()
	return p, true
}

// Category returns the category of the preset for slug, or "" when the
// catalog has no such preset.
func (c *Catalog) Category(slug string) string {
	if c == nil {
		return ""
	}
	return c.presets[slug].Category
}

// Slugs returns every preset slug in sorted order.
func (c *Catalog) Slugs() []string {
	out := make([]string, 0, len(c.presets))
	for slug := range c.presets {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// All returns every preset sorted by slug.
func (c *Catalog) All() []Preset {
	out := make([]Preset, 0, len(c.presets))
	for _, slug := range c.Slugs() {
		p, _ := c.Lookup(slug)
		out = append(out, p)
	}
	return out
}

func parse(data []byte) (*Catalog, error) {
	var raw map[string]Preset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	list := make([]Preset, 0, len(raw))
	for slug, p := range raw {
		p.Slug = slug
		list = append(list, p)
	}
	return New(list...), nil
}
