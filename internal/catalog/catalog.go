// Package catalog loads the ordered, read-only badge catalog
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tila/pkg/models"
)

//go:embed badges.yaml
var defaultCatalog []byte

// Catalog is immutable after construction and safe for concurrent reads
type Catalog struct {
	badges []models.BadgeDefinition
	byID   map[string]int
}

type fileBadge struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Icon        string         `yaml:"icon"`
	Category    string         `yaml:"category"`
	Criteria    map[string]int `yaml:"criteria"`
	Points      int            `yaml:"points"`
}

type file struct {
	Badges []fileBadge `yaml:"badges"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded badges.yaml is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file; an empty path yields the built-in catalog
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a yaml catalog
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode badge catalog: %w", err)
	}
	if len(f.Badges) == 0 {
		return nil, fmt.Errorf("badge catalog is empty")
	}

	defs := make([]models.BadgeDefinition, 0, len(f.Badges))
	for i, b := range f.Badges {
		if len(b.Criteria) != 1 {
			return nil, fmt.Errorf("badge %d (%q): criteria must have exactly one key, got %d", i, b.ID, len(b.Criteria))
		}
		var crit models.Criterion
		for key, threshold := range b.Criteria {
			field := models.ParseStatField(key)
			if field == models.StatUnknown {
				return nil, fmt.Errorf("badge %q: unknown criteria field %q", b.ID, key)
			}
			crit = models.Criterion{Field: field, Threshold: threshold}
		}
		defs = append(defs, models.BadgeDefinition{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			Category:    models.BadgeCategory(b.Category),
			Criterion:   crit,
			Points:      b.Points,
		})
	}
	return New(defs...)
}

// New builds a catalog from definitions in evaluation order
func New(defs ...models.BadgeDefinition) (*Catalog, error) {
	c := &Catalog{
		badges: make([]models.BadgeDefinition, 0, len(defs)),
		byID:   make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("badge %q: %w", d.ID, err)
		}
		if d.Criterion.Threshold < 0 {
			return nil, fmt.Errorf("badge %q: negative threshold %d", d.ID, d.Criterion.Threshold)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate badge id %q", d.ID)
		}
		c.byID[d.ID] = len(c.badges)
		c.badges = append(c.badges, d)
	}
	return c, nil
}

// MustNew is New for fixed test and seed catalogs
func MustNew(defs ...models.BadgeDefinition) *Catalog {
	c, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns a copy of the definitions in declaration order
func (c *Catalog) All() []models.BadgeDefinition {
	out := make([]models.BadgeDefinition, len(c.badges))
	copy(out, c.badges)
	return out
}

func (c *Catalog) Get(id string) (models.BadgeDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.BadgeDefinition{}, false
	}
	return c.badges[i], true
}

func (c *Catalog) Len() int {
	return len(c.badges)
}

// TotalPoints is the sum of every badge reward
func (c *Catalog) TotalPoints() int {
	total := 0
	for _, b := range c.badges {
		total += b.Points
	}
	return total
}
