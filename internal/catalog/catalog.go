// Package catalog holds per-dish editorial metadata: display name, declared
// diet category, typical ingredients, and a short description. The catalog is
// maintained by hand in a YAML file and loaded once at startup; identification
// results are enriched from it before safety validation.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/soulnutri/dishscan/internal/safety"
)

// Dish is one catalog entry.
type Dish struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Ingredients []string `yaml:"ingredients,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// Catalog maps dish slugs to their metadata.
type Catalog struct {
	dishes map[string]Dish
}

// Load reads the catalog YAML file: a mapping of slug to dish entry.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes catalog YAML.
func Parse(b []byte) (*Catalog, error) {
	var dishes map[string]Dish
	if err := yaml.Unmarshal(b, &dishes); err != nil {
		return nil, fmt.Errorf("invalid catalog YAML: %w", err)
	}
	if dishes == nil {
		dishes = map[string]Dish{}
	}
	return &Catalog{dishes: dishes}, nil
}

// Empty returns a catalog with no entries. Lookups fall back to slug-derived
// display names.
func Empty() *Catalog {
	return &Catalog{dishes: map[string]Dish{}}
}

// Get returns the entry for slug. When the slug is not cataloged, a minimal
// entry with a display name derived from the slug is returned with ok=false.
func (c *Catalog) Get(slug string) (Dish, bool) {
	if d, ok := c.dishes[slug]; ok {
		if d.Name == "" {
			d.Name = DisplayName(slug)
		}
		return d, true
	}
	return Dish{Name: DisplayName(slug)}, false
}

// Len returns the number of cataloged dishes.
func (c *Catalog) Len() int {
	return len(c.dishes)
}

// Slugify turns a dish name into its slug form: "Arroz com Brócolis"
// becomes "arroz_com_brocolis". Accents are stripped so slugs stay ASCII.
func Slugify(name string) string {
	name = safety.Normalize(name)
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "_")
}

// DisplayName turns a dish slug into a human-readable name:
// "arroz_com_brocolis" becomes "Arroz Com Brocolis".
func DisplayName(slug string) string {
	slug = strings.ReplaceAll(slug, "_", " ")
	slug = strings.ReplaceAll(slug, "-", " ")
	words := strings.Fields(slug)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
