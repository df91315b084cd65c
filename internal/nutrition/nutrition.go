// Package nutrition provides the nutrient-fact lookup collaborator. The core
// pipeline does not depend on it; the HTTP dish-detail endpoint uses it to
// attach per-ingredient facts.
package nutrition

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soulnutri/dishscan/internal/safety"
)

// ErrNotFound indicates an ingredient with no table entry.
var ErrNotFound = errors.New("ingredient not found")

// Facts holds per-100g nutrient values for one ingredient.
type Facts struct {
	Calories float64 `yaml:"calories" json:"calories"`
	Protein  float64 `yaml:"protein" json:"protein"`
	Carbs    float64 `yaml:"carbs" json:"carbs"`
	Fat      float64 `yaml:"fat" json:"fat"`
	Fiber    float64 `yaml:"fiber" json:"fiber"`
}

// Lookup resolves an ingredient name to nutrient facts.
type Lookup interface {
	Lookup(ingredient string) (Facts, error)
}

// Table is a static, file-backed Lookup keyed by normalized ingredient name.
type Table struct {
	facts map[string]Facts
}

// LoadTable reads a YAML mapping of ingredient name to facts.
func LoadTable(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read nutrition table %s: %w", path, err)
	}
	var raw map[string]Facts
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("invalid nutrition YAML: %w", err)
	}

	facts := make(map[string]Facts, len(raw))
	for name, f := range raw {
		facts[safety.Normalize(name)] = f
	}
	return &Table{facts: facts}, nil
}

// EmptyTable returns a table with no entries; every lookup misses.
func EmptyTable() *Table {
	return &Table{facts: map[string]Facts{}}
}

// Lookup implements Lookup. Names are matched after normalization, so
// "Feijão" finds an entry stored as "feijao".
func (t *Table) Lookup(ingredient string) (Facts, error) {
	if f, ok := t.facts[safety.Normalize(ingredient)]; ok {
		return f, nil
	}
	return Facts{}, fmt.Errorf("%w: %s", ErrNotFound, ingredient)
}

// Len returns the number of table entries.
func (t *Table) Len() int {
	return len(t.facts)
}
