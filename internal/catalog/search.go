package catalog

import (
	"sort"
	"strings"

	"github.com/soulnutri/dishscan/internal/safety"
)

// Match is one dish returned by Search.
type Match struct {
	Slug string `json:"slug"`
	Dish Dish   `json:"dish"`
}

// Search finds dishes by case- and accent-insensitive keyword matching over
// slug, name, ingredients, and description. All query tokens must match
// (AND semantics). Results are sorted by slug.
func (c *Catalog) Search(query string, limit int) []Match {
	tokens := searchTokens(query)
	if len(tokens) == 0 {
		return []Match{}
	}

	var out []Match
	for slug, d := range c.dishes {
		blob := safety.Normalize(strings.Join([]string{
			slug,
			d.Name,
			strings.Join(d.Ingredients, "\n"),
			d.Description,
		}, "\n"))
		ok := true
		for _, tok := range tokens {
			if !strings.Contains(blob, tok) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if d.Name == "" {
			d.Name = DisplayName(slug)
		}
		out = append(out, Match{Slug: slug, Dish: d})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Slug < out[j].Slug
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Slugs returns all cataloged slugs, sorted.
func (c *Catalog) Slugs() []string {
	out := make([]string, 0, len(c.dishes))
	for slug := range c.dishes {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

func searchTokens(q string) []string {
	parts := strings.Fields(safety.Normalize(q))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
