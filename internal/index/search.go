package index

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soulnutri/dishscan/internal/metrics"
)

// Search ranks dishes by visual similarity to the query vector.
//
// All stored rows and the query are unit-normalized, so a plain dot product
// is the cosine similarity. The raw top 3*topK rows are aggregated by taking
// each dish's maximum row score, which stops a dish with many weak matches
// from outranking one with a single strong match. Ties are broken by index
// insertion order.
func (x *Index) Search(query []float32, topK int) ([]Result, error) {
	if !x.Ready() {
		return nil, ErrNotReady
	}
	if len(query) != x.Meta.Dim {
		return nil, fmt.Errorf("%w: query dim %d, index dim %d", ErrVectorLengthMismatch, len(query), x.Meta.Dim)
	}
	if topK <= 0 {
		topK = 5
	}

	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	rows := x.Len()
	scores := make([]float64, rows)
	for i := 0; i < rows; i++ {
		rowVec := x.Vectors[i*x.Meta.Dim : (i+1)*x.Meta.Dim]
		// Dim was validated against the query above.
		scores[i], _ = Dot(rowVec, query)
	}

	// Over-fetch raw rows before aggregating so a dish whose best image is
	// just outside the raw topK still surfaces.
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	fetch := 3 * topK
	if fetch > rows {
		fetch = rows
	}

	type dishScore struct {
		slug     string
		score    float64
		firstRow int
	}
	best := map[string]*dishScore{}
	var seen []*dishScore
	for _, row := range order[:fetch] {
		slug := x.Meta.Entries[row]
		if d, ok := best[slug]; ok {
			if scores[row] > d.score {
				d.score = scores[row]
			}
			if row < d.firstRow {
				d.firstRow = row
			}
			continue
		}
		d := &dishScore{slug: slug, score: scores[row], firstRow: row}
		best[slug] = d
		seen = append(seen, d)
	}

	sort.SliceStable(seen, func(a, b int) bool {
		if seen[a].score != seen[b].score {
			return seen[a].score > seen[b].score
		}
		return seen[a].firstRow < seen[b].firstRow
	})
	if len(seen) > topK {
		seen = seen[:topK]
	}

	out := make([]Result, 0, len(seen))
	for _, d := range seen {
		out = append(out, Result{
			Slug:       d.slug,
			Score:      d.score,
			ImageCount: x.Meta.Dishes[d.slug].ImageCount,
			Provenance: ProvenanceVisual,
		})
	}
	return out, nil
}

// SearchByExactLabel looks a dish up by slug, bypassing vector search. The
// match is case-insensitive, exact first and substring second, and the result
// carries a fixed score with direct-match provenance so callers can tell it
// apart from similarity hits.
func (x *Index) SearchByExactLabel(slug string) (Result, error) {
	if x == nil || len(x.Meta.DishRows) == 0 {
		return Result{}, ErrNotReady
	}

	want := strings.ToLower(strings.TrimSpace(slug))
	if want == "" {
		return Result{}, ErrDishNotFound
	}

	matched := ""
	for _, candidate := range x.sortedSlugs() {
		lc := strings.ToLower(candidate)
		if lc == want {
			matched = candidate
			break
		}
		if matched == "" && (strings.Contains(lc, want) || strings.Contains(want, lc)) {
			matched = candidate
		}
	}
	if matched == "" {
		return Result{}, ErrDishNotFound
	}

	return Result{
		Slug:       matched,
		Score:      directMatchScore,
		ImageCount: x.Meta.Dishes[matched].ImageCount,
		Provenance: ProvenanceDirect,
	}, nil
}

// sortedSlugs returns dish slugs in a stable order so substring matches do
// not depend on map iteration.
func (x *Index) sortedSlugs() []string {
	out := make([]string, 0, len(x.Meta.DishRows))
	for slug := range x.Meta.DishRows {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
