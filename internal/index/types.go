// Package index implements the visual dish index: an immutable matrix of
// image embeddings searched by cosine similarity and aggregated per dish.
package index

// Metadata describes a persisted index and how to interpret the vector blob.
//
// It is one of the two co-located artifacts (the other being the raw
// little-endian float32 matrix named by VectorFile). Both are replaced
// together; a row-count mismatch between them is a fatal load error.
type Metadata struct {
	FormatVersion int    `json:"format_version"`
	CreatedAt     string `json:"created_at"`
	ModelID       string `json:"model_id"`
	Dim           int    `json:"dim"`
	VectorFile    string `json:"vector_file"`

	// Entries holds the dish slug for every matrix row, in row order.
	Entries []string `json:"entries"`

	// DishRows maps a dish slug to the matrix rows holding its images.
	DishRows map[string][]int `json:"dish_rows"`

	// Dishes holds per-dish bookkeeping.
	Dishes map[string]DishMeta `json:"dishes"`
}

// DishMeta is per-dish bookkeeping captured at build time.
type DishMeta struct {
	ImageCount int    `json:"image_count"`
	SourcePath string `json:"source_path"`
}

// Index is a loaded visual index. It is immutable once built; a rebuild
// produces a new instance that replaces the old one via Handle.
type Index struct {
	Meta Metadata

	// Vectors is the row-major embedding matrix, len(Meta.Entries)*Meta.Dim
	// floats. All rows are unit-normalized.
	Vectors []float32
}

// Result is one ranked dish returned by a search.
type Result struct {
	Slug       string  `json:"slug"`
	Score      float64 `json:"score"`
	ImageCount int     `json:"image_count"`

	// Provenance distinguishes similarity hits ("visual_index") from direct
	// label lookups ("direct_match").
	Provenance string `json:"provenance"`
}

// Provenance values.
const (
	ProvenanceVisual = "visual_index"
	ProvenanceDirect = "direct_match"
)

// directMatchScore is the fixed score reported for label lookups that bypass
// vector search. It is deliberately below the 0.99 ceiling of a perfect
// visual match so callers can still rank the two apart.
const directMatchScore = 0.90

// Len returns the number of embedding rows.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.Meta.Entries)
}

// DishCount returns the number of distinct dishes.
func (x *Index) DishCount() int {
	if x == nil {
		return 0
	}
	return len(x.Meta.DishRows)
}

// Ready reports whether the index can serve searches.
func (x *Index) Ready() bool {
	return x != nil && x.Len() > 0 && x.Meta.Dim > 0
}

// Stats summarizes the index for status endpoints.
type Stats struct {
	Ready       bool   `json:"ready"`
	TotalDishes int    `json:"total_dishes"`
	TotalImages int    `json:"total_images"`
	Dim         int    `json:"dim"`
	ModelID     string `json:"model_id"`
	CreatedAt   string `json:"created_at"`
}

// Stats returns a point-in-time summary.
func (x *Index) Stats() Stats {
	if x == nil {
		return Stats{}
	}
	return Stats{
		Ready:       x.Ready(),
		TotalDishes: x.DishCount(),
		TotalImages: x.Len(),
		Dim:         x.Meta.Dim,
		ModelID:     x.Meta.ModelID,
		CreatedAt:   x.Meta.CreatedAt,
	}
}
