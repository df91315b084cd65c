package index

import (
	"errors"
	"math"
	"testing"
)

// testIndex builds an in-memory index from (slug, vector) pairs in insertion
// order. Vectors must share one dimension and be unit-normalized by callers.
func testIndex(t *testing.T, rows []struct {
	slug string
	vec  []float32
}) *Index {
	t.Helper()
	if len(rows) == 0 {
		t.Fatal("testIndex needs rows")
	}
	dim := len(rows[0].vec)
	meta := Metadata{
		FormatVersion: 1,
		ModelID:       "clip:test",
		Dim:           dim,
		VectorFile:    defaultVectorFile,
		DishRows:      map[string][]int{},
		Dishes:        map[string]DishMeta{},
	}
	var vectors []float32
	for i, r := range rows {
		if len(r.vec) != dim {
			t.Fatalf("row %d dim mismatch", i)
		}
		meta.DishRows[r.slug] = append(meta.DishRows[r.slug], len(meta.Entries))
		meta.Entries = append(meta.Entries, r.slug)
		vectors = append(vectors, r.vec...)
	}
	for slug, idxs := range meta.DishRows {
		meta.Dishes[slug] = DishMeta{ImageCount: len(idxs)}
	}
	return &Index{Meta: meta, Vectors: vectors}
}

func TestSearch_RiceBeansExample(t *testing.T) {
	x := testIndex(t, []struct {
		slug string
		vec  []float32
	}{
		{"rice", []float32{1, 0}},
		{"rice", NormalizeL2([]float32{0.9, 0.1})},
		{"beans", []float32{0, 1}},
	})

	query := NormalizeL2([]float32{0.95, 0.05})
	results, err := x.Search(query, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 dishes, got %d", len(results))
	}
	if results[0].Slug != "rice" {
		t.Errorf("top dish: got %q", results[0].Slug)
	}
	if results[0].Score < 0.99 {
		t.Errorf("rice score too low: %v", results[0].Score)
	}
	if results[1].Slug != "beans" {
		t.Errorf("second dish: got %q", results[1].Slug)
	}
	if results[0].Provenance != ProvenanceVisual {
		t.Errorf("provenance: got %q", results[0].Provenance)
	}
}

func TestSearch_MaxPerDishAggregation(t *testing.T) {
	// "noodles" has three mediocre rows, "steak" one strong row; the strong
	// single match must win.
	x := testIndex(t, []struct {
		slug string
		vec  []float32
	}{
		{"noodles", NormalizeL2([]float32{0.7, 0.7})},
		{"noodles", NormalizeL2([]float32{0.6, 0.8})},
		{"noodles", NormalizeL2([]float32{0.8, 0.6})},
		{"steak", []float32{1, 0}},
	})

	results, err := x.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Slug != "steak" {
		t.Errorf("max-per-dish aggregation failed: top is %q", results[0].Slug)
	}
}

func TestSearch_RankingNeverSkipsHigherDish(t *testing.T) {
	x := testIndex(t, []struct {
		slug string
		vec  []float32
	}{
		{"a", []float32{1, 0}},
		{"b", NormalizeL2([]float32{0.9, 0.435890})},
		{"c", NormalizeL2([]float32{0.8, 0.6})},
		{"d", NormalizeL2([]float32{0.7, 0.714143})},
	})

	results, err := x.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending: %v", results)
		}
	}
	if results[0].Slug != "a" || results[1].Slug != "b" {
		t.Errorf("expected a,b got %q,%q", results[0].Slug, results[1].Slug)
	}
}

func TestSearch_TieBrokenByInsertionOrder(t *testing.T) {
	x := testIndex(t, []struct {
		slug string
		vec  []float32
	}{
		{"first", []float32{1, 0}},
		{"second", []float32{1, 0}},
	})

	results, err := x.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Slug != "first" || results[1].Slug != "second" {
		t.Errorf("tie should keep insertion order, got %q then %q", results[0].Slug, results[1].Slug)
	}
}

func TestSearch_EmptyIndexNotReady(t *testing.T) {
	var x *Index
	if _, err := x.Search([]float32{1, 0}, 5); !errors.Is(err, ErrNotReady) {
		t.Errorf("nil index: got %v", err)
	}

	empty := &Index{Meta: Metadata{Dim: 2}}
	if _, err := empty.Search([]float32{1, 0}, 5); !errors.Is(err, ErrNotReady) {
		t.Errorf("empty index: got %v", err)
	}
}

func TestSearch_QueryDimMismatch(t *testing.T) {
	x := testIndex(t, []struct {
		slug string
		vec  []float32
	}{
		{"rice", []float32{1, 0}},
	})
	if _, err := x.Search([]float32{1, 0, 0}, 5); !errors.Is(err, ErrVectorLengthMismatch) {
		t.Errorf("expected ErrVectorLengthMismatch, got %v", err)
	}
}

func TestSearchByExactLabel(t *testing.T) {
	x := testIndex(t, []struct {
		slug string
		vec  []float32
	}{
		{"feijoada", []float32{1, 0}},
		{"rice", []float32{0, 1}},
	})

	r, err := x.SearchByExactLabel("Feijoada")
	if err != nil {
		t.Fatalf("exact lookup: %v", err)
	}
	if r.Slug != "feijoada" {
		t.Errorf("slug: got %q", r.Slug)
	}
	if math.Abs(r.Score-directMatchScore) > 1e-9 {
		t.Errorf("score: got %v", r.Score)
	}
	if r.Provenance != ProvenanceDirect {
		t.Errorf("provenance: got %q", r.Provenance)
	}

	// Substring match.
	if r, err = x.SearchByExactLabel("feijo"); err != nil || r.Slug != "feijoada" {
		t.Errorf("substring lookup: %v %v", r, err)
	}

	if _, err := x.SearchByExactLabel("sushi"); !errors.Is(err, ErrDishNotFound) {
		t.Errorf("missing dish: got %v", err)
	}
}

func TestDot(t *testing.T) {
	got, err := Dot([]float32{1, 0}, []float32{0.6, 0.8})
	if err != nil {
		t.Fatalf("Dot: %v", err)
	}
	if math.Abs(got-0.6) > 1e-6 {
		t.Errorf("Dot: got %v", got)
	}
	if _, err := Dot([]float32{1}, []float32{1, 0}); !errors.Is(err, ErrVectorLengthMismatch) {
		t.Errorf("expected length mismatch, got %v", err)
	}
}

func TestNormalizeL2(t *testing.T) {
	v := NormalizeL2([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("got %v", v)
	}
	z := NormalizeL2([]float32{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Errorf("zero vector should stay zero, got %v", z)
	}
}
