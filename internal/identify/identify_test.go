package identify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/soulnutri/dishscan/internal/cache"
	"github.com/soulnutri/dishscan/internal/catalog"
	"github.com/soulnutri/dishscan/internal/config"
	"github.com/soulnutri/dishscan/internal/index"
	"github.com/soulnutri/dishscan/internal/policy"
	"github.com/soulnutri/dishscan/internal/recognize"
)

type fakeProvider struct {
	vec   []float32
	err   error
	calls int
}

func (p *fakeProvider) ModelID() string { return "fake-model" }
func (p *fakeProvider) Dim() int        { return 4 }

func (p *fakeProvider) Embed(ctx context.Context, image []byte) ([]float32, error) {
	p.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	return append([]float32(nil), p.vec...), nil
}

type fakeRecognizer struct {
	guess recognize.Guess
	err   error
	calls int
}

func (r *fakeRecognizer) ProviderID() string { return "fake-recognizer" }

func (r *fakeRecognizer) Recognize(ctx context.Context, image []byte) (recognize.Guess, error) {
	r.calls++
	if r.err != nil {
		return recognize.Guess{}, r.err
	}
	return r.guess, nil
}

// testHandle builds a four-dimensional index with tilapia on the first axis
// and a rice dish on the second.
func testHandle(t *testing.T) *index.Handle {
	t.Helper()
	x := &index.Index{
		Meta: index.Metadata{
			FormatVersion: 1,
			ModelID:       "fake-model",
			Dim:           4,
			Entries:       []string{"tilapia_grelhada", "arroz_com_feijao"},
			DishRows: map[string][]int{
				"tilapia_grelhada": {0},
				"arroz_com_feijao": {1},
			},
			Dishes: map[string]index.DishMeta{
				"tilapia_grelhada": {ImageCount: 1},
				"arroz_com_feijao": {ImageCount: 1},
			},
		},
		Vectors: []float32{
			1, 0, 0, 0,
			0, 1, 0, 0,
		},
	}
	return index.NewHandle(x)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`
tilapia_grelhada:
  name: Tilápia Grelhada
  category: vegan
  ingredients: [tilapia, lemon, olive oil]
arroz_com_feijao:
  name: Arroz com Feijão
  category: vegan
  ingredients: [rice, black beans, garlic]
`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return c
}

func newService(t *testing.T, prov *fakeProvider, rec recognize.Recognizer, esc config.EscalationConfig) *Service {
	t.Helper()
	return New(Options{
		Provider:   prov,
		Handle:     testHandle(t),
		Cache:      cache.New[Result](8),
		Catalog:    testCatalog(t),
		Recognizer: rec,
		TopK:       3,
		CacheTTL:   time.Minute,
		Escalation: esc,
	})
}

func TestIdentifyVisualMatchCorrectsCategory(t *testing.T) {
	prov := &fakeProvider{vec: []float32{1, 0, 0, 0}}
	rec := &fakeRecognizer{}
	svc := newService(t, prov, rec, config.EscalationConfig{Enabled: true})

	r, err := svc.Identify(context.Background(), []byte("photo"), "")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if r.Slug != "tilapia_grelhada" {
		t.Fatalf("slug = %q", r.Slug)
	}
	if r.Tier != policy.TierHigh || r.Source != SourceVisual {
		t.Errorf("tier=%q source=%q", r.Tier, r.Source)
	}
	if rec.calls != 0 {
		t.Errorf("high confidence must not escalate, got %d calls", rec.calls)
	}
	// Declared vegan, but the ingredients name a fish.
	if r.Category != "animal protein" {
		t.Errorf("category = %q, want animal protein", r.Category)
	}
	if !r.Safety.CategoryChanged || r.Safety.SafeForVegans {
		t.Errorf("safety report not corrected: %+v", r.Safety)
	}
	if r.FromCache {
		t.Error("first lookup must not report FromCache")
	}
}

func TestIdentifyCacheHit(t *testing.T) {
	prov := &fakeProvider{vec: []float32{1, 0, 0, 0}}
	svc := newService(t, prov, nil, config.EscalationConfig{})

	image := []byte("photo")
	first, err := svc.Identify(context.Background(), image, "")
	if err != nil {
		t.Fatalf("first Identify: %v", err)
	}
	embedCalls := prov.calls

	second, err := svc.Identify(context.Background(), image, "")
	if err != nil {
		t.Fatalf("second Identify: %v", err)
	}
	if !second.FromCache {
		t.Error("second lookup should come from cache")
	}
	if prov.calls != embedCalls {
		t.Errorf("cache hit must not embed again: %d -> %d", embedCalls, prov.calls)
	}
	if second.Slug != first.Slug || second.Category != first.Category {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}

	// Mutating the returned copy must not poison the cache.
	second.Ingredients[0] = "mutated"
	third, _ := svc.Identify(context.Background(), image, "")
	if third.Ingredients[0] == "mutated" {
		t.Error("cache payload was mutated through a returned copy")
	}
}

func TestIdentifyLowConfidenceEscalates(t *testing.T) {
	// Orthogonal to every index row: similarity 0, low tier.
	prov := &fakeProvider{vec: []float32{0, 0, 1, 0}}
	rec := &fakeRecognizer{guess: recognize.Guess{
		Name:        "Feijoada",
		Category:    "animal protein",
		Ingredients: []string{"black beans", "pork"},
		Confidence:  0.9,
	}}
	svc := newService(t, prov, rec, config.EscalationConfig{Enabled: true})

	r, err := svc.Identify(context.Background(), []byte("photo"), "br")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("recognizer calls = %d, want 1", rec.calls)
	}
	if r.Source != SourceEscalation {
		t.Errorf("source = %q", r.Source)
	}
	if r.Slug != "feijoada" {
		t.Errorf("slug = %q, want slugified guess name", r.Slug)
	}
	if r.Category != "animal protein" || r.Safety.SafeForVegetarians {
		t.Errorf("safety not applied to escalated result: %+v", r.Safety)
	}
}

func TestIdentifyEscalationFailureFallsBack(t *testing.T) {
	// Partial similarity: medium tier, escalation attempted.
	prov := &fakeProvider{vec: []float32{0.8, 0.6, 0, 0}}
	rec := &fakeRecognizer{err: errors.New("recognizer down")}
	svc := newService(t, prov, rec, config.EscalationConfig{Enabled: true})

	r, err := svc.Identify(context.Background(), []byte("photo"), "")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("recognizer calls = %d, want 1", rec.calls)
	}
	if r.Source != SourceVisual {
		t.Errorf("fallback should keep the local candidate, got source %q", r.Source)
	}
	if r.Slug != "tilapia_grelhada" {
		t.Errorf("slug = %q", r.Slug)
	}
}

func TestIdentifyRegionNotAllowed(t *testing.T) {
	prov := &fakeProvider{vec: []float32{0, 0, 1, 0}}
	rec := &fakeRecognizer{guess: recognize.Guess{Name: "Feijoada", Confidence: 0.9}}
	svc := newService(t, prov, rec, config.EscalationConfig{Enabled: true, Regions: []string{"br"}})

	r, err := svc.Identify(context.Background(), []byte("photo"), "us")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if rec.calls != 0 {
		t.Errorf("escalation not permitted for region, got %d calls", rec.calls)
	}
	if r.Tier != policy.TierLow || r.Source != SourceVisual {
		t.Errorf("tier=%q source=%q", r.Tier, r.Source)
	}
}

func TestIdentifyEmbedFailureNoEscalation(t *testing.T) {
	prov := &fakeProvider{err: errors.New("provider down")}
	svc := newService(t, prov, nil, config.EscalationConfig{})

	_, err := svc.Identify(context.Background(), []byte("photo"), "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestIdentifyEmbedFailureEscalates(t *testing.T) {
	prov := &fakeProvider{err: errors.New("provider down")}
	rec := &fakeRecognizer{guess: recognize.Guess{Name: "Sushi", Category: "animal protein", Confidence: 0.8}}
	svc := newService(t, prov, rec, config.EscalationConfig{Enabled: true})

	r, err := svc.Identify(context.Background(), []byte("photo"), "")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if r.Source != SourceEscalation || r.Slug != "sushi" {
		t.Errorf("got %+v", r)
	}
}

func TestIdentifyCancelled(t *testing.T) {
	prov := &fakeProvider{vec: []float32{1, 0, 0, 0}}
	rec := &fakeRecognizer{guess: recognize.Guess{Name: "Sushi", Confidence: 0.9}}
	svc := newService(t, prov, rec, config.EscalationConfig{Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Identify(ctx, []byte("photo"), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rec.calls != 0 {
		t.Error("cancelled request must not escalate")
	}
}

func TestIdentifyEmptyImage(t *testing.T) {
	svc := newService(t, &fakeProvider{vec: []float32{1, 0, 0, 0}}, nil, config.EscalationConfig{})
	if _, err := svc.Identify(context.Background(), nil, ""); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestLookup(t *testing.T) {
	svc := newService(t, &fakeProvider{}, nil, config.EscalationConfig{})

	r, err := svc.Lookup(context.Background(), "arroz_com_feijao")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if r.Source != SourceDirect {
		t.Errorf("source = %q", r.Source)
	}
	if r.Confidence != 0.90 {
		t.Errorf("confidence = %v", r.Confidence)
	}
	if r.Name != "Arroz com Feijão" {
		t.Errorf("name = %q", r.Name)
	}

	if _, err := svc.Lookup(context.Background(), "nope"); !errors.Is(err, index.ErrDishNotFound) {
		t.Errorf("err = %v, want ErrDishNotFound", err)
	}
}

func TestResultCloneIsDeep(t *testing.T) {
	r := Result{
		Slug:        "x",
		Ingredients: []string{"a", "b"},
	}
	r.Safety.Allergens = map[string][]string{"dairy": {"cheese"}}
	r.Safety.DetectedDerivatives = []string{"cheese"}

	c := r.Clone()
	c.Ingredients[0] = "z"
	c.Safety.Allergens["dairy"][0] = "z"
	c.Safety.DetectedDerivatives[0] = "z"

	if r.Ingredients[0] != "a" || r.Safety.Allergens["dairy"][0] != "cheese" || r.Safety.DetectedDerivatives[0] != "cheese" {
		t.Errorf("Clone shares memory with the original: %+v", r)
	}
}

func TestIdentifyBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	prov := &fakeProvider{vec: []float32{0, 0, 1, 0}}
	rec := &fakeRecognizer{err: errors.New("recognizer down")}
	svc := newService(t, prov, rec, config.EscalationConfig{Enabled: true})

	for i := 0; i < 5; i++ {
		// Distinct images so the cache never short-circuits the pipeline.
		if _, err := svc.Identify(context.Background(), []byte(fmt.Sprintf("photo-%d", i)), ""); err != nil {
			t.Fatalf("Identify %d: %v", i, err)
		}
	}
	if rec.calls >= 5 {
		t.Errorf("breaker never opened: %d recognizer calls", rec.calls)
	}
}
