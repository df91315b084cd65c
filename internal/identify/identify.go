// Package identify orchestrates the full dish identification pipeline:
// cache lookup, embedding, visual index search, confidence policy,
// optional escalation to an external recognizer, and safety validation.
package identify

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/soulnutri/dishscan/internal/cache"
	"github.com/soulnutri/dishscan/internal/catalog"
	"github.com/soulnutri/dishscan/internal/config"
	"github.com/soulnutri/dishscan/internal/embedding"
	"github.com/soulnutri/dishscan/internal/index"
	"github.com/soulnutri/dishscan/internal/logging"
	"github.com/soulnutri/dishscan/internal/metrics"
	"github.com/soulnutri/dishscan/internal/policy"
	"github.com/soulnutri/dishscan/internal/recognize"
	"github.com/soulnutri/dishscan/internal/safety"
)

// ErrUnavailable means no identification path could produce a candidate:
// the index is empty or unloadable and escalation is off or also failed.
var ErrUnavailable = errors.New("identification unavailable")

// Result sources.
const (
	SourceVisual     = index.ProvenanceVisual
	SourceDirect     = index.ProvenanceDirect
	SourceEscalation = "escalation"
)

// Result is a validated identification. Every Result has passed the safety
// validator; Category is always the corrected category, never the raw
// declared one.
type Result struct {
	Slug        string        `json:"slug"`
	Name        string        `json:"name"`
	Category    string        `json:"category"`
	Ingredients []string      `json:"ingredients"`
	Description string        `json:"description,omitempty"`
	Confidence  float64       `json:"confidence"`
	Tier        policy.Tier   `json:"tier"`
	Source      string        `json:"source"`
	ImageCount  int           `json:"image_count,omitempty"`
	FromCache   bool          `json:"from_cache"`
	Safety      safety.Report `json:"safety"`
}

// Clone returns a deep copy so cached results cannot be mutated by callers.
func (r Result) Clone() Result {
	out := r
	out.Ingredients = append([]string(nil), r.Ingredients...)
	out.Safety.DetectedAnimalProteins = append([]string(nil), r.Safety.DetectedAnimalProteins...)
	out.Safety.DetectedDerivatives = append([]string(nil), r.Safety.DetectedDerivatives...)
	out.Safety.Alerts = append([]safety.Alert(nil), r.Safety.Alerts...)
	if r.Safety.Allergens != nil {
		m := make(map[string][]string, len(r.Safety.Allergens))
		for k, v := range r.Safety.Allergens {
			m[k] = append([]string(nil), v...)
		}
		out.Safety.Allergens = m
	}
	return out
}

// Service runs identifications against a shared index handle. It is safe
// for concurrent use.
type Service struct {
	provider   embedding.Provider
	handle     *index.Handle
	cache      *cache.Cache[Result]
	catalog    *catalog.Catalog
	recognizer recognize.Recognizer
	breaker    *gobreaker.CircuitBreaker[recognize.Guess]

	topK       int
	cacheTTL   time.Duration
	escalation config.EscalationConfig
}

// Options bundles the collaborators a Service needs. Recognizer may be nil
// when escalation is disabled.
type Options struct {
	Provider   embedding.Provider
	Handle     *index.Handle
	Cache      *cache.Cache[Result]
	Catalog    *catalog.Catalog
	Recognizer recognize.Recognizer

	TopK       int
	CacheTTL   time.Duration
	Escalation config.EscalationConfig
}

func New(opts Options) *Service {
	s := &Service{
		provider:   opts.Provider,
		handle:     opts.Handle,
		cache:      opts.Cache,
		catalog:    opts.Catalog,
		recognizer: opts.Recognizer,
		topK:       opts.TopK,
		cacheTTL:   opts.CacheTTL,
		escalation: opts.Escalation,
	}
	if s.topK <= 0 {
		s.topK = 5
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = time.Hour
	}
	if s.catalog == nil {
		s.catalog = catalog.Empty()
	}
	s.breaker = gobreaker.NewCircuitBreaker[recognize.Guess](gobreaker.Settings{
		Name:    "recognizer",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("escalation circuit breaker state change")
		},
	})
	return s
}

// Identify runs the full pipeline on one image. region selects the
// escalation policy for the caller; pass "" when no region applies.
func (s *Service) Identify(ctx context.Context, image []byte, region string) (Result, error) {
	if len(image) == 0 {
		return Result{}, fmt.Errorf("empty image")
	}

	key := cache.Key(image)
	if hit, ok := s.cache.Get(key); ok {
		hit.FromCache = true
		metrics.Identifications.WithLabelValues(hit.Source, string(hit.Tier)).Inc()
		logging.Ctx(ctx).Debug().Str("slug", hit.Slug).Msg("cache hit")
		return hit, nil
	}

	allowed := s.recognizer != nil && s.escalation.EscalationAllowed(region)

	candidate, found, err := s.localCandidate(ctx, image)
	if err != nil && (ctx.Err() != nil || !allowed) {
		return Result{}, err
	}

	if !found || policy.ShouldEscalate(candidate.Tier, allowed) {
		if escalated, ok := s.escalate(ctx, image); ok {
			candidate = escalated
			found = true
		}
	}
	if !found {
		return Result{}, fmt.Errorf("%w: no candidate from index or recognizer", ErrUnavailable)
	}

	s.validate(ctx, &candidate)

	s.cache.Set(key, candidate, s.cacheTTL)
	metrics.Identifications.WithLabelValues(candidate.Source, string(candidate.Tier)).Inc()
	logging.Ctx(ctx).Info().
		Str("slug", candidate.Slug).
		Str("source", candidate.Source).
		Str("tier", string(candidate.Tier)).
		Float64("confidence", candidate.Confidence).
		Msg("dish identified")
	return candidate, nil
}

// Lookup resolves a dish by label without touching the embedding provider.
func (s *Service) Lookup(ctx context.Context, slug string) (Result, error) {
	idx := s.handle.Current()
	if idx == nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, index.ErrNotReady)
	}
	hit, err := idx.SearchByExactLabel(slug)
	if err != nil {
		return Result{}, err
	}
	r := Result{
		Slug:       hit.Slug,
		Confidence: hit.Score,
		Tier:       policy.Classify(hit.Score),
		Source:     hit.Provenance,
		ImageCount: hit.ImageCount,
	}
	s.validate(ctx, &r)
	return r, nil
}

// localCandidate embeds the image and searches the serving index. found
// reports whether a candidate exists; err carries the reason when not.
func (s *Service) localCandidate(ctx context.Context, image []byte) (Result, bool, error) {
	vec, err := embedding.EmbedWithRetry(ctx, s.provider, image)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, false, ctx.Err()
		}
		return Result{}, false, fmt.Errorf("%w: embed: %v", ErrUnavailable, err)
	}

	idx := s.handle.Current()
	if idx == nil {
		return Result{}, false, fmt.Errorf("%w: %v", ErrUnavailable, index.ErrNotReady)
	}
	hits, err := idx.Search(vec, s.topK)
	if err != nil {
		return Result{}, false, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}

	top := hits[0]
	return Result{
		Slug:       top.Slug,
		Confidence: top.Score,
		Tier:       policy.Classify(top.Score),
		Source:     top.Provenance,
		ImageCount: top.ImageCount,
	}, true, nil
}

// escalate consults the external recognizer behind the circuit breaker.
func (s *Service) escalate(ctx context.Context, image []byte) (Result, bool) {
	if s.recognizer == nil {
		return Result{}, false
	}
	guess, err := s.breaker.Execute(func() (recognize.Guess, error) {
		callCtx := ctx
		if s.escalation.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.escalation.Timeout)
			defer cancel()
		}
		return s.recognizer.Recognize(callCtx, image)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "open"
		}
		metrics.Escalations.WithLabelValues(result).Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("escalation failed, using local candidate")
		return Result{}, false
	}
	metrics.Escalations.WithLabelValues("ok").Inc()

	slug := guess.Slug
	if slug == "" {
		slug = catalog.Slugify(guess.Name)
	}
	return Result{
		Slug:        slug,
		Name:        guess.Name,
		Category:    guess.Category,
		Ingredients: append([]string(nil), guess.Ingredients...),
		Description: guess.Description,
		Confidence:  guess.Confidence,
		Tier:        policy.Classify(guess.Confidence),
		Source:      SourceEscalation,
	}, true
}

// validate enriches the candidate from the catalog and runs the safety
// validator. The corrected category always wins over the declared one.
func (s *Service) validate(ctx context.Context, r *Result) {
	declared := r.Category
	if dish, ok := s.catalog.Get(r.Slug); ok {
		if r.Name == "" {
			r.Name = dish.Name
		}
		if len(r.Ingredients) == 0 {
			r.Ingredients = append([]string(nil), dish.Ingredients...)
		}
		if r.Description == "" {
			r.Description = dish.Description
		}
		if declared == "" {
			declared = dish.Category
		}
	}
	if r.Name == "" {
		r.Name = catalog.DisplayName(r.Slug)
	}

	r.Safety = safety.BuildReport(declared, r.Name, r.Ingredients, r.Description)
	r.Category = r.Safety.CorrectedCategory
	if r.Safety.CategoryChanged {
		logging.Ctx(ctx).Warn().
			Str("slug", r.Slug).
			Str("declared", declared).
			Str("corrected", r.Category).
			Msg("category corrected by safety validator")
	}
}
