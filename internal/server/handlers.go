package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/flock"

	"github.com/soulnutri/dishscan/internal/catalog"
	"github.com/soulnutri/dishscan/internal/identify"
	"github.com/soulnutri/dishscan/internal/index"
	"github.com/soulnutri/dishscan/internal/logging"
	"github.com/soulnutri/dishscan/internal/nutrition"
	"github.com/soulnutri/dishscan/internal/safety"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"index_ready": s.handle.Ready(),
	})
}

// readImage extracts the image payload from either a multipart form field
// named "image" or the raw request body.
func (s *Server) readImage(r *http.Request) ([]byte, error) {
	maxBytes := s.cfg.Server.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(r.Body)
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	image, err := s.readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "image exceeds size limit")
			return
		}
		respondError(w, http.StatusBadRequest, "cannot read image: "+err.Error())
		return
	}
	if len(image) == 0 {
		respondError(w, http.StatusBadRequest, "empty image")
		return
	}

	region := r.URL.Query().Get("region")
	if region == "" {
		region = r.Header.Get("X-Region")
	}

	result, err := s.identify.Identify(r.Context(), image, region)
	if err != nil {
		switch {
		case errors.Is(err, identify.ErrUnavailable):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		case r.Context().Err() != nil:
			respondError(w, http.StatusRequestTimeout, "request cancelled")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// dishResponse is a catalog entry enriched with safety and nutrition data.
type dishResponse struct {
	Slug        string                     `json:"slug"`
	Name        string                     `json:"name"`
	Category    string                     `json:"category"`
	Ingredients []string                   `json:"ingredients"`
	Description string                     `json:"description,omitempty"`
	Safety      safety.Report              `json:"safety"`
	Nutrition   map[string]nutrition.Facts `json:"nutrition,omitempty"`
}

// handleIdentifyLabel resolves a dish by its exact label, bypassing the
// embedding provider and vector search.
func (s *Server) handleIdentifyLabel(w http.ResponseWriter, r *http.Request) {
	result, err := s.identify.Lookup(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		switch {
		case errors.Is(err, index.ErrDishNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, identify.ErrUnavailable):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleDishList returns all cataloged dishes, filtered by the q query
// parameter when present.
func (s *Server) handleDishList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query != "" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		respondJSON(w, http.StatusOK, s.catalog.Search(query, limit))
		return
	}

	slugs := s.catalog.Slugs()
	matches := make([]catalog.Match, 0, len(slugs))
	for _, slug := range slugs {
		dish, _ := s.catalog.Get(slug)
		matches = append(matches, catalog.Match{Slug: slug, Dish: dish})
	}
	respondJSON(w, http.StatusOK, matches)
}

func (s *Server) handleDish(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	dish, ok := s.catalog.Get(slug)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown dish: "+slug)
		return
	}

	report := safety.BuildReport(dish.Category, dish.Name, dish.Ingredients, dish.Description)

	facts := make(map[string]nutrition.Facts)
	for _, ing := range dish.Ingredients {
		f, err := s.nutrition.Lookup(ing)
		if err != nil {
			continue
		}
		facts[ing] = f
	}

	respondJSON(w, http.StatusOK, dishResponse{
		Slug:        slug,
		Name:        dish.Name,
		Category:    report.CorrectedCategory,
		Ingredients: dish.Ingredients,
		Description: dish.Description,
		Safety:      report,
		Nutrition:   facts,
	})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.handle.Stats())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.cache.Clear()
	logging.Ctx(r.Context()).Info().Msg("result cache cleared")
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleRebuild builds a fresh index from the configured source directory
// and swaps it into service. Concurrent rebuild requests are rejected.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	select {
	case s.rebuilds <- struct{}{}:
		defer func() { <-s.rebuilds }()
	default:
		respondError(w, http.StatusConflict, "a rebuild is already in progress")
		return
	}

	indexDir := s.cfg.Index.Dir
	lock := flock.New(filepath.Join(filepath.Dir(indexDir), ".rebuild.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cannot acquire rebuild lock: "+err.Error())
		return
	}
	if !locked {
		respondError(w, http.StatusConflict, "another process holds the rebuild lock")
		return
	}
	defer lock.Unlock()

	start := time.Now()
	stagingDir := indexDir + ".staging"

	built, stats, err := index.Build(r.Context(), s.provider, index.BuildOptions{
		SourceDir:  s.cfg.Index.SourceDir,
		OutDir:     stagingDir,
		MaxPerDish: s.cfg.Index.MaxPerDish,
		Rate:       s.cfg.Index.BuildRate,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "rebuild failed: "+err.Error())
		return
	}
	if err := index.AtomicSwap(stagingDir, indexDir); err != nil {
		respondError(w, http.StatusInternalServerError, "swap failed: "+err.Error())
		return
	}

	s.handle.Swap(built)
	s.cache.Clear()

	logging.Ctx(r.Context()).Info().
		Int("dishes", stats.TotalDishes).
		Int("images", stats.TotalImages).
		Dur("elapsed", time.Since(start)).
		Msg("index rebuilt")
	respondJSON(w, http.StatusOK, stats)
}
