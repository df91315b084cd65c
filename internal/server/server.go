// Package server exposes the identification pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soulnutri/dishscan/internal/cache"
	"github.com/soulnutri/dishscan/internal/catalog"
	"github.com/soulnutri/dishscan/internal/config"
	"github.com/soulnutri/dishscan/internal/embedding"
	"github.com/soulnutri/dishscan/internal/identify"
	"github.com/soulnutri/dishscan/internal/index"
	"github.com/soulnutri/dishscan/internal/logging"
	"github.com/soulnutri/dishscan/internal/nutrition"
)

// Server wires the identification service, index handle, and caches behind
// an HTTP API.
type Server struct {
	cfg       config.Config
	identify  *identify.Service
	handle    *index.Handle
	cache     *cache.Cache[identify.Result]
	catalog   *catalog.Catalog
	nutrition nutrition.Lookup
	provider  embedding.Provider

	rebuilds chan struct{} // capacity 1; limits rebuilds to one at a time
}

// Options bundles the collaborators a Server needs.
type Options struct {
	Config    config.Config
	Identify  *identify.Service
	Handle    *index.Handle
	Cache     *cache.Cache[identify.Result]
	Catalog   *catalog.Catalog
	Nutrition nutrition.Lookup
	Provider  embedding.Provider
}

func New(opts Options) *Server {
	s := &Server{
		cfg:       opts.Config,
		identify:  opts.Identify,
		handle:    opts.Handle,
		cache:     opts.Cache,
		catalog:   opts.Catalog,
		nutrition: opts.Nutrition,
		provider:  opts.Provider,
		rebuilds:  make(chan struct{}, 1),
	}
	if s.catalog == nil {
		s.catalog = catalog.Empty()
	}
	if s.nutrition == nil {
		s.nutrition = nutrition.EmptyTable()
	}
	return s
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(50, 100))

		r.Post("/identify", s.handleIdentify)
		r.Get("/identify/{slug}", s.handleIdentifyLabel)
		r.Get("/dishes", s.handleDishList)
		r.Get("/dishes/{slug}", s.handleDish)
		r.Get("/index/stats", s.handleIndexStats)
		r.Post("/index/rebuild", s.handleRebuild)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/clear", s.handleCacheClear)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logging.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
