package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soulnutri/dishscan/internal/cache"
	"github.com/soulnutri/dishscan/internal/catalog"
	"github.com/soulnutri/dishscan/internal/embedding"
	"github.com/soulnutri/dishscan/internal/identify"
	"github.com/soulnutri/dishscan/internal/index"
	"github.com/soulnutri/dishscan/internal/logging"
	"github.com/soulnutri/dishscan/internal/nutrition"
	"github.com/soulnutri/dishscan/internal/recognize"
	"github.com/soulnutri/dishscan/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the identification HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The service starts even when the index is missing; identification
	// returns unavailable until a rebuild provides one.
	handle := index.NewHandle(nil)
	if x, err := index.Load(cfg.Index.Dir); err != nil {
		logging.Warn().Str("dir", cfg.Index.Dir).Err(err).Msg("index not loaded, serving degraded")
	} else {
		handle.Swap(x)
		logging.Info().Int("dishes", x.DishCount()).Int("images", x.Len()).Msg("index loaded")
	}

	cat := catalog.Empty()
	if cfg.Catalog.Path != "" {
		if loaded, err := catalog.Load(cfg.Catalog.Path); err != nil {
			logging.Warn().Str("path", cfg.Catalog.Path).Err(err).Msg("catalog not loaded")
		} else {
			cat = loaded
		}
	}

	nut := nutrition.Lookup(nutrition.EmptyTable())
	if cfg.Catalog.NutritionPath != "" {
		if table, err := nutrition.LoadTable(cfg.Catalog.NutritionPath); err != nil {
			logging.Warn().Str("path", cfg.Catalog.NutritionPath).Err(err).Msg("nutrition table not loaded")
		} else {
			nut = table
		}
	}

	provider := embedding.NewCLIP(cfg.Embedding)

	var recognizer recognize.Recognizer
	if cfg.Escalation.Enabled {
		recognizer = recognize.NewHTTP(cfg.Escalation)
	}

	resultCache := cache.New[identify.Result](cfg.Cache.Capacity)
	svc := identify.New(identify.Options{
		Provider:   provider,
		Handle:     handle,
		Cache:      resultCache,
		Catalog:    cat,
		Recognizer: recognizer,
		TopK:       cfg.Index.TopK,
		CacheTTL:   cfg.Cache.TTL,
		Escalation: cfg.Escalation,
	})

	srv := server.New(server.Options{
		Config:    *cfg,
		Identify:  svc,
		Handle:    handle,
		Cache:     resultCache,
		Catalog:   cat,
		Nutrition: nut,
		Provider:  provider,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
