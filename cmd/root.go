package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soulnutri/dishscan/internal/config"
	"github.com/soulnutri/dishscan/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:          "dishscan",
	Short:        "dishscan — visual dish identification service",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `dishscan identifies dishes from photos using a visual similarity index,
validates diet categories and allergens, and serves results over HTTP.`,
}

// loadConfig resolves configuration and initializes logging from it.
// Every command calls this first.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return cfg, nil
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
