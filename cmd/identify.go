package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/soulnutri/dishscan/internal/cache"
	"github.com/soulnutri/dishscan/internal/catalog"
	"github.com/soulnutri/dishscan/internal/embedding"
	"github.com/soulnutri/dishscan/internal/identify"
	"github.com/soulnutri/dishscan/internal/index"
	"github.com/soulnutri/dishscan/internal/recognize"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image-file>",
	Short: "Identify the dish in a single photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentify,
}

var identifyJSON bool

func init() {
	identifyCmd.Flags().BoolVar(&identifyJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read image: %w", err)
	}

	x, err := index.Load(cfg.Index.Dir)
	if err != nil {
		return fmt.Errorf("cannot load index from %s: %w\nRun 'dishscan index build' first.", cfg.Index.Dir, err)
	}

	cat := catalog.Empty()
	if cfg.Catalog.Path != "" {
		if loaded, err := catalog.Load(cfg.Catalog.Path); err == nil {
			cat = loaded
		}
	}

	var recognizer recognize.Recognizer
	if cfg.Escalation.Enabled {
		recognizer = recognize.NewHTTP(cfg.Escalation)
	}

	svc := identify.New(identify.Options{
		Provider:   embedding.NewCLIP(cfg.Embedding),
		Handle:     index.NewHandle(x),
		Cache:      cache.New[identify.Result](1),
		Catalog:    cat,
		Recognizer: recognizer,
		TopK:       cfg.Index.TopK,
		CacheTTL:   cfg.Cache.TTL,
		Escalation: cfg.Escalation,
	})

	r, err := svc.Identify(cmd.Context(), image, "")
	if err != nil {
		return err
	}

	if identifyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	printSection("Identification")
	printOK(r.Slug, fmt.Sprintf("%s  (%.0f%% %s, %s)", r.Name, r.Confidence*100, r.Tier, r.Source))
	printInfo("", fmt.Sprintf("category: %s", r.Category))
	if len(r.Ingredients) > 0 {
		printInfo("", fmt.Sprintf("ingredients: %s", strings.Join(r.Ingredients, ", ")))
	}

	if r.Safety.CategoryChanged {
		printWarn("", fmt.Sprintf("declared %q, corrected to %q", r.Safety.OriginalCategory, r.Safety.CorrectedCategory))
	}
	for _, a := range r.Safety.Alerts {
		if a.Severity == "high" {
			printErr("", a.Message)
		} else {
			printWarn("", a.Message)
		}
	}
	if len(r.Safety.Alerts) == 0 && !r.Safety.CategoryChanged {
		printOK("", "no safety alerts")
	}
	return nil
}
