package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulnutri/dishscan/internal/catalog"
	"github.com/soulnutri/dishscan/internal/index"
	"github.com/soulnutri/dishscan/internal/nutrition"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check index, data files, and the embedding service",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	problems := 0

	printSection("Visual Index")
	if x, err := index.Load(cfg.Index.Dir); err != nil {
		problems++
		printErr("index", fmt.Sprintf("%v  (run: dishscan index build)", err))
	} else {
		printOK("index", fmt.Sprintf("%d dishes, %d images, dim %d, model %s",
			x.DishCount(), x.Len(), x.Meta.Dim, x.Meta.ModelID))
	}

	printSection("Data Files")
	if cfg.Catalog.Path == "" {
		printSkip("catalog", "not configured")
	} else if cat, err := catalog.Load(cfg.Catalog.Path); err != nil {
		problems++
		printErr("catalog", err.Error())
	} else {
		printOK("catalog", fmt.Sprintf("%d dishes (%s)", cat.Len(), cfg.Catalog.Path))
	}

	if cfg.Catalog.NutritionPath == "" {
		printSkip("nutrition", "not configured")
	} else if table, err := nutrition.LoadTable(cfg.Catalog.NutritionPath); err != nil {
		problems++
		printErr("nutrition", err.Error())
	} else {
		printOK("nutrition", fmt.Sprintf("%d ingredients (%s)", table.Len(), cfg.Catalog.NutritionPath))
	}

	if _, err := os.Stat(cfg.Index.SourceDir); err != nil {
		printMiss("photos", fmt.Sprintf("source dir %s not found", cfg.Index.SourceDir))
	} else {
		printOK("photos", cfg.Index.SourceDir)
	}

	printSection("Embedding Service")
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(cfg.Embedding.BaseURL + "/health")
	switch {
	case err != nil:
		problems++
		printErr("embedding", fmt.Sprintf("%s unreachable: %v", cfg.Embedding.BaseURL, err))
	case resp.StatusCode >= 500:
		problems++
		resp.Body.Close()
		printErr("embedding", fmt.Sprintf("%s returned HTTP %d", cfg.Embedding.BaseURL, resp.StatusCode))
	default:
		resp.Body.Close()
		printOK("embedding", fmt.Sprintf("%s (model %s)", cfg.Embedding.BaseURL, cfg.Embedding.Model))
	}

	printSection("Escalation")
	if !cfg.Escalation.Enabled {
		printSkip("recognizer", "disabled")
	} else {
		printOK("recognizer", fmt.Sprintf("%s (model %s)", cfg.Escalation.BaseURL, cfg.Escalation.Model))
	}

	if problems > 0 {
		fmt.Printf("\n  %d problem(s) found\n", problems)
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Println("\n  all checks passed")
	return nil
}
