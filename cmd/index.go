package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/soulnutri/dishscan/internal/embedding"
	"github.com/soulnutri/dishscan/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect the visual index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the index from organized dish photos and swap it into place",
	RunE:  runIndexBuild,
}

var indexInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the contents of the built index",
	RunE:  runIndexInspect,
}

var (
	buildSourceDir string
	buildOutDir    string
)

func init() {
	indexBuildCmd.Flags().StringVar(&buildSourceDir, "source", "", "dish photo directory (default: from config)")
	indexBuildCmd.Flags().StringVar(&buildOutDir, "out", "", "index output directory (default: from config)")
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexInspectCmd)
	rootCmd.AddCommand(indexCmd)
}

// acquireBuildLock prevents concurrent builds against the same index dir.
func acquireBuildLock(indexDir string, timeout time.Duration) (func(), error) {
	lockPath := filepath.Join(filepath.Dir(indexDir), ".rebuild.lock")
	l := flock.New(lockPath)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire build lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another build is in progress (lock: %s)", lockPath)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sourceDir := cfg.Index.SourceDir
	if buildSourceDir != "" {
		sourceDir = buildSourceDir
	}
	outDir := cfg.Index.Dir
	if buildOutDir != "" {
		outDir = buildOutDir
	}

	unlock, err := acquireBuildLock(outDir, 5*time.Second)
	if err != nil {
		return err
	}
	defer unlock()

	printSection("Index Build")
	printInfo("", fmt.Sprintf("source: %s", sourceDir))
	printInfo("", fmt.Sprintf("model:  %s @ %s", cfg.Embedding.Model, cfg.Embedding.BaseURL))

	provider := embedding.NewCLIP(cfg.Embedding)
	stagingDir := outDir + ".staging"

	built, stats, err := index.Build(cmd.Context(), provider, index.BuildOptions{
		SourceDir:  sourceDir,
		OutDir:     stagingDir,
		MaxPerDish: cfg.Index.MaxPerDish,
		Rate:       cfg.Index.BuildRate,
	})
	if err != nil {
		printErr("", err.Error())
		return err
	}

	if err := index.AtomicSwap(stagingDir, outDir); err != nil {
		printErr("", fmt.Sprintf("swap failed: %v", err))
		return err
	}

	printOK("", fmt.Sprintf("%d dishes, %d images indexed (dim %d) in %s",
		stats.TotalDishes, stats.TotalImages, stats.Dim, stats.Elapsed.Round(time.Millisecond)))
	if stats.Skipped > 0 {
		printWarn("", fmt.Sprintf("%d images skipped", stats.Skipped))
	}
	printInfo("", fmt.Sprintf("written to %s (model %s)", outDir, built.Meta.ModelID))
	return nil
}

func runIndexInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	x, err := index.Load(cfg.Index.Dir)
	if err != nil {
		return fmt.Errorf("cannot load index from %s: %w\nRun 'dishscan index build' first.", cfg.Index.Dir, err)
	}

	printSection("Index")
	printInfo("", fmt.Sprintf("model:   %s", x.Meta.ModelID))
	printInfo("", fmt.Sprintf("dim:     %d", x.Meta.Dim))
	printInfo("", fmt.Sprintf("created: %s", x.Meta.CreatedAt))
	printInfo("", fmt.Sprintf("rows:    %d across %d dishes", x.Len(), x.DishCount()))

	slugs := make([]string, 0, len(x.Meta.DishRows))
	for slug := range x.Meta.DishRows {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	printSection("Dishes")
	for _, slug := range slugs {
		printOK(slug, fmt.Sprintf("%d images", len(x.Meta.DishRows[slug])))
	}
	return nil
}
