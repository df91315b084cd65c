package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/soulnutri/dishscan/internal/embedding"
	"github.com/soulnutri/dishscan/internal/logging"
)

// BuildOptions controls index building.
type BuildOptions struct {
	// SourceDir holds one sub-directory per dish, named by the dish slug,
	// containing that dish's reference photos.
	SourceDir string

	// OutDir receives the written artifacts. Callers typically point this at
	// a staging directory and AtomicSwap it over the serving one.
	OutDir string

	// MaxPerDish caps the number of images indexed per dish.
	MaxPerDish int

	// Rate caps embedding provider calls per second. Zero means unpaced.
	Rate float64
}

// BuildStats reports what a build indexed.
type BuildStats struct {
	TotalDishes int           `json:"total_dishes"`
	TotalImages int           `json:"total_images"`
	Skipped     int           `json:"skipped"`
	Dim         int           `json:"dim"`
	Elapsed     time.Duration `json:"elapsed"`
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Build constructs a brand-new index from the per-dish photo folders under
// opts.SourceDir. Individual embedding failures are skipped and counted, not
// fatal; the build aborts only on context cancellation or when the source
// tree is unusable. The serving index is never mutated; callers swap the
// returned instance in via Handle.
func Build(ctx context.Context, prov embedding.Provider, opts BuildOptions) (*Index, BuildStats, error) {
	var stats BuildStats
	if opts.SourceDir == "" {
		return nil, stats, fmt.Errorf("source dir is required")
	}
	if opts.MaxPerDish <= 0 {
		opts.MaxPerDish = 10
	}

	dirents, err := os.ReadDir(opts.SourceDir)
	if err != nil {
		return nil, stats, fmt.Errorf("cannot read source dir %s: %w", opts.SourceDir, err)
	}

	var slugs []string
	for _, d := range dirents {
		if d.IsDir() {
			slugs = append(slugs, d.Name())
		}
	}
	sort.Strings(slugs)
	if len(slugs) == 0 {
		return nil, stats, fmt.Errorf("no dish folders found under %s", opts.SourceDir)
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	start := time.Now()
	meta := Metadata{
		FormatVersion: 1,
		ModelID:       prov.ModelID(),
		VectorFile:    defaultVectorFile,
		DishRows:      map[string][]int{},
		Dishes:        map[string]DishMeta{},
	}
	var vectors []float32
	dim := 0

	for _, slug := range slugs {
		dishPath := filepath.Join(opts.SourceDir, slug)
		images, err := listImages(dishPath)
		if err != nil {
			logging.Warn().Str("dish", slug).Err(err).Msg("cannot list dish folder, skipping")
			continue
		}
		if len(images) > opts.MaxPerDish {
			images = images[:opts.MaxPerDish]
		}

		var rows []int
		for _, imgPath := range images {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return nil, stats, err
				}
			} else if err := ctx.Err(); err != nil {
				return nil, stats, err
			}

			raw, err := os.ReadFile(imgPath)
			if err != nil {
				stats.Skipped++
				logging.Warn().Str("image", imgPath).Err(err).Msg("cannot read image, skipping")
				continue
			}

			vec, err := embedding.EmbedWithRetry(ctx, prov, raw)
			if err != nil {
				if ctx.Err() != nil {
					return nil, stats, err
				}
				stats.Skipped++
				logging.Warn().Str("image", imgPath).Err(err).Msg("embedding failed, skipping")
				continue
			}
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim {
				return nil, stats, fmt.Errorf("embedding dim changed mid-build: got %d want %d", len(vec), dim)
			}

			rows = append(rows, len(meta.Entries))
			meta.Entries = append(meta.Entries, slug)
			vectors = append(vectors, NormalizeL2(vec)...)
			stats.TotalImages++
		}

		if len(rows) > 0 {
			meta.DishRows[slug] = rows
			meta.Dishes[slug] = DishMeta{ImageCount: len(rows), SourcePath: dishPath}
		}
	}

	if len(meta.Entries) == 0 {
		return nil, stats, fmt.Errorf("no images indexed under %s (%d skipped)", opts.SourceDir, stats.Skipped)
	}

	meta.Dim = dim
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	x := &Index{Meta: meta, Vectors: vectors}

	if opts.OutDir != "" {
		if err := Write(opts.OutDir, x); err != nil {
			return nil, stats, err
		}
	}

	stats.TotalDishes = len(meta.DishRows)
	stats.Dim = dim
	stats.Elapsed = time.Since(start)
	return x, stats, nil
}

func listImages(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			out = append(out, filepath.Join(dir, d.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
