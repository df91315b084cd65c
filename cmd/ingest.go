package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soulnutri/dishscan/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <photo-dir>",
	Short: "Copy dish photos into the organized source tree",
	Long: `Ingest copies photos from a directory holding one sub-directory per dish
into the configured source tree. Identical duplicates are skipped; photos
with the same name but different content are kept under a conflict name.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	ingestSource   string
	ingestExcludes []string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "import", "label used for conflict file names")
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", []string{".DS_Store", "Thumbs.db", "*.tmp"}, "glob patterns to skip")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	printSection("Ingest")
	printInfo("", fmt.Sprintf("%s → %s", args[0], cfg.Index.SourceDir))

	r, err := ingest.ImportDir(args[0], cfg.Index.SourceDir, ingestSource, ingestExcludes)
	if err != nil {
		return err
	}

	printOK("", fmt.Sprintf("%d photos imported across %d dishes", r.Imported, r.DishesImported))
	if r.Skipped > 0 {
		printSkip("", fmt.Sprintf("%d identical duplicates skipped", r.Skipped))
	}
	if r.Ignored > 0 {
		printSkip("", fmt.Sprintf("%d non-image or excluded files ignored", r.Ignored))
	}
	for _, c := range r.Conflicts {
		printWarn("", fmt.Sprintf("conflict: %s kept as %s", c.Original, c.Conflict))
	}
	if len(r.Conflicts) > 0 {
		printInfo("", "review conflict files before the next index build")
	}
	return nil
}
