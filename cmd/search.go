package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soulnutri/dishscan/internal/catalog"
)

var searchCmd = &cobra.Command{
	Use:   "search <keywords...>",
	Short: "Search the dish catalog by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var searchLimit int

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results to show")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("cannot load catalog: %w", err)
	}

	query := strings.Join(args, " ")
	matches := cat.Search(query, searchLimit)

	printSection(fmt.Sprintf("Search: %s", query))
	if len(matches) == 0 {
		printMiss("", "no dishes match")
		return nil
	}
	for _, m := range matches {
		detail := m.Dish.Category
		if len(m.Dish.Ingredients) > 0 {
			detail += "  (" + strings.Join(m.Dish.Ingredients, ", ") + ")"
		}
		printOK(m.Slug, fmt.Sprintf("%s — %s", m.Dish.Name, detail))
	}
	fmt.Printf("\n  %d match(es)\n", len(matches))
	return nil
}
