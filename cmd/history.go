package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"glyphsim/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent comparison runs",
	Long: `Show comparison runs recorded in the SQLite database.

Runs are recorded when compare uses --hash-store sqlite.

Example:
  glyphsim history
  glyphsim history -n 0`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		fmt.Println("Run 'glyphsim compare <folder> --hash-store sqlite' to record one.")
		return nil
	}

	count, err := store.GlyphCount()
	if err == nil {
		fmt.Printf("%d glyph hashes stored in %s\n\n", count, cfg.DBPath)
	}

	fmt.Printf("%-5s  %-19s  %-10s  %7s  %7s  %7s  %10s  %s\n",
		"Run", "Started", "Algorithm", "Glyphs", "Skipped", "Largest", "Duration", "Source")
	fmt.Println(strings.Repeat("-", 100))
	for _, run := range runs {
		fmt.Printf("#%-4d  %-19s  %-10s  %7d  %7d  %7d  %10s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Algorithm,
			run.TotalItems,
			run.SkippedItems,
			run.LargestDifference,
			run.Duration.Round(time.Millisecond),
			shortenPath(run.Source, 40),
		)
	}
	return nil
}

func shortenPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-(maxLen-3):]
}
