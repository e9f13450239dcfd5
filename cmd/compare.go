package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"glyphsim/internal/catalog"
	"glyphsim/internal/compare"
	"glyphsim/internal/config"
	"glyphsim/internal/export"
	"glyphsim/internal/hash"
	"glyphsim/internal/models"
	"glyphsim/internal/similarity"
	"glyphsim/internal/storage"
)

var (
	compareList       string
	compareIndent     bool
	compareNoProgress bool
)

var compareCmd = &cobra.Command{
	Use:   "compare [folder]",
	Short: "Compute the pairwise difference matrix of a glyph folder",
	Long: `Hash every glyph image and score every pair of glyphs.

The comparison will:
1. Build the catalog from <folder>/<id><ext> (or from --list)
2. Compute a perceptual hash for each glyph, skipping unreadable images
3. Compute the Hamming distance of every unordered pair exactly once
4. Scale all distances by the largest one and write the result as JSON

Example:
  glyphsim compare ./output
  glyphsim compare ./output --list ids.txt -o scores.json
  glyphsim compare ./output --hash-store sqlite --precision 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&cfg.ImageExt, "ext", cfg.ImageExt, "Glyph image extension")
	compareCmd.Flags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Result file")
	compareCmd.Flags().StringVar(&cfg.Layout, "layout", cfg.Layout, "Result layout (nested, flat)")
	compareCmd.Flags().IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "Items per comparison chunk")
	compareCmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-worker deadline")
	compareCmd.Flags().IntVar(&cfg.Precision, "precision", cfg.Precision, "Decimal digits to round scores to (-1 = no rounding)")
	compareCmd.Flags().StringVar(&cfg.Algorithm, "algorithm", cfg.Algorithm, "Hash algorithm (average, perception, difference)")
	compareCmd.Flags().StringVar(&cfg.HashStore, "hash-store", cfg.HashStore, "Reuse hashes across runs (none, sqlite, redis)")
	compareCmd.Flags().StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis address or URL for --hash-store redis")
	compareCmd.Flags().StringVar(&compareList, "list", "", "File with one glyph id per line")
	compareCmd.Flags().BoolVar(&compareIndent, "indent", false, "Indent the JSON result")
	compareCmd.Flags().BoolVar(&compareNoProgress, "no-progress", false, "Hide progress bars")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	folder := cfg.ImagesDir
	if len(args) == 1 {
		folder = args[0]
	}

	absFolder, err := filepath.Abs(folder)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absFolder)
	if err != nil {
		return fmt.Errorf("folder not found: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", absFolder)
	}

	ids, names, err := buildCatalog(absFolder)
	if err != nil {
		return err
	}

	algorithm, _ := hash.ParseAlgorithm(cfg.Algorithm)
	layout, _ := export.ParseLayout(cfg.Layout)

	fmt.Printf("Comparing: %s\n", absFolder)
	fmt.Printf("Glyphs: %d\n", len(ids))
	fmt.Printf("Algorithm: %s\n", algorithm)
	fmt.Printf("Workers: %d\n\n", cfg.Workers)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := hash.NewFileProvider(absFolder, cfg.ImageExt, hash.NewHasher(algorithm)).UseFileNames(names)
	provider, history, closeStore, err := openProvider(ctx, files)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []compare.Option{
		compare.WithWorkers(cfg.Workers),
		compare.WithChunkSize(cfg.ChunkSize),
		compare.WithTimeout(cfg.Timeout),
		compare.WithPrecision(cfg.Precision),
		compare.WithLogger(log.Logger),
	}
	if !compareNoProgress {
		opts = append(opts, compare.WithProgress(newProgress()))
	}

	started := time.Now()
	result, cmp, err := compare.NewRunner(provider, opts...).Run(ctx, ids)
	if cmp != nil {
		printReport(cmp.Report)
	}
	if errors.Is(err, similarity.ErrDegenerateScale) {
		return fmt.Errorf("cannot normalize %d glyph(s): %w", cmp.Report.Processed, err)
	}
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if err := export.WriteFile(cfg.Output, result, layout, compareIndent); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	fmt.Printf("\nResult written to %s\n", cfg.Output)

	if history != nil {
		rec := &models.RunRecord{
			Source:            absFolder,
			Output:            cfg.Output,
			Algorithm:         string(algorithm),
			StartedAt:         started,
			TotalItems:        cmp.Report.Total,
			SkippedItems:      len(cmp.Report.Skipped),
			LargestDifference: cmp.Report.LargestDifference,
			Computations:      cmp.Report.Computations,
			Duration:          time.Since(started),
		}
		if err := history.RecordRun(rec); err != nil {
			log.Warn().Err(err).Msg("failed to record run")
		}
	}

	if p, ok := provider.(*hash.PersistentProvider); ok {
		hits, misses := p.Stats()
		log.Info().Int64("hits", hits).Int64("misses", misses).Str("store", cfg.HashStore).Msg("hash store usage")
	}

	if len(ids) > 1 {
		fmt.Println()
		fmt.Printf("Run 'glyphsim groups %s' to see near-identical glyphs\n", cfg.Output)
	}
	return nil
}

// buildCatalog returns the ids to compare and the image file of each id
// found in folder. With --list, ids absent from folder keep the default
// <id><ext> name and are reported as skipped.
func buildCatalog(folder string) ([]models.ItemID, map[models.ItemID]string, error) {
	if compareList == "" {
		names, err := catalog.ScanDir(folder, cfg.ImageExt)
		if err != nil {
			return nil, nil, err
		}
		return catalog.IDs(names), names, nil
	}

	ids, err := catalog.FromListFile(compareList)
	if err != nil {
		return nil, nil, err
	}
	names, err := catalog.ScanDir(folder, cfg.ImageExt)
	if err != nil {
		log.Warn().Err(err).Str("folder", folder).Msg("cannot resolve image names, using <id><ext>")
		names = nil
	}
	return ids, names, nil
}

// openProvider wraps files with the configured hash store. The returned
// storage is non-nil only for the sqlite store, which also keeps history.
func openProvider(ctx context.Context, files *hash.FileProvider) (hash.Provider, *storage.Storage, func(), error) {
	switch cfg.HashStore {
	case config.StoreSQLite:
		store, err := storage.NewStorage(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return hash.NewPersistentProvider(files, store, log.Logger), store, func() { store.Close() }, nil
	case config.StoreRedis:
		store, err := storage.NewRedisStore(ctx, cfg.RedisURL, "", cfg.RedisTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		return hash.NewPersistentProvider(files, store, log.Logger), nil, func() { store.Close() }, nil
	default:
		return files, nil, func() {}, nil
	}
}

// newProgress returns a progress callback drawing one bar per stage
func newProgress() func(stage string, done, total int) {
	var mu sync.Mutex
	var bar *progressbar.ProgressBar
	current := ""

	return func(stage string, done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if stage != current {
			if bar != nil {
				bar.Finish()
			}
			description := "Hashing glyphs"
			if stage == compare.StageCompare {
				description = "Comparing"
			}
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			current = stage
		}
		bar.Set(done)
		if done == total {
			bar.Finish()
		}
	}
}

func printReport(report *models.Report) {
	fmt.Println()
	fmt.Println("=== Comparison Complete ===")
	fmt.Printf("Total glyphs:       %d\n", report.Total)
	fmt.Printf("Processed:          %d\n", report.Processed)
	fmt.Printf("Skipped:            %d\n", len(report.Skipped))
	fmt.Printf("Comparisons:        %d\n", report.Computations)
	fmt.Printf("Largest difference: %d\n", report.LargestDifference)
	fmt.Printf("Time:               %s hashing, %s comparing\n",
		report.HashDuration.Round(time.Millisecond), report.CompareDuration.Round(time.Millisecond))

	if len(report.Skipped) > 0 {
		fmt.Println()
		fmt.Println("Skipped glyphs:")
		for _, s := range report.Skipped {
			fmt.Printf("  %-12s %s\n", s.ID, shorten(s.Reason, 60))
		}
	}
}

func shorten(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
