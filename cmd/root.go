package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"glyphsim/internal/config"
	"glyphsim/internal/logger"
)

var (
	cfg       = loadConfig()
	logPretty bool
)

// loadConfig runs during package variable initialization, before any init
// function registers flags bound to cfg.
func loadConfig() *config.Config {
	// A missing .env file is normal
	_ = config.LoadEnv()
	return config.Load()
}

var rootCmd = &cobra.Command{
	Use:   "glyphsim",
	Short: "Compare glyph images by perceptual hash",
	Long: `glyphsim computes a normalized visual difference score for every pair
of glyph images in a catalog.

Each image is reduced to a 64-bit perceptual hash. The Hamming distance of
every unordered pair is computed once, and the matrix is scaled by the
largest distance so that scores fall in [0, 1].

Settings default to GLYPHSIM_* environment variables (a .env file in the
working directory is read too); flags override them.

Example usage:
  glyphsim compare ./output              # Score every glyph in ./output
  glyphsim groups scores.json            # List near-identical glyphs
  glyphsim similar scores.json 日        # Glyphs closest to 日
  glyphsim serve scores.json             # Browse the result over HTTP`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger.Init(cfg.LogLevel, logPretty)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	rootCmd.PersistentFlags().IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of parallel workers")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", true, "Human readable logs instead of JSON")
}
