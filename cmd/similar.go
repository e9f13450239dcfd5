package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"glyphsim/internal/export"
	"glyphsim/internal/match"
	"glyphsim/internal/models"
)

var (
	similarLimit int
	similarMax   float64
)

var similarCmd = &cobra.Command{
	Use:   "similar <result.json> <id>",
	Short: "Show the glyphs closest to one glyph",
	Long: `List the glyphs with the smallest difference from <id>, closest first.

Example:
  glyphsim similar scores.json 日
  glyphsim similar scores.json 日 -n 0 --max 0.2`,
	Args: cobra.ExactArgs(2),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 10, "Number of neighbors to show (0 = all)")
	similarCmd.Flags().Float64Var(&similarMax, "max", -1, "Only show neighbors up to this score (-1 = no cutoff)")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	result, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}

	id := models.ItemID(args[1])
	neighbors, ok := match.Nearest(result, id, similarLimit, similarMax)
	if !ok {
		return fmt.Errorf("glyph %q is not in %s", id, args[0])
	}

	if len(neighbors) == 0 {
		fmt.Printf("No glyphs within %s of %s\n", formatScore(similarMax), id)
		return nil
	}

	fmt.Printf("Closest glyphs to %s\n", id)
	for i, n := range neighbors {
		fmt.Printf("%4d. %-20s  %s\n", i+1, n.ID, formatScore(n.Score))
	}
	return nil
}
