package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"glyphsim/internal/export"
	"glyphsim/internal/match"
	"glyphsim/internal/models"
)

var (
	groupsThreshold float64
	groupsExact     bool
	groupsJSON      bool
	groupsSummary   bool
	groupsLimit     int
	groupsOffset    int
)

var groupsCmd = &cobra.Command{
	Use:   "groups <result.json>",
	Short: "List groups of near-identical glyphs",
	Long: `Group glyphs whose normalized difference is at most --threshold.

Grouping is transitive: if A is close to B and B is close to C, all three
end up in one group. Each group shows its glyphs and the largest difference
between any two of them.

Example:
  glyphsim groups scores.json                  # Show first 10 groups (default)
  glyphsim groups scores.json -n 0             # Show all groups
  glyphsim groups scores.json --exact          # Identical hashes only
  glyphsim groups scores.json -t 0.05 --json   # Machine readable`,
	Args: cobra.ExactArgs(1),
	RunE: runGroups,
}

func init() {
	groupsCmd.Flags().Float64VarP(&groupsThreshold, "threshold", "t", match.DefaultThreshold, "Normalized difference threshold (0-1, lower = stricter)")
	groupsCmd.Flags().BoolVar(&groupsExact, "exact", false, "Only group glyphs with identical hashes")
	groupsCmd.Flags().BoolVar(&groupsJSON, "json", false, "Output in JSON format")
	groupsCmd.Flags().BoolVarP(&groupsSummary, "summary", "s", false, "Show summary only (group sizes)")
	groupsCmd.Flags().IntVarP(&groupsLimit, "limit", "n", 10, "Limit number of groups to display (0 = all)")
	groupsCmd.Flags().IntVar(&groupsOffset, "offset", 0, "Skip first N groups (for pagination)")
	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command, args []string) error {
	result, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}

	var matcher match.Matcher = match.NewPerceptualMatcher(groupsThreshold)
	if groupsExact {
		matcher = match.NewExactMatcher()
	}
	groups := matcher.FindGroups(result)

	if groupsJSON {
		if groups == nil {
			groups = []*models.GlyphGroup{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	if len(groups) == 0 {
		fmt.Println("No near-identical glyphs found.")
		fmt.Println("Try a higher --threshold.")
		return nil
	}

	grouped := 0
	for _, group := range groups {
		grouped += len(group.Items)
	}
	fmt.Printf("Found %d groups (%d of %d glyphs)\n\n", len(groups), grouped, len(result.Matrix))

	// Apply pagination
	totalGroups := len(groups)
	startIdx := groupsOffset
	if startIdx > len(groups) {
		startIdx = len(groups)
	}
	groups = groups[startIdx:]

	if groupsLimit > 0 && groupsLimit < len(groups) {
		groups = groups[:groupsLimit]
	}

	if len(groups) == 0 {
		fmt.Printf("No groups in range (offset %d exceeds total %d)\n", groupsOffset, totalGroups)
	} else if groupsSummary {
		printSummaryTable(groups)
	} else {
		for _, group := range groups {
			printGroup(result, group)
		}
	}

	// Show pagination info
	endIdx := startIdx + len(groups)
	if len(groups) > 0 {
		fmt.Printf("Showing groups %d-%d of %d\n", startIdx+1, endIdx, totalGroups)
		if endIdx < totalGroups {
			limitArg := ""
			if groupsLimit > 0 {
				limitArg = fmt.Sprintf(" -n %d", groupsLimit)
			}
			fmt.Printf("Next page: glyphsim groups %s%s --offset %d\n", args[0], limitArg, endIdx)
		}
	}

	return nil
}

func printSummaryTable(groups []*models.GlyphGroup) {
	fmt.Printf("%-8s  %-8s  %-10s  %s\n", "Group", "Glyphs", "Max score", "Glyphs")
	fmt.Println(strings.Repeat("-", 70))

	for _, group := range groups {
		members := joinIDs(group.Items)
		if len(members) > 40 {
			members = members[:37] + "..."
		}
		fmt.Printf("#%-7d  %-8d  %-10s  %s\n", group.ID, len(group.Items), formatScore(group.MaxScore), members)
	}
	fmt.Println()
}

func printGroup(result *models.Result, group *models.GlyphGroup) {
	fmt.Printf("Group #%d (%d glyphs, max score %s)\n", group.ID, len(group.Items), formatScore(group.MaxScore))
	fmt.Println(strings.Repeat("-", 60))

	first := group.Items[0]
	for _, id := range group.Items {
		score, _ := result.Score(first, id)
		fmt.Printf("  %-20s  %s\n", id, formatScore(score))
	}
	fmt.Println()
}

func joinIDs(ids []models.ItemID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " ")
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.4f", score)
}
