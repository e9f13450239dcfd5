package match

import (
	"sort"

	"glyphsim/internal/models"
)

// Matcher is the interface for glyph grouping strategies
type Matcher interface {
	FindGroups(result *models.Result) []*models.GlyphGroup
}

// buildGroups builds GlyphGroup slice from a group map. Singletons are
// dropped; larger groups come first, ties broken by their first item.
func buildGroups(result *models.Result, groupMap map[int][]models.ItemID) []*models.GlyphGroup {
	var groups []*models.GlyphGroup

	for _, ids := range groupMap {
		if len(ids) < 2 {
			continue
		}
		models.SortIDs(ids)
		groups = append(groups, &models.GlyphGroup{
			Items:    ids,
			MaxScore: maxScore(result, ids),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Items) != len(groups[j].Items) {
			return len(groups[i].Items) > len(groups[j].Items)
		}
		return groups[i].Items[0] < groups[j].Items[0]
	})

	for i, g := range groups {
		g.ID = i + 1
	}
	return groups
}

// maxScore returns the largest pairwise difference inside a group
func maxScore(result *models.Result, ids []models.ItemID) float64 {
	var highest float64
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if v, ok := result.Score(ids[i], ids[j]); ok && v > highest {
				highest = v
			}
		}
	}
	return highest
}
