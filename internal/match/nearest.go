package match

import (
	"sort"

	"glyphsim/internal/models"
)

// Nearest returns the glyphs most similar to id, closest first, ties broken
// by id. A limit of 0 returns every neighbor; a negative maxScore disables
// the score cutoff.
func Nearest(result *models.Result, id models.ItemID, limit int, maxScore float64) ([]models.Neighbor, bool) {
	row, ok := result.Matrix[id]
	if !ok {
		return nil, false
	}

	neighbors := make([]models.Neighbor, 0, len(row))
	for other, score := range row {
		if other == id {
			continue
		}
		if maxScore >= 0 && score > maxScore {
			continue
		}
		neighbors = append(neighbors, models.Neighbor{ID: other, Score: score})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score < neighbors[j].Score
		}
		return neighbors[i].ID < neighbors[j].ID
	})

	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, true
}
