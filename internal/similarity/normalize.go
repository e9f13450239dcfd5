package similarity

import (
	"math"

	"glyphsim/internal/models"
)

// NoRounding keeps normalized scores at full float64 precision.
const NoRounding = -1

// Normalize rescales every raw difference in m to [0, 1] by dividing by
// largest. The minimum is always 0 because every item is compared with
// itself. A non-negative precision rounds scores to that many decimals.
func Normalize(m *Matrix, largest, precision int) (map[models.ItemID]map[models.ItemID]float64, error) {
	if !m.Sealed() {
		return nil, ErrNotSealed
	}
	if largest == 0 {
		return nil, ErrDegenerateScale
	}

	scale := float64(largest)
	out := make(map[models.ItemID]map[models.ItemID]float64, m.n)
	for i, a := range m.ids {
		row := make(map[models.ItemID]float64, m.n)
		for j, b := range m.ids {
			c := m.cell(i, j)
			if !m.written[c] {
				continue
			}
			row[b] = round(float64(m.values[c])/scale, precision)
		}
		out[a] = row
	}
	return out, nil
}

func round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

// Assemble packages normalized scores with the raw maximum used to scale them
func Assemble(normalized map[models.ItemID]map[models.ItemID]float64, largest int) *models.Result {
	return &models.Result{
		Matrix:            normalized,
		LargestDifference: largest,
	}
}
