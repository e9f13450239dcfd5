package match

import (
	"glyphsim/internal/models"
)

// DefaultThreshold is the normalized difference under which two glyphs are
// considered near-duplicates
const DefaultThreshold = 0.1

// PerceptualMatcher groups glyphs whose normalized difference is at most
// the threshold. Grouping is transitive.
type PerceptualMatcher struct {
	threshold float64
}

// NewPerceptualMatcher creates a new PerceptualMatcher
func NewPerceptualMatcher(threshold float64) *PerceptualMatcher {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &PerceptualMatcher{threshold: threshold}
}

// FindGroups links every pair within the threshold and returns the
// connected components with two or more glyphs.
func (m *PerceptualMatcher) FindGroups(result *models.Result) []*models.GlyphGroup {
	if result == nil {
		return nil
	}
	ids := result.IDs()
	n := len(ids)
	if n < 2 {
		return nil
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if v, ok := result.Score(ids[i], ids[j]); ok && v <= m.threshold {
				uf.union(i, j)
			}
		}
	}

	groupMap := make(map[int][]models.ItemID)
	for i, id := range ids {
		root := uf.find(i)
		groupMap[root] = append(groupMap[root], id)
	}

	return buildGroups(result, groupMap)
}

// GetThreshold returns the current threshold
func (m *PerceptualMatcher) GetThreshold() float64 {
	return m.threshold
}

// Union-Find data structure for efficient grouping
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent, rank: rank}
}

func (uf *unionFind) find(x int) int {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x]) // Path compression
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y int) {
	px, py := uf.find(x), uf.find(y)
	if px == py {
		return
	}
	// Union by rank
	if uf.rank[px] < uf.rank[py] {
		px, py = py, px
	}
	uf.parent[py] = px
	if uf.rank[px] == uf.rank[py] {
		uf.rank[px]++
	}
}
