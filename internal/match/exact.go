package match

import "glyphsim/internal/models"

// ExactMatcher groups glyphs whose perceptual hashes are identical
type ExactMatcher struct {
	inner *PerceptualMatcher
}

// NewExactMatcher creates a new ExactMatcher
func NewExactMatcher() *ExactMatcher {
	return &ExactMatcher{inner: &PerceptualMatcher{threshold: 0}}
}

// FindGroups finds groups of glyphs with a difference of exactly zero
func (m *ExactMatcher) FindGroups(result *models.Result) []*models.GlyphGroup {
	return m.inner.FindGroups(result)
}
