package match

import (
	"testing"

	"glyphsim/internal/models"
)

func TestExactMatcher_Empty(t *testing.T) {
	matcher := NewExactMatcher()
	groups := matcher.FindGroups(nil)
	if groups != nil {
		t.Errorf("expected nil for empty input, got %v", groups)
	}
}

func TestExactMatcher_NoDuplicates(t *testing.T) {
	matcher := NewExactMatcher()
	r := resultFrom(map[[2]models.ItemID]float64{{"a", "b"}: 0.01}, "a", "b")
	groups := matcher.FindGroups(r)
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestExactMatcher_Duplicates(t *testing.T) {
	matcher := NewExactMatcher()
	r := resultFrom(map[[2]models.ItemID]float64{
		{"a", "b"}: 0, // same hash
		{"b", "c"}: 0.2,
	}, "a", "b", "c")
	groups := matcher.FindGroups(r)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Items) != 2 || groups[0].MaxScore != 0 {
		t.Errorf("unexpected group %+v", groups[0])
	}
}
