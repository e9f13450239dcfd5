package match

import (
	"testing"

	"glyphsim/internal/models"
)

func TestNearest(t *testing.T) {
	r := resultFrom(map[[2]models.ItemID]float64{
		{"a", "b"}: 0.4,
		{"a", "c"}: 0.1,
		{"a", "d"}: 0.4,
		{"a", "e"}: 0.9,
	}, "a", "b", "c", "d", "e")

	tests := []struct {
		name     string
		limit    int
		maxScore float64
		want     []models.ItemID
	}{
		{"all", 0, -1, []models.ItemID{"c", "b", "d", "e"}},
		{"limit", 2, -1, []models.ItemID{"c", "b"}},
		{"cutoff", 0, 0.4, []models.ItemID{"c", "b", "d"}},
		{"cutoff excludes all", 0, 0.05, []models.ItemID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Nearest(r, "a", tt.limit, tt.maxScore)
			if !ok {
				t.Fatal("expected a to be found")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d neighbors, want %d: %v", len(got), len(tt.want), got)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("neighbor %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestNearest_UnknownID(t *testing.T) {
	r := resultFrom(nil, "a", "b")
	if _, ok := Nearest(r, "zzz", 0, -1); ok {
		t.Error("expected unknown id to be reported")
	}
}
