package models

import (
	"sort"
	"time"
)

// ItemID identifies a glyph in a catalog (usually the image file name
// without its extension).
type ItemID string

// GlyphInfo holds hash and file metadata for a glyph image
type GlyphInfo struct {
	ID        ItemID    `json:"id"`
	Path      string    `json:"path"`
	Hash      uint64    `json:"hash"`
	Algorithm string    `json:"algorithm"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format"`
	FileSize  int64     `json:"file_size"`
	ModTime   time.Time `json:"mod_time"`
	HasExif   bool      `json:"has_exif"`
}

// SkippedItem records a catalog item that was excluded from a run
type SkippedItem struct {
	ID     ItemID `json:"id"`
	Reason string `json:"reason"`
}

// Result is the final output of a comparison run: normalized difference
// scores for every ordered pair plus the raw maximum used to scale them.
type Result struct {
	Matrix            map[ItemID]map[ItemID]float64 `json:"matrix"`
	LargestDifference int                           `json:"largestDifference"`
}

// IDs returns the item identifiers of the result in sorted order.
func (r *Result) IDs() []ItemID {
	ids := make([]ItemID, 0, len(r.Matrix))
	for id := range r.Matrix {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// Score returns the normalized difference between a and b.
func (r *Result) Score(a, b ItemID) (float64, bool) {
	row, ok := r.Matrix[a]
	if !ok {
		return 0, false
	}
	v, ok := row[b]
	return v, ok
}

// Report summarizes a comparison run
type Report struct {
	Total             int           `json:"total"`
	Processed         int           `json:"processed"`
	Skipped           []SkippedItem `json:"skipped"`
	LargestDifference int           `json:"largest_difference"`
	Computations      int64         `json:"computations"`
	HashDuration      time.Duration `json:"hash_duration"`
	CompareDuration   time.Duration `json:"compare_duration"`
}

// GlyphGroup is a set of glyphs that are visually near-identical
type GlyphGroup struct {
	ID       int      `json:"id"`
	Items    []ItemID `json:"items"`
	MaxScore float64  `json:"max_score"` // Largest pairwise difference within the group
}

// Neighbor is a glyph and its normalized difference from a query glyph
type Neighbor struct {
	ID    ItemID  `json:"id"`
	Score float64 `json:"score"`
}

// RunRecord is one entry of the run history
type RunRecord struct {
	ID                int64         `json:"id"`
	Source            string        `json:"source"`
	Output            string        `json:"output"`
	Algorithm         string        `json:"algorithm"`
	StartedAt         time.Time     `json:"started_at"`
	TotalItems        int           `json:"total_items"`
	SkippedItems      int           `json:"skipped_items"`
	LargestDifference int           `json:"largest_difference"`
	Computations      int64         `json:"computations"`
	Duration          time.Duration `json:"duration"`
}

// SortIDs sorts item identifiers in ascending order
func SortIDs(ids []ItemID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
}
