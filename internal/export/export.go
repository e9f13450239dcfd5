// Package export reads and writes comparison results as JSON.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"glyphsim/internal/fileutil"
	"glyphsim/internal/models"
)

// Layout selects the JSON document shape
type Layout string

const (
	// LayoutNested writes {"matrix": {...}, "largestDifference": n}.
	LayoutNested Layout = "nested"
	// LayoutFlat writes every item as a top-level key next to "largestDifference".
	LayoutFlat Layout = "flat"
)

const largestKey = "largestDifference"

// ParseLayout converts a name into a Layout
func ParseLayout(name string) (Layout, error) {
	switch Layout(name) {
	case LayoutNested, "":
		return LayoutNested, nil
	case LayoutFlat:
		return LayoutFlat, nil
	default:
		return "", fmt.Errorf("unknown layout %q", name)
	}
}

// Write encodes result to w
func Write(w io.Writer, result *models.Result, layout Layout, indent bool) error {
	var doc any = result
	if layout == LayoutFlat {
		if _, clash := result.Matrix[largestKey]; clash {
			return fmt.Errorf("item %q collides with the flat layout metadata key", largestKey)
		}
		flat := make(map[string]any, len(result.Matrix)+1)
		for id, row := range result.Matrix {
			flat[string(id)] = row
		}
		flat[largestKey] = result.LargestDifference
		doc = flat
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}

// Read decodes a result in either layout
func Read(r io.Reader) (*models.Result, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	result := &models.Result{}
	if lv, ok := raw[largestKey]; ok {
		if err := json.Unmarshal(lv, &result.LargestDifference); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", largestKey, err)
		}
	}

	// A flat document may contain an item named "matrix"; its row holds
	// numbers and will not decode as a nested matrix.
	if mv, ok := raw["matrix"]; ok && len(raw) <= 2 {
		if err := json.Unmarshal(mv, &result.Matrix); err == nil {
			return result, nil
		}
		result.Matrix = nil
	}

	result.Matrix = make(map[models.ItemID]map[models.ItemID]float64, len(raw))
	for key, value := range raw {
		if key == largestKey {
			continue
		}
		var row map[models.ItemID]float64
		if err := json.Unmarshal(value, &row); err != nil {
			return nil, fmt.Errorf("invalid row %q: %w", key, err)
		}
		result.Matrix[models.ItemID(key)] = row
	}
	return result, nil
}

// WriteFile atomically writes result to path
func WriteFile(path string, result *models.Result, layout Layout, indent bool) error {
	var buf bytes.Buffer
	if err := Write(&buf, result, layout, indent); err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, buf.Bytes(), 0644)
}

// ReadFile reads a result from path
func ReadFile(path string) (*models.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result: %w", err)
	}
	defer f.Close()
	return Read(f)
}
