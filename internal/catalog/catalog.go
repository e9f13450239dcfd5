// Package catalog enumerates the glyphs taking part in a comparison run.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"glyphsim/internal/hash"
	"glyphsim/internal/models"
)

var (
	// ErrDuplicateItem is returned when two catalog entries share an identifier.
	ErrDuplicateItem = errors.New("duplicate catalog item")
	// ErrEmptySource is returned when the catalog source cannot be read.
	ErrEmptySource = errors.New("catalog source unreadable")
)

// ScanDir lists the glyph images in dir and maps each identifier (the file
// name without extension) to its file name. Only files whose extension
// matches ext, ignoring case, are considered; an empty ext accepts every
// supported image format.
func ScanDir(dir, ext string) (map[models.ItemID]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptySource, err)
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	files := make(map[models.ItemID]string)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		fileExt := filepath.Ext(name)
		if ext != "" {
			if !strings.EqualFold(fileExt, ext) {
				continue
			}
		} else if !hash.IsSupportedImage(name) {
			continue
		}

		id := models.ItemID(strings.TrimSuffix(name, fileExt))
		if id == "" {
			continue
		}
		if prev, ok := files[id]; ok {
			return nil, fmt.Errorf("%w: %q from %s and %s", ErrDuplicateItem, id, prev, name)
		}
		files[id] = name
	}
	return files, nil
}

// FromDir returns the identifiers found by ScanDir in sorted order
func FromDir(dir, ext string) ([]models.ItemID, error) {
	files, err := ScanDir(dir, ext)
	if err != nil {
		return nil, err
	}
	return IDs(files), nil
}

// IDs returns the keys of files in sorted order
func IDs(files map[models.ItemID]string) []models.ItemID {
	ids := make([]models.ItemID, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	models.SortIDs(ids)
	return ids
}

// FromList reads one identifier per line. Surrounding whitespace is
// trimmed and blank lines are ignored; order is preserved.
func FromList(r io.Reader) ([]models.ItemID, error) {
	seen := make(map[models.ItemID]int)
	var ids []models.ItemID

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		id := models.ItemID(strings.TrimSpace(scanner.Text()))
		if id == "" {
			continue
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %q on lines %d and %d", ErrDuplicateItem, id, prev, line)
		}
		seen[id] = line
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptySource, err)
	}

	return ids, nil
}

// FromListFile opens path and reads it with FromList
func FromListFile(path string) ([]models.ItemID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptySource, err)
	}
	defer f.Close()
	return FromList(f)
}
