package hash

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"glyphsim/internal/models"
)

// Algorithm selects the perceptual hash function
type Algorithm string

const (
	AlgorithmAverage    Algorithm = "average"
	AlgorithmPerception Algorithm = "perception"
	AlgorithmDifference Algorithm = "difference"
)

// ParseAlgorithm converts a name into an Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case AlgorithmAverage, AlgorithmPerception, AlgorithmDifference:
		return a, nil
	case "":
		return AlgorithmAverage, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// ErrItemUnavailable is returned when a glyph image is missing or cannot be decoded.
var ErrItemUnavailable = errors.New("item unavailable")

// ItemError reports why a single catalog item could not be hashed.
// It matches both ErrItemUnavailable and the underlying cause.
type ItemError struct {
	ID  models.ItemID
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %q unavailable: %v", e.ID, e.Err)
}

func (e *ItemError) Unwrap() []error {
	return []error{ErrItemUnavailable, e.Err}
}

// Hasher computes perceptual hashes for glyph images
type Hasher struct {
	algorithm Algorithm
}

// NewHasher creates a new Hasher. An empty algorithm selects average hashing.
func NewHasher(algorithm Algorithm) *Hasher {
	if algorithm == "" {
		algorithm = AlgorithmAverage
	}
	return &Hasher{algorithm: algorithm}
}

// Algorithm returns the hash function in use
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// HashImage computes the perceptual hash and extracts metadata for an image
func (h *Hasher) HashImage(path string) (*models.GlyphInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	// Check for EXIF data (before reading image, as Decode consumes the reader)
	hasExif := checkExif(path)

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	hash, err := h.compute(img)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	bounds := img.Bounds()

	return &models.GlyphInfo{
		Path:      path,
		Hash:      hash.GetHash(),
		Algorithm: string(h.algorithm),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    strings.ToLower(format),
		FileSize:  stat.Size(),
		ModTime:   stat.ModTime(),
		HasExif:   hasExif,
	}, nil
}

func (h *Hasher) compute(img image.Image) (*goimagehash.ImageHash, error) {
	switch h.algorithm {
	case AlgorithmPerception:
		return goimagehash.PerceptionHash(img)
	case AlgorithmDifference:
		return goimagehash.DifferenceHash(img)
	default:
		return goimagehash.AverageHash(img)
	}
}

// checkExif checks if an image file contains EXIF data
func checkExif(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	_, err = exif.Decode(file)
	return err == nil
}

// IsSupportedImage checks if a file is a supported image format
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif":
		return true
	default:
		return false
	}
}

// HammingDistance calculates the Hamming distance between two hashes
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	count := 0
	for xor != 0 {
		count++
		xor &= xor - 1
	}
	return count
}
