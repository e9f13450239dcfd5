// Package render draws catalog characters into glyph images.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"glyphsim/internal/fileutil"
	"glyphsim/internal/models"
)

// Defaults produce 105x105 images with a 100px glyph.
const (
	DefaultFontSize = 100
	DefaultPadding  = 5
)

// ErrInvalidName is returned for ids that cannot be used as file names
var ErrInvalidName = errors.New("invalid glyph name")

// Renderer draws one character per image, centered on a square canvas
type Renderer struct {
	face       font.Face
	size       float64
	padding    int
	fg         color.Color
	bg         color.Color
	progressFn func(done, total int, current models.ItemID)
}

// Option configures a Renderer
type Option func(*Renderer)

// WithFontSize sets the font size in pixels
func WithFontSize(px float64) Option {
	return func(r *Renderer) {
		if px > 0 {
			r.size = px
		}
	}
}

// WithPadding sets the space added to the font size to get the canvas side
func WithPadding(px int) Option {
	return func(r *Renderer) {
		if px >= 0 {
			r.padding = px
		}
	}
}

// WithColors sets the glyph and background colors
func WithColors(fg, bg color.Color) Option {
	return func(r *Renderer) {
		r.fg, r.bg = fg, bg
	}
}

// WithProgress sets a callback invoked after each image is written
func WithProgress(fn func(done, total int, current models.ItemID)) Option {
	return func(r *Renderer) {
		r.progressFn = fn
	}
}

// NewRenderer parses a TrueType or OpenType font. A nil fontData uses the
// built-in Go Regular font, which has no CJK coverage.
func NewRenderer(fontData []byte, opts ...Option) (*Renderer, error) {
	if fontData == nil {
		fontData = goregular.TTF
	}

	r := &Renderer{
		size:    DefaultFontSize,
		padding: DefaultPadding,
		fg:      color.White,
		bg:      color.Transparent,
	}
	for _, opt := range opts {
		opt(r)
	}

	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	r.face, err = opentype.NewFace(f, &opentype.FaceOptions{
		Size:    r.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return r, nil
}

// Side returns the canvas width and height in pixels
func (r *Renderer) Side() int {
	return int(r.size) + r.padding
}

// Glyph draws text centered on a new canvas
func (r *Renderer) Glyph(text string) *image.RGBA {
	side := r.Side()
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, r.bg)
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(r.fg),
		Face: r.face,
	}
	m := r.face.Metrics()
	d.Dot = fixed.Point26_6{
		X: (fixed.I(side) - d.MeasureString(text)) / 2,
		Y: (fixed.I(side) + m.Ascent - m.Descent) / 2,
	}
	d.DrawString(text)
	return img
}

// WriteGlyph renders id and writes it to <dir>/<id>.png
func (r *Renderer) WriteGlyph(dir string, id models.ItemID) (string, error) {
	name := string(id)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Glyph(name)); err != nil {
		return "", fmt.Errorf("failed to encode %q: %w", name, err)
	}
	path := filepath.Join(dir, name+".png")
	if err := fileutil.WriteAtomic(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// RenderAll writes one image per id into dir. The font face is not safe for
// concurrent use, so images are drawn one at a time.
func (r *Renderer) RenderAll(ctx context.Context, dir string, ids []models.ItemID) (int, error) {
	written := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if _, err := r.WriteGlyph(dir, id); err != nil {
			return written, err
		}
		written++
		if r.progressFn != nil {
			r.progressFn(written, len(ids), id)
		}
	}
	return written, nil
}
