package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"glyphsim/internal/catalog"
	"glyphsim/internal/models"
	"glyphsim/internal/render"
)

var (
	renderList    string
	renderOut     string
	renderFont    string
	renderSize    float64
	renderPadding int
	renderQuiet   bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render catalog characters into glyph images",
	Long: `Draw each character of a catalog file into <out>/<char>.png, white on a
transparent square canvas, ready for compare.

The built-in font covers Latin text only; pass --font with a CJK TrueType
or OpenType font to render kanji.

Example:
  glyphsim render --list kanji.csv --out ./output --font NotoSansJP-Regular.otf`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderList, "list", "kanji.csv", "Catalog file, one character per line")
	renderCmd.Flags().StringVar(&renderOut, "out", "", "Output folder (default: GLYPHSIM_IMAGES_DIR)")
	renderCmd.Flags().StringVar(&renderFont, "font", "", "TrueType or OpenType font file (default: Go Regular)")
	renderCmd.Flags().Float64Var(&renderSize, "size", render.DefaultFontSize, "Font size in pixels")
	renderCmd.Flags().IntVar(&renderPadding, "padding", render.DefaultPadding, "Pixels added to the font size for the canvas side")
	renderCmd.Flags().BoolVar(&renderQuiet, "no-progress", false, "Disable the progress bar")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	ids, err := catalog.FromListFile(renderList)
	if err != nil {
		return err
	}

	out := renderOut
	if out == "" {
		out = cfg.ImagesDir
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("invalid output folder: %w", err)
	}

	var fontData []byte
	if renderFont != "" {
		fontData, err = os.ReadFile(renderFont)
		if err != nil {
			return fmt.Errorf("failed to read font: %w", err)
		}
	}

	opts := []render.Option{
		render.WithFontSize(renderSize),
		render.WithPadding(renderPadding),
	}
	if !renderQuiet {
		bar := progressbar.NewOptions(len(ids),
			progressbar.OptionSetDescription("Rendering"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		opts = append(opts, render.WithProgress(func(done, total int, _ models.ItemID) {
			bar.Set(done)
		}))
	}

	r, err := render.NewRenderer(fontData, opts...)
	if err != nil {
		return err
	}

	log.Info().
		Str("list", renderList).
		Str("out", absOut).
		Int("glyphs", len(ids)).
		Int("side", r.Side()).
		Msg("Rendering glyphs")

	start := time.Now()
	n, err := r.RenderAll(cmd.Context(), absOut, ids)
	if err != nil {
		return fmt.Errorf("rendered %d of %d glyph(s): %w", n, len(ids), err)
	}

	fmt.Printf("Rendered %d glyph(s) into %s in %v\n", n, absOut, time.Since(start).Round(time.Millisecond))
	return nil
}
