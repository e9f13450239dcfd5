package cmd

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"glyphsim/internal/catalog"
	"glyphsim/internal/export"
	"glyphsim/internal/hash"
	"glyphsim/internal/server"
)

var (
	servePort      int
	serveTimeout   time.Duration
	serveImages    string
	serveNoBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <result.json>",
	Short: "Serve a comparison result over a read-only HTTP API",
	Long: `Start a local web server that answers queries about a result file.

Endpoints:
  GET /api/summary                         glyph count and largest difference
  GET /api/glyphs                          all glyph ids
  GET /api/similar?id=&limit=&max=         nearest glyphs
  GET /api/groups?threshold=               near-identical groups
  GET /api/image?id=                       glyph image (with --images)

The server stops on Ctrl+C or after the idle timeout.

Example:
  glyphsim serve scores.json                 # Start on default port 8080
  glyphsim serve scores.json -p 3000         # Use custom port
  glyphsim serve scores.json --images ./output`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 5*time.Minute, "Idle timeout (0 to disable)")
	serveCmd.Flags().StringVar(&serveImages, "images", "", "Glyph image folder for /api/image")
	serveCmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "Don't open browser automatically")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	result, err := export.ReadFile(args[0])
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithIdleTimeout(serveTimeout),
		server.WithLogger(log.Logger),
	}
	if serveImages != "" {
		absImages, err := filepath.Abs(serveImages)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		names, err := catalog.ScanDir(absImages, cfg.ImageExt)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithImages(hash.NewFileProvider(absImages, cfg.ImageExt, nil).UseFileNames(names)))
	}
	srv := server.New(result, servePort, opts...)

	url := fmt.Sprintf("http://localhost:%d/api/summary", servePort)
	fmt.Printf("Serving %d glyphs at %s\n", len(result.Matrix), url)
	fmt.Printf("Idle timeout: %v (resets on every request)\n", serveTimeout)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if !serveNoBrowser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			openBrowser(url)
		}()
	}

	return srv.Start(cmd.Context())
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Run()
}
