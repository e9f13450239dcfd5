package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"glyphsim/internal/match"
	"glyphsim/internal/models"
)

// ImageLocator maps a glyph to its image file
type ImageLocator interface {
	Path(id models.ItemID) string
}

// Server exposes a comparison result over a read-only HTTP API
type Server struct {
	result      *models.Result
	images      ImageLocator
	port        int
	idleTimeout time.Duration
	logger      zerolog.Logger
	httpServer  *http.Server

	// Idle timeout management
	mu           sync.Mutex
	lastActivity time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithImages serves glyph images through /api/image
func WithImages(images ImageLocator) Option {
	return func(s *Server) {
		s.images = images
	}
}

// WithIdleTimeout stops the server after a period without requests
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// WithLogger sets the server logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new Server
func New(result *models.Result, port int, opts ...Option) *Server {
	s := &Server{
		result:       result,
		port:         port,
		logger:       zerolog.Nop(),
		lastActivity: time.Now(),
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/glyphs", s.handleGlyphs)
	mux.HandleFunc("GET /api/similar", s.handleSimilar)
	mux.HandleFunc("GET /api/groups", s.handleGroups)
	mux.HandleFunc("GET /api/image", s.handleImage)
	return mux
}

// Start serves until ctx is done, a signal arrives or the idle timeout
// expires.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.idleTimeout > 0 {
		go s.idleTimeoutChecker()
	}

	go s.handleShutdownSignals(ctx)

	s.logger.Info().Int("port", s.port).Int("glyphs", len(s.result.Matrix)).Msg("Starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleShutdownSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		s.logger.Info().Msg("Shutting down HTTP server")
	case <-ctx.Done():
		s.logger.Info().Msg("Context done, shutting down HTTP server")
	case <-s.shutdownChan:
		s.logger.Info().Dur("idle", s.idleTimeout).Msg("Idle timeout reached, shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Server forced to shutdown")
	}
}

func (s *Server) idleTimeoutChecker() {
	interval := 10 * time.Second
	if s.idleTimeout < interval {
		interval = s.idleTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastActivity)
			s.mu.Unlock()

			if idle >= s.idleTimeout {
				s.shutdownOnce.Do(func() { close(s.shutdownChan) })
				return
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *Server) recordActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// API Handlers

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// floatParam parses an optional float query parameter
func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	writeJSON(w, map[string]any{
		"glyphs":            len(s.result.Matrix),
		"largestDifference": s.result.LargestDifference,
	})
}

func (s *Server) handleGlyphs(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	writeJSON(w, s.result.IDs())
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid limit: %q", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}
	maxScore, err := floatParam(r, "max", -1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	neighbors, ok := match.Nearest(s.result, models.ItemID(id), limit, maxScore)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown glyph %q", id), http.StatusNotFound)
		return
	}
	writeJSON(w, neighbors)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	threshold, err := floatParam(r, "threshold", match.DefaultThreshold)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	groups := match.NewPerceptualMatcher(threshold).FindGroups(s.result)
	if groups == nil {
		groups = []*models.GlyphGroup{}
	}
	writeJSON(w, groups)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	s.recordActivity()

	if s.images == nil {
		http.Error(w, "images not available", http.StatusNotFound)
		return
	}

	id := models.ItemID(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	// Only glyphs from the result are served
	if _, ok := s.result.Matrix[id]; !ok {
		http.Error(w, fmt.Sprintf("unknown glyph %q", id), http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, s.images.Path(id))
}
