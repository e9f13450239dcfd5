// Package compare runs the full hash, compare and normalize pipeline over a catalog.
package compare

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"glyphsim/internal/cache"
	"glyphsim/internal/hash"
	"glyphsim/internal/models"
	"glyphsim/internal/similarity"
)

// Stage names reported to the progress callback
const (
	StageHash    = "hash"
	StageCompare = "compare"
)

// Runner computes similarity matrices
type Runner struct {
	provider   hash.Provider
	workers    int
	chunkSize  int
	timeout    time.Duration
	precision  int
	logger     zerolog.Logger
	progressFn func(stage string, done, total int)
}

// Option configures a Runner
type Option func(*Runner)

// WithWorkers sets the number of parallel workers
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithChunkSize sets the number of items each comparison worker handles
func WithChunkSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithTimeout sets the deadline for hashing one image and for one comparison worker
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithPrecision sets the number of decimals kept in normalized scores (-1 keeps all)
func WithPrecision(p int) Option {
	return func(r *Runner) {
		r.precision = p
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithProgress sets a progress callback. It may be called concurrently.
func WithProgress(fn func(stage string, done, total int)) Option {
	return func(r *Runner) {
		r.progressFn = fn
	}
}

// NewRunner creates a Runner that hashes items with provider
func NewRunner(provider hash.Provider, opts ...Option) *Runner {
	r := &Runner{
		provider:  provider,
		workers:   8,
		chunkSize: similarity.DefaultChunkSize,
		timeout:   30 * time.Second,
		precision: similarity.NoRounding,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Comparison is the outcome of the comparison phase
type Comparison struct {
	Matrix  *similarity.Matrix
	Largest int
	Report  *models.Report
}

// Compare hashes ids and fills the difference matrix. Items that cannot be
// hashed are left out and listed in the report; they never fail the run.
func (r *Runner) Compare(ctx context.Context, ids []models.ItemID) (*Comparison, error) {
	report := &models.Report{Total: len(ids)}

	hashes := cache.New(r.provider, cache.WithTimeout(r.timeout))

	start := time.Now()
	available, skipped, err := hashes.Warm(ctx, ids, r.workers, func(done, total int, _ models.ItemID) {
		r.progress(StageHash, done, total)
	})
	if err != nil {
		return nil, fmt.Errorf("hashing catalog: %w", err)
	}
	report.HashDuration = time.Since(start)
	report.Skipped = skipped
	report.Processed = len(available)

	for _, s := range skipped {
		r.logger.Warn().Str("item", string(s.ID)).Str("error", s.Reason).Msg("skipping item")
	}
	r.logger.Info().
		Int("total", len(ids)).
		Int("available", len(available)).
		Int("skipped", len(skipped)).
		Dur("duration", report.HashDuration).
		Msg("hash warm-up complete")

	matrix, err := similarity.NewMatrix(available)
	if err != nil {
		return nil, err
	}
	comparator := similarity.NewComparator(matrix, hashes)
	scheduler := similarity.NewScheduler(comparator,
		similarity.WithWorkers(r.workers),
		similarity.WithChunkSize(r.chunkSize),
		similarity.WithWorkerTimeout(r.timeout),
		similarity.WithRoundProgress(func(done, total int, _ models.ItemID) {
			r.progress(StageCompare, done, total)
		}),
	)

	start = time.Now()
	largest, err := scheduler.Run(ctx)
	if err != nil {
		return nil, err
	}
	report.CompareDuration = time.Since(start)
	report.LargestDifference = largest
	report.Computations = comparator.Computations()

	r.logger.Info().
		Int("items", len(available)).
		Int64("computations", report.Computations).
		Int("largest_difference", largest).
		Dur("duration", report.CompareDuration).
		Msg("comparison complete")

	return &Comparison{Matrix: matrix, Largest: largest, Report: report}, nil
}

// Result normalizes the comparison into the final result
func (c *Comparison) Result(precision int) (*models.Result, error) {
	normalized, err := similarity.Normalize(c.Matrix, c.Largest, precision)
	if err != nil {
		return nil, err
	}
	return similarity.Assemble(normalized, c.Largest), nil
}

// Run compares ids and normalizes the matrix. When normalization fails the
// comparison is still returned so its report can be shown.
func (r *Runner) Run(ctx context.Context, ids []models.ItemID) (*models.Result, *Comparison, error) {
	cmp, err := r.Compare(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	result, err := cmp.Result(r.precision)
	if err != nil {
		return nil, cmp, err
	}
	return result, cmp, nil
}

func (r *Runner) progress(stage string, done, total int) {
	if r.progressFn != nil {
		r.progressFn(stage, done, total)
	}
}
