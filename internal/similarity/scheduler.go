package similarity

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"glyphsim/internal/models"
)

// DefaultChunkSize is the number of items a single worker compares against
// the focus item.
const DefaultChunkSize = 64

// Scheduler visits every item once as the focus item and compares it against
// the items that have not been focused yet, fanning each round out over a
// bounded pool of workers.
type Scheduler struct {
	comparator *Comparator
	chunkSize  int
	workers    int
	timeout    time.Duration
	progressFn func(done, total int, focus models.ItemID)
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithChunkSize sets the number of items per worker
func WithChunkSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithWorkers sets the maximum number of concurrent workers per round
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithWorkerTimeout sets the deadline for each worker
func WithWorkerTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// WithRoundProgress sets a callback invoked after each focus item completes
func WithRoundProgress(fn func(done, total int, focus models.ItemID)) SchedulerOption {
	return func(s *Scheduler) {
		s.progressFn = fn
	}
}

// NewScheduler creates a Scheduler driving c
func NewScheduler(c *Comparator, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		comparator: c,
		chunkSize:  DefaultChunkSize,
		workers:    8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run fills the whole matrix and returns the largest difference observed.
// The matrix is sealed when Run succeeds.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	m := s.comparator.Matrix()
	n := m.Len()

	working := make([]int, n)
	for i := range working {
		working[i] = i
	}

	largest := 0
	for focus := 0; focus < n; focus++ {
		roundMax, err := s.round(ctx, focus, working)
		if err != nil {
			return 0, fmt.Errorf("comparing %q: %w", m.ids[focus], err)
		}
		if roundMax > largest {
			largest = roundMax
		}

		next := make([]int, 0, len(working)-1)
		for _, i := range working {
			if i != focus {
				next = append(next, i)
			}
		}
		working = next

		if s.progressFn != nil {
			s.progressFn(focus+1, n, m.ids[focus])
		}
	}

	m.Seal()
	return largest, nil
}

// round compares focus against every item in working and returns the
// largest value seen. working is only read.
func (s *Scheduler) round(ctx context.Context, focus int, working []int) (int, error) {
	chunks := chunk(working, s.chunkSize)
	maxes := make([]int, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for ci, items := range chunks {
		g.Go(func() error {
			wctx := gctx
			if s.timeout > 0 {
				var cancel context.CancelFunc
				wctx, cancel = context.WithTimeout(gctx, s.timeout)
				defer cancel()
			}

			local := 0
			for _, other := range items {
				if err := wctx.Err(); err != nil {
					return err
				}
				v, _, err := s.comparator.Compare(wctx, focus, other)
				if err != nil {
					return err
				}
				if v > local {
					local = v
				}
			}
			maxes[ci] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	largest := 0
	for _, v := range maxes {
		if v > largest {
			largest = v
		}
	}
	return largest, nil
}

// chunk splits items into consecutive slices of at most size elements
func chunk(items []int, size int) [][]int {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]int
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
