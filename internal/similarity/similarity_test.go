package similarity

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"glyphsim/internal/hash"
	"glyphsim/internal/models"
)

type mapSource struct {
	hashes map[models.ItemID]uint64
	calls  atomic.Int64
}

func (s *mapSource) Get(_ context.Context, id models.ItemID) (uint64, error) {
	s.calls.Add(1)
	h, ok := s.hashes[id]
	if !ok {
		return 0, fmt.Errorf("unknown item %q", id)
	}
	return h, nil
}

// abcSource has d(A,B)=4, d(A,C)=10, d(B,C)=6.
func abcSource() *mapSource {
	return &mapSource{hashes: map[models.ItemID]uint64{
		"A": 0,
		"B": 0xF,
		"C": 0x3FF,
	}}
}

func newTestMatrix(t *testing.T, ids ...models.ItemID) *Matrix {
	t.Helper()
	m, err := NewMatrix(ids)
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	return m
}

func randomCatalog(n int, seed int64) ([]models.ItemID, *mapSource) {
	r := rand.New(rand.NewSource(seed))
	src := &mapSource{hashes: make(map[models.ItemID]uint64, n)}
	ids := make([]models.ItemID, n)
	for i := range ids {
		ids[i] = models.ItemID(fmt.Sprintf("g%03d", i))
		src.hashes[ids[i]] = r.Uint64()
	}
	return ids, src
}

func TestNewMatrix_Duplicate(t *testing.T) {
	_, err := NewMatrix([]models.ItemID{"A", "B", "A"})
	if !errors.Is(err, ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}
}

func TestCompare_Self(t *testing.T) {
	m := newTestMatrix(t, "A", "B")
	src := abcSource()
	c := NewComparator(m, src)

	v, computed, err := c.Compare(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if v != 0 || computed {
		t.Errorf("Compare(B, B) = %d, %v; want 0, false", v, computed)
	}
	if src.calls.Load() != 0 {
		t.Errorf("self comparison consulted the hash source %d times", src.calls.Load())
	}
	if got, ok := m.Get("B", "B"); !ok || got != 0 {
		t.Errorf("diagonal = %d, %v; want 0, true", got, ok)
	}
}

func TestCompare_SymmetricWriteAndCopy(t *testing.T) {
	m := newTestMatrix(t, "A", "B", "C")
	c := NewComparator(m, abcSource())
	ctx := context.Background()

	v, computed, err := c.Compare(ctx, 0, 2)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if v != 10 || !computed {
		t.Errorf("Compare(A, C) = %d, %v; want 10, true", v, computed)
	}

	// Both directions are written in one step.
	if got, ok := m.Get("C", "A"); !ok || got != 10 {
		t.Errorf("matrix[C][A] = %d, %v; want 10, true", got, ok)
	}

	v, computed, err = c.Compare(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if v != 10 || computed {
		t.Errorf("Compare(C, A) = %d, %v; want 10, false", v, computed)
	}
	if c.Computations() != 1 {
		t.Errorf("computations = %d, want 1", c.Computations())
	}
}

func TestCompare_SourceError(t *testing.T) {
	m := newTestMatrix(t, "A", "Z")
	c := NewComparator(m, abcSource())

	if _, _, err := c.Compare(context.Background(), 0, 1); err == nil {
		t.Fatal("expected error for unknown hash")
	}
	if _, ok := m.Get("A", "Z"); ok {
		t.Error("failed comparison should not write the matrix")
	}
}

// gatedSource holds every lookup until wait lookups are in flight, then
// answers after delay.
type gatedSource struct {
	hashes  map[models.ItemID]uint64
	wait    int32
	delay   time.Duration
	arrived atomic.Int32
	release chan struct{}
}

func newGatedSource(hashes map[models.ItemID]uint64, wait int32, delay time.Duration) *gatedSource {
	return &gatedSource{hashes: hashes, wait: wait, delay: delay, release: make(chan struct{})}
}

func (s *gatedSource) Get(ctx context.Context, id models.ItemID) (uint64, error) {
	if s.arrived.Add(1) == s.wait {
		close(s.release)
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	time.Sleep(s.delay)
	return s.hashes[id], nil
}

func TestCompare_OppositeDirectionsConcurrently(t *testing.T) {
	m := newTestMatrix(t, "A", "B")
	// Both callers must be inside a lookup before either may proceed, so
	// both pass the first check and one of them finds the pair already
	// filled on the second.
	src := newGatedSource(map[models.ItemID]uint64{"A": 0, "B": 0xFF}, 2, 0)
	c := NewComparator(m, src)

	type outcome struct {
		value    int
		computed bool
		err      error
	}
	results := make([]outcome, 2)
	var wg sync.WaitGroup
	for k, pair := range [][2]int{{0, 1}, {1, 0}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, computed, err := c.Compare(context.Background(), pair[0], pair[1])
			results[k] = outcome{v, computed, err}
		}()
	}
	wg.Wait()

	computedCount := 0
	for _, r := range results {
		if r.err != nil {
			t.Fatalf("Compare failed: %v", r.err)
		}
		if r.value != 8 {
			t.Errorf("value = %d, want 8", r.value)
		}
		if r.computed {
			computedCount++
		}
	}
	if computedCount != 1 || c.Computations() != 1 {
		t.Errorf("computed by %d callers, Computations() = %d; want 1, 1", computedCount, c.Computations())
	}

	ab, okAB := m.Get("A", "B")
	ba, okBA := m.Get("B", "A")
	if !okAB || !okBA || ab != ba || ab != 8 {
		t.Errorf("cells = (%d, %v) / (%d, %v); want both written with 8", ab, okAB, ba, okBA)
	}
}

func TestCompare_AllOrderedPairsWithSlowSource(t *testing.T) {
	ids, rnd := randomCatalog(8, 7)
	src := newGatedSource(rnd.hashes, 1, time.Millisecond)
	m := newTestMatrix(t, ids...)
	c := NewComparator(m, src)

	var wg sync.WaitGroup
	errs := make(chan error, len(ids)*len(ids))
	for i := range ids {
		for j := range ids {
			if i == j {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := c.Compare(context.Background(), i, j); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Compare failed: %v", err)
	}

	pairs := int64(len(ids) * (len(ids) - 1) / 2)
	if got := c.Computations(); got > pairs {
		t.Errorf("Computations() = %d, want at most %d", got, pairs)
	}
	for i, a := range ids {
		for j, b := range ids {
			if i == j {
				continue
			}
			want := hash.HammingDistance(rnd.hashes[a], rnd.hashes[b])
			got, ok := m.Get(a, b)
			if !ok || got != want {
				t.Errorf("cell (%s, %s) = %d, %v; want %d", a, b, got, ok, want)
			}
		}
	}
}

func TestScheduler_ThreeItems(t *testing.T) {
	m := newTestMatrix(t, "A", "B", "C")
	c := NewComparator(m, abcSource())

	largest, err := NewScheduler(c, WithChunkSize(1), WithWorkers(2)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if largest != 10 {
		t.Errorf("largest = %d, want 10", largest)
	}

	raw, err := m.Raw()
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	wantRaw := map[models.ItemID]map[models.ItemID]int{
		"A": {"A": 0, "B": 4, "C": 10},
		"B": {"A": 4, "B": 0, "C": 6},
		"C": {"A": 10, "B": 6, "C": 0},
	}
	if !reflect.DeepEqual(raw, wantRaw) {
		t.Errorf("raw = %v, want %v", raw, wantRaw)
	}

	norm, err := Normalize(m, largest, NoRounding)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	wantNorm := map[models.ItemID]map[models.ItemID]float64{
		"A": {"A": 0, "B": 0.4, "C": 1.0},
		"B": {"A": 0.4, "B": 0, "C": 0.6},
		"C": {"A": 1.0, "B": 0.6, "C": 0},
	}
	if !reflect.DeepEqual(norm, wantNorm) {
		t.Errorf("normalized = %v, want %v", norm, wantNorm)
	}

	result := Assemble(norm, largest)
	if result.LargestDifference != 10 {
		t.Errorf("LargestDifference = %d, want 10", result.LargestDifference)
	}
}

func TestScheduler_UnorderedPairCount(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 50} {
		for _, chunkSize := range []int{1, 3, 64} {
			t.Run(fmt.Sprintf("n=%d/chunk=%d", n, chunkSize), func(t *testing.T) {
				ids, src := randomCatalog(n, int64(n))
				m := newTestMatrix(t, ids...)
				c := NewComparator(m, src)

				largest, err := NewScheduler(c, WithChunkSize(chunkSize), WithWorkers(8)).Run(context.Background())
				if err != nil {
					t.Fatalf("Run failed: %v", err)
				}

				if want := int64(n * (n - 1) / 2); c.Computations() != want {
					t.Errorf("computations = %d, want %d", c.Computations(), want)
				}
				if !m.Complete() {
					t.Error("matrix is not fully covered")
				}

				seen := 0
				for _, a := range ids {
					for _, b := range ids {
						ab, _ := m.Get(a, b)
						ba, _ := m.Get(b, a)
						if ab != ba {
							t.Fatalf("matrix[%s][%s] = %d but matrix[%s][%s] = %d", a, b, ab, b, a, ba)
						}
						if a == b && ab != 0 {
							t.Fatalf("matrix[%s][%s] = %d, want 0", a, a, ab)
						}
						if ab < 0 || ab > largest {
							t.Fatalf("matrix[%s][%s] = %d outside [0, %d]", a, b, ab, largest)
						}
						if ab > seen {
							seen = ab
						}
					}
				}
				if seen != largest {
					t.Errorf("largest = %d, but max cell = %d", largest, seen)
				}
			})
		}
	}
}

func TestScheduler_SingleItem(t *testing.T) {
	m := newTestMatrix(t, "A")
	c := NewComparator(m, abcSource())

	largest, err := NewScheduler(c).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if largest != 0 {
		t.Errorf("largest = %d, want 0", largest)
	}

	raw, err := m.Raw()
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	want := map[models.ItemID]map[models.ItemID]int{"A": {"A": 0}}
	if !reflect.DeepEqual(raw, want) {
		t.Errorf("raw = %v, want %v", raw, want)
	}

	if _, err := Normalize(m, largest, NoRounding); !errors.Is(err, ErrDegenerateScale) {
		t.Errorf("expected ErrDegenerateScale, got %v", err)
	}
}

func TestScheduler_Empty(t *testing.T) {
	m := newTestMatrix(t)
	largest, err := NewScheduler(NewComparator(m, abcSource())).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if largest != 0 {
		t.Errorf("largest = %d, want 0", largest)
	}
	raw, err := m.Raw()
	if err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	if len(raw) != 0 {
		t.Errorf("expected empty matrix, got %v", raw)
	}
}

func TestScheduler_Idempotent(t *testing.T) {
	ids, src := randomCatalog(30, 7)

	run := func() map[models.ItemID]map[models.ItemID]float64 {
		m := newTestMatrix(t, ids...)
		largest, err := NewScheduler(NewComparator(m, src), WithChunkSize(4)).Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		norm, err := Normalize(m, largest, NoRounding)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		return norm
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Error("re-running on an unchanged catalog produced a different matrix")
	}
	for a, row := range first {
		for b, v := range row {
			if v < 0 || v > 1 {
				t.Fatalf("normalized[%s][%s] = %f outside [0, 1]", a, b, v)
			}
		}
	}
}

func TestScheduler_ErrorStopsRun(t *testing.T) {
	m := newTestMatrix(t, "A", "B", "Z")
	c := NewComparator(m, abcSource())

	if _, err := NewScheduler(c).Run(context.Background()); err == nil {
		t.Fatal("expected error for unknown hash")
	}
	if m.Sealed() {
		t.Error("matrix should not be sealed after a failed run")
	}
	if _, err := Normalize(m, 10, NoRounding); !errors.Is(err, ErrNotSealed) {
		t.Errorf("expected ErrNotSealed, got %v", err)
	}
}

func TestScheduler_Cancelled(t *testing.T) {
	ids, src := randomCatalog(5, 1)
	m := newTestMatrix(t, ids...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScheduler(NewComparator(m, src)).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScheduler_Progress(t *testing.T) {
	m := newTestMatrix(t, "A", "B", "C")
	var focused []models.ItemID
	s := NewScheduler(NewComparator(m, abcSource()), WithRoundProgress(func(done, total int, focus models.ItemID) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		focused = append(focused, focus)
	}))

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(focused, []models.ItemID{"A", "B", "C"}) {
		t.Errorf("focus order = %v, want [A B C]", focused)
	}
}

func TestNormalize_Precision(t *testing.T) {
	m := newTestMatrix(t, "A", "B", "C")
	src := &mapSource{hashes: map[models.ItemID]uint64{"A": 0, "B": 0x1, "C": 0x7}}
	largest, err := NewScheduler(NewComparator(m, src)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	norm, err := Normalize(m, largest, 2)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got := norm["A"]["B"]; got != 0.33 {
		t.Errorf("normalized[A][B] = %v, want 0.33", got)
	}
	if got := norm["B"]["C"]; got != 0.67 {
		t.Errorf("normalized[B][C] = %v, want 0.67", got)
	}

	full, err := Normalize(m, largest, NoRounding)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got := full["A"]["B"]; got != 1.0/3.0 {
		t.Errorf("unrounded normalized[A][B] = %v, want %v", got, 1.0/3.0)
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		items []int
		size  int
		want  [][]int
	}{
		{nil, 3, nil},
		{[]int{1, 2, 3}, 3, [][]int{{1, 2, 3}}},
		{[]int{1, 2, 3, 4}, 3, [][]int{{1, 2, 3}, {4}}},
		{[]int{1, 2}, 1, [][]int{{1}, {2}}},
	}

	for _, tt := range tests {
		if got := chunk(tt.items, tt.size); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("chunk(%v, %d) = %v, want %v", tt.items, tt.size, got, tt.want)
		}
	}
}
