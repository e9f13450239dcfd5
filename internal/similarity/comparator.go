package similarity

import (
	"context"
	"fmt"
	"sync/atomic"

	"glyphsim/internal/hash"
	"glyphsim/internal/models"
)

// HashSource resolves the hash of an item. *cache.Cache satisfies it.
type HashSource interface {
	Get(ctx context.Context, id models.ItemID) (uint64, error)
}

// Comparator fills a Matrix one pair at a time
type Comparator struct {
	matrix       *Matrix
	hashes       HashSource
	distance     func(a, b uint64) int
	computations atomic.Int64
}

// NewComparator creates a Comparator writing into m
func NewComparator(m *Matrix, hashes HashSource) *Comparator {
	return &Comparator{
		matrix:   m,
		hashes:   hashes,
		distance: hash.HammingDistance,
	}
}

// Matrix returns the matrix being filled
func (c *Comparator) Matrix() *Matrix {
	return c.matrix
}

// Computations returns how many hash distances have been computed
func (c *Comparator) Computations() int64 {
	return c.computations.Load()
}

// Compare records the difference between the items at positions i and j.
// Self-comparisons are zero and never touch the hash source. If (j, i) is
// already known it is copied into (i, j); otherwise the distance is computed
// and written to both cells. computed reports whether a distance was computed.
func (c *Comparator) Compare(ctx context.Context, i, j int) (value int, computed bool, err error) {
	m := c.matrix
	if i == j {
		mu := &m.rows[i]
		mu.Lock()
		cell := m.cell(i, i)
		m.values[cell] = 0
		m.written[cell] = true
		mu.Unlock()
		return 0, false, nil
	}

	mu := m.owner(i, j)
	mu.Lock()
	if rev := m.cell(j, i); m.written[rev] {
		v := m.values[rev]
		fwd := m.cell(i, j)
		m.values[fwd] = v
		m.written[fwd] = true
		mu.Unlock()
		return v, false, nil
	}
	mu.Unlock()

	// Lookups happen outside the row lock so a slow provider does not
	// serialize unrelated pairs.
	ha, err := c.hashes.Get(ctx, m.ids[i])
	if err != nil {
		return 0, false, fmt.Errorf("compare %q: %w", m.ids[i], err)
	}
	hb, err := c.hashes.Get(ctx, m.ids[j])
	if err != nil {
		return 0, false, fmt.Errorf("compare %q: %w", m.ids[j], err)
	}

	mu.Lock()
	defer mu.Unlock()

	// Another worker may have filled the pair while the lock was released.
	if rev := m.cell(j, i); m.written[rev] {
		v := m.values[rev]
		fwd := m.cell(i, j)
		m.values[fwd] = v
		m.written[fwd] = true
		return v, false, nil
	}

	v := c.distance(ha, hb)
	fwd, rev := m.cell(i, j), m.cell(j, i)
	m.values[fwd], m.values[rev] = v, v
	m.written[fwd], m.written[rev] = true, true
	c.computations.Add(1)
	return v, true, nil
}
