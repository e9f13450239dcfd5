// Package similarity computes the all-pairs difference matrix of a glyph catalog.
package similarity

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"glyphsim/internal/models"
)

var (
	// ErrDuplicateItem is returned when an identifier appears twice in a catalog.
	ErrDuplicateItem = errors.New("duplicate item")
	// ErrDegenerateScale is returned when normalizing with a zero maximum.
	ErrDegenerateScale = errors.New("degenerate scale: largest difference is zero")
	// ErrNotSealed is returned when reading results before all comparisons finished.
	ErrNotSealed = errors.New("matrix not sealed: comparisons still pending")
)

// Matrix stores raw pairwise differences in a flat n*n arena indexed by the
// catalog position of each item. Both cells of the pair {i, j} are guarded by
// the lock of row min(i, j).
type Matrix struct {
	ids     []models.ItemID
	index   map[models.ItemID]int
	n       int
	values  []int
	written []bool
	rows    []sync.Mutex
	sealed  atomic.Bool
}

// NewMatrix allocates a matrix for ids, keeping their order
func NewMatrix(ids []models.ItemID) (*Matrix, error) {
	n := len(ids)
	m := &Matrix{
		ids:     make([]models.ItemID, n),
		index:   make(map[models.ItemID]int, n),
		n:       n,
		values:  make([]int, n*n),
		written: make([]bool, n*n),
		rows:    make([]sync.Mutex, n),
	}
	copy(m.ids, ids)
	for i, id := range ids {
		if _, ok := m.index[id]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, id)
		}
		m.index[id] = i
	}
	return m, nil
}

// Len returns the number of items
func (m *Matrix) Len() int {
	return m.n
}

// IDs returns the items in matrix order
func (m *Matrix) IDs() []models.ItemID {
	out := make([]models.ItemID, m.n)
	copy(out, m.ids)
	return out
}

// Index returns the position of id
func (m *Matrix) Index(id models.ItemID) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

func (m *Matrix) cell(i, j int) int {
	return i*m.n + j
}

// owner returns the row whose lock guards the pair {i, j}
func (m *Matrix) owner(i, j int) *sync.Mutex {
	if j < i {
		i = j
	}
	return &m.rows[i]
}

// Get returns the raw difference stored for (a, b)
func (m *Matrix) Get(a, b models.ItemID) (int, bool) {
	i, ok := m.index[a]
	if !ok {
		return 0, false
	}
	j, ok := m.index[b]
	if !ok {
		return 0, false
	}
	mu := m.owner(i, j)
	mu.Lock()
	defer mu.Unlock()
	c := m.cell(i, j)
	return m.values[c], m.written[c]
}

// Seal marks every comparison as finished. Reads that need a complete
// matrix fail until Seal is called.
func (m *Matrix) Seal() {
	m.sealed.Store(true)
}

// Sealed reports whether Seal has been called
func (m *Matrix) Sealed() bool {
	return m.sealed.Load()
}

// Raw returns the raw differences as a nested map
func (m *Matrix) Raw() (map[models.ItemID]map[models.ItemID]int, error) {
	if !m.Sealed() {
		return nil, ErrNotSealed
	}
	out := make(map[models.ItemID]map[models.ItemID]int, m.n)
	for i, a := range m.ids {
		row := make(map[models.ItemID]int, m.n)
		for j, b := range m.ids {
			if c := m.cell(i, j); m.written[c] {
				row[b] = m.values[c]
			}
		}
		out[a] = row
	}
	return out, nil
}

// Complete reports whether every cell has been written
func (m *Matrix) Complete() bool {
	for _, w := range m.written {
		if !w {
			return false
		}
	}
	return true
}
