package hash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"glyphsim/internal/models"
)

// Provider returns the perceptual hash of a catalog item
type Provider interface {
	Hash(ctx context.Context, id models.ItemID) (uint64, error)
}

// FileProvider hashes glyph images stored as <dir>/<id><ext>, or under the
// file names registered with UseFileNames.
type FileProvider struct {
	dir    string
	ext    string
	hasher *Hasher
	names  map[models.ItemID]string
}

// NewFileProvider creates a FileProvider rooted at dir
func NewFileProvider(dir, ext string, hasher *Hasher) *FileProvider {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if hasher == nil {
		hasher = NewHasher(AlgorithmAverage)
	}
	return &FileProvider{dir: dir, ext: ext, hasher: hasher}
}

// UseFileNames registers the actual file name of each id inside dir, so
// images whose extension differs in case, or in format when ext is empty,
// are still found. It must be called before the provider is used.
func (p *FileProvider) UseFileNames(names map[models.ItemID]string) *FileProvider {
	p.names = names
	return p
}

// Path returns the image path backing id
func (p *FileProvider) Path(id models.ItemID) string {
	if name, ok := p.names[id]; ok {
		return filepath.Join(p.dir, name)
	}
	return filepath.Join(p.dir, string(id)+p.ext)
}

// Algorithm returns the hash function used by the provider
func (p *FileProvider) Algorithm() Algorithm {
	return p.hasher.Algorithm()
}

// Describe hashes the image behind id and returns its full metadata.
// Decoding is abandoned when ctx is done.
func (p *FileProvider) Describe(ctx context.Context, id models.ItemID) (*models.GlyphInfo, error) {
	type result struct {
		info *models.GlyphInfo
		err  error
	}
	done := make(chan result, 1)
	path := p.Path(id)

	go func() {
		info, err := p.hasher.HashImage(path)
		done <- result{info, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &ItemError{ID: id, Err: r.err}
		}
		r.info.ID = id
		return r.info, nil
	case <-ctx.Done():
		return nil, &ItemError{ID: id, Err: fmt.Errorf("timeout hashing image %s: %w", path, ctx.Err())}
	}
}

// Hash implements Provider
func (p *FileProvider) Hash(ctx context.Context, id models.ItemID) (uint64, error) {
	info, err := p.Describe(ctx, id)
	if err != nil {
		return 0, err
	}
	return info.Hash, nil
}

// Store persists glyph hashes between runs
type Store interface {
	LookupGlyph(ctx context.Context, path, algorithm string) (*models.GlyphInfo, bool, error)
	SaveGlyph(ctx context.Context, info *models.GlyphInfo) error
}

// PersistentProvider serves hashes from a Store when the image file is
// unchanged and falls back to decoding it otherwise.
type PersistentProvider struct {
	files  *FileProvider
	store  Store
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewPersistentProvider wraps files with store
func NewPersistentProvider(files *FileProvider, store Store, logger zerolog.Logger) *PersistentProvider {
	return &PersistentProvider{files: files, store: store, logger: logger}
}

// Hash implements Provider
func (p *PersistentProvider) Hash(ctx context.Context, id models.ItemID) (uint64, error) {
	path := p.files.Path(id)
	stat, err := os.Stat(path)
	if err != nil {
		return 0, &ItemError{ID: id, Err: err}
	}

	algorithm := string(p.files.Algorithm())
	cached, ok, err := p.store.LookupGlyph(ctx, path, algorithm)
	if err != nil {
		p.logger.Warn().Err(err).Str("item", string(id)).Msg("hash store lookup failed")
	}
	if ok && cached.FileSize == stat.Size() && cached.ModTime.UnixNano() == stat.ModTime().UnixNano() {
		p.hits.Add(1)
		return cached.Hash, nil
	}

	p.misses.Add(1)
	info, err := p.files.Describe(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := p.store.SaveGlyph(ctx, info); err != nil {
		p.logger.Warn().Err(err).Str("item", string(id)).Msg("hash store save failed")
	}
	return info.Hash, nil
}

// Stats returns the number of store hits and misses so far
func (p *PersistentProvider) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}
