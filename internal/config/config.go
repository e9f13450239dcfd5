// Package config loads glyphsim settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"glyphsim/internal/export"
	"glyphsim/internal/hash"
)

// Hash store backends
const (
	StoreNone   = "none"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// MaxPrecision is the largest number of decimals a float64 score can carry
const MaxPrecision = 15

// Config holds every setting the CLI reads from the environment
type Config struct {
	ImagesDir string
	ImageExt  string
	Output    string
	Layout    string
	Workers   int
	ChunkSize int
	Timeout   time.Duration
	Precision int
	Algorithm string
	HashStore string
	DBPath    string
	RedisURL  string
	RedisTTL  time.Duration
	LogLevel  string
}

// DefaultDBPath returns ~/.glyphsim/glyphs.db, or a relative path when the
// home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".glyphsim", "glyphs.db")
	}
	return filepath.Join(home, ".glyphsim", "glyphs.db")
}

// Load reads the configuration from GLYPHSIM_* variables
func Load() *Config {
	return &Config{
		ImagesDir: GetEnv("GLYPHSIM_IMAGES_DIR", "./output"),
		ImageExt:  GetEnv("GLYPHSIM_IMAGE_EXT", ".png"),
		Output:    GetEnv("GLYPHSIM_OUTPUT", "./scores.json"),
		Layout:    GetEnv("GLYPHSIM_LAYOUT", string(export.LayoutNested)),
		Workers:   GetEnvInt("GLYPHSIM_WORKERS", 8),
		ChunkSize: GetEnvInt("GLYPHSIM_CHUNK_SIZE", 64),
		Timeout:   GetEnvDuration("GLYPHSIM_TIMEOUT", 30*time.Second),
		Precision: GetEnvInt("GLYPHSIM_PRECISION", -1),
		Algorithm: GetEnv("GLYPHSIM_ALGORITHM", string(hash.AlgorithmAverage)),
		HashStore: GetEnv("GLYPHSIM_HASH_STORE", StoreNone),
		DBPath:    GetEnv("GLYPHSIM_DB", DefaultDBPath()),
		RedisURL:  GetEnv("GLYPHSIM_REDIS_URL", "localhost:6379"),
		RedisTTL:  GetEnvDuration("GLYPHSIM_REDIS_TTL", 0),
		LogLevel:  GetEnv("GLYPHSIM_LOG_LEVEL", "info"),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Precision < -1 || c.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between -1 and %d, got %d", MaxPrecision, c.Precision)
	}
	if _, err := hash.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if _, err := export.ParseLayout(c.Layout); err != nil {
		return err
	}
	switch c.HashStore {
	case StoreNone, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown hash store %q", c.HashStore)
	}
	if c.HashStore == StoreRedis && c.RedisURL == "" {
		return fmt.Errorf("redis hash store requires GLYPHSIM_REDIS_URL")
	}
	return nil
}
