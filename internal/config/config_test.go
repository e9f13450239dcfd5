package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ImagesDir != "./output" {
		t.Errorf("ImagesDir = %q, want ./output", cfg.ImagesDir)
	}
	if cfg.ImageExt != ".png" {
		t.Errorf("ImageExt = %q, want .png", cfg.ImageExt)
	}
	if cfg.Workers != 8 || cfg.ChunkSize != 64 {
		t.Errorf("Workers/ChunkSize = %d/%d, want 8/64", cfg.Workers, cfg.ChunkSize)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.Precision != -1 {
		t.Errorf("Precision = %d, want -1", cfg.Precision)
	}
	if cfg.HashStore != StoreNone {
		t.Errorf("HashStore = %q, want none", cfg.HashStore)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("GLYPHSIM_IMAGES_DIR", "/glyphs")
	t.Setenv("GLYPHSIM_WORKERS", "3")
	t.Setenv("GLYPHSIM_TIMEOUT", "250ms")
	t.Setenv("GLYPHSIM_PRECISION", "2")
	t.Setenv("GLYPHSIM_HASH_STORE", "sqlite")
	t.Setenv("GLYPHSIM_CHUNK_SIZE", "not-a-number")

	cfg := Load()
	if cfg.ImagesDir != "/glyphs" {
		t.Errorf("ImagesDir = %q", cfg.ImagesDir)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %s, want 250ms", cfg.Timeout)
	}
	if cfg.Precision != 2 {
		t.Errorf("Precision = %d, want 2", cfg.Precision)
	}
	if cfg.HashStore != StoreSQLite {
		t.Errorf("HashStore = %q, want sqlite", cfg.HashStore)
	}
	// Unparseable values fall back to the default
	if cfg.ChunkSize != 64 {
		t.Errorf("ChunkSize = %d, want 64", cfg.ChunkSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"negative chunk", func(c *Config) { c.ChunkSize = -1 }, true},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, true},
		{"precision too high", func(c *Config) { c.Precision = 16 }, true},
		{"precision too low", func(c *Config) { c.Precision = -2 }, true},
		{"precision zero", func(c *Config) { c.Precision = 0 }, false},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "wavelet" }, true},
		{"unknown layout", func(c *Config) { c.Layout = "csv" }, true},
		{"unknown store", func(c *Config) { c.HashStore = "mongo" }, true},
		{"redis without url", func(c *Config) { c.HashStore = StoreRedis; c.RedisURL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GLYPHSIM_TEST_ONLY_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("GLYPHSIM_TEST_ONLY_KEY") })

	if err := LoadEnv(); err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if got := GetEnv("GLYPHSIM_TEST_ONLY_KEY", ""); got != "from-dotenv" {
		t.Errorf("GLYPHSIM_TEST_ONLY_KEY = %q, want from-dotenv", got)
	}
}
