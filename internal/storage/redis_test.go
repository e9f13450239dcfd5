package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"glyphsim/internal/models"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		in       string
		addr     string
		password string
		db       int
		tls      bool
	}{
		{"localhost:6379", "localhost:6379", "", 0, false},
		{"redis://cache:6380", "cache:6380", "", 0, false},
		{"redis://:secret@cache:6379/2", "cache:6379", "secret", 2, false},
		{"rediss://user:pw@cache:6379/", "cache:6379", "pw", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			opts, err := parseRedisURL(tt.in)
			if err != nil {
				t.Fatalf("parseRedisURL failed: %v", err)
			}
			if opts.Addr != tt.addr {
				t.Errorf("addr = %q, want %q", opts.Addr, tt.addr)
			}
			if opts.Password != tt.password {
				t.Errorf("password = %q, want %q", opts.Password, tt.password)
			}
			if opts.DB != tt.db {
				t.Errorf("db = %d, want %d", opts.DB, tt.db)
			}
			if (opts.TLSConfig != nil) != tt.tls {
				t.Errorf("tls = %v, want %v", opts.TLSConfig != nil, tt.tls)
			}
		})
	}
}

func TestParseRedisURL_BadDatabase(t *testing.T) {
	if _, err := parseRedisURL("redis://cache:6379/zero"); err == nil {
		t.Error("expected error for non-numeric database")
	}
}

// Requires a running Redis; set GLYPHSIM_TEST_REDIS=localhost:6379.
func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("GLYPHSIM_TEST_REDIS")
	if addr == "" {
		t.Skip("GLYPHSIM_TEST_REDIS not set")
	}

	ctx := context.Background()
	prefix := "glyphsim:test:" + time.Now().Format("150405.000000") + ":"
	store, err := NewRedisStore(ctx, addr, prefix, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.LookupGlyph(ctx, "/g/a.png", "average"); err != nil || ok {
		t.Fatalf("LookupGlyph before save = %v, %v; want miss", ok, err)
	}

	info := &models.GlyphInfo{ID: "a", Path: "/g/a.png", Hash: 0xF0F0F0F0F0F0F0F0, Algorithm: "average", ModTime: time.Now()}
	if err := store.SaveGlyph(ctx, info); err != nil {
		t.Fatalf("SaveGlyph failed: %v", err)
	}

	got, ok, err := store.LookupGlyph(ctx, "/g/a.png", "average")
	if err != nil || !ok {
		t.Fatalf("LookupGlyph = %v, %v", ok, err)
	}
	if got.Hash != info.Hash {
		t.Errorf("hash = %x, want %x", got.Hash, info.Hash)
	}
}
