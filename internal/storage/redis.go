package storage

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"glyphsim/internal/models"
)

// DefaultRedisPrefix namespaces glyph hash keys
const DefaultRedisPrefix = "glyphsim:glyph:"

// RedisStore keeps glyph hashes in Redis so several machines can share them
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// parseRedisURL accepts redis:// and rediss:// URLs or a bare host:port
func parseRedisURL(connectionString string) (*redis.Options, error) {
	if !strings.HasPrefix(connectionString, "redis://") && !strings.HasPrefix(connectionString, "rediss://") {
		return &redis.Options{Addr: connectionString}, nil
	}

	parsedURL, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opts := &redis.Options{Addr: parsedURL.Host}
	if parsedURL.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if parsedURL.User != nil {
		opts.Username = parsedURL.User.Username()
		if password, ok := parsedURL.User.Password(); ok {
			opts.Password = password
		}
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		db, err := strconv.Atoi(strings.TrimPrefix(parsedURL.Path, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid Redis database %q: %w", parsedURL.Path, err)
		}
		opts.DB = db
	}
	return opts, nil
}

// NewRedisStore connects to Redis. A zero ttl keeps entries forever.
func NewRedisStore(ctx context.Context, connectionString, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := parseRedisURL(connectionString)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) key(path, algorithm string) string {
	return s.prefix + algorithm + ":" + path
}

// SaveGlyph stores info as a JSON document
func (s *RedisStore) SaveGlyph(ctx context.Context, info *models.GlyphInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode glyph %s: %w", info.Path, err)
	}
	if err := s.client.Set(ctx, s.key(info.Path, info.Algorithm), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save glyph %s: %w", info.Path, err)
	}
	return nil
}

// LookupGlyph returns the stored hash for path computed with algorithm
func (s *RedisStore) LookupGlyph(ctx context.Context, path, algorithm string) (*models.GlyphInfo, bool, error) {
	data, err := s.client.Get(ctx, s.key(path, algorithm)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query glyph %s: %w", path, err)
	}

	info := &models.GlyphInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, false, fmt.Errorf("failed to decode glyph %s: %w", path, err)
	}
	return info, true, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
