// Package cache holds the Redis-backed caches used by the API. Every cache
// here fails open: Redis errors are logged and read as misses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/propertydesk/propertydesk/internal/config"
)

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Listing caches rendered pages of the public property listing. Keys carry
// a generation number; Invalidate bumps it so every cached page is orphaned
// at once and left to expire.
type Listing struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewListing creates a listing cache. prefix namespaces every key.
func NewListing(client *redis.Client, ttl time.Duration, prefix string) *Listing {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Listing{client: client, ttl: ttl, prefix: prefix}
}

func (l *Listing) generationKey() string { return l.prefix + "listing:generation" }

func (l *Listing) generation(ctx context.Context) (int64, error) {
	gen, err := l.client.Get(ctx, l.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (l *Listing) key(gen int64, key string) string {
	return fmt.Sprintf("%slisting:%d:%s", l.prefix, gen, key)
}

// Get returns the cached page for key.
func (l *Listing) Get(ctx context.Context, key string) ([]byte, bool) {
	gen, err := l.generation(ctx)
	if err != nil {
		slog.Warn("listing cache unavailable", "error", err)
		return nil, false
	}
	data, err := l.client.Get(ctx, l.key(gen, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("listing cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores a page under the current generation.
func (l *Listing) Set(ctx context.Context, key string, data []byte) {
	gen, err := l.generation(ctx)
	if err != nil {
		slog.Warn("listing cache unavailable", "error", err)
		return
	}
	if err := l.client.Set(ctx, l.key(gen, key), data, l.ttl).Err(); err != nil {
		slog.Warn("listing cache write failed", "key", key, "error", err)
	}
}

// Invalidate orphans every cached page.
func (l *Listing) Invalidate(ctx context.Context) {
	if err := l.client.Incr(ctx, l.generationKey()).Err(); err != nil {
		slog.Warn("listing cache invalidation failed", "error", err)
	}
}
