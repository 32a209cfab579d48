// Package respcache implements the document-store-backed response cache with
// logical TTLs, deterministic key derivation, and hit-count bookkeeping.
package respcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civium/simsearch/internal/db"
	"github.com/civium/simsearch/internal/metrics"
)

// keyHashLen bounds derived key length; 20 bytes of SHA-256 is plenty for
// uniqueness and keeps keys readable in redis-cli.
const keyHashLen = 20

// asyncOpTimeout bounds fire-and-forget writes so they cannot pile up.
const asyncOpTimeout = 5 * time.Second

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Del(ctx context.Context, key string) error
}

// envelope is the stored cache entry. The logical expiry is authoritative;
// the Redis TTL set alongside is only a backstop for abandoned entries.
type envelope struct {
	Value     json.RawMessage `json:"v"`
	CreatedAt int64           `json:"created_at"`
	ExpiresAt int64           `json:"expires_at"`
}

// Cache is a key/value response cache on the document store.
// All failures fail open: a broken cache degrades to a miss, never an error.
type Cache struct {
	store  store
	prefix string
	logger *zap.Logger
	now    func() time.Time
	async  func(fn func())
}

// New creates a response cache under the given key prefix.
func New(s store, prefix string, logger *zap.Logger) *Cache {
	return &Cache{
		store:  s,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
		async:  func(fn func()) { go fn() },
	}
}

// NewForTest creates a cache whose background operations run inline, so
// tests can assert on write effects deterministically.
func NewForTest(s store, prefix string, logger *zap.Logger) *Cache {
	c := New(s, prefix, logger)
	c.async = func(fn func()) { fn() }
	return c
}

// Key derives a deterministic cache key from the given parts. Not
// cryptographically meaningful; only uniqueness and bounded length matter.
func (c *Cache) Key(tier string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return c.prefix + "cache:" + tier + ":" + hex.EncodeToString(h[:keyHashLen])
}

// Get returns the cached value for key, or ok=false on miss. Expired entries
// are treated as misses and deleted in the background. A hit bumps the entry
// hit counter without blocking the caller.
func (c *Cache) Get(ctx context.Context, tier, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.CacheTotal.WithLabelValues(tier, "miss").Inc()
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		c.deleteAsync(key)
		metrics.CacheTotal.WithLabelValues(tier, "miss").Inc()
		return nil, false
	}

	if c.now().UnixMilli() >= env.ExpiresAt {
		c.deleteAsync(key)
		metrics.CacheTotal.WithLabelValues(tier, "expired").Inc()
		return nil, false
	}

	c.recordHitAsync(key)
	metrics.CacheTotal.WithLabelValues(tier, "hit").Inc()
	return env.Value, true
}

// Set stores value under key for the given logical TTL. Best-effort: a write
// failure is logged and swallowed so it can never fail the response path.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	now := c.now()
	env := envelope{
		Value:     value,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Warn("cache entry marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	// Backstop TTL at 2x so Redis eventually reaps entries the lazy
	// read-side deletion never touches.
	if err := c.store.SetWithTTL(ctx, key, data, 2*ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// SetAsync stores value under key without blocking the caller. The write
// runs on its own bounded context, like the other background operations, so
// a hung store cannot stall the response path.
func (c *Cache) SetAsync(key string, value []byte, ttl time.Duration) {
	c.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
		defer cancel()
		c.Set(ctx, key, value, ttl)
	})
}

// Delete removes a cache entry and its hit counter.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.store.Del(ctx, key); err != nil {
		c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
	if err := c.store.Del(ctx, key+":hits"); err != nil {
		c.logger.Warn("cache hit counter delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) deleteAsync(key string) {
	c.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
		defer cancel()
		c.Delete(ctx, key)
	})
}

func (c *Cache) recordHitAsync(key string) {
	c.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
		defer cancel()
		if err := c.store.IncrBy(ctx, key+":hits", 1); err != nil {
			c.logger.Debug("cache hit count update failed", zap.String("key", key), zap.Error(err))
		}
	})
}

// GetJSON reads and decodes a cached value into T.
func GetJSON[T any](ctx context.Context, c *Cache, tier, key string) (T, bool) {
	var out T
	data, ok := c.Get(ctx, tier, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Warn("cache value decode failed", zap.String("key", key), zap.Error(err))
		return out, false
	}
	return out, true
}

// SetJSON encodes and stores a value under key.
func SetJSON[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.Set(ctx, key, data, ttl)
}

// SetJSONAsync encodes a value synchronously (snapshotting it before the
// caller can mutate it) and stores it in the background.
func SetJSONAsync[T any](c *Cache, key string, value T, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.SetAsync(key, data, ttl)
}
