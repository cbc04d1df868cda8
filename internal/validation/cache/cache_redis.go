package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"validbus/pkg/domain"
)

// RedisCache stores memoized validator outcomes in Redis with a TTL. Raw
// inputs are hashed into the key so PII never appears in the keyspace.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis constructs a Redis-backed outcome cache.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, t domain.ValidationType, raw string) (Entry, bool) {
	payload, err := c.client.Get(ctx, key(t, raw)).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.WarnContext(ctx, "outcome cache get failed", "type", t, "error", err)
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "outcome cache entry corrupt", "type", t, "error", err)
		}
		return Entry{}, false
	}
	return entry, true
}

func (c *RedisCache) Set(ctx context.Context, t domain.ValidationType, raw string, entry Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "outcome cache encode failed", "type", t, "error", err)
		}
		return
	}
	if err := c.client.Set(ctx, key(t, raw), payload, c.ttl).Err(); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "outcome cache set failed", "type", t, "error", err)
		}
	}
}

func key(t domain.ValidationType, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("validbus:outcome:%s:%s", t, hex.EncodeToString(sum[:]))
}
