package notification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "ebc:notification:body:"

// ReplayGuard remembers notifications that were already accepted.
type ReplayGuard interface {
	// FirstSeen records key and reports whether it was new.
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget drops key so a redelivery is accepted again.
	Forget(ctx context.Context, key string) error
}

// ReplayKey identifies a delivery by its raw document. The signature only
// covers the timestamp, so distinct events sent in the same millisecond
// share it.
func ReplayKey(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// RedisReplayGuard keeps accepted notifications in Redis until they fall out
// of the freshness window.
type RedisReplayGuard struct {
	client *redis.Client
}

// NewRedisReplayGuard creates a guard on an existing client.
func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

// FirstSeen implements ReplayGuard with SETNX.
func (g *RedisReplayGuard) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recording notification key: %w", err)
	}
	return ok, nil
}

// Forget implements ReplayGuard.
func (g *RedisReplayGuard) Forget(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, replayKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("forgetting notification key: %w", err)
	}
	return nil
}

// ConnectRedis builds a client from a redis:// URL or a host:port address.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}
