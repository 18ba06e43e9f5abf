package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// RedisClient is the minimal surface the registry's remote mirror needs,
// kept deliberately narrow the way internal/fabric/redis_store.go's
// RedisClient is: callers wire a concrete github.com/redis/go-redis/v9
// client in, this package never imports the driver directly.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// RedisMirror periodically publishes a Registry's aggregate stats to Redis
// under a namespaced key, so that multiple pipeline instances can read a
// shared view of Memory Layer pressure (the same multi-pod-visibility
// problem internal/fabric/redis_store.go solves for spoke registrations,
// applied here to cache/buffer-pool stats instead of spoke routing).
type RedisMirror struct {
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
	registry  *Registry
}

// NewRedisMirror builds a mirror writing registry's snapshots under
// keyPrefix, each entry expiring after ttl.
func NewRedisMirror(client RedisClient, keyPrefix string, ttl time.Duration, registry *Registry) *RedisMirror {
	if keyPrefix == "" {
		keyPrefix = "deeptrace:memory:"
	}
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &RedisMirror{client: client, keyPrefix: keyPrefix, ttl: ttl, registry: registry}
}

type mirroredStats struct {
	Takenat string       `json:"taken_at"`
	Members []NamedStats `json:"members"`
}

// PublishOnce pushes the registry's current aggregate stats to Redis under
// "<prefix>stats".
func (m *RedisMirror) PublishOnce(ctx context.Context) error {
	payload := mirroredStats{
		Takenat: time.Now().Format(time.RFC3339),
		Members: m.registry.AggregateStats(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal memory stats: %w", err)
	}
	if err := m.client.Set(ctx, m.keyPrefix+"stats", data, m.ttl); err != nil {
		return fmt.Errorf("redis SET memory stats: %w", err)
	}
	return nil
}

// Run publishes the registry's stats every interval until ctx is done.
func (m *RedisMirror) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.PublishOnce(ctx); err != nil {
				slog.Warn("[RedisMirror] publish failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
