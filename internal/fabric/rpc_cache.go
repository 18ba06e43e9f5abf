// Package fabric provides a Redis-backed caching decorator over
// rpc.Provider, for deployments where several pipeline instances share
// one RPC endpoint and want to avoid refetching the same trace, receipt,
// or bytecode. Grounded directly on the original's ethernity-rpc crate,
// whose EthernityRpcClient keeps an in-process
// Arc<RwLock<HashMap<String, (Vec<u8>, Instant)>>> cache keyed by
// call-kind + hash with a configurable cache_ttl; RedisCache generalizes
// that cache across processes the way internal/fabric's prior
// Redis-backed hub store generalized hub-local state across pods.
package fabric

import (
	"context"
	"fmt"
	"time"

	"github.com/angu-team/ethernity-deeptrace/internal/metrics"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

// RedisClient is a minimal interface any Redis library (go-redis, redigo)
// can satisfy. RedisCache doesn't import a specific driver — the caller
// constructs the concrete client and injects it.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisCache wraps an rpc.Provider, caching GetTransactionTrace and
// GetCode responses in Redis. GetTransactionReceipt, Call, GetBlockNumber
// and GetBlockHash pass straight through — Call results depend on the current
// state the caller is targeting, and GetBlockNumber's whole purpose is to
// observe the latest value.
type RedisCache struct {
	inner     rpc.Provider
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
	metrics   *metrics.Metrics
}

// NewRedisCache builds a RedisCache wrapping inner. An empty keyPrefix
// defaults to "deeptrace:rpc:"; a zero ttl defaults to 60s, matching
// ethernity-rpc's RpcConfig::default() cache_ttl.
func NewRedisCache(inner rpc.Provider, client RedisClient, keyPrefix string, ttl time.Duration) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "deeptrace:rpc:"
	}
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &RedisCache{inner: inner, client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// WithMetrics attaches a Metrics instance so cache hits and misses are
// recorded; omitted by default, so NewRedisCache alone stays dependency-free
// for callers that don't run a metrics server.
func (c *RedisCache) WithMetrics(m *metrics.Metrics) *RedisCache {
	c.metrics = m
	return c
}

func (c *RedisCache) GetTransactionTrace(ctx context.Context, txHash primitives.Hash) ([]byte, error) {
	key := c.keyPrefix + "trace:" + txHash.Hex()
	if cached, err := c.client.Get(ctx, key); err == nil && len(cached) > 0 {
		c.recordCache("trace", true)
		return cached, nil
	}
	c.recordCache("trace", false)
	trace, err := c.inner.GetTransactionTrace(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, trace, c.ttl); err != nil {
		return trace, fmt.Errorf("fabric: cache trace: %w", err)
	}
	return trace, nil
}

func (c *RedisCache) recordCache(method string, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordRPCCacheHit(method)
	} else {
		c.metrics.RecordRPCCacheMiss(method)
	}
}

func (c *RedisCache) GetTransactionReceipt(ctx context.Context, txHash primitives.Hash) (*rpc.Receipt, error) {
	// Receipts are a confirmed tx's immutable outcome — always safe to
	// cache, unlike Call which is state-dependent — but the cached form
	// would need its own JSON encoding of *rpc.Receipt, and no component
	// in this module calls GetTransactionReceipt more than once per hash,
	// so caching it adds complexity without a measurable benefit. Pass
	// through directly.
	return c.inner.GetTransactionReceipt(ctx, txHash)
}

func (c *RedisCache) GetCode(ctx context.Context, addr primitives.Address) ([]byte, error) {
	key := c.keyPrefix + "code:" + addr.Hex()
	if cached, err := c.client.Get(ctx, key); err == nil && len(cached) > 0 {
		c.recordCache("code", true)
		return cached, nil
	}
	c.recordCache("code", false)
	code, err := c.inner.GetCode(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, code, c.ttl); err != nil {
		return code, fmt.Errorf("fabric: cache code: %w", err)
	}
	return code, nil
}

func (c *RedisCache) Call(ctx context.Context, to primitives.Address, data []byte) ([]byte, error) {
	return c.inner.Call(ctx, to, data)
}

func (c *RedisCache) GetBlockNumber(ctx context.Context) (uint64, error) {
	return c.inner.GetBlockNumber(ctx)
}

func (c *RedisCache) GetBlockHash(ctx context.Context, number uint64) (primitives.Hash, error) {
	return c.inner.GetBlockHash(ctx, number)
}

var _ rpc.Provider = (*RedisCache)(nil)
