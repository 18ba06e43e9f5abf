package snapshot

// KVStore is the minimal embedded-store surface the repository needs,
// kept narrow the way internal/fabric/redis_store.go's RedisClient is so
// that tests can exercise the repository against an in-memory fake
// instead of a real pebble database. pebble_store.go provides the
// concrete github.com/cockroachdb/pebble-backed implementation.
type KVStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
