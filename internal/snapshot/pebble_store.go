package snapshot

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is the embedded key-value store backing the repository in
// production, per spec §4.7. Every StateSnapshotRepository write goes
// through pebble's WAL, so a process crash mid-write never leaves a
// torn record — corruption is still handled defensively in repository.go
// since a disk-level bit-flip or a schema change across versions can
// still make a stored record fail to deserialize.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if absent) a pebble database at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

// Close releases the underlying pebble database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key, ok=false if absent.
func (s *PebbleStore) Get(key string) ([]byte, bool, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores value under key, synced to disk.
func (s *PebbleStore) Set(key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

// Delete removes key, synced to disk.
func (s *PebbleStore) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}
