package snapshot

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

const maxHistoryPerAddress = 3
const volatilityThreshold = 0.05 // 5%

var getReservesSelector = func() string {
	h := primitives.Keccak256([]byte("getReserves()"))
	return primitives.EncodeHex(h[:4])
}()

// TargetGroup pairs a pool address with the groups that referenced it, so
// the repository can dedupe fetches across input groups (spec §4.7 step
// 2) while still recording every origin on the resulting record.
type TargetGroup struct {
	Target    primitives.Address
	GroupKeys []primitives.Hash
}

// Repository is the StateSnapshotRepository: block-anchored on-chain
// state capture with reorg-safe persistence over an embedded KV store
// (spec §4.7).
type Repository struct {
	mu       sync.Mutex
	store    KVStore
	provider rpc.Provider
	history  map[primitives.Address][]Record
}

// New builds a Repository over store, fetching state through provider.
func New(store KVStore, provider rpc.Provider) *Repository {
	return &Repository{
		store:    store,
		provider: provider,
		history:  make(map[primitives.Address][]Record),
	}
}

// Capture runs the snapshot protocol (spec §4.7 steps 1-6) for every
// deduplicated target across targets, at blockNumber, for profile. It
// returns one Record per target in the same order as the deduplicated
// target list.
func (r *Repository) Capture(ctx context.Context, blockNumber uint64, targets []TargetGroup, profile Profile) ([]Record, error) {
	blockHash, err := r.provider.GetBlockHash(ctx, blockNumber)
	if err != nil {
		return nil, err
	}

	deduped := dedupeTargets(targets)

	out := make([]Record, 0, len(deduped))
	for _, tg := range deduped {
		rec, err := r.captureOne(ctx, tg, blockNumber, blockHash, profile)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func dedupeTargets(targets []TargetGroup) []TargetGroup {
	byAddr := make(map[primitives.Address]*TargetGroup)
	var order []primitives.Address
	for _, tg := range targets {
		existing, ok := byAddr[tg.Target]
		if !ok {
			copy := TargetGroup{Target: tg.Target, GroupKeys: append([]primitives.Hash(nil), tg.GroupKeys...)}
			byAddr[tg.Target] = &copy
			order = append(order, tg.Target)
			continue
		}
		existing.GroupKeys = append(existing.GroupKeys, tg.GroupKeys...)
	}
	out := make([]TargetGroup, 0, len(order))
	for _, addr := range order {
		out = append(out, *byAddr[addr])
	}
	return out
}

// captureOne implements spec §4.7's per-target protocol: steps 3-6.
func (r *Repository) captureOne(ctx context.Context, tg TargetGroup, blockNumber uint64, blockHash primitives.Hash, profile Profile) (Record, error) {
	key := Key(tg.Target, blockNumber, profile)

	existing, found := r.loadRecord(key)
	if found && existing.BlockHash == blockHash {
		// Idempotent: same block, same hash, nothing to do.
		return existing, nil
	}
	if found {
		// Either a reorg (hash changed) or a corrupted record we treated
		// as absent — either way, delete and refetch.
		_ = r.store.Delete(key)
	}

	basic, err := r.fetchReserves(ctx, tg.Target)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Snapshot:    State{Basic: basic},
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		Profile:     profile,
		GroupOrigin: tg.GroupKeys,
	}

	r.mu.Lock()
	rec.VolatilityFlag = r.computeVolatilityLocked(tg.Target, basic)
	r.appendHistoryLocked(tg.Target, rec)
	r.mu.Unlock()

	if err := r.saveRecord(key, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// loadRecord reads and deserializes the record at key. A deserialization
// failure is treated as absent (spec §4.7 invariant c: corrupted records
// never surface as successful reads).
func (r *Repository) loadRecord(key string) (Record, bool) {
	data, ok, err := r.store.Get(key)
	if err != nil || !ok {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

func (r *Repository) saveRecord(key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Set(key, data)
}

// fetchReserves calls getReserves() on target and decodes the leading two
// 32-byte words as (reserve_in, reserve_out), per spec §4.7 step 4.
func (r *Repository) fetchReserves(ctx context.Context, target primitives.Address) (BasicState, error) {
	data, err := primitives.ParseHexBytes(getReservesSelector)
	if err != nil {
		return BasicState{}, err
	}
	out, err := r.provider.Call(ctx, target, data)
	if err != nil {
		return BasicState{}, err
	}
	if len(out) < 64 {
		return BasicState{}, xerrors.Decodef(nil, "snapshot: getReserves() returned %d bytes, want >= 64", len(out))
	}
	return BasicState{
		ReserveIn:  new(big.Int).SetBytes(out[0:32]),
		ReserveOut: new(big.Int).SetBytes(out[32:64]),
	}, nil
}

// computeVolatilityLocked sets the volatility flag per spec §4.7 step 6:
// when the address has at least 2 prior history entries and the reserve_in
// delta against the most recent one exceeds 5%. Must be called with r.mu
// held.
func (r *Repository) computeVolatilityLocked(addr primitives.Address, basic BasicState) bool {
	hist := r.history[addr]
	if len(hist) < 2 {
		return false
	}
	prev := hist[len(hist)-1].Snapshot.Basic.ReserveIn
	if prev == nil || prev.Sign() == 0 {
		return false
	}
	delta := new(big.Int).Sub(basic.ReserveIn, prev)
	delta.Abs(delta)

	deltaF := new(big.Float).SetInt(delta)
	prevF := new(big.Float).SetInt(prev)
	ratio := new(big.Float).Quo(deltaF, prevF)
	threshold := big.NewFloat(volatilityThreshold)
	return ratio.Cmp(threshold) > 0
}

// appendHistoryLocked appends rec to addr's history, bounding it to the 3
// most recent entries (spec §4.7 invariant d). Must be called with r.mu
// held.
func (r *Repository) appendHistoryLocked(addr primitives.Address, rec Record) {
	hist := append(r.history[addr], rec)
	if len(hist) > maxHistoryPerAddress {
		hist = hist[len(hist)-maxHistoryPerAddress:]
	}
	r.history[addr] = hist
}

// History returns a copy of addr's bounded snapshot history, oldest first.
func (r *Repository) History(addr primitives.Address) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.history[addr]...)
}
