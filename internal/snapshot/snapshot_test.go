package snapshot

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}
func (m *memStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
func (m *memStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeProvider struct {
	mu         sync.Mutex
	blockHash  map[uint64]primitives.Hash
	reserveIn  *big.Int
	reserveOut *big.Int
	callCount  int
	badOutput  bool
}

func (f *fakeProvider) GetTransactionTrace(ctx context.Context, txHash primitives.Hash) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) GetTransactionReceipt(ctx context.Context, txHash primitives.Hash) (*rpc.Receipt, error) {
	return nil, nil
}
func (f *fakeProvider) GetCode(ctx context.Context, a primitives.Address) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) Call(ctx context.Context, to primitives.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	if f.badOutput {
		return []byte{1, 2, 3}, nil
	}
	out := make([]byte, 64)
	f.reserveIn.FillBytes(out[0:32])
	f.reserveOut.FillBytes(out[32:64])
	return out, nil
}
func (f *fakeProvider) GetBlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakeProvider) GetBlockHash(ctx context.Context, n uint64) (primitives.Hash, error) {
	return f.blockHash[n], nil
}

func addr(s string) primitives.Address {
	a, _ := primitives.ParseAddress(s)
	return a
}

func TestCaptureFetchesAndPersists(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{
		blockHash:  map[uint64]primitives.Hash{100: primitives.ParseHash("0xaa")},
		reserveIn:  big.NewInt(1000),
		reserveOut: big.NewInt(2000),
	}
	repo := New(store, provider)

	target := addr("0x0000000000000000000000000000000000aaaa")
	records, err := repo.Capture(context.Background(), 100, []TargetGroup{{Target: target, GroupKeys: []primitives.Hash{primitives.ParseHash("0x01")}}}, Basic)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, big.NewInt(1000), records[0].Snapshot.Basic.ReserveIn)
	require.Equal(t, 1, provider.callCount)
}

func TestCaptureIsIdempotentOnUnchangedHash(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{
		blockHash:  map[uint64]primitives.Hash{100: primitives.ParseHash("0xaa")},
		reserveIn:  big.NewInt(1000),
		reserveOut: big.NewInt(2000),
	}
	repo := New(store, provider)
	target := addr("0x0000000000000000000000000000000000aaaa")

	_, err := repo.Capture(context.Background(), 100, []TargetGroup{{Target: target}}, Basic)
	require.NoError(t, err)
	_, err = repo.Capture(context.Background(), 100, []TargetGroup{{Target: target}}, Basic)
	require.NoError(t, err)
	require.Equal(t, 1, provider.callCount, "same block hash must not refetch")
}

func TestCaptureRefetchesOnReorg(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{
		blockHash:  map[uint64]primitives.Hash{100: primitives.ParseHash("0xaa")},
		reserveIn:  big.NewInt(1000),
		reserveOut: big.NewInt(2000),
	}
	repo := New(store, provider)
	target := addr("0x0000000000000000000000000000000000aaaa")

	_, err := repo.Capture(context.Background(), 100, []TargetGroup{{Target: target}}, Basic)
	require.NoError(t, err)

	provider.blockHash[100] = primitives.ParseHash("0xbb")
	_, err = repo.Capture(context.Background(), 100, []TargetGroup{{Target: target}}, Basic)
	require.NoError(t, err)
	require.Equal(t, 2, provider.callCount, "hash change must trigger refetch")
}

func TestCaptureDecodeErrorOnShortOutput(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{blockHash: map[uint64]primitives.Hash{100: primitives.ParseHash("0xaa")}, badOutput: true}
	repo := New(store, provider)
	target := addr("0x0000000000000000000000000000000000aaaa")

	_, err := repo.Capture(context.Background(), 100, []TargetGroup{{Target: target}}, Basic)
	require.Error(t, err)
}

func TestHistoryBoundedToThree(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{reserveIn: big.NewInt(1000), reserveOut: big.NewInt(2000), blockHash: map[uint64]primitives.Hash{}}
	repo := New(store, provider)
	target := addr("0x0000000000000000000000000000000000aaaa")

	for block := uint64(1); block <= 5; block++ {
		provider.blockHash[block] = primitives.ParseHash(primitives.EncodeHex([]byte{byte(block)}))
		_, err := repo.Capture(context.Background(), block, []TargetGroup{{Target: target}}, Basic)
		require.NoError(t, err)
	}
	require.Len(t, repo.History(target), 3)
}

func TestVolatilityFlagOnLargeReserveSwing(t *testing.T) {
	store := newMemStore()
	provider := &fakeProvider{reserveIn: big.NewInt(1000), reserveOut: big.NewInt(2000), blockHash: map[uint64]primitives.Hash{}}
	repo := New(store, provider)
	target := addr("0x0000000000000000000000000000000000aaaa")

	for block := uint64(1); block <= 2; block++ {
		provider.blockHash[block] = primitives.ParseHash(primitives.EncodeHex([]byte{byte(block)}))
		_, err := repo.Capture(context.Background(), block, []TargetGroup{{Target: target}}, Basic)
		require.NoError(t, err)
	}
	// third capture needs a 2-entry history already present; push a big swing.
	provider.reserveIn = big.NewInt(10000)
	provider.blockHash[3] = primitives.ParseHash(primitives.EncodeHex([]byte{3}))
	records, err := repo.Capture(context.Background(), 3, []TargetGroup{{Target: target}}, Basic)
	require.NoError(t, err)
	require.True(t, records[0].VolatilityFlag)
}

func TestDedupeTargetsMergesGroupKeys(t *testing.T) {
	target := addr("0x0000000000000000000000000000000000aaaa")
	in := []TargetGroup{
		{Target: target, GroupKeys: []primitives.Hash{primitives.ParseHash("0x01")}},
		{Target: target, GroupKeys: []primitives.Hash{primitives.ParseHash("0x02")}},
	}
	out := dedupeTargets(in)
	require.Len(t, out, 1)
	require.Len(t, out[0].GroupKeys, 2)
}
