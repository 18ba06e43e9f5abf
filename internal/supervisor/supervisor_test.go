package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

type fakeProvider struct {
	block uint64
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
	return nil, nil
}
func (f *fakeProvider) GetBlockNumber(ctx context.Context) (uint64, error) { return f.block, nil }
func (f *fakeProvider) GetBlockHash(ctx context.Context, n uint64) (primitives.Hash, error) {
	return primitives.Hash{}, nil
}

func sampleTx() aggregator.AnnotatedTx {
	a, _ := primitives.ParseAddress("0x0000000000000000000000000000000000aaaa")
	b, _ := primitives.ParseAddress("0x0000000000000000000000000000000000bbbb")
	c, _ := primitives.ParseAddress("0x0000000000000000000000000000000000cccc")
	return aggregator.AnnotatedTx{
		TxHash:     primitives.ParseHash("0x01"),
		TokenPaths: []primitives.Address{a, b},
		Targets:    []primitives.Address{c},
		Tags:       []tagger.Tag{tagger.TagSwapV2},
		FirstSeen:  time.Now(),
		GasPrice:   10,
		Confidence: 0.9,
	}
}

func TestTickFinalizesOnBlockAdvance(t *testing.T) {
	provider := &fakeProvider{block: 100}
	agg := aggregator.New(10)
	sup := New(provider, agg, 10)

	_, err := sup.Tick(context.Background())
	require.NoError(t, err)

	sup.Ingest(sampleTx())
	provider.block = 101
	events, err := sup.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, uint64(101), events[0].BlockNumber)
}

func TestRecoveryModeAfterThreeFailures(t *testing.T) {
	provider := &fakeProvider{block: 1}
	agg := aggregator.New(10)
	sup := New(provider, agg, 10)

	sup.NotifyRepositoryFailure()
	sup.NotifyRepositoryFailure()
	require.Equal(t, Normal, sup.mode)
	sup.NotifyRepositoryFailure()
	require.Equal(t, Recovery, sup.mode)
}

func TestNotifyRepositorySuccessUnlatchesRecoveryMode(t *testing.T) {
	provider := &fakeProvider{block: 1}
	agg := aggregator.New(10)
	sup := New(provider, agg, 10)

	sup.NotifyRepositoryFailure()
	sup.NotifyRepositoryFailure()
	sup.NotifyRepositoryFailure()
	require.Equal(t, Recovery, sup.mode)

	sup.NotifyRepositorySuccess()
	require.Equal(t, Normal, sup.mode)
	require.Equal(t, 0, sup.consecutiveRepoFailures)

	// The next Tick must resume rate-based recompute rather than staying
	// pinned to Recovery's TTL.
	provider.block = 2
	_, err := sup.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, Normal, sup.mode)
}

func TestAdaptiveTTLTable(t *testing.T) {
	require.Equal(t, 5*time.Second, ttl(Normal, 10))
	require.Equal(t, 3*time.Second, ttl(Normal, 101))
	require.Equal(t, 3*time.Second, ttl(Burst, 10))
	require.Equal(t, 7*time.Second, ttl(Recovery, 10))
}

func TestSyncMetadataAlignment(t *testing.T) {
	group := aggregator.TxGroup{BlockNumber: 99}
	meta := computeSyncMetadata(group, 100, true)
	require.InDelta(t, 1.0, meta.StateAlignmentScore, 1e-9)

	meta = computeSyncMetadata(group, 105, true)
	require.InDelta(t, 0.5, meta.StateAlignmentScore, 1e-9)
	require.True(t, meta.EvaluatedWithStaleState)

	meta = computeSyncMetadata(group, 105, false)
	require.InDelta(t, 0.8, meta.StateAlignmentScore, 1e-9)
}

func TestPruneExpiredCountsObservability(t *testing.T) {
	provider := &fakeProvider{block: 1}
	agg := aggregator.New(10)
	sup := New(provider, agg, 10)

	tx := sampleTx()
	sup.mu.Lock()
	sup.buffer = append(sup.buffer, &bufferedTx{tx: tx, expiresAt: time.Now().Add(-time.Second)})
	sup.mu.Unlock()

	_, err := sup.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), sup.PrunedCount())
}
