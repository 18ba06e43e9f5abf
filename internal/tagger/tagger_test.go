package tagger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

type fakeProvider struct {
	code      map[primitives.Address][]byte
	callCount int
}

func (f *fakeProvider) GetTransactionTrace(ctx context.Context, txHash primitives.Hash) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) GetTransactionReceipt(ctx context.Context, txHash primitives.Hash) (*rpc.Receipt, error) {
	return nil, nil
}
func (f *fakeProvider) GetCode(ctx context.Context, a primitives.Address) ([]byte, error) {
	f.callCount++
	return f.code[a], nil
}
func (f *fakeProvider) Call(ctx context.Context, to primitives.Address, data []byte) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) GetBlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakeProvider) GetBlockHash(ctx context.Context, n uint64) (primitives.Hash, error) {
	return primitives.Hash{}, nil
}

func selectorBytes(sig string) []byte {
	h := primitives.Keccak256([]byte(sig))
	return h[:4]
}

func TestAnalyzeKnownSelectorHighConfidence(t *testing.T) {
	to, _ := primitives.ParseAddress("0x0000000000000000000000000000000000000b")
	provider := &fakeProvider{code: map[primitives.Address][]byte{to: {0x60, 0x01}}}
	tg := New(provider)

	sel := selectorBytes("swapExactTokensForTokens(uint256,uint256,address[],address,uint256)")
	input := append(sel, make([]byte, 64)...)
	txHash := primitives.ParseHash("0x01")

	nature, err := tg.Analyze(context.Background(), to, true, input, txHash)
	require.NoError(t, err)
	require.Contains(t, nature.Tags, TagSwapV2)
	require.InDelta(t, 0.9, nature.ConfidenceComponents.ABIMatch, 1e-9)
	require.InDelta(t, 0.5, nature.ConfidenceComponents.Structure, 1e-9)
}

func TestAnalyzeUnknownSelectorLowConfidence(t *testing.T) {
	to, _ := primitives.ParseAddress("0x0000000000000000000000000000000000000b")
	provider := &fakeProvider{code: map[primitives.Address][]byte{to: {0xf4}}}
	tg := New(provider)

	input := []byte{0xde, 0xad, 0xbe, 0xef}
	nature, err := tg.Analyze(context.Background(), to, true, input, primitives.ParseHash("0x02"))
	require.NoError(t, err)
	require.Contains(t, nature.Tags, TagUnknownCall)
	require.InDelta(t, 0.1, nature.ConfidenceComponents.ABIMatch, 1e-9)
	require.InDelta(t, 0.7, nature.ConfidenceComponents.Structure, 1e-9)
	require.True(t, nature.PathInferenceFailed)
}

func TestBytecodeCacheReusesValue(t *testing.T) {
	to, _ := primitives.ParseAddress("0x0000000000000000000000000000000000000c")
	provider := &fakeProvider{code: map[primitives.Address][]byte{to: {0x01}}}
	tg := New(provider)

	_, err := tg.Analyze(context.Background(), to, true, []byte{0x01, 0x02, 0x03, 0x04}, primitives.ParseHash("0x03"))
	require.NoError(t, err)
	_, err = tg.Analyze(context.Background(), to, true, []byte{0x01, 0x02, 0x03, 0x04}, primitives.ParseHash("0x04"))
	require.NoError(t, err)
	require.Equal(t, 1, provider.callCount)
}

func TestInferTokenPaths(t *testing.T) {
	a, _ := primitives.ParseAddress("0x00000000000000000000000000000000000001")
	word := make([]byte, 32)
	copy(word[12:], a[:])
	input := append([]byte{0, 0, 0, 0}, word...)

	paths, ok := inferTokenPaths(input)
	require.True(t, ok)
	require.Equal(t, []primitives.Address{a}, paths)
}

func TestAnalyzeTargetsIsAlwaysToRegardlessOfTokenPathCount(t *testing.T) {
	to, _ := primitives.ParseAddress("0x0000000000000000000000000000000000000e")
	provider := &fakeProvider{code: map[primitives.Address][]byte{to: {}}}
	tg := New(provider)

	tokenA, _ := primitives.ParseAddress("0x0000000000000000000000000000000000000a")
	tokenB, _ := primitives.ParseAddress("0x0000000000000000000000000000000000000b")
	wordA := make([]byte, 32)
	copy(wordA[12:], tokenA[:])
	wordB := make([]byte, 32)
	copy(wordB[12:], tokenB[:])
	sel := selectorBytes("swapExactTokensForTokens(uint256,uint256,address[],address,uint256)")
	input := append(append(append([]byte{}, sel...), wordA...), wordB...)

	paths, ok := inferTokenPaths(input)
	require.True(t, ok)
	require.Len(t, paths, 2, "test calldata must produce multiple inferred token paths")

	nature, err := tg.Analyze(context.Background(), to, true, input, primitives.ParseHash("0x07"))
	require.NoError(t, err)
	require.Equal(t, []primitives.Address{to}, nature.Targets)
}

func TestProcessStreamForwardsEveryAnalyzedTx(t *testing.T) {
	to, _ := primitives.ParseAddress("0x0000000000000000000000000000000000000d")
	provider := &fakeProvider{code: map[primitives.Address][]byte{to: {}}}
	tg := New(provider)

	rx := make(chan RawPendingTx, 2)
	out := make(chan TxNature, 2)

	rx <- RawPendingTx{TxHash: primitives.ParseHash("0x05"), To: to, HasTo: true, Input: []byte{0x01, 0x02, 0x03, 0x04}}
	rx <- RawPendingTx{TxHash: primitives.ParseHash("0x06"), To: to, HasTo: true, Input: []byte{0x05, 0x06, 0x07, 0x08}}
	close(rx)

	tg.ProcessStream(context.Background(), rx, out)
	close(out)

	var count int
	for range out {
		count++
	}
	require.Equal(t, 2, count)
}
