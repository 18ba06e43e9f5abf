package patterns

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/facts"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

func addr(b byte) primitives.Address {
	var a primitives.Address
	a[len(a)-1] = b
	return a
}

func TestErc20DetectorFlagsErc20Creation(t *testing.T) {
	in := Input{ContractCreations: []facts.ContractCreation{
		{Creator: addr(1), ContractAddress: addr(2), ContractType: facts.ERC20Token},
		{Creator: addr(1), ContractAddress: addr(3), ContractType: facts.Proxy},
	}}
	out := Erc20Detector{}.Detect(in)
	require.Len(t, out, 1)
	require.Equal(t, PatternErc20Creation, out[0].Type)
}

func TestDexDetectorRequiresTwoDistinctTokensWithBidirectionalBonus(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(1)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(1)},
		{TokenAddress: addr(2), From: addr(10), To: addr(11), Amount: big.NewInt(1)},
	}}
	out := DexDetector{}.Detect(in)
	require.Len(t, out, 1)
	require.InDelta(t, 0.8, out[0].Confidence, 1e-9)
}

func TestDexDetectorSingleTokenNeverMatches(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(1)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(1)},
	}}
	require.Empty(t, DexDetector{}.Detect(in))
}

func TestLendingDetectorFlagsReversedPairWithinRatioBand(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(1200)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(1000)},
	}}
	out := LendingDetector{}.Detect(in)
	require.Len(t, out, 1)
	require.InDelta(t, 0.2, out[0].Data["interest_ratio"].(float64), 1e-9)
}

func TestFlashLoanDetectorFlagsRoundTripWithinFeeBand(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(1_000_000)},
		{TokenAddress: addr(2), From: addr(11), To: addr(12), Amount: big.NewInt(1)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(1_005_000)},
	}}
	out := FlashLoanDetector{}.Detect(in)
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].Data["intermediate_operations"])
}

func TestFlashLoanDetectorRejectsFeeOutsideBand(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(1_000_000)},
		{TokenAddress: addr(2), From: addr(11), To: addr(12), Amount: big.NewInt(1)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(2_000_000)},
	}}
	require.Empty(t, FlashLoanDetector{}.Detect(in))
}

func TestMevDetectorFlagsPositiveNetFlowAboveThreshold(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(20), Amount: big.NewInt(5000)},
		{TokenAddress: addr(1), From: addr(30), To: addr(20), Amount: big.NewInt(5000)},
		{TokenAddress: addr(1), From: addr(20), To: addr(40), Amount: big.NewInt(1)},
		{TokenAddress: addr(1), From: addr(20), To: addr(41), Amount: big.NewInt(1)},
	}}
	out := MevDetector{}.Detect(in)
	require.Len(t, out, 1)
	require.Equal(t, addr(20), out[0].Addresses[1])
}

func TestRugPullDetectorConfidenceEscalatesPastThreeTransfers(t *testing.T) {
	creations := []facts.ContractCreation{{Creator: addr(99), ContractAddress: addr(1), ContractType: facts.ERC20Token}}
	transfers := make([]facts.TokenTransfer, 0, 4)
	for i := 0; i < 4; i++ {
		transfers = append(transfers, facts.TokenTransfer{TokenAddress: addr(1), From: addr(byte(10 + i)), To: addr(99), Amount: big.NewInt(2_000_000)})
	}
	out := RugPullDetector{}.Detect(Input{ContractCreations: creations, TokenTransfers: transfers})
	require.Len(t, out, 1)
	require.InDelta(t, 0.9, out[0].Confidence, 1e-9)
}

func TestGovernanceDetectorMatchesKnownSelector(t *testing.T) {
	tree, err := calltree.BuildTree(calltree.RawTrace{From: "0x" + hexPad(1), To: "0x" + hexPad(2), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0xda35c66401"})
	require.NoError(t, err)
	out := GovernanceDetector{}.Detect(Input{Tree: tree})
	require.Len(t, out, 1)
	require.Equal(t, "da35c664", out[0].Data["function_signature"])
}

func hexPad(b byte) string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 40)
	for i := range buf {
		buf[i] = '0'
	}
	buf[38] = hexdigits[b>>4]
	buf[39] = hexdigits[b&0xf]
	return string(buf)
}
