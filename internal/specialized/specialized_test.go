package specialized

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

func hexAddr(b byte) string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 40)
	for i := range buf {
		buf[i] = '0'
	}
	buf[38] = hexdigits[b>>4]
	buf[39] = hexdigits[b&0xf]
	return "0x" + string(buf)
}

func TestSandwichAttackDetectorFlagsReversedTripleWithProfit(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(100)},
		{TokenAddress: addr(1), From: addr(20), To: addr(21), Amount: big.NewInt(50)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(150)},
	}}
	out := SandwichAttackDetector{}.DetectEvents(in)
	require.Len(t, out, 1)
	require.Equal(t, "sandwich_attack", out[0].EventType)
	require.Equal(t, "50", out[0].Data["profit"])
	require.Equal(t, High, out[0].Severity)
}

func TestSandwichAttackDetectorRejectsNonPositiveProfit(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(150)},
		{TokenAddress: addr(1), From: addr(20), To: addr(21), Amount: big.NewInt(50)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(100)},
	}}
	require.Empty(t, SandwichAttackDetector{}.DetectEvents(in))
}

func TestFrontrunningDetectorFlagsSameSelectorDifferentCaller(t *testing.T) {
	tree, err := calltree.BuildTree(calltree.RawTrace{
		From: hexAddr(1), To: hexAddr(99), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0xaabbccdd",
		Calls: []calltree.RawTrace{
			{From: hexAddr(2), To: hexAddr(99), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0xaabbccdd01"},
		},
	})
	require.NoError(t, err)

	out := FrontrunningDetector{}.DetectEvents(Input{Tree: tree})
	require.Len(t, out, 1)
	require.Equal(t, "frontrunning", out[0].EventType)
	require.Equal(t, Medium, out[0].Severity)
}

func TestFrontrunningDetectorIgnoresDifferentSelectors(t *testing.T) {
	tree, err := calltree.BuildTree(calltree.RawTrace{
		From: hexAddr(1), To: hexAddr(99), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0xaabbccdd",
		Calls: []calltree.RawTrace{
			{From: hexAddr(2), To: hexAddr(99), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0x11223344"},
		},
	})
	require.NoError(t, err)
	require.Empty(t, FrontrunningDetector{}.DetectEvents(Input{Tree: tree}))
}

// TestReentrancyDetectorFlagsAlternatingCallbackScenario reproduces a
// CallTree with nodes A->B, B->A, A->B, B->A at increasing depths and
// asserts exactly one event, severity Critical, confidence 0.8.
func TestReentrancyDetectorFlagsAlternatingCallbackScenario(t *testing.T) {
	tree, err := calltree.BuildTree(calltree.RawTrace{
		From: hexAddr(0xA), To: hexAddr(0xB), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0x",
		Calls: []calltree.RawTrace{
			{From: hexAddr(0xB), To: hexAddr(0xA), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0x",
				Calls: []calltree.RawTrace{
					{From: hexAddr(0xA), To: hexAddr(0xB), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0x",
						Calls: []calltree.RawTrace{
							{From: hexAddr(0xB), To: hexAddr(0xA), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0x"},
						}},
				}},
		},
	})
	require.NoError(t, err)

	out := ReentrancyDetector{}.DetectEvents(Input{Tree: tree})
	require.Len(t, out, 1)
	require.Equal(t, "reentrancy", out[0].EventType)
	require.Equal(t, Critical, out[0].Severity)
	require.InDelta(t, 0.8, out[0].Confidence, 1e-9)
}

func TestReentrancyDetectorIgnoresSingleCall(t *testing.T) {
	tree, err := calltree.BuildTree(calltree.RawTrace{
		From: hexAddr(0xA), To: hexAddr(0xB), Value: "0x0", Gas: "0x0", GasUsed: "0x0", Input: "0x",
	})
	require.NoError(t, err)
	require.Empty(t, ReentrancyDetector{}.DetectEvents(Input{Tree: tree}))
}

func TestPriceManipulationDetectorFlagsLargeTransferWithRelatedTrades(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(2_000_000)},
		{TokenAddress: addr(1), From: addr(20), To: addr(10), Amount: big.NewInt(100)},
		{TokenAddress: addr(1), From: addr(11), To: addr(30), Amount: big.NewInt(100)},
	}}
	out := PriceManipulationDetector{}.DetectEvents(in)
	require.Len(t, out, 1)
	require.Equal(t, 2, out[0].Data["relatedTrades"])
	require.Equal(t, High, out[0].Severity)
}

func TestPriceManipulationDetectorIgnoresSmallTransfer(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(100)},
		{TokenAddress: addr(1), From: addr(20), To: addr(10), Amount: big.NewInt(100)},
		{TokenAddress: addr(1), From: addr(11), To: addr(30), Amount: big.NewInt(100)},
	}}
	require.Empty(t, PriceManipulationDetector{}.DetectEvents(in))
}

func TestSuspiciousLiquidationDetectorFlagsRouteBackToSender(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(200_000)},
		{TokenAddress: addr(1), From: addr(20), To: addr(21), Amount: big.NewInt(1)},
		{TokenAddress: addr(1), From: addr(21), To: addr(10), Amount: big.NewInt(1)},
	}}
	out := SuspiciousLiquidationDetector{}.DetectEvents(in)
	require.Len(t, out, 1)
	require.Equal(t, "suspicious_liquidation", out[0].EventType)
	require.Equal(t, High, out[0].Severity)
}

func TestSuspiciousLiquidationDetectorIgnoresBelowThreshold(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(100)},
		{TokenAddress: addr(1), From: addr(20), To: addr(21), Amount: big.NewInt(1)},
		{TokenAddress: addr(1), From: addr(21), To: addr(10), Amount: big.NewInt(1)},
	}}
	require.Empty(t, SuspiciousLiquidationDetector{}.DetectEvents(in))
}

func TestDetectAllConcatenatesEveryDetector(t *testing.T) {
	in := Input{TokenTransfers: []facts.TokenTransfer{
		{TokenAddress: addr(1), From: addr(10), To: addr(11), Amount: big.NewInt(100)},
		{TokenAddress: addr(1), From: addr(20), To: addr(21), Amount: big.NewInt(50)},
		{TokenAddress: addr(1), From: addr(11), To: addr(10), Amount: big.NewInt(150)},
	}}
	out := DetectAll(in)
	require.NotEmpty(t, out)
}
