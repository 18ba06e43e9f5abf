package calltree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTrace() RawTrace {
	return RawTrace{
		From: "0x0000000000000000000000000000000000000a", To: "0x0000000000000000000000000000000000000b",
		Value: "0", Gas: "100000", GasUsed: "21000", CallType: "CALL",
		Calls: []RawTrace{
			{
				From: "0x0000000000000000000000000000000000000b", To: "0x0000000000000000000000000000000000000c",
				Value: "0", Gas: "50000", GasUsed: "10000", CallType: "STATICCALL",
			},
			{
				From: "0x0000000000000000000000000000000000000b", To: "0x0000000000000000000000000000000000000d",
				Value: "0", Gas: "50000", GasUsed: "5000", CallType: "BOGUS",
			},
		},
	}
}

func TestBuildTreeIndicesAndDepth(t *testing.T) {
	tree, err := BuildTree(sampleTrace())
	require.NoError(t, err)
	require.Equal(t, 0, tree.Root.Index)
	require.Equal(t, 0, tree.Root.Depth)
	require.Equal(t, 3, tree.TotalCalls())
	require.Equal(t, 1, tree.MaxDepth())

	var seen []int
	tree.Preorder(func(n *CallNode) { seen = append(seen, n.Index) })
	require.Equal(t, []int{0, 1, 2}, seen)

	for _, n := range seen {
		node := tree.FindByIndex(n)
		require.Equal(t, tree.Root.Depth+boolToInt(node.Index != 0), node.Depth)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestUnknownCallTypeNeverErrors(t *testing.T) {
	tree, err := BuildTree(sampleTrace())
	require.NoError(t, err)
	node := tree.FindByIndex(2)
	require.Equal(t, Unknown, node.CallType)
}

func TestPathToNodeStartsAtRootEndsAtTarget(t *testing.T) {
	tree, err := BuildTree(sampleTrace())
	require.NoError(t, err)
	path := tree.PathToNode(1)
	require.Equal(t, []int{0, 1}, path)
	require.Nil(t, tree.PathToNode(99))
}

func TestFailedCalls(t *testing.T) {
	trace := sampleTrace()
	trace.Calls[0].Error = "execution reverted"
	tree, err := BuildTree(trace)
	require.NoError(t, err)
	failed := tree.FailedCalls()
	require.Len(t, failed, 1)
	require.Equal(t, 1, failed[0].Index)
}

func TestVisitedAddresses(t *testing.T) {
	tree, err := BuildTree(sampleTrace())
	require.NoError(t, err)
	addrs := tree.VisitedAddresses()
	require.Len(t, addrs, 4) // a, b, c, d
}
