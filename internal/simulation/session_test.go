package simulation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeReceiptParsesHexFields(t *testing.T) {
	raw := &rawReceipt{
		BlockNumber: "0x12d687",
		From:        "0x0000000000000000000000000000000000000a",
		To:          "0x0000000000000000000000000000000000000b",
		GasUsed:     "0x5208",
		Status:      "0x1",
		Logs: []rawLog{
			{
				Address: "0x0000000000000000000000000000000000000c",
				Topics: []string{
					"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
					"0x000000000000000000000000000000000000000000000000000000000000000a",
					"0x000000000000000000000000000000000000000000000000000000000000000b",
				},
				Data:     "0x00000000000000000000000000000000000000000000000000000000000003e8",
				LogIndex: "0x0",
			},
		},
	}

	receipt, err := decodeReceipt(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(0x12d687), receipt.BlockNumber)
	require.True(t, receipt.HasTo)
	require.True(t, receipt.Status)
	require.Len(t, receipt.Logs, 1)
	require.Equal(t, uint(0), receipt.Logs[0].Index)
}

func TestDecodeReceiptNoToIsContractCreation(t *testing.T) {
	raw := &rawReceipt{
		BlockNumber: "0x1",
		From:        "0x0000000000000000000000000000000000000a",
		To:          "",
		GasUsed:     "0x1",
		Status:      "0x1",
	}
	receipt, err := decodeReceipt(raw)
	require.NoError(t, err)
	require.False(t, receipt.HasTo)
}

func TestHexBigZeroValue(t *testing.T) {
	require.Equal(t, "0x0", hexBig(nil))
}
