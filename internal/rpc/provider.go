// Package rpc defines the EVM node provider contract (spec §6). The concrete
// client — talking to a real JSON-RPC endpoint — is an external collaborator
// outside the scope of this module (spec §1); only the interface it must
// satisfy is specified here, so the core analytical engine can be exercised
// against a fake in tests without a live node.
package rpc

import (
	"context"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// Receipt is the decoded shape of an eth_getTransactionReceipt response used
// by fact extraction (spec §6).
type Receipt struct {
	BlockNumber uint64
	From        primitives.Address
	To          primitives.Address
	HasTo       bool
	GasUsed     primitives.Word
	Status      bool
	Logs        []Log
}

// Log is one entry of Receipt.Logs.
type Log struct {
	Address primitives.Address
	Topics  []primitives.Hash
	Data    []byte
	Index   uint // stable log_index order within the receipt
}

// Provider is the EVM node contract every pipeline stage that needs chain
// state depends on. Implementations must be safe for concurrent use (spec
// §5: "RPC client: may be shared across tasks; requests are independent").
type Provider interface {
	// GetTransactionTrace returns the raw nested call trace JSON for txHash.
	GetTransactionTrace(ctx context.Context, txHash primitives.Hash) ([]byte, error)
	// GetTransactionReceipt returns the decoded receipt for txHash.
	GetTransactionReceipt(ctx context.Context, txHash primitives.Hash) (*Receipt, error)
	// GetCode returns the deployed bytecode at addr.
	GetCode(ctx context.Context, addr primitives.Address) ([]byte, error)
	// Call performs an eth_call against to with the given calldata.
	Call(ctx context.Context, to primitives.Address, data []byte) ([]byte, error)
	// GetBlockNumber returns the current chain head height.
	GetBlockNumber(ctx context.Context) (uint64, error)
	// GetBlockHash returns the canonical hash of the block at number.
	GetBlockHash(ctx context.Context, number uint64) (primitives.Hash, error)
}
