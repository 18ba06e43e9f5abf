// Package snapshot implements the StateSnapshotRepository (spec §4.7): a
// block-anchored, reorg-safe on-chain state snapshotter backed by an
// embedded pebble key-value store.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// Profile selects how much on-chain state a snapshot captures.
type Profile int

const (
	Basic Profile = iota
	Extended
	Deep
)

func (p Profile) String() string {
	switch p {
	case Extended:
		return "extended"
	case Deep:
		return "deep"
	default:
		return "basic"
	}
}

// BasicState is the required V2-style reserve pair every profile carries.
type BasicState struct {
	ReserveIn  primitives.Word
	ReserveOut primitives.Word
}

// ExtendedState is the optional V3-style forward-compatible expansion.
type ExtendedState struct {
	SqrtPriceX96 primitives.Word
	Liquidity    primitives.Word
	HasData      bool
}

// State is the snapshot payload: Basic is required, Extended is an
// optional forward-compatible addition (spec §4.7).
type State struct {
	Basic    BasicState
	Extended ExtendedState
}

// Record is the self-describing persisted payload for one (address,
// block, profile) key, per spec §4.7.
type Record struct {
	Snapshot      State
	BlockNumber   uint64
	BlockHash     primitives.Hash
	Timestamp     time.Time
	Profile       Profile
	GroupOrigin   []primitives.Hash
	VolatilityFlag bool
}

// Key renders the deterministic string key scheme of spec §4.7:
// lowercase_hex(address):block_number:profile_name.
func Key(addr primitives.Address, blockNumber uint64, profile Profile) string {
	return fmt.Sprintf("%s:%d:%s", strings.ToLower(addr.Hex()), blockNumber, profile)
}
