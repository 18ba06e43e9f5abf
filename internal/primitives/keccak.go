package primitives

import (
	"golang.org/x/crypto/sha3"
)

// rawKeccak256 computes Keccak-256 directly against golang.org/x/crypto/sha3
// (legacy, pre-NIST-finalization Keccak, matching Ethereum's digest — NOT the
// same as the final SHA3-256 standard). go-ethereum's own crypto package
// wraps the same primitive; we call it directly here since Primitives is
// named in spec §2 as owning "keccak" as one of its leaf responsibilities.
func rawKeccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// TransferEventTopic0 is keccak256("Transfer(address,address,uint256)"),
// used by fact extractors to recognize ERC-20/721 Transfer logs (spec §6).
var TransferEventTopic0 = Keccak256([]byte("Transfer(address,address,uint256)"))

// SwapEventTopic0V2V3 is the mainline Uniswap V2/V3-style Swap event topic,
// bit-exact per spec §6: 0xd78ad95f...
var SwapEventTopic0V2V3 = ParseHash("0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822")

// SwapEventTopic0V4 is the Uniswap V4 Swap event topic, bit-exact per spec §6.
var SwapEventTopic0V4 = ParseHash("0xfbc3feb9544dba19141913965b8f867f5d0d220b898fc1b39e7d7111686a8f51")
