// Package primitives holds the leaf value types shared by every stage of the
// pipeline: addresses, hashes, 256-bit words, hex codecs, keccak, and
// CREATE/CREATE2 address derivation. Nothing in this package depends on any
// other internal package.
package primitives

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Address is a 20-byte account or contract address. Comparisons and map keys
// use the byte representation, which sorts lexicographically.
type Address = common.Address

// Hash is a 32-byte value: a block hash, tx hash, or topic.
type Hash = common.Hash

// Word is an unsigned 256-bit integer. We keep it as *big.Int rather than a
// fixed-width array — the pipeline does arithmetic (reserves, amounts,
// slippage) far more often than it needs wraparound semantics.
type Word = *big.Int

// ZeroWord is the canonical zero value for Word comparisons.
func ZeroWord() Word { return new(big.Int) }

// ParseAddress lowercases and decodes a 0x-prefixed or bare hex string into
// an Address. An empty string yields the zero address with ok=false, which
// callers use to represent an absent `to` field (contract creation).
func ParseAddress(s string) (Address, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, false
	}
	return common.HexToAddress(strings.ToLower(s)), true
}

// ParseHash decodes a 0x-prefixed or bare hex string into a Hash.
func ParseHash(s string) Hash {
	return common.HexToHash(s)
}

// ParseWord parses a decimal (or 0x-hex) string into a Word. Decimal is the
// default per spec §4.1 ("value, gas, gas_used parsed as decimal
// big-integers"); a 0x prefix switches to hex, matching receipt fields like
// blockNumber.
func ParseWord(s string) (Word, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroWord(), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	w, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("primitives: invalid integer literal %q", s)
	}
	if w.Sign() < 0 {
		return nil, fmt.Errorf("primitives: negative word %q", s)
	}
	return w, nil
}

// ParseHexBytes decodes an optional-prefixed hex string ("0x..." or bare) to
// raw bytes. An empty string yields a nil (empty) slice, never an error.
func ParseHexBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// EncodeHex renders bytes as a lowercase 0x-prefixed hex string.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// Keccak256 computes the Keccak-256 digest used throughout the pipeline for
// topic matching, selector derivation, and group-key hashing. Delegates to
// the raw implementation in keccak.go rather than go-ethereum's crypto
// package, so the pipeline directly exercises golang.org/x/crypto/sha3
// (see keccak.go) instead of only picking it up transitively.
func Keccak256(data ...[]byte) Hash {
	return Hash(rawKeccak256(data...))
}

// CreateAddress derives the address of a contract deployed via CREATE:
// keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(sender Address, nonce uint64) Address {
	data, err := rlp.EncodeToBytes([]interface{}{sender, nonce})
	if err != nil {
		// rlp encoding of (Address, uint64) cannot fail.
		panic(fmt.Sprintf("primitives: rlp encode create address: %v", err))
	}
	h := Keccak256(data)
	var addr Address
	copy(addr[:], h[12:])
	return addr
}

// Create2Address derives the address of a contract deployed via CREATE2:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func Create2Address(sender Address, salt Hash, initCode []byte) Address {
	initCodeHash := Keccak256(initCode)
	h := Keccak256([]byte{0xff}, sender.Bytes(), salt.Bytes(), initCodeHash.Bytes())
	var addr Address
	copy(addr[:], h[12:])
	return addr
}

// Selector returns the first four bytes of input, or nil if input is shorter
// than four bytes (no function selector present — a bare value transfer).
func Selector(input []byte) []byte {
	if len(input) < 4 {
		return nil
	}
	return input[:4]
}

// SelectorHex renders a selector as the canonical "0x........" form used as
// map keys throughout the tagger and decoder tables.
func SelectorHex(input []byte) string {
	sel := Selector(input)
	if sel == nil {
		return ""
	}
	return EncodeHex(sel)
}
