// Package facts derives token transfers, contract creations, execution
// paths, and simple aggregate stats from a built CallTree plus its receipt —
// the "Fact Extractors" component of spec §4.2. It is split into
// tokens.go/contracts.go/execution.go/stats.go mirroring the Rust original's
// analyzer/{token,contracts,execution,stats}.rs submodules (SPEC_FULL §9.1),
// which the distilled spec's single "Fact Extractors" line compresses.
package facts

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

// TokenType enumerates the transfer standards recognized from log shape.
type TokenType int

const (
	Unknown TokenType = iota
	ERC20
	ERC721
	ERC1155
)

func (t TokenType) String() string {
	switch t {
	case ERC20:
		return "ERC20"
	case ERC721:
		return "ERC721"
	case ERC1155:
		return "ERC1155"
	default:
		return "Unknown"
	}
}

// TokenTransfer is one decoded Transfer event, per spec §3.
type TokenTransfer struct {
	TokenType    TokenType
	TokenAddress primitives.Address
	From         primitives.Address
	To           primitives.Address
	Amount       primitives.Word
	TokenID      primitives.Word // nil unless TokenType == ERC721
	CallIndex    int
}

// ExtractTokenTransfers scans receipt.Logs in stable log_index order and
// decodes every log whose topic[0] matches the Transfer event signature,
// per spec §4.2: three topics with non-empty data is an ERC-20 transfer
// (amount in data); four topics is an ERC-721 transfer (token_id in
// topic[3], amount fixed at 1). Any other shape is skipped, not erred.
func ExtractTokenTransfers(receipt *rpc.Receipt) []TokenTransfer {
	var out []TokenTransfer
	for _, log := range receipt.Logs {
		if len(log.Topics) < 3 || log.Topics[0] != primitives.TransferEventTopic0 {
			continue
		}
		from := addressFromTopic(log.Topics[1])
		to := addressFromTopic(log.Topics[2])

		switch len(log.Topics) {
		case 4:
			tokenID := new(big.Int).SetBytes(log.Topics[3].Bytes())
			out = append(out, TokenTransfer{
				TokenType:    ERC721,
				TokenAddress: log.Address,
				From:         from,
				To:           to,
				Amount:       big.NewInt(1),
				TokenID:      tokenID,
				CallIndex:    int(log.Index),
			})
		case 3:
			if len(log.Data) == 0 {
				continue
			}
			amount := new(big.Int).SetBytes(log.Data)
			out = append(out, TokenTransfer{
				TokenType:    ERC20,
				TokenAddress: log.Address,
				From:         from,
				To:           to,
				Amount:       amount,
				CallIndex:    int(log.Index),
			})
		}
	}
	return out
}

func addressFromTopic(t primitives.Hash) primitives.Address {
	var addr primitives.Address
	copy(addr[:], t.Bytes()[12:])
	return addr
}
