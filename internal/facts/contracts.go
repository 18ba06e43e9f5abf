package facts

import (
	"bytes"
	"context"

	"github.com/angu-team/ethernity-deeptrace/internal/calltree"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

// ContractType classifies a newly deployed contract by selector heuristics
// over its deployed bytecode (spec §4.2).
type ContractType int

const (
	UnknownContract ContractType = iota
	ERC20Token
	ERC721Token
	ERC1155Token
	DexPool
	LendingPool
	Proxy
	Factory
)

func (c ContractType) String() string {
	switch c {
	case ERC20Token:
		return "ERC20Token"
	case ERC721Token:
		return "ERC721Token"
	case ERC1155Token:
		return "ERC1155Token"
	case DexPool:
		return "DexPool"
	case LendingPool:
		return "LendingPool"
	case Proxy:
		return "Proxy"
	case Factory:
		return "Factory"
	default:
		return "Unknown"
	}
}

// ContractCreation records one CREATE/CREATE2 deployment found in a tree,
// per spec §3.
type ContractCreation struct {
	Creator         primitives.Address
	ContractAddress primitives.Address
	InitCode        []byte
	ContractType    ContractType
	CallIndex       int
}

// selector4 byte-scans code for PUSH4 (0x63) immediately followed by four
// data bytes, per spec §4.2, and returns the set of 4-byte selectors found.
func selector4(code []byte) map[[4]byte]struct{} {
	out := make(map[[4]byte]struct{})
	for i := 0; i+4 < len(code); i++ {
		if code[i] != 0x63 {
			continue
		}
		var sel [4]byte
		copy(sel[:], code[i+1:i+5])
		out[sel] = struct{}{}
		// PUSH4's four immediate bytes are not themselves opcodes; a real
		// disassembler would skip past them, but scanning byte-by-byte for
		// the 0x63 marker (rather than a full instruction decode) matches
		// the heuristic nature of spec §4.2's classifier and tolerates
		// data that happens to look like PUSH4 inside another push's
		// immediate — a deliberate false-positive-tolerant simplification.
	}
	return out
}

func hasSelectors(found map[[4]byte]struct{}, sigs ...string) int {
	count := 0
	for _, sig := range sigs {
		sel := selectorOf(sig)
		if _, ok := found[sel]; ok {
			count++
		}
	}
	return count
}

func selectorOf(signature string) [4]byte {
	h := primitives.Keccak256([]byte(signature))
	var sel [4]byte
	copy(sel[:], h[:4])
	return sel
}

var erc20Signatures = []string{"balanceOf(address)", "transfer(address,uint256)", "totalSupply()"}
var erc721Signatures = []string{"balanceOf(address)", "ownerOf(uint256)", "safeTransferFrom(address,address,uint256)"}

// ClassifyBytecode applies the fixed classification order of spec §4.2:
// (1) >=2 ERC-20 selectors, (2) else >=2 ERC-721 selectors, (3) else a known
// minimal-proxy byte pattern, (4) else more than one CREATE/CREATE2 opcode,
// (5) else Unknown.
func ClassifyBytecode(code []byte) ContractType {
	selectors := selector4(code)

	if hasSelectors(selectors, erc20Signatures...) >= 2 {
		return ERC20Token
	}
	if hasSelectors(selectors, erc721Signatures...) >= 2 {
		return ERC721Token
	}
	if bytes.Contains(code, mustHex("363d3d37")) || bytes.Contains(code, mustHex("5c602060")) {
		return Proxy
	}
	if countCreateOpcodes(code) > 1 {
		return Factory
	}
	return UnknownContract
}

func countCreateOpcodes(code []byte) int {
	n := 0
	for _, b := range code {
		if b == 0xf0 || b == 0xf5 {
			n++
		}
	}
	return n
}

func mustHex(s string) []byte {
	b, err := primitives.ParseHexBytes(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ExtractContractCreations walks tree breadth-first (per spec §4.2, "BFS
// over the tree"), fetching and classifying the deployed bytecode of every
// CREATE/CREATE2 node with a resolved `to`. call_index is assigned as the
// node's own pre-order index, matching every other fact extractor.
func ExtractContractCreations(ctx context.Context, tree *calltree.CallTree, provider rpc.Provider) ([]ContractCreation, error) {
	if tree.Root == nil {
		return nil, nil
	}
	var out []ContractCreation
	queue := []*calltree.CallNode{tree.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		queue = append(queue, n.Children...)

		if (n.CallType != calltree.Create && n.CallType != calltree.Create2) || !n.HasTo {
			continue
		}
		code, err := provider.GetCode(ctx, n.To)
		if err != nil {
			return nil, err
		}
		out = append(out, ContractCreation{
			Creator:         n.From,
			ContractAddress: n.To,
			InitCode:        n.Input,
			ContractType:    ClassifyBytecode(code),
			CallIndex:       n.Index,
		})
	}
	return out, nil
}
