// Package tagger implements the TxNatureTagger (spec §4.4): static
// calldata+bytecode classification of pending transactions into a
// TxNature carrying tags, inferred token paths, and a decomposed
// confidence score.
package tagger

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

// Tag is one member of the fixed tag vocabulary shared with TxAggregator
// (spec §3's TxGroup allowed-tag set plus the wider classification
// vocabulary selectors map into).
type Tag string

const (
	TagSwapV2      Tag = "swap-v2"
	TagSwapV3      Tag = "swap-v3"
	TagRouterCall  Tag = "router-call"
	TagTokenMove   Tag = "token-move"
	TagFlashLoan   Tag = "flash-loan"
	TagLending     Tag = "lending"
	TagUnknownCall Tag = "unknown-call"

	// TagCrossChain and TagL2 are not derived by Analyze from calldata, and
	// nothing else in this module attaches them; they appear on an
	// AnnotatedTx only when its creator sets them, and AttackDetector's
	// extension triggers (spec §4.9) key off them.
	TagCrossChain Tag = "cross-chain"
	TagL2         Tag = "l2"
)

// ConfidenceComponents breaks TxNature.Confidence down into the three
// signals that feed it (spec §4.4).
type ConfidenceComponents struct {
	ABIMatch  float64
	Structure float64
	Path      float64
}

// TxNature is the Tagger's output for one pending transaction (spec §3).
type TxNature struct {
	TxHash                  primitives.Hash
	Tags                    []Tag
	TokenPaths              []primitives.Address
	Targets                 []primitives.Address
	Confidence              float64
	ConfidenceComponents    ConfidenceComponents
	ExtractedFallback       bool
	AmbiguousExecutionPath  bool
	ReachableViaDispatcher  bool
	PathInferenceFailed     bool
}

const bytecodeCacheCapacity = 1024

const delegateCallOpcode = 0xf4

// selectorEntry pairs a known function signature with the tags it implies.
type selectorEntry struct {
	signature string
	tags      []Tag
}

var knownSelectors = []selectorEntry{
	{"swapExactTokensForTokens(uint256,uint256,address[],address,uint256)", []Tag{TagSwapV2, TagRouterCall}},
	{"swapTokensForExactTokens(uint256,uint256,address[],address,uint256)", []Tag{TagSwapV2, TagRouterCall}},
	{"swapExactETHForTokens(uint256,address[],address,uint256)", []Tag{TagSwapV2, TagRouterCall}},
	{"swapExactTokensForETH(uint256,uint256,address[],address,uint256)", []Tag{TagSwapV2, TagRouterCall}},
	{"swapExactTokensForTokensSupportingFeeOnTransferTokens(uint256,uint256,address[],address,uint256)", []Tag{TagSwapV2, TagRouterCall}},
	{"exactInputSingle((address,address,uint24,address,uint256,uint256,uint256,uint160))", []Tag{TagSwapV3, TagRouterCall}},
	{"exactInput(bytes)", []Tag{TagSwapV3, TagRouterCall}},
	{"exactOutputSingle((address,address,uint24,address,uint256,uint256,uint256,uint160))", []Tag{TagSwapV3, TagRouterCall}},
	{"flashLoan(address,address[],uint256[],bytes)", []Tag{TagFlashLoan}},
	{"flashLoanSimple(address,address,uint256,bytes,uint16)", []Tag{TagFlashLoan}},
	{"transfer(address,uint256)", []Tag{TagTokenMove}},
	{"transferFrom(address,address,uint256)", []Tag{TagTokenMove}},
	{"liquidationCall(address,address,address,uint256,bool)", []Tag{TagLending}},
}

var selectorTable = buildSelectorTable()

func buildSelectorTable() map[[4]byte][]Tag {
	out := make(map[[4]byte][]Tag, len(knownSelectors))
	for _, e := range knownSelectors {
		h := primitives.Keccak256([]byte(e.signature))
		var sel [4]byte
		copy(sel[:], h[:4])
		out[sel] = e.tags
	}
	return out
}

// Tagger holds the shared bounded bytecode cache (spec §4.4: "bounded LRU
// cache (cap 1024)"). hashicorp/golang-lru/v2 is used directly here —
// unlike the Memory Layer's general-purpose cache, this one needs no
// per-entry TTL or eviction/expiration accounting, only plain bounded LRU.
type Tagger struct {
	provider rpc.Provider
	codeLRU  *lru.Cache[primitives.Address, []byte]
	mu       sync.Mutex
}

// New builds a Tagger backed by provider for bytecode fetches.
func New(provider rpc.Provider) *Tagger {
	cache, err := lru.New[primitives.Address, []byte](bytecodeCacheCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which bytecodeCacheCapacity never is.
		panic(err)
	}
	return &Tagger{provider: provider, codeLRU: cache}
}

// Analyze implements spec §4.4's four-step algorithm.
func (t *Tagger) Analyze(ctx context.Context, to primitives.Address, hasTo bool, input []byte, txHash primitives.Hash) (TxNature, error) {
	nature := TxNature{TxHash: txHash}

	// Step 1: selector lookup.
	sel := primitives.Selector(input)
	abiMatch := 0.1
	if sel != nil {
		var key [4]byte
		copy(key[:], sel)
		if tags, ok := selectorTable[key]; ok {
			abiMatch = 0.9
			nature.Tags = append(nature.Tags, tags...)
			nature.ReachableViaDispatcher = true
		}
	}
	if len(nature.Tags) == 0 {
		nature.Tags = []Tag{TagUnknownCall}
	}

	// Step 2: bytecode structure probe.
	structure := 0.5
	if hasTo {
		code, err := t.code(ctx, to)
		if err != nil {
			return TxNature{}, err
		}
		if containsByte(code, delegateCallOpcode) {
			structure = 0.7
		}
	}

	// Step 3: token path inference from the calldata tail.
	paths, ok := inferTokenPaths(input)
	path := 0.0
	if ok {
		nature.ExtractedFallback = true
		nature.TokenPaths = paths
		path = 0.5
	} else {
		nature.PathInferenceFailed = true
	}
	if hasTo {
		nature.Targets = []primitives.Address{to}
	}

	nature.ConfidenceComponents = ConfidenceComponents{ABIMatch: abiMatch, Structure: structure, Path: path}
	nature.Confidence = (abiMatch + structure + path) / 3.0
	return nature, nil
}

// code fetches and caches to's deployed bytecode. Concurrent misses may
// fetch independently; the last writer into the LRU wins, and every
// subsequent Get returns that value (spec §4.4 cache semantics).
func (t *Tagger) code(ctx context.Context, addr primitives.Address) ([]byte, error) {
	if code, ok := t.codeLRU.Get(addr); ok {
		return code, nil
	}
	code, err := t.provider.GetCode(ctx, addr)
	if err != nil {
		return nil, err
	}
	t.codeLRU.Add(addr, code)
	return code, nil
}

func containsByte(code []byte, b byte) bool {
	for _, c := range code {
		if c == b {
			return true
		}
	}
	return false
}

// inferTokenPaths chunks the tail of calldata (everything past the 4-byte
// selector) into 32-byte words and keeps the non-zero low-20-byte
// addresses in order, per spec §4.4 step 3.
func inferTokenPaths(input []byte) ([]primitives.Address, bool) {
	if len(input) <= 4 {
		return nil, false
	}
	tail := input[4:]
	var out []primitives.Address
	for i := 0; i+32 <= len(tail); i += 32 {
		word := tail[i : i+32]
		var addr primitives.Address
		copy(addr[:], word[12:32])
		if addr != (primitives.Address{}) {
			out = append(out, addr)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func sortedTags(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	sort.Strings(out)
	return out
}
