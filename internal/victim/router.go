package victim

import (
	"context"
	"math/big"
	"sync"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

var (
	factorySelector        = selectorOf("factory()")
	getAmountsOutSelector4 = selectorOf("getAmountsOut(uint256,address[])")
)

func selectorOf(signature string) []byte {
	h := primitives.Keccak256([]byte(signature))
	return h[:4]
}

// RouterCache memoizes RouterInfo probes so repeated victim analyses
// against the same router skip the round trip (spec §4.10 step 2: "The
// RouterInfo{...} is cached"). No eviction policy is specified, and the
// address space a given deployment actually routes through is small, so a
// plain mutex-guarded map is enough — unlike the Tagger's bytecode cache,
// which bounds an address space large enough to need an LRU.
type RouterCache struct {
	mu     sync.Mutex
	byAddr map[primitives.Address]RouterInfo
}

// NewRouterCache builds an empty RouterCache.
func NewRouterCache() *RouterCache {
	return &RouterCache{byAddr: make(map[primitives.Address]RouterInfo)}
}

// IdentifyRouter probes candidate's ABI surface: a successful factory()
// call marks it UniswapV2-family; otherwise a successful getAmountsOut
// probe marks it UniswapV3-family (spec §4.10 step 2).
func (c *RouterCache) IdentifyRouter(ctx context.Context, provider rpc.Provider, candidate primitives.Address) RouterInfo {
	c.mu.Lock()
	if info, ok := c.byAddr[candidate]; ok {
		c.mu.Unlock()
		return info
	}
	c.mu.Unlock()

	info := RouterInfo{Address: candidate}
	if out, err := provider.Call(ctx, candidate, factorySelector); err == nil && len(out) >= 32 {
		info.HasFactory = true
		info.Name, info.HasName = "UniswapV2", true
		copy(info.FactoryAddress[:], out[len(out)-20:])
	} else if out, err := probeGetAmountsOut(ctx, provider, candidate); err == nil && len(out) > 0 {
		info.Name, info.HasName = "UniswapV3", true
	}

	c.mu.Lock()
	c.byAddr[candidate] = info
	c.mu.Unlock()
	return info
}

// probeGetAmountsOut calls candidate.getAmountsOut(1, [candidate, candidate]),
// the V3-router identification probe per spec §4.10 step 2. The amount and
// path are throwaway values — only whether the call decodes successfully
// (rather than reverting on a malformed address[] argument) matters here.
func probeGetAmountsOut(ctx context.Context, provider rpc.Provider, candidate primitives.Address) ([]byte, error) {
	packed, err := getAmountsOutArgs.Pack(big.NewInt(1), []primitives.Address{candidate, candidate})
	if err != nil {
		return nil, err
	}
	calldata := append(append([]byte{}, getAmountsOutSelector4...), packed...)
	return provider.Call(ctx, candidate, calldata)
}
