package victim

import (
	"context"
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

var (
	getPairSelector      = selectorOf("getPair(address,address)")
	getReservesSelector  = selectorOf("getReserves()")
	token0Selector       = selectorOf("token0()")
	getAmountsOutArgs    = newArguments("uint256", "address[]")
	uint256ArrayArgs     = newArguments("uint256[]")
)

// resolvePairReserves looks up tokenA/tokenB's pair via the router's
// factory, reads its reserves, and aligns them into (reserveIn, reserveOut)
// by comparing token0() against tokenA (spec §4.10 step 5).
func resolvePairReserves(ctx context.Context, provider rpc.Provider, info RouterInfo, tokenA, tokenB primitives.Address) (PairState, error) {
	if !info.HasFactory {
		return PairState{}, xerrors.Validationf(nil, "victim: router %s has no factory", info.Address.Hex())
	}

	calldata := append(append([]byte{}, getPairSelector...), encodeAddress(tokenA)...)
	calldata = append(calldata, encodeAddress(tokenB)...)
	out, err := provider.Call(ctx, info.FactoryAddress, calldata)
	if err != nil || len(out) < 32 {
		return PairState{}, xerrors.RPCf(err, "victim: factory.getPair")
	}
	var pair primitives.Address
	copy(pair[:], out[len(out)-20:])
	if pair == (primitives.Address{}) {
		return PairState{}, xerrors.NotFoundf(nil, "victim: no pair for token pair")
	}

	reservesOut, err := provider.Call(ctx, pair, getReservesSelector)
	if err != nil || len(reservesOut) < 64 {
		return PairState{}, xerrors.RPCf(err, "victim: pair.getReserves")
	}
	reserve0 := new(big.Int).SetBytes(reservesOut[0:32])
	reserve1 := new(big.Int).SetBytes(reservesOut[32:64])

	token0Out, err := provider.Call(ctx, pair, token0Selector)
	if err != nil || len(token0Out) < 32 {
		return PairState{}, xerrors.RPCf(err, "victim: pair.token0")
	}
	var token0 primitives.Address
	copy(token0[:], token0Out[len(token0Out)-20:])

	state := PairState{Token0: token0}
	if token0 == tokenA {
		state.ReserveIn, state.ReserveOut = reserve0, reserve1
	} else {
		state.ReserveIn, state.ReserveOut = reserve1, reserve0
	}
	return state, nil
}

// quoteAmountsOut calls the router's getAmountsOut(amountIn, path) and
// returns the decoded amounts array, per spec §4.10 step 4.
func quoteAmountsOut(ctx context.Context, provider rpc.Provider, router primitives.Address, amountIn *big.Int, path []primitives.Address) ([]*big.Int, error) {
	packed, err := getAmountsOutArgs.Pack(amountIn, path)
	if err != nil {
		return nil, xerrors.Decodef(err, "victim: pack getAmountsOut")
	}
	calldata := append(append([]byte{}, getAmountsOutSelector4...), packed...)
	out, err := provider.Call(ctx, router, calldata)
	if err != nil {
		return nil, xerrors.RPCf(err, "victim: getAmountsOut call")
	}
	values, err := uint256ArrayArgs.UnpackValues(out)
	if err != nil || len(values) == 0 {
		return nil, xerrors.Decodef(err, "victim: unpack getAmountsOut result")
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok {
		return nil, xerrors.Decodef(nil, "victim: getAmountsOut result not uint256[]")
	}
	return amounts, nil
}

func encodeAddress(a primitives.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], a[:])
	return out
}
