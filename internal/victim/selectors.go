package victim

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

// swapDecoder turns one function's calldata into the common SwapCall shape.
type swapDecoder func(calldata []byte) (SwapCall, error)

type selectorEntry struct {
	signature string
	decode    swapDecoder
}

// v2 argument shapes, shared across the ten V2-family signatures.
var (
	argsExactInWithDeadline  = newArguments("uint256", "uint256", "address[]", "address", "uint256")
	argsExactOutWithDeadline = newArguments("uint256", "uint256", "address[]", "address", "uint256")
	argsEthInExactOut        = newArguments("uint256", "address[]", "address", "uint256")
	argsExactInNoDeadline    = newArguments("uint256", "uint256", "address[]", "address")

	// V3Single's 7 fields are all fixed-width, so a lone static tuple
	// argument ABI-encodes identically to 7 flat top-level arguments —
	// decoded the same way, no nested-tuple handling needed.
	argsV3Single = newArguments("address", "address", "uint24", "address", "uint256", "uint256", "uint160")
)

func decodeExactInWithDeadline(fn string) swapDecoder {
	return func(calldata []byte) (SwapCall, error) {
		values, err := unpackValues(argsExactInWithDeadline, calldata)
		if err != nil {
			return SwapCall{}, err
		}
		return SwapCall{
			Function: fn, HasAmountIn: true,
			AmountIn: values[0].(*big.Int), AmountOutMin: values[1].(*big.Int), HasAmountOutMin: true,
			TokenPath: asAddressSlice(values[2]), To: values[3].(primitives.Address),
		}, nil
	}
}

func decodeExactOutWithDeadline(fn string) swapDecoder {
	return func(calldata []byte) (SwapCall, error) {
		values, err := unpackValues(argsExactOutWithDeadline, calldata)
		if err != nil {
			return SwapCall{}, err
		}
		return SwapCall{
			Function: fn, HasAmountIn: false,
			AmountInMax: values[1].(*big.Int), HasAmountInMax: true,
			TokenPath: asAddressSlice(values[2]), To: values[3].(primitives.Address),
		}, nil
	}
}

func decodeEthInExactTokens(fn string) swapDecoder {
	// swapExactETHForTokens(amountOutMin, path, to, deadline): amount_in
	// comes from tx.value, not calldata.
	return func(calldata []byte) (SwapCall, error) {
		values, err := unpackValues(argsEthInExactOut, calldata)
		if err != nil {
			return SwapCall{}, err
		}
		return SwapCall{
			Function: fn, HasAmountIn: false,
			AmountOutMin: values[0].(*big.Int), HasAmountOutMin: true,
			TokenPath: asAddressSlice(values[1]), To: values[2].(primitives.Address),
		}, nil
	}
}

func decodeEthForExactTokens(fn string) swapDecoder {
	// swapETHForExactTokens(amountOut, path, to, deadline): amount_in_max
	// is the transaction's msg.value, not calldata.
	return func(calldata []byte) (SwapCall, error) {
		values, err := unpackValues(argsEthInExactOut, calldata)
		if err != nil {
			return SwapCall{}, err
		}
		return SwapCall{
			Function: fn, HasAmountIn: false,
			TokenPath: asAddressSlice(values[1]), To: values[2].(primitives.Address),
		}, nil
	}
}

func decodeExactInNoDeadline(fn string) swapDecoder {
	return func(calldata []byte) (SwapCall, error) {
		values, err := unpackValues(argsExactInNoDeadline, calldata)
		if err != nil {
			return SwapCall{}, err
		}
		return SwapCall{
			Function: fn, HasAmountIn: true,
			AmountIn: values[0].(*big.Int), AmountOutMin: values[1].(*big.Int), HasAmountOutMin: true,
			TokenPath: asAddressSlice(values[2]), To: values[3].(primitives.Address),
		}, nil
	}
}

func decodeV3Single(fn string, exactIn bool) swapDecoder {
	return func(calldata []byte) (SwapCall, error) {
		values, err := unpackValues(argsV3Single, calldata)
		if err != nil {
			return SwapCall{}, err
		}
		tokenIn := values[0].(primitives.Address)
		tokenOut := values[1].(primitives.Address)
		recipient := values[3].(primitives.Address)
		amount := values[4].(*big.Int)
		amountThreshold := values[5].(*big.Int)

		call := SwapCall{
			Function:  fn,
			TokenPath: []primitives.Address{tokenIn, tokenOut},
			To:        recipient,
		}
		if exactIn {
			call.HasAmountIn = true
			call.AmountIn = amount
			call.HasAmountOutMin = true
			call.AmountOutMin = amountThreshold
		} else {
			call.HasAmountInMax = true
			call.AmountInMax = amountThreshold
		}
		return call, nil
	}
}

// decodeV3Path manually decodes exactInput/exactOutput's lone
// ("bytes path, address recipient, uint256 amount, uint256
// amountThreshold") tuple argument. The tuple contains a dynamic field, so
// unlike V3Single it cannot be flattened into top-level args: the outer
// calldata holds one 32-byte offset to the tuple's own head+tail region,
// whose layout (offset-to-bytes, recipient, amount, amountThreshold,
// then the bytes length+data) is decoded directly off wordAt/bytesAt
// rather than through reflection.
func decodeV3Path(fn string, exactIn bool) swapDecoder {
	return func(calldata []byte) (SwapCall, error) {
		body := calldata[4:]
		if len(body) < 32 {
			return SwapCall{}, xerrors.Decodef(nil, "victim: exactInput/exactOutput calldata too short")
		}
		tupleOffset, err := wordAt(body, 0)
		if err != nil {
			return SwapCall{}, err
		}
		tuple := body[tupleOffset:]
		if len(tuple) < 4*32 {
			return SwapCall{}, xerrors.Decodef(nil, "victim: exactInput/exactOutput tuple too short")
		}

		pathOffset, err := wordAt(tuple, 0)
		if err != nil {
			return SwapCall{}, err
		}
		var recipient primitives.Address
		copy(recipient[:], tuple[1*32:2*32][12:])
		amount := new(big.Int).SetBytes(tuple[2*32 : 3*32])
		amountThreshold := new(big.Int).SetBytes(tuple[3*32 : 4*32])

		path, err := bytesAt(tuple, pathOffset)
		if err != nil {
			return SwapCall{}, err
		}

		call := SwapCall{
			Function:  fn,
			TokenPath: decodeV3PathTokens(path),
			To:        recipient,
		}
		if exactIn {
			call.HasAmountIn = true
			call.AmountIn = amount
			call.HasAmountOutMin = true
			call.AmountOutMin = amountThreshold
		} else {
			call.HasAmountInMax = true
			call.AmountInMax = amountThreshold
		}
		return call, nil
	}
}

func wordAt(data []byte, offset int) (int, error) {
	if offset < 0 || offset+32 > len(data) {
		return 0, xerrors.Decodef(nil, "victim: abi word offset %d out of range", offset)
	}
	w := new(big.Int).SetBytes(data[offset : offset+32])
	if !w.IsInt64() {
		return 0, xerrors.Decodef(nil, "victim: abi offset overflows int")
	}
	return int(w.Int64()), nil
}

func bytesAt(data []byte, offset int) ([]byte, error) {
	length, err := wordAt(data, offset)
	if err != nil {
		return nil, err
	}
	start := offset + 32
	if start+length > len(data) {
		return nil, xerrors.Decodef(nil, "victim: abi bytes out of range")
	}
	return data[start : start+length], nil
}

// decodeV3PathTokens extracts the token addresses from a V3 encoded path:
// token(20) fee(3) token(20) fee(3) ... token(20), taking only the leading
// and trailing hop since the Victim Analyzer only needs route endpoints.
func decodeV3PathTokens(path []byte) []primitives.Address {
	if len(path) < 20 {
		return nil
	}
	var first primitives.Address
	copy(first[:], path[0:20])
	if len(path) <= 20 {
		return []primitives.Address{first}
	}
	var last primitives.Address
	copy(last[:], path[len(path)-20:])
	return []primitives.Address{first, last}
}

var selectorTable = buildSelectorTable()

func buildSelectorTable() map[[4]byte]swapDecoder {
	entries := []selectorEntry{
		{"swapExactTokensForTokens(uint256,uint256,address[],address,uint256)", decodeExactInWithDeadline("swapExactTokensForTokens")},
		{"swapTokensForExactTokens(uint256,uint256,address[],address,uint256)", decodeExactOutWithDeadline("swapTokensForExactTokens")},
		{"swapExactETHForTokens(uint256,address[],address,uint256)", decodeEthInExactTokens("swapExactETHForTokens")},
		{"swapTokensForExactETH(uint256,uint256,address[],address,uint256)", decodeExactOutWithDeadline("swapTokensForExactETH")},
		{"swapExactTokensForETH(uint256,uint256,address[],address,uint256)", decodeExactInWithDeadline("swapExactTokensForETH")},
		{"swapETHForExactTokens(uint256,address[],address,uint256)", decodeEthForExactTokens("swapETHForExactTokens")},
		{"swapExactTokensForTokensSupportingFeeOnTransferTokens(uint256,uint256,address[],address,uint256)", decodeExactInWithDeadline("swapExactTokensForTokensSupportingFeeOnTransferTokens")},
		{"swapExactETHForTokensSupportingFeeOnTransferTokens(uint256,address[],address,uint256)", decodeEthInExactTokens("swapExactETHForTokensSupportingFeeOnTransferTokens")},
		{"swapExactTokensForETHSupportingFeeOnTransferTokens(uint256,uint256,address[],address,uint256)", decodeExactInWithDeadline("swapExactTokensForETHSupportingFeeOnTransferTokens")},
		{"swapExactTokensForTokens(uint256,uint256,address[],address)", decodeExactInNoDeadline("swapExactTokensForTokens")},
		{"exactInputSingle((address,address,uint24,address,uint256,uint256,uint160))", decodeV3Single("exactInputSingle", true)},
		{"exactOutputSingle((address,address,uint24,address,uint256,uint256,uint160))", decodeV3Single("exactOutputSingle", false)},
		{"exactInput((bytes,address,uint256,uint256))", decodeV3Path("exactInput", true)},
		{"exactOutput((bytes,address,uint256,uint256))", decodeV3Path("exactOutput", false)},
	}

	out := make(map[[4]byte]swapDecoder, len(entries)+1)
	for _, e := range entries {
		h := primitives.Keccak256([]byte(e.signature))
		var sel [4]byte
		copy(sel[:], h[:4])
		out[sel] = e.decode
	}

	// Observed production alias for the fee-on-transfer variant (spec
	// §9 open question): not part of the standard ABI, accepted as-is.
	var fotAlias [4]byte
	copy(fotAlias[:], []byte{0x35, 0xd2, 0x94, 0x75})
	out[fotAlias] = decodeExactInWithDeadline("swapExactTokensForTokensSupportingFeeOnTransferTokens")

	return out
}

// decodeSwapCall looks up calldata's selector in the canonical table and
// decodes it, reporting ok=false for an unrecognized selector.
func decodeSwapCall(calldata []byte) (SwapCall, bool) {
	sel := primitives.Selector(calldata)
	if sel == nil {
		return SwapCall{}, false
	}
	var key [4]byte
	copy(key[:], sel)
	decoder, ok := selectorTable[key]
	if !ok {
		return SwapCall{}, false
	}
	call, err := decoder(calldata)
	if err != nil {
		return SwapCall{}, false
	}
	return call, true
}
