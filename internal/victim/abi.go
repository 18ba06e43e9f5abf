package victim

import (
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

// mustType builds an abi.Type from its Solidity spelling, panicking on a
// malformed literal — every call site here passes a constant, so a failure
// can only be a programming error caught at init time.
func mustType(solidityType string) abi.Type {
	t, err := abi.NewType(solidityType, "", nil)
	if err != nil {
		panic("victim: invalid abi type " + solidityType + ": " + err.Error())
	}
	return t
}

func newArguments(types ...string) abi.Arguments {
	out := make(abi.Arguments, len(types))
	for i, t := range types {
		out[i] = abi.Argument{Type: mustType(t)}
	}
	return out
}

// unpackValues strips the 4-byte selector and unpacks the remaining
// calldata positionally against args.
func unpackValues(args abi.Arguments, calldata []byte) ([]interface{}, error) {
	if len(calldata) < 4 {
		return nil, xerrors.Decodef(nil, "victim: calldata shorter than a selector")
	}
	values, err := args.UnpackValues(calldata[4:])
	if err != nil {
		return nil, xerrors.Decodef(err, "victim: abi unpack")
	}
	return values, nil
}

func asAddressSlice(v interface{}) []primitives.Address {
	raw, ok := v.([]primitives.Address)
	if !ok {
		return nil
	}
	out := make([]primitives.Address, len(raw))
	copy(out, raw)
	return out
}
