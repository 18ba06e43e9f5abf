package victim

import (
	"math/big"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

// amountReceivedBy sums every Transfer(token,...,to=recipient) log entry
// for token. It matches on recipient only; callers pass the swap's decoded
// `to`, so the transaction's sender is not consulted for the output side.
// amountSentBy, used for the input side, matches on the sender it is given.
func amountReceivedBy(logs []rpc.Log, token, recipient primitives.Address) *big.Int {
	total := new(big.Int)
	for _, l := range logs {
		if l.Address != token || len(l.Topics) < 3 || l.Topics[0] != primitives.TransferEventTopic0 {
			continue
		}
		var to primitives.Address
		copy(to[:], l.Topics[2].Bytes()[12:])
		if to != recipient {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(l.Data))
	}
	return total
}

func amountSentBy(logs []rpc.Log, token, sender primitives.Address) *big.Int {
	total := new(big.Int)
	for _, l := range logs {
		if l.Address != token || len(l.Topics) < 3 || l.Topics[0] != primitives.TransferEventTopic0 {
			continue
		}
		var from primitives.Address
		copy(from[:], l.Topics[1].Bytes()[12:])
		if from != sender {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(l.Data))
	}
	return total
}
