package simulation

import (
	"context"
	"math/big"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

// Tx is the transaction a SessionHandle replays against its forked node,
// per spec §6's "SessionHandle.send_transaction(tx)".
type Tx struct {
	From  primitives.Address
	To    primitives.Address
	HasTo bool
	Value *big.Int
	Data  []byte
}

// SessionHandle is one borrowed, forked Anvil session (spec §6's
// "Simulation provider contract"). Sessions support account impersonation
// and mirror mainnet at the block they were created with.
type SessionHandle struct {
	pool      *SessionPool
	container *AnvilContainer
	client    *gethrpc.Client
}

// CreateSession forks container's Anvil instance at rpcURL/block and
// returns a handle bound to it. block nil forks at the chain head.
func CreateSession(ctx context.Context, pool *SessionPool, rpcURL string, block *uint64, timeout time.Duration) (*SessionHandle, error) {
	c, err := pool.Get(ctx)
	if err != nil {
		return nil, xerrors.RPCf(err, "simulation: acquire container")
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := gethrpc.DialContext(dialCtx, c.RPCURL)
	if err != nil {
		pool.Put(c)
		return nil, xerrors.RPCf(err, "simulation: dial anvil rpc")
	}

	forking := map[string]interface{}{"jsonRpcUrl": rpcURL}
	if block != nil {
		forking["blockNumber"] = *block
	}
	if err := client.CallContext(ctx, nil, "anvil_reset", map[string]interface{}{"forking": forking}); err != nil {
		client.Close()
		pool.Put(c)
		return nil, xerrors.RPCf(err, "simulation: fork session at block")
	}

	return &SessionHandle{pool: pool, container: c, client: client}, nil
}

// Impersonate lets the session send transactions from addr without its
// private key, per spec §6's "must support account impersonation".
func (h *SessionHandle) Impersonate(ctx context.Context, addr primitives.Address) error {
	if err := h.client.CallContext(ctx, nil, "anvil_impersonateAccount", addr.Hex()); err != nil {
		return xerrors.RPCf(err, "simulation: impersonate account")
	}
	return nil
}

// SendTransaction submits tx against the forked node and returns the
// resulting receipt, including the simulated logs the Victim Analyzer
// measures slippage from.
func (h *SessionHandle) SendTransaction(ctx context.Context, tx Tx) (*rpc.Receipt, error) {
	params := map[string]interface{}{
		"from":  tx.From.Hex(),
		"value": hexBig(tx.Value),
		"data":  primitives.EncodeHex(tx.Data),
	}
	if tx.HasTo {
		params["to"] = tx.To.Hex()
	}

	var txHash string
	if err := h.client.CallContext(ctx, &txHash, "eth_sendTransaction", params); err != nil {
		return nil, xerrors.RPCf(err, "simulation: send transaction")
	}

	var raw rawReceipt
	if err := h.client.CallContext(ctx, &raw, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, xerrors.RPCf(err, "simulation: fetch receipt")
	}
	return decodeReceipt(&raw)
}

// Close releases the session's container back to the pool after resetting
// its fork state (spec §6: "SessionHandle.close()").
func (h *SessionHandle) Close(context.Context) error {
	h.client.Close()
	h.pool.Put(h.container)
	return nil
}

func hexBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

// resetFork wipes a returned container's fork state back to a clean,
// unforked instance; the next CreateSession call re-forks it.
func resetFork(ctx context.Context, rpcURL string) error {
	client, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.CallContext(ctx, nil, "anvil_reset", nil)
}

// rawReceipt mirrors the subset of eth_getTransactionReceipt's JSON shape
// this package consumes; every numeric/address/hash field arrives as a hex
// string over JSON-RPC.
type rawReceipt struct {
	BlockNumber string   `json:"blockNumber"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	GasUsed     string   `json:"gasUsed"`
	Status      string   `json:"status"`
	Logs        []rawLog `json:"logs"`
}

type rawLog struct {
	Address  string   `json:"address"`
	Topics   []string `json:"topics"`
	Data     string   `json:"data"`
	LogIndex string   `json:"logIndex"`
}

func decodeReceipt(raw *rawReceipt) (*rpc.Receipt, error) {
	blockNumber, err := primitives.ParseWord(raw.BlockNumber)
	if err != nil {
		return nil, xerrors.Decodef(err, "simulation: decode receipt blockNumber")
	}
	from, _ := primitives.ParseAddress(raw.From)
	to, hasTo := primitives.ParseAddress(raw.To)
	gasUsed, err := primitives.ParseWord(raw.GasUsed)
	if err != nil {
		return nil, xerrors.Decodef(err, "simulation: decode receipt gasUsed")
	}
	status, err := primitives.ParseWord(raw.Status)
	if err != nil {
		return nil, xerrors.Decodef(err, "simulation: decode receipt status")
	}

	logs := make([]rpc.Log, 0, len(raw.Logs))
	for _, l := range raw.Logs {
		addr, _ := primitives.ParseAddress(l.Address)
		topics := make([]primitives.Hash, 0, len(l.Topics))
		for _, topic := range l.Topics {
			topics = append(topics, primitives.ParseHash(topic))
		}
		data, err := primitives.ParseHexBytes(l.Data)
		if err != nil {
			return nil, xerrors.Decodef(err, "simulation: decode log data")
		}
		index, err := primitives.ParseWord(l.LogIndex)
		if err != nil {
			return nil, xerrors.Decodef(err, "simulation: decode log index")
		}
		logs = append(logs, rpc.Log{Address: addr, Topics: topics, Data: data, Index: uint(index.Uint64())})
	}

	return &rpc.Receipt{
		BlockNumber: blockNumber.Uint64(),
		From:        from,
		To:          to,
		HasTo:       hasTo,
		GasUsed:     gasUsed,
		Status:      status.Sign() != 0,
		Logs:        logs,
	}, nil
}
