// Package finder declares the contract for the Shodan-style node discovery
// helper named as an external collaborator (spec §6): a service that finds
// EVM nodes exposing internal RPC methods (trace/debug/admin endpoints) this
// module's pipeline can be pointed at. No Shodan client is implemented here
// — this mirrors ethernity-finder/src/lib.rs's NodeFinder trait, which the
// original also keeps separate from any concrete search-provider wiring.
package finder

import "context"

// Method is an internal RPC method a candidate node may or may not expose.
type Method string

const (
	MethodDebugTraceTransaction Method = "debug_traceTransaction"
	MethodAdminNodeInfo         Method = "admin_nodeInfo"
	MethodAdminPeers            Method = "admin_peers"
	MethodTxPoolContent         Method = "txpool_content"
	MethodTraceBlock            Method = "trace_block"
)

// Options scopes a discovery run.
type Options struct {
	ChainID uint64
	Methods []Method
	// Limit caps the number of verified nodes returned. Zero means no limit.
	Limit int
}

// MethodStatus reports whether one candidate node answered Method without
// a "method not found" error.
type MethodStatus struct {
	Method    Method
	Supported bool
	Error     string
}

// NodeInfo is one verified node matching Options.ChainID, with the support
// status of each requested Method.
type NodeInfo struct {
	IP      string
	Port    uint16
	ChainID uint64
	Methods []MethodStatus
}

// NodeFinder discovers and verifies candidate EVM nodes. Implementations
// are expected to query an external search index (Shodan or similar) and
// then probe each candidate's JSON-RPC endpoint directly; this package only
// names the contract.
type NodeFinder interface {
	FindNodes(ctx context.Context, opts Options) ([]NodeInfo, error)
}
