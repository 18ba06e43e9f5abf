// Package calltree reconstructs a navigable call tree from a raw nested
// trace, per spec §4.1. It owns no mutable shared state — a CallTree is built
// once from one RawTrace and is immutable thereafter (spec §3: "created from
// one trace, immutable thereafter").
package calltree

import (
	"strings"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

// CallType enumerates the EVM call variants recognized by the builder.
// Unknown call_type strings map to Unknown rather than an error (spec §4.1).
type CallType int

const (
	Unknown CallType = iota
	Call
	StaticCall
	DelegateCall
	CallCode
	Create
	Create2
	SelfDestruct
)

func (c CallType) String() string {
	switch c {
	case Call:
		return "CALL"
	case StaticCall:
		return "STATICCALL"
	case DelegateCall:
		return "DELEGATECALL"
	case CallCode:
		return "CALLCODE"
	case Create:
		return "CREATE"
	case Create2:
		return "CREATE2"
	case SelfDestruct:
		return "SELFDESTRUCT"
	default:
		return "UNKNOWN"
	}
}

var callTypeTable = map[string]CallType{
	"CALL":         Call,
	"STATICCALL":   StaticCall,
	"DELEGATECALL": DelegateCall,
	"CALLCODE":     CallCode,
	"CREATE":       Create,
	"CREATE2":      Create2,
	"SELFDESTRUCT": SelfDestruct,
}

func parseCallType(s string) CallType {
	if ct, ok := callTypeTable[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return ct
	}
	return Unknown
}

// RawTrace is the wire shape of a nested call trace, per spec §3.
type RawTrace struct {
	From     string     `json:"from"`
	To       string     `json:"to,omitempty"`
	Value    string     `json:"value"`
	Gas      string     `json:"gas"`
	GasUsed  string     `json:"gas_used"`
	Input    string     `json:"input,omitempty"`
	Output   string     `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`
	CallType string     `json:"call_type,omitempty"`
	Calls    []RawTrace `json:"calls,omitempty"`
}

// CallNode is one decoded call in the tree. Index is the node's pre-order
// position (root is 0); Depth is the nesting level (root is 0). Children are
// owned by the node: there is deliberately no parent pointer (spec §9 —
// "do not store parent pointers; retain tree by owning nodes and use the
// index field plus path_to_node when an ancestor must be located").
type CallNode struct {
	Index    int
	Depth    int
	From     primitives.Address
	To       primitives.Address
	HasTo    bool
	Value    primitives.Word
	Gas      primitives.Word
	GasUsed  primitives.Word
	Input    []byte
	Output   []byte
	Error    string
	CallType CallType
	Children []*CallNode
}

// Failed reports whether this call reverted or otherwise errored.
func (n *CallNode) Failed() bool { return n.Error != "" }

// CallTree is the owning container for a trace's decoded nodes, indexed by
// pre-order position for O(1) lookup.
type CallTree struct {
	Root     *CallNode
	byIndex  map[int]*CallNode
	maxDepth int
}

// BuildTree performs a recursive pre-order walk over trace, stamping
// increasing indices and decoding every field per spec §4.1. It never
// returns a decode error for an unrecognized call_type (mapped to Unknown
// instead); it does return one for malformed numeric/hex fields.
func BuildTree(trace RawTrace) (*CallTree, error) {
	t := &CallTree{byIndex: make(map[int]*CallNode)}
	counter := 0
	root, err := t.build(trace, 0, &counter)
	if err != nil {
		return nil, err
	}
	t.Root = root
	return t, nil
}

func (t *CallTree) build(trace RawTrace, depth int, counter *int) (*CallNode, error) {
	index := *counter
	*counter++

	from, ok := primitives.ParseAddress(trace.From)
	if !ok {
		return nil, xerrors.Decodef(nil, "calltree: node %d has empty from", index)
	}
	to, hasTo := primitives.ParseAddress(trace.To)

	value, err := primitives.ParseWord(trace.Value)
	if err != nil {
		return nil, xerrors.Decodef(err, "calltree: node %d value", index)
	}
	gas, err := primitives.ParseWord(trace.Gas)
	if err != nil {
		return nil, xerrors.Decodef(err, "calltree: node %d gas", index)
	}
	gasUsed, err := primitives.ParseWord(trace.GasUsed)
	if err != nil {
		return nil, xerrors.Decodef(err, "calltree: node %d gas_used", index)
	}
	input, err := primitives.ParseHexBytes(trace.Input)
	if err != nil {
		return nil, xerrors.Decodef(err, "calltree: node %d input", index)
	}
	output, err := primitives.ParseHexBytes(trace.Output)
	if err != nil {
		return nil, xerrors.Decodef(err, "calltree: node %d output", index)
	}

	node := &CallNode{
		Index:    index,
		Depth:    depth,
		From:     from,
		To:       to,
		HasTo:    hasTo,
		Value:    value,
		Gas:      gas,
		GasUsed:  gasUsed,
		Input:    input,
		Output:   output,
		Error:    trace.Error,
		CallType: parseCallType(trace.CallType),
	}
	t.byIndex[index] = node
	if depth > t.maxDepth {
		t.maxDepth = depth
	}

	for _, child := range trace.Calls {
		childNode, err := t.build(child, depth+1, counter)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}
