package victim

import (
	"context"

	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
	"github.com/angu-team/ethernity-deeptrace/internal/xerrors"
)

// Detector analyzes one already-identified router family's swap
// transactions, per spec §4.10 step 3 ("Detectors are registered per-
// family"). supports(router) and analyze(...) are spec §9's named
// extension points.
type Detector interface {
	Name() string
	// Supports reports whether this family handles tx against the probed
	// router info. Router-ABI families (V2/V3) key off info; calldata and
	// event-topic families (Universal Router, V4, Smart-Router multicall)
	// key off tx — spec §4.10 names both discrimination styles without
	// unifying them, so Supports takes both.
	Supports(info RouterInfo, tx TxInput) bool
	Analyze(ctx context.Context, provider rpc.Provider, tx TxInput, info RouterInfo) (*AnalysisResult, error)
}

// Registry is the Victim Analyzer's fixed, ordered set of per-family
// Detectors; the first one whose Supports predicate matches handles the
// transaction.
type Registry struct {
	detectors []Detector
}

// NewRegistry builds the Registry with every known router family
// registered in the dispatch order spec §4.10 lists them.
func NewRegistry() *Registry {
	return &Registry{detectors: []Detector{
		UniswapV2Detector{},
		UniswapV3Detector{},
		UniswapV4Detector{},
		UniversalRouterDetector{},
		OneInchV6Detector{},
		OneInchGenericDetector{},
		SmartRouterDetector{},
	}}
}

// Register appends an additional Detector, for callers that need to extend
// the fixed family set (spec §9: "the registry is the primary extension
// point").
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Dispatch finds the first Detector supporting info and runs it.
func (r *Registry) Dispatch(ctx context.Context, provider rpc.Provider, tx TxInput, info RouterInfo) (*AnalysisResult, error) {
	for _, d := range r.detectors {
		if d.Supports(info, tx) {
			return d.Analyze(ctx, provider, tx, info)
		}
	}
	return nil, xerrors.Validationf(nil, "victim: no detector supports router %s", info.Address.Hex())
}
