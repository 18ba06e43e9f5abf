// Package attackdetector implements the Attack Detector (spec §4.9):
// priority-ordered heuristics over a finalized TxGroup that classify it
// as a sandwich, frontrun, spoof, or backrun attack, plus additive
// extension variants triggered by tag presence.
package attackdetector

import (
	"sort"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

// AttackType enumerates the verdicts AttackDetector can emit. The first
// four are mutually exclusive dispatch outcomes; the remaining four are
// additive extensions keyed off tag presence.
type AttackType string

const (
	AttackSandwich   AttackType = "sandwich"
	AttackFrontrun   AttackType = "frontrun"
	AttackSpoof      AttackType = "spoof"
	AttackBackrun    AttackType = "backrun"
	AttackCrossChain AttackType = "cross-chain"
	AttackFlashLoan  AttackType = "flash-loan"
	AttackMultiToken AttackType = "multi-token"
	AttackLayer2     AttackType = "layer2"
)

const (
	multiTokenThreshold = 4
	reasonLowConfidence = "low-confidence signature"
)

// AttackReport is AttackDetector's output, per spec §3.
type AttackReport struct {
	GroupKey                primitives.Hash
	AttackDetected          bool
	AttackTypes             []AttackType
	AttackConfidence        float64
	HasDominanceScore       bool
	DominanceScore          float64
	HasConvexityScore       bool
	ConvexityIntegrityScore float64
	EntropyToleranceWindow  uint64
	Participants            []primitives.Hash
	Reason                  string
}

// Detector evaluates finalized groups against a fixed base fee and
// entropy tolerance window.
type Detector struct {
	baseFee               uint64
	entropyToleranceWindow uint64
}

// New builds a Detector. baseFee is subtracted from gas_price to derive
// effective priority; entropyToleranceWindow bounds the Δt window (in
// seconds) sandwich/frontrun scan within.
func New(baseFee, entropyToleranceWindow uint64) *Detector {
	return &Detector{baseFee: baseFee, entropyToleranceWindow: entropyToleranceWindow}
}

type rankedTx struct {
	tx       aggregator.AnnotatedTx
	priority float64
}

// effectivePriority implements p(tx) = min(max_priority_fee, max(0,
// gas_price - base_fee)), falling back to gas_price when no priority cap
// is present, per spec §4.9.
func (d *Detector) effectivePriority(tx aggregator.AnnotatedTx) float64 {
	diff := float64(tx.GasPrice) - float64(d.baseFee)
	if diff < 0 {
		diff = 0
	}
	if !tx.HasMaxPriorityFee {
		return float64(tx.GasPrice)
	}
	priorityCap := float64(tx.MaxPriorityFeePerGas)
	if priorityCap < diff {
		return priorityCap
	}
	return diff
}

// AnalyzeGroup implements spec §4.9's full pipeline: pre-processing,
// first-match dispatch over Sandwich/Frontrun/Spoof/Backrun, then
// additive tag-triggered extensions. Returns false if the group has
// fewer than 2 txs (extensions are not checked then), or if neither a
// dispatch detector nor an extension matched.
func (d *Detector) AnalyzeGroup(group aggregator.TxGroup) (AttackReport, bool) {
	if len(group.Txs) < 2 {
		return AttackReport{}, false
	}

	ranked := make([]rankedTx, len(group.Txs))
	for i, tx := range group.Txs {
		ranked[i] = rankedTx{tx: tx, priority: d.effectivePriority(tx)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].tx.FirstSeen.Before(ranked[j].tx.FirstSeen)
	})

	report := AttackReport{
		GroupKey:               group.GroupKey,
		EntropyToleranceWindow: d.entropyToleranceWindow,
	}
	matched := false

	if participants, dominance, ok := d.detectSandwich(ranked); ok {
		report.AttackDetected = true
		report.AttackTypes = append(report.AttackTypes, AttackSandwich)
		report.AttackConfidence = 0.91
		report.HasDominanceScore, report.DominanceScore = true, dominance
		report.HasConvexityScore, report.ConvexityIntegrityScore = true, 0.78
		report.Participants = participants
		matched = true
	} else if participants, dominance, ok := d.detectFrontrun(ranked); ok {
		conf := dominance
		if dominance >= 0.9 {
			conf = 0.93
		}
		report.AttackDetected = true
		report.AttackTypes = append(report.AttackTypes, AttackFrontrun)
		report.AttackConfidence = conf
		report.HasDominanceScore, report.DominanceScore = true, dominance
		report.Participants = participants
		matched = true
	} else if participants, likelihood, ok := d.detectSpoof(ranked); ok {
		report.AttackTypes = append(report.AttackTypes, AttackSpoof)
		report.AttackConfidence = likelihood
		report.Participants = participants
		report.AttackDetected = likelihood >= 0.8
		if !report.AttackDetected {
			report.Reason = reasonLowConfidence
		}
		matched = true
	} else if participants, conf, ok := d.detectBackrun(ranked); ok {
		report.AttackTypes = append(report.AttackTypes, AttackBackrun)
		report.AttackConfidence = conf
		report.Participants = participants
		report.AttackDetected = conf >= 0.6
		if !report.AttackDetected {
			report.Reason = reasonLowConfidence
		}
		matched = true
	}

	extended := d.applyExtensions(group, &report)
	if !matched && !extended {
		return AttackReport{}, false
	}
	return report, true
}

// detectSandwich scans for i<j<k within the tolerance window where the
// outer pair dominates the middle tx's priority, per spec §4.9.
func (d *Detector) detectSandwich(ranked []rankedTx) ([]primitives.Hash, float64, bool) {
	n := len(ranked)
	if n < 3 {
		return nil, 0, false
	}
	window := d.entropyToleranceWindow
	for i := 0; i < n-2; i++ {
		a := ranked[i]
		for j := i + 1; j < n-1; j++ {
			b := ranked[j]
			if exceedsWindow(a.tx, b.tx, window) {
				continue
			}
			for k := j + 1; k < n; k++ {
				c := ranked[k]
				if exceedsWindow(b.tx, c.tx, window) {
					continue
				}
				if a.priority > b.priority && c.priority > b.priority {
					dom := (a.priority + c.priority) / (a.priority + b.priority + c.priority)
					if dom > 0.6 {
						return []primitives.Hash{a.tx.TxHash, b.tx.TxHash, c.tx.TxHash}, dom, true
					}
				}
			}
		}
	}
	return nil, 0, false
}

// detectFrontrun scans for any pair i<j within the tolerance window
// where i dominates j's priority, per spec §4.9.
func (d *Detector) detectFrontrun(ranked []rankedTx) ([]primitives.Hash, float64, bool) {
	window := d.entropyToleranceWindow
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			a, b := ranked[i], ranked[j]
			if exceedsWindow(a.tx, b.tx, window) {
				continue
			}
			if a.priority > b.priority {
				dom := a.priority / (a.priority + b.priority)
				if dom > 0.65 {
					return []primitives.Hash{a.tx.TxHash, b.tx.TxHash}, dom, true
				}
			}
		}
	}
	return nil, 0, false
}

// detectSpoof finds a tx with gas_price > 2*mean(gas_price) whose tag
// anomaly score pushes the combined likelihood over 0.5, per spec §4.9.
func (d *Detector) detectSpoof(ranked []rankedTx) ([]primitives.Hash, float64, bool) {
	if len(ranked) == 0 {
		return nil, 0, false
	}
	var sum float64
	for _, r := range ranked {
		sum += float64(r.tx.GasPrice)
	}
	mean := sum / float64(len(ranked))

	for _, r := range ranked {
		anomaly := anomalyScore(r.tx)
		highGas := float64(r.tx.GasPrice) > mean*2
		likelihood := anomaly
		if highGas {
			likelihood += 0.5
		}
		if likelihood >= 0.5 {
			return []primitives.Hash{r.tx.TxHash}, likelihood, true
		}
	}
	return nil, 0, false
}

// anomalyScore is a(tx) = min(1, count(tags with len>20) / len(tags)).
func anomalyScore(tx aggregator.AnnotatedTx) float64 {
	if len(tx.Tags) == 0 {
		return 0
	}
	var long int
	for _, t := range tx.Tags {
		if len(t) > 20 {
			long++
		}
	}
	score := float64(long) / float64(len(tx.Tags))
	if score > 1 {
		return 1
	}
	return score
}

// detectBackrun checks whether the last tx's priority exceeds the mean,
// for groups longer than 2, per spec §4.9.
func (d *Detector) detectBackrun(ranked []rankedTx) ([]primitives.Hash, float64, bool) {
	if len(ranked) <= 2 {
		return nil, 0, false
	}
	var sum float64
	for _, r := range ranked {
		sum += r.priority
	}
	mean := sum / float64(len(ranked))
	last := ranked[len(ranked)-1]
	if last.priority <= mean {
		return nil, 0, false
	}
	participants := make([]primitives.Hash, len(ranked))
	for i, r := range ranked {
		participants[i] = r.tx.TxHash
	}
	return participants, 0.7, true
}

// applyExtensions appends additive AttackType variants found from tag
// presence and token-path cardinality across the whole group, per spec
// §4.9's "Extensions" clause. Returns true if any extension triggered.
func (d *Detector) applyExtensions(group aggregator.TxGroup, report *AttackReport) bool {
	var crossChain, flashLoan, l2 bool
	for _, tx := range group.Txs {
		for _, t := range tx.Tags {
			switch t {
			case tagger.TagCrossChain:
				crossChain = true
			case tagger.TagFlashLoan:
				flashLoan = true
			case tagger.TagL2:
				l2 = true
			}
		}
	}
	multiToken := len(group.TokenPaths) >= multiTokenThreshold

	triggered := false
	if crossChain {
		report.AttackTypes = append(report.AttackTypes, AttackCrossChain)
		triggered = true
	}
	if flashLoan {
		report.AttackTypes = append(report.AttackTypes, AttackFlashLoan)
		triggered = true
	}
	if multiToken {
		report.AttackTypes = append(report.AttackTypes, AttackMultiToken)
		triggered = true
	}
	if l2 {
		report.AttackTypes = append(report.AttackTypes, AttackLayer2)
		triggered = true
	}
	if triggered {
		report.AttackDetected = true
		if len(report.Participants) == 0 {
			report.Participants = txHashes(group.Txs)
		}
	}
	return triggered
}

func txHashes(txs []aggregator.AnnotatedTx) []primitives.Hash {
	out := make([]primitives.Hash, len(txs))
	for i, tx := range txs {
		out[i] = tx.TxHash
	}
	return out
}

func exceedsWindow(a, b aggregator.AnnotatedTx, windowSeconds uint64) bool {
	dt := b.FirstSeen.Sub(a.FirstSeen)
	if dt < 0 {
		dt = 0
	}
	return dt.Seconds() > float64(windowSeconds)
}
