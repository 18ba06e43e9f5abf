// Package pipeline wires the five analytical stages — tag, aggregate,
// supervise, snapshot, detect/evaluate — into one streaming chain, per
// spec §4.12. It generalizes the teacher's internal/events/bus.go
// subscribe/publish fan-out into a linear staged pipeline. Only tagging and
// ingestion are channel stages: a pool of tagging goroutines drains the
// bounded input channel into a bounded channel of annotated txs that feeds
// the supervisor. The supervisor, snapshot and detect/evaluate stages are
// not channel stages; tickLoop calls them in turn on a ticker and writes to
// the bounded output channel.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/impact"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
	"github.com/angu-team/ethernity-deeptrace/internal/snapshot"
	"github.com/angu-team/ethernity-deeptrace/internal/supervisor"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

const taggingWorkers = 8
const stageBuffer = 256

// PendingTx is the input shape Run consumes. TxNatureTagger.Analyze only
// needs TxHash/To/HasTo/Input; TxAggregator.AnnotatedTx additionally
// needs the fee/timing fields below, which tagger.RawPendingTx does not
// carry. PendingTx carries both so the tagging stage can produce a
// complete AnnotatedTx in one step without a second lookup.
type PendingTx struct {
	TxHash               primitives.Hash
	To                   primitives.Address
	HasTo                bool
	Input                []byte
	GasPrice             uint64
	MaxPriorityFeePerGas uint64
	HasMaxPriorityFee    bool
	FirstSeen            time.Time
}

// VictimSource supplies the candidate victim swaps for a finalized group,
// backed by the Victim Analyzer replaying the group's transactions
// through the Simulation Adapter. A nil VictimSource disables the impact
// stage; Run still emits the group's Attack/Snapshot results.
type VictimSource func(ctx context.Context, group aggregator.TxGroup) []impact.VictimInput

// ReorgRiskSource classifies a finalized group's reorg exposure from its
// captured snapshot records, feeding impact.EvaluateGroup's reorg_risk
// input. A nil ReorgRiskSource assumes impact.ReorgNone.
type ReorgRiskSource func(snapshots []snapshot.Record) impact.ReorgRisk

// Broadcaster pushes pipeline results to live subscribers (spec §4.13's
// internal/live websocket hub). A nil Broadcaster is a no-op; Pipeline
// depends only on this interface so it never imports internal/live.
type Broadcaster interface {
	BroadcastGroupFinalized(blockNumber uint64, group aggregator.TxGroup)
	BroadcastAttackDetected(report attackdetector.AttackReport)
	BroadcastImpactEvaluated(g impact.GroupImpact)
}

// GroupResult is one finalized group's full pipeline output.
type GroupResult struct {
	Group       aggregator.TxGroup
	BlockNumber uint64
	Sync        supervisor.SyncMetadata
	Snapshots   []snapshot.Record
	Attack      attackdetector.AttackReport
	AttackFound bool
	Impact      impact.GroupImpact
	HasImpact   bool
}

// Pipeline holds the five stage collaborators plus the parameters their
// pull-based calls need (spec §4.7/§4.8 profile and lag/history knobs).
type Pipeline struct {
	tagger   *tagger.Tagger
	sup      *supervisor.Supervisor
	repo     *snapshot.Repository
	detector *attackdetector.Detector

	profile        snapshot.Profile
	tickInterval   time.Duration
	lagBlocks      int
	historyWindow  int
	lightweightSim bool

	victims     VictimSource
	reorgRisk   ReorgRiskSource
	broadcaster Broadcaster
}

// WithBroadcaster attaches a live-events Broadcaster and returns p for
// chaining. Safe to call before Run; nil disables broadcasting.
func (p *Pipeline) WithBroadcaster(b Broadcaster) *Pipeline {
	p.broadcaster = b
	return p
}

// New builds a Pipeline. victims and reorgRisk may both be nil — see
// VictimSource and ReorgRiskSource.
func New(
	t *tagger.Tagger,
	sup *supervisor.Supervisor,
	repo *snapshot.Repository,
	detector *attackdetector.Detector,
	profile snapshot.Profile,
	tickInterval time.Duration,
	lagBlocks, historyWindow int,
	lightweightSim bool,
	victims VictimSource,
	reorgRisk ReorgRiskSource,
) *Pipeline {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Pipeline{
		tagger:         t,
		sup:            sup,
		repo:           repo,
		detector:       detector,
		profile:        profile,
		tickInterval:   tickInterval,
		lagBlocks:      lagBlocks,
		historyWindow:  historyWindow,
		lightweightSim: lightweightSim,
		victims:        victims,
		reorgRisk:      reorgRisk,
	}
}

// Run drains in until it is closed or ctx is done: it tags and ingests
// every pending tx, ticks the supervisor at tickInterval, and emits one
// GroupResult per finalized group on the returned channel. The returned
// channel is closed only after ctx is done and the ingestion stage has
// drained; closing in alone neither stops the supervisor ticks nor closes
// the returned channel.
func (p *Pipeline) Run(ctx context.Context, in <-chan PendingTx) <-chan GroupResult {
	out := make(chan GroupResult, stageBuffer)
	annotated := make(chan aggregator.AnnotatedTx, stageBuffer)
	work := make(chan PendingTx)

	var taggers sync.WaitGroup
	taggers.Add(taggingWorkers)
	for i := 0; i < taggingWorkers; i++ {
		go func() {
			defer taggers.Done()
			p.tagWorker(ctx, work, annotated)
		}()
	}

	go func() {
		defer close(work)
		for raw := range in {
			select {
			case work <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		taggers.Wait()
		close(annotated)
	}()

	var ingestDone sync.WaitGroup
	ingestDone.Add(1)
	go func() {
		defer ingestDone.Done()
		for tx := range annotated {
			p.sup.Ingest(tx)
		}
	}()

	go func() {
		defer close(out)
		p.tickLoop(ctx, out)
		ingestDone.Wait()
	}()

	return out
}

// tagWorker is one of taggingWorkers concurrent tagging goroutines,
// mirroring tagger.ProcessStream's worker-pool shape but producing a
// complete aggregator.AnnotatedTx instead of a bare tagger.TxNature.
func (p *Pipeline) tagWorker(ctx context.Context, work <-chan PendingTx, annotated chan<- aggregator.AnnotatedTx) {
	for raw := range work {
		nature, err := p.tagger.Analyze(ctx, raw.To, raw.HasTo, raw.Input, raw.TxHash)
		if err != nil {
			slog.Warn("pipeline: tag failed, dropping tx", "tx_hash", raw.TxHash, "error", err)
			continue
		}
		tx := aggregator.AnnotatedTx{
			TxHash:               nature.TxHash,
			TokenPaths:           nature.TokenPaths,
			Targets:              nature.Targets,
			Tags:                 nature.Tags,
			FirstSeen:            raw.FirstSeen,
			GasPrice:             raw.GasPrice,
			MaxPriorityFeePerGas: raw.MaxPriorityFeePerGas,
			HasMaxPriorityFee:    raw.HasMaxPriorityFee,
			Confidence:           nature.Confidence,
		}
		select {
		case annotated <- tx:
		case <-ctx.Done():
			return
		}
	}
}

// tickLoop drives Supervisor.Tick at tickInterval until ctx is done,
// processing every GroupReady it returns into a GroupResult. Supervisor,
// Repository and Detector are all pull-based (spec §4.6/§4.7/§4.9 expose
// no streaming method), so a ticker is the pipeline's own substitute for
// a channel-driven stage here.
func (p *Pipeline) tickLoop(ctx context.Context, out chan<- GroupResult) {
	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ready, err := p.sup.Tick(ctx)
			if err != nil {
				slog.Warn("pipeline: supervisor tick failed", "error", err)
				continue
			}
			for _, gr := range ready {
				result, err := p.processGroup(ctx, gr)
				if err != nil {
					slog.Warn("pipeline: group processing failed", "group_key", gr.Group.GroupKey, "error", err)
					continue
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// processGroup runs the snapshot, attack-detection and (optional) impact
// stages for one finalized group.
func (p *Pipeline) processGroup(ctx context.Context, gr supervisor.GroupReady) (GroupResult, error) {
	targets := buildTargetGroups(gr.Group)
	snapshots, err := p.repo.Capture(ctx, gr.BlockNumber, targets, p.profile)
	if err != nil {
		p.sup.NotifyRepositoryFailure()
		return GroupResult{}, err
	}
	p.sup.NotifyRepositorySuccess()

	attack, found := p.detector.AnalyzeGroup(gr.Group)

	result := GroupResult{
		Group:       gr.Group,
		BlockNumber: gr.BlockNumber,
		Sync:        gr.Sync,
		Snapshots:   snapshots,
		Attack:      attack,
		AttackFound: found,
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastGroupFinalized(gr.BlockNumber, gr.Group)
		if found {
			p.broadcaster.BroadcastAttackDetected(attack)
		}
	}

	if p.victims == nil || len(snapshots) == 0 {
		return result, nil
	}
	victims := p.victims(ctx, gr.Group)
	if len(victims) == 0 {
		return result, nil
	}

	risk := impact.ReorgNone
	if p.reorgRisk != nil {
		risk = p.reorgRisk(snapshots)
	}
	state := snapshots[0].Snapshot
	result.Impact = impact.EvaluateGroup(gr.Group, victims, &state, p.lagBlocks, risk, anyVolatile(snapshots), p.historyWindow, p.lightweightSim)
	result.HasImpact = true
	if p.broadcaster != nil {
		p.broadcaster.BroadcastImpactEvaluated(result.Impact)
	}
	return result, nil
}

// buildTargetGroups maps a finalized group's target addresses into
// snapshot.TargetGroup entries tagged with the group's own key, so
// Repository.Capture's dedup/history bookkeeping records this group as an
// origin (spec §4.7 step 2).
func buildTargetGroups(group aggregator.TxGroup) []snapshot.TargetGroup {
	out := make([]snapshot.TargetGroup, 0, len(group.Targets))
	for _, addr := range group.Targets {
		out = append(out, snapshot.TargetGroup{Target: addr, GroupKeys: []primitives.Hash{group.GroupKey}})
	}
	return out
}

func anyVolatile(snapshots []snapshot.Record) bool {
	for _, s := range snapshots {
		if s.VolatilityFlag {
			return true
		}
	}
	return false
}
