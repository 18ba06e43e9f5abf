package supervisor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
)

// SyncMetadata is attached to every emitted GroupReady, per spec §4.6.
type SyncMetadata struct {
	StateAlignmentScore      float64
	TimestampJitterScore     float64
	EvaluatedWithStaleState  bool
	TimestampDrifted         bool
}

// GroupReady is emitted once per finalized group, anchored to the block
// that triggered finalization.
type GroupReady struct {
	Group       aggregator.TxGroup
	BlockNumber uint64
	Sync        SyncMetadata
}

type bufferedTx struct {
	tx          aggregator.AnnotatedTx
	expiresAt   time.Time
	firstWindow uint64
}

// Supervisor buffers annotated txs with adaptive TTL, tracks operational
// mode, and drives the aggregator's window lifecycle off block advances
// (spec §4.6).
type Supervisor struct {
	mu sync.Mutex

	provider       rpc.Provider
	agg            *aggregator.Aggregator
	maxActiveGroups int

	mode           Mode
	windowDuration time.Duration
	windowID       uint64

	buffer          []*bufferedTx
	lastBlockNumber uint64
	haveBlock       bool

	ingestedSinceTick int
	lastTick          time.Time

	consecutiveRepoFailures int

	prunedCount uint64
}

// New builds a Supervisor with maxActiveGroups as the finalize-on-size
// threshold of spec §4.6 step 6.
func New(provider rpc.Provider, agg *aggregator.Aggregator, maxActiveGroups int) *Supervisor {
	if maxActiveGroups <= 0 {
		maxActiveGroups = 1000
	}
	return &Supervisor{
		provider:        provider,
		agg:             agg,
		maxActiveGroups: maxActiveGroups,
		mode:            Normal,
		windowDuration:  windowDuration(Normal),
		lastTick:        time.Now(),
	}
}

// Ingest buffers tx under the current mode's adaptive TTL.
func (s *Supervisor) Ingest(tx aggregator.AnnotatedTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, &bufferedTx{
		tx:          tx,
		expiresAt:   time.Now().Add(ttl(s.mode, tx.GasPrice)),
		firstWindow: s.windowID,
	})
	s.ingestedSinceTick++
}

// NotifyRepositoryFailure records a StateSnapshotRepository failure. Three
// consecutive failures within one window enter Recovery mode (spec §4.6).
func (s *Supervisor) NotifyRepositoryFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveRepoFailures++
	if s.consecutiveRepoFailures >= recoveryFailureThreshold {
		s.mode = Recovery
	}
}

// NotifyRepositorySuccess clears the consecutive-failure counter and
// unlatches Recovery mode, letting Tick's rate-based recompute resume on
// its next pass. Recovery is a response to an ongoing failure condition
// (spec §4.6), not a permanent state once the repository has recovered.
func (s *Supervisor) NotifyRepositorySuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveRepoFailures = 0
	if s.mode == Recovery {
		s.mode = Normal
	}
}

// PrunedCount returns the cumulative number of buffered txs dropped for
// expiry, for observability.
func (s *Supervisor) PrunedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prunedCount
}

// Tick runs one pass of spec §4.6's six-step algorithm and returns any
// GroupReady events produced.
func (s *Supervisor) Tick(ctx context.Context) ([]GroupReady, error) {
	current, err := s.provider.GetBlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()

	// Step 2: prune expired.
	now := time.Now()
	live := s.buffer[:0]
	for _, b := range s.buffer {
		if b.expiresAt.After(now) {
			live = append(live, b)
		} else {
			s.prunedCount++
		}
	}
	s.buffer = live

	// Step 3: recompute mode (unless latched into Recovery by repo failures).
	elapsed := now.Sub(s.lastTick)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	rate := float64(s.ingestedSinceTick) / elapsed.Seconds()
	s.ingestedSinceTick = 0
	s.lastTick = now

	if s.mode != Recovery {
		if rate > burstInfluxThreshold {
			s.mode = Burst
		} else {
			s.mode = Normal
		}
	}
	s.windowDuration = windowDuration(s.mode)

	// Step 4: age buffered txs into the current window, decaying confidence.
	for _, b := range s.buffer {
		if b.firstWindow != s.windowID {
			b.tx.Confidence *= 0.9
			b.firstWindow = s.windowID
		}
	}
	pending := make([]aggregator.AnnotatedTx, len(s.buffer))
	for i, b := range s.buffer {
		pending[i] = b.tx
	}

	blockAdvanced := s.haveBlock && current > s.lastBlockNumber
	firstObservation := !s.haveBlock
	s.lastBlockNumber = current
	s.haveBlock = true
	s.mu.Unlock()

	for _, tx := range pending {
		s.agg.AddTx(tx)
	}

	var events []GroupReady
	switch {
	case blockAdvanced || firstObservation:
		events = s.finalizeAnchored(current)
		s.bumpWindow()
	case s.agg.Len() >= s.maxActiveGroups:
		events = s.finalizeAnchored(current)
		s.bumpWindow()
	}
	return events, nil
}

func (s *Supervisor) bumpWindow() {
	s.mu.Lock()
	s.windowID++
	s.consecutiveRepoFailures = 0
	s.mu.Unlock()
}

// finalizeAnchored finalizes every live aggregator group, attaches sync
// metadata anchored to blockNumber, and returns one GroupReady per group.
func (s *Supervisor) finalizeAnchored(blockNumber uint64) []GroupReady {
	finalized := s.agg.FinalizeEvents(true)
	out := make([]GroupReady, 0, len(finalized))
	for _, ev := range finalized {
		group := aggregator.TxGroup{
			GroupKey:    ev.GroupKey,
			Txs:         ev.Txs,
			BlockNumber: blockNumber,
		}
		out = append(out, GroupReady{
			Group:       group,
			BlockNumber: blockNumber,
			Sync:        computeSyncMetadata(group, blockNumber, true),
		})
	}
	return out
}

// computeSyncMetadata implements spec §4.6's per-group sync metadata
// formulas. hasBlockNumber=false models the "unknown" alignment case.
func computeSyncMetadata(group aggregator.TxGroup, current uint64, hasBlockNumber bool) SyncMetadata {
	var alignment float64
	switch {
	case !hasBlockNumber:
		alignment = 0.8
	case group.BlockNumber+1 >= current:
		alignment = 1.0
	default:
		alignment = 0.5
	}

	jitter := 0.0
	if len(group.Txs) > 1 {
		jitter = populationStdDevSeconds(group.Txs)
	}

	return SyncMetadata{
		StateAlignmentScore:     alignment,
		TimestampJitterScore:    jitter,
		EvaluatedWithStaleState: alignment < 0.6,
		TimestampDrifted:        jitter > 0.2,
	}
}

func populationStdDevSeconds(txs []aggregator.AnnotatedTx) float64 {
	var mean float64
	for _, tx := range txs {
		mean += float64(tx.FirstSeen.Unix())
	}
	mean /= float64(len(txs))

	var variance float64
	for _, tx := range txs {
		d := float64(tx.FirstSeen.Unix()) - mean
		variance += d * d
	}
	variance /= float64(len(txs))
	return math.Sqrt(variance)
}
