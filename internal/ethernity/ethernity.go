// Package ethernity is a thin convenience facade over the analytical
// pipeline: one call builds tagger, aggregator, supervisor, snapshot
// repository and attack detector and wires them through internal/pipeline,
// the way the original's ethernity-sdk crate exposed a single entrypoint
// for consumers who do not want to assemble each stage by hand. It is not
// a new analytical component — everything it does is delegate to the
// packages it wires.
package ethernity

import (
	"time"

	"github.com/angu-team/ethernity-deeptrace/internal/aggregator"
	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/pipeline"
	"github.com/angu-team/ethernity-deeptrace/internal/rpc"
	"github.com/angu-team/ethernity-deeptrace/internal/snapshot"
	"github.com/angu-team/ethernity-deeptrace/internal/supervisor"
	"github.com/angu-team/ethernity-deeptrace/internal/tagger"
)

// Config collects every knob the five stages need. Zero values fall back
// to the defaults spec §4 lists for each stage.
type Config struct {
	Store    snapshot.KVStore
	Provider rpc.Provider

	MaxActiveGroups int
	BaseFee         uint64

	Profile                snapshot.Profile
	TickInterval           time.Duration
	LagBlocks              int
	HistoryWindow          int
	LightweightSimulation  bool
	EntropyToleranceWindow uint64

	Victims     pipeline.VictimSource
	ReorgRisk   pipeline.ReorgRiskSource
	Broadcaster pipeline.Broadcaster
}

// New assembles tagger, aggregator, supervisor, snapshot repository and
// attack detector from cfg and returns a Pipeline ready for Run.
func New(cfg Config) *pipeline.Pipeline {
	maxGroups := cfg.MaxActiveGroups
	if maxGroups <= 0 {
		maxGroups = 1000
	}

	tg := tagger.New(cfg.Provider)
	agg := aggregator.New(maxGroups)
	sup := supervisor.New(cfg.Provider, agg, maxGroups)
	repo := snapshot.New(cfg.Store, cfg.Provider)
	det := attackdetector.New(cfg.BaseFee, cfg.EntropyToleranceWindow)

	p := pipeline.New(
		tg, sup, repo, det,
		cfg.Profile, cfg.TickInterval, cfg.LagBlocks, cfg.HistoryWindow, cfg.LightweightSimulation,
		cfg.Victims, cfg.ReorgRisk,
	)
	if cfg.Broadcaster != nil {
		p.WithBroadcaster(cfg.Broadcaster)
	}
	return p
}
