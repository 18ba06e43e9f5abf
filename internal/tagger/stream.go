package tagger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// RawPendingTx is the minimal shape ProcessStream consumes: enough of a
// pending transaction to run Analyze.
type RawPendingTx struct {
	TxHash primitives.Hash
	To     primitives.Address
	HasTo  bool
	Input  []byte
}

// ProcessStream drains rx concurrently, writing each successfully analyzed
// TxNature to tx. A failed Analyze call is logged and dropped without
// poisoning the stream (spec §4.4). The call blocks until rx is closed and
// every in-flight Analyze call has completed.
func (t *Tagger) ProcessStream(ctx context.Context, rx <-chan RawPendingTx, tx chan<- TxNature) {
	const workerCount = 8
	work := make(chan RawPendingTx)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for raw := range work {
				nature, err := t.Analyze(ctx, raw.To, raw.HasTo, raw.Input, raw.TxHash)
				if err != nil {
					slog.Warn("tagger: analyze failed, dropping tx", "tx_hash", raw.TxHash, "error", err)
					continue
				}
				select {
				case tx <- nature:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for raw := range rx {
		select {
		case work <- raw:
		case <-ctx.Done():
			close(work)
			return
		}
	}
	close(work)
	wg.Wait()
}
