// Package ingest declares the contract for the Kafka-style consumer SDK
// named as an external collaborator (spec §6): a service that hands this
// module's pipeline a stream of raw mempool/block transactions to tag and
// group. No Kafka client is imported here — no broker wiring belongs in the
// core analytical pipeline, matching how ethernity-rpc/src/lib.rs keeps its
// RpcProvider trait free of any concrete transport's setup code.
package ingest

import (
	"context"

	"github.com/angu-team/ethernity-deeptrace/internal/pipeline"
)

// Offset identifies a consumer's position in a partitioned stream, opaque
// to this package — callers persist and replay it however their broker
// client requires.
type Offset struct {
	Partition int32
	Position  int64
}

// Consumer delivers a stream of pending transactions to a channel the
// caller owns, the same shape pipeline.Pipeline.Run expects as input.
// Implementations are responsible for broker connection, partition
// assignment, and offset commit; this package only names the contract.
type Consumer interface {
	// Consume streams PendingTx onto out until ctx is canceled or the
	// underlying source is exhausted, then closes out.
	Consume(ctx context.Context, out chan<- pipeline.PendingTx) error

	// Commit persists offset as the last successfully processed position,
	// so a restarted Consumer can resume without replaying old messages.
	Commit(ctx context.Context, offset Offset) error

	// Close releases any broker connection held by the Consumer.
	Close() error
}
