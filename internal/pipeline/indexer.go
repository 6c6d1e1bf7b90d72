package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/storage"
)

// indexerBehavior accumulates graph rows as they're produced by
// EngineRunner, and flushes the accumulated batch through
// storage.Storage.IndexKnowledge whenever EventStreamer signals that a
// batch boundary was crossed. This keeps IndexKnowledge's batch-oriented
// indexing decoupled from StorageMapper's per-row InsertGraph writes.
type indexerBehavior struct {
	collectionID string
	store        storage.Storage

	mu      sync.Mutex
	pending []storage.GraphRow

	healthy   atomic.Bool
	batches   atomic.Uint64
	sentences atomic.Uint64
}

func newIndexerBehavior(
	collectionID string, store storage.Storage,
) *indexerBehavior {

	b := &indexerBehavior{collectionID: collectionID, store: store}
	b.healthy.Store(true)
	return b
}

func (b *indexerBehavior) Receive(
	ctx context.Context, msg childMessage,
) fn.Result[childResult] {

	switch m := msg.(type) {
	case graphEventMsg:
		b.mu.Lock()
		b.pending = append(b.pending, m.row)
		b.mu.Unlock()
		return fn.Ok(childResult{Health: HealthHealthy})

	case batchDoneMsg:
		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()

		b.sentences.Add(uint64(m.sentenceCount))
		b.batches.Add(1)

		if len(batch) == 0 {
			return fn.Ok(childResult{Health: HealthHealthy})
		}

		err := b.store.IndexKnowledge(ctx, b.collectionID, batch)
		if err != nil {
			b.healthy.Store(false)
			log.WarnS(ctx, "indexer index_knowledge failed", err)
			return fn.Err[childResult](err)
		}
		return fn.Ok(childResult{Health: HealthHealthy})

	case healthCheckMsg:
		status := HealthHealthy
		if !b.healthy.Load() {
			status = HealthUnhealthy
		}
		return fn.Ok(childResult{Health: status})

	case statsMsg:
		return fn.Ok(childResult{Stats: Statistics{
			TotalBatches:   b.batches.Load(),
			TotalSentences: b.sentences.Load(),
		}})

	case shutdownMsg:
		return fn.Ok(childResult{Health: HealthSuccess})

	default:
		_ = m
		return fn.Err[childResult](errUnhandledChildMessage(msg))
	}
}
