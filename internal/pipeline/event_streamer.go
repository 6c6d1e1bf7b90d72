package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/baselib/actor"
)

const defaultBatchSize = 32

// eventStreamerBehavior is the message bus positioned between EngineRunner
// and the sink actors: it holds references to StorageMapper, Indexer, and
// Ingestor (the three actors spawned immediately before it), and fans out
// whatever it receives to the right one of them. Graph/vector rows from
// EngineRunner go to StorageMapper for per-row persistence and, for graph
// rows, to Indexer for batched IndexKnowledge calls; doc-seen notices from
// Collector are tallied here for total_docs/total_data_processed_size.
type eventStreamerBehavior struct {
	batchSize int
	mapper    actor.ActorRef[childMessage, childResult]
	indexer   actor.ActorRef[childMessage, childResult]
	ingestor  actor.ActorRef[childMessage, childResult]

	mu           sync.Mutex
	graphInBatch int
	sentenceSent int

	healthy atomic.Bool
	sent    atomic.Uint64
	docs    atomic.Uint64
	size    atomic.Uint64
}

func newEventStreamerBehavior(
	batchSize int,
	mapper, indexer, ingestor actor.ActorRef[childMessage, childResult],
) *eventStreamerBehavior {

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	b := &eventStreamerBehavior{
		batchSize: batchSize,
		mapper:    mapper,
		indexer:   indexer,
		ingestor:  ingestor,
	}
	b.healthy.Store(true)
	return b
}

func (b *eventStreamerBehavior) Receive(
	ctx context.Context, msg childMessage,
) fn.Result[childResult] {

	switch m := msg.(type) {
	case graphEventMsg:
		b.mapper.Tell(ctx, m)
		b.indexer.Tell(ctx, m)
		b.sent.Add(1)

		b.mu.Lock()
		b.graphInBatch++
		b.sentenceSent++
		crossed := b.graphInBatch >= b.batchSize
		var sentenceCount int
		if crossed {
			sentenceCount = b.sentenceSent
			b.graphInBatch = 0
			b.sentenceSent = 0
		}
		b.mu.Unlock()

		if crossed {
			b.indexer.Tell(ctx, batchDoneMsg{sentenceCount: sentenceCount})
		}

		return fn.Ok(childResult{Health: HealthHealthy})

	case vectorEventMsg:
		b.mapper.Tell(ctx, m)
		b.sent.Add(1)
		return fn.Ok(childResult{Health: HealthHealthy})

	case docSeenMsg:
		b.docs.Add(1)
		b.size.Add(uint64(m.size))
		return fn.Ok(childResult{Health: HealthHealthy})

	case healthCheckMsg:
		status := HealthHealthy
		if !b.healthy.Load() {
			status = HealthUnhealthy
		}
		return fn.Ok(childResult{Health: status})

	case statsMsg:
		return fn.Ok(childResult{Stats: Statistics{
			TotalEventsSent:        b.sent.Load(),
			TotalDocs:              b.docs.Load(),
			TotalDataProcessedSize: b.size.Load(),
		}})

	case shutdownMsg:
		return fn.Ok(childResult{Health: HealthSuccess})

	default:
		_ = m
		return fn.Err[childResult](errUnhandledChildMessage(msg))
	}
}
