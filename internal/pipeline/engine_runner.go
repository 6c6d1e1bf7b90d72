package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/storage"
)

// TokenBatch is one tokenized unit handed to the token channel, either by
// Ingestor after tokenizing collected bytes, or directly by an external
// caller through SendIngestedTokens.
type TokenBatch struct {
	DocID     string
	DocSource string
	Tokens    []llm.Token
}

// Extraction is the result of running one document's tokens through an
// Extractor: the graph triples and embedded-vector payloads it yielded.
type Extraction struct {
	Graph   []storage.GraphRow
	Vectors []storage.VectorRow
}

// Extractor is the capability interface EngineRunner drives. The
// attention-based extraction engine is the one concrete implementation;
// EngineRunner depends only on this interface so the pipeline compiles and
// can be tested independently of it.
type Extractor interface {
	Extract(
		ctx context.Context, docID, docSource string, tokens []llm.Token,
	) (Extraction, error)
}

// engineRunnerBehavior consumes the pipeline's shared token channel in a
// dedicated goroutine and runs each batch through an Extractor, forwarding
// results to EventStreamer, the bus actor that fans them out to
// StorageMapper and Indexer. It does not itself process childMessage
// traffic on the hot path; Receive only answers health/stats/shutdown
// queries.
type engineRunnerBehavior struct {
	extractor Extractor
	bus       actor.ActorRef[childMessage, childResult]
	tokenCh   <-chan TokenBatch

	healthy   atomic.Bool
	events    atomic.Uint64
	startOnce sync.Once
}

func newEngineRunnerBehavior(
	extractor Extractor, bus actor.ActorRef[childMessage, childResult],
	tokenCh <-chan TokenBatch,
) *engineRunnerBehavior {

	b := &engineRunnerBehavior{extractor: extractor, bus: bus, tokenCh: tokenCh}
	b.healthy.Store(true)
	return b
}

// Run starts draining the token channel until it closes or ctx is
// cancelled. Closing the channel signals end-of-input.
func (b *engineRunnerBehavior) Run(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.drain(ctx)
	})
}

func (b *engineRunnerBehavior) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case batch, ok := <-b.tokenCh:
			if !ok {
				return
			}

			b.events.Add(1)

			extraction, err := b.extractor.Extract(
				ctx, batch.DocID, batch.DocSource, batch.Tokens,
			)
			if err != nil {
				log.WarnS(ctx, "extraction failed", err,
					"doc_id", batch.DocID)
				b.healthy.Store(false)
				continue
			}

			for _, row := range extraction.Graph {
				b.bus.Tell(ctx, graphEventMsg{row: row})
			}
			for _, row := range extraction.Vectors {
				b.bus.Tell(ctx, vectorEventMsg{row: row})
			}
		}
	}
}

func (b *engineRunnerBehavior) Receive(
	ctx context.Context, msg childMessage,
) fn.Result[childResult] {

	switch m := msg.(type) {
	case healthCheckMsg:
		status := HealthHealthy
		if !b.healthy.Load() {
			status = HealthUnhealthy
		}
		return fn.Ok(childResult{Health: status})

	case statsMsg:
		return fn.Ok(childResult{Stats: Statistics{
			TotalEventsProcessed: b.events.Load(),
		}})

	case shutdownMsg:
		return fn.Ok(childResult{Health: HealthSuccess})

	default:
		_ = m
		return fn.Err[childResult](errUnhandledChildMessage(msg))
	}
}
