package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/source"
)

// collectorBehavior drains a source.Source and forwards each collected
// chunk to Ingestor, notifying EventStreamer (the bus) once a document's
// final chunk has been seen so total_docs/total_data_processed_size can
// be tallied in one place. It is spawned last among the bus-facing
// children, after EventStreamer, Ingestor, Indexer, and StorageMapper are
// already accepting work.
type collectorBehavior struct {
	src      source.Source
	ingestor actor.ActorRef[childMessage, childResult]
	bus      actor.ActorRef[childMessage, childResult]

	healthy atomic.Bool

	startOnce sync.Once
}

func newCollectorBehavior(
	src source.Source,
	ingestor, bus actor.ActorRef[childMessage, childResult],
) *collectorBehavior {

	b := &collectorBehavior{src: src, ingestor: ingestor, bus: bus}
	b.healthy.Store(true)
	return b
}

func (b *collectorBehavior) Receive(
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
		return fn.Ok(childResult{})

	case shutdownMsg:
		return fn.Ok(childResult{Health: HealthSuccess})

	default:
		_ = m
		return fn.Err[childResult](errUnhandledChildMessage(msg))
	}
}

// Run starts polling the source in a dedicated goroutine, forwarding every
// collected chunk to Ingestor. It is invoked once by the owning
// SemanticPipeline's start sequence.
func (b *collectorBehavior) Run(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.poll(ctx)
	})
}

func (b *collectorBehavior) poll(ctx context.Context) {
	if err := b.src.CheckConnectivity(ctx); err != nil {
		log.WarnS(ctx, "collector connectivity check failed", err)
		b.healthy.Store(false)
		return
	}

	ch, err := b.src.PollData(ctx)
	if err != nil {
		log.WarnS(ctx, "collector poll failed to start", err)
		b.healthy.Store(false)
		return
	}

	var (
		current source.CollectedBytes
		seen    bool
	)
	for chunk := range ch {
		b.ingestor.Tell(ctx, ingestMsg{data: chunk})

		// A change of file or source ends the previous document.
		if seen && (chunk.File != current.File ||
			chunk.SourceID != current.SourceID) {

			b.bus.Tell(ctx, docSeenMsg{size: current.Size})
		}
		current, seen = chunk, true

		if chunk.EOF {
			break
		}
	}

	if seen {
		b.bus.Tell(ctx, docSeenMsg{size: current.Size})
	}
}

func errUnhandledChildMessage(msg childMessage) error {
	return &unhandledChildMessageError{msgType: msg.MessageType()}
}

type unhandledChildMessageError struct {
	msgType string
}

func (e *unhandledChildMessageError) Error() string {
	return "pipeline: unhandled child message type " + e.msgType
}
