package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/storage"
)

// storageMapperBehavior is the terminal child in the data-flow direction:
// it persists extracted graph and vector rows through storage.Storage.
// It is spawned first so every upstream child always has somewhere to
// write before it starts producing.
type storageMapperBehavior struct {
	collectionID string
	store        storage.Storage

	healthy atomic.Bool
	graphs  atomic.Uint64
	vectors atomic.Uint64
}

func newStorageMapperBehavior(
	collectionID string, store storage.Storage,
) *storageMapperBehavior {

	b := &storageMapperBehavior{collectionID: collectionID, store: store}
	b.healthy.Store(true)
	return b
}

func (b *storageMapperBehavior) Receive(
	ctx context.Context, msg childMessage,
) fn.Result[childResult] {

	switch m := msg.(type) {
	case graphEventMsg:
		err := b.store.InsertGraph(
			ctx, b.collectionID, []storage.GraphRow{m.row},
		)
		if err != nil {
			b.healthy.Store(false)
			log.WarnS(ctx, "storage mapper insert_graph failed", err)
			return fn.Err[childResult](err)
		}
		b.graphs.Add(1)
		return fn.Ok(childResult{Health: HealthHealthy})

	case vectorEventMsg:
		err := b.store.InsertVector(
			ctx, b.collectionID, []storage.VectorRow{m.row},
		)
		if err != nil {
			b.healthy.Store(false)
			log.WarnS(ctx, "storage mapper insert_vector failed", err)
			return fn.Err[childResult](err)
		}
		b.vectors.Add(1)
		return fn.Ok(childResult{Health: HealthHealthy})

	case healthCheckMsg:
		status := HealthHealthy
		if !b.healthy.Load() {
			status = HealthUnhealthy
		}
		return fn.Ok(childResult{Health: status})

	case statsMsg:
		return fn.Ok(childResult{Stats: Statistics{
			TotalGraphEvents:  b.graphs.Load(),
			TotalVectorEvents: b.vectors.Load(),
		}})

	case shutdownMsg:
		return fn.Ok(childResult{Health: HealthSuccess})

	default:
		_ = m
		return fn.Err[childResult](errUnhandledChildMessage(msg))
	}
}
