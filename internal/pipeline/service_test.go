package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/errs"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/source"
)

func TestSemanticServiceSpawnObserveShutdown(t *testing.T) {
	t.Parallel()

	svc := NewSemanticService(actor.NewRealClock(), nil)
	ctx := context.Background()

	store := &fakeStorage{}
	src := &fakeSource{chunks: []source.CollectedBytes{
		{Data: []byte("a b c"), SourceID: "d1", DocSource: "fixture", Size: 5, EOF: true},
	}}
	extractor := &fakeExtractor{}
	settings := testSettings(store, src, extractor)

	id, err := svc.spawn(ctx, "svc-pipe-1", settings)
	require.NoError(t, err)
	require.Equal(t, "svc-pipe-1", id)

	_, err = svc.spawn(ctx, "svc-pipe-1", settings)
	require.ErrorIs(t, err, errs.ErrPipelineAlreadyExists)

	waitFor(t, 2*time.Second, func() bool {
		stats, err := svc.observe(ctx, "svc-pipe-1")
		return err == nil && stats.TotalGraphEvents == 1
	})

	ids := svc.metadata()
	require.Contains(t, ids, "svc-pipe-1")

	require.NoError(t, svc.shutdownOne(ctx, "svc-pipe-1"))

	_, err = svc.observe(ctx, "svc-pipe-1")
	require.ErrorIs(t, err, errs.ErrPipelineNotFound)
}

func TestSemanticServiceObserveAndShutdownUnknownPipeline(t *testing.T) {
	t.Parallel()

	svc := NewSemanticService(actor.NewRealClock(), nil)
	ctx := context.Background()

	_, err := svc.observe(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrPipelineNotFound)

	err = svc.shutdownOne(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrPipelineNotFound)

	err = svc.sendTokens(ctx, "missing", TokenBatch{})
	require.ErrorIs(t, err, errs.ErrPipelineNotFound)

	_, err = svc.restart(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrPipelineNotFound)
}

func TestSemanticServiceSendIngestedTokens(t *testing.T) {
	t.Parallel()

	svc := NewSemanticService(actor.NewRealClock(), nil)
	ctx := context.Background()

	store := &fakeStorage{}
	src := &fakeSource{}
	extractor := &fakeExtractor{}

	_, err := svc.spawn(ctx, "svc-pipe-2", testSettings(store, src, extractor))
	require.NoError(t, err)

	err = svc.sendTokens(ctx, "svc-pipe-2", TokenBatch{
		DocID:     "ext-1",
		DocSource: "external",
		Tokens:    []llm.Token{{ID: 0, Text: "alpha"}, {ID: 1, Text: "beta"}},
	})
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool {
		return extractor.calls.load() >= 1
	})

	require.NoError(t, svc.shutdownOne(ctx, "svc-pipe-2"))
}

func TestSemanticServiceRestartPreservesSettings(t *testing.T) {
	t.Parallel()

	svc := NewSemanticService(actor.NewRealClock(), nil)
	ctx := context.Background()

	store := &fakeStorage{}
	src := &fakeSource{}
	extractor := &fakeExtractor{}
	settings := testSettings(store, src, extractor)
	settings.CollectionID = "restart-collection"

	_, err := svc.spawn(ctx, "svc-pipe-3", settings)
	require.NoError(t, err)

	id, err := svc.restart(ctx, "svc-pipe-3")
	require.NoError(t, err)
	require.Equal(t, "svc-pipe-3", id)

	entry, _, ok := svc.lookup("svc-pipe-3")
	require.True(t, ok)
	require.Equal(t, "restart-collection", entry.settings.CollectionID)

	require.NoError(t, svc.shutdownOne(ctx, "svc-pipe-3"))
}

func TestSemanticServiceColdStartPermitsAreBounded(t *testing.T) {
	t.Parallel()

	svc := NewSemanticService(actor.NewRealClock(), nil)
	require.Equal(t, coldStartPermits, cap(svc.coldStart))
}

func TestSemanticServiceReapRemovesTerminalPipelines(t *testing.T) {
	t.Parallel()

	svc := NewSemanticService(actor.NewRealClock(), nil)
	ctx := context.Background()

	store := &fakeStorage{}
	src := &fakeSource{}
	extractor := &fakeExtractor{}

	p, err := NewSemanticPipeline(
		"svc-pipe-4", testSettings(store, src, extractor), svc.clock,
	)
	require.NoError(t, err)

	raw := actor.NewActor(actor.ActorConfig[pipelineMessage, pipelineResult]{
		ID: "svc-pipe-4", Behavior: p, MailboxSize: 64,
	})
	raw.Start()
	t.Cleanup(raw.Stop)

	require.NoError(t, actor.RegisterWithReceptionist(
		svc.system.Receptionist(), pipelineServiceKey("svc-pipe-4"), raw.Ref(),
	))

	// Build the entry the way spawn does, but with its terminal status
	// and closed done channel already set rather than driven by a real
	// RunHealthLoop goroutine, so reap's classification logic is
	// exercised deterministically.
	entry := &pipelineEntry{
		settings: testSettings(store, src, extractor),
		pipeline: p,
		raw:      raw,
		cancel:   func() {},
		done:     make(chan struct{}),
		status:   PipelineSucceeded,
	}
	close(entry.done)

	svc.mu.Lock()
	svc.pipelines["svc-pipe-4"] = entry
	svc.counters.Running++
	svc.mu.Unlock()

	svc.reap(ctx)

	_, _, ok := svc.lookup("svc-pipe-4")
	require.False(t, ok, "reap should have removed the terminal pipeline")

	svc.mu.Lock()
	counters := svc.counters
	svc.mu.Unlock()
	require.Equal(t, 0, counters.Running)
	require.Equal(t, 1, counters.Successful)
}
