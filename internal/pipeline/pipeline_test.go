package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/source"
	"github.com/latticeforge/veridian/internal/storage"
)

var errConnectFailed = errors.New("fake source: connectivity check failed")

// fakeSource is a deterministic source.Source that replays a fixed set of
// chunks and never actually touches a filesystem.
type fakeSource struct {
	chunks     []source.CollectedBytes
	connectErr error
	pollErr    error
}

func (f *fakeSource) CheckConnectivity(ctx context.Context) error { return f.connectErr }

func (f *fakeSource) PollData(ctx context.Context) (<-chan source.CollectedBytes, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}

	ch := make(chan source.CollectedBytes, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeSource) GetSlice(ctx context.Context, file string, offset, length int64) ([]byte, error) {
	return nil, nil
}

func (f *fakeSource) GetAll(ctx context.Context, file string) ([]byte, error) { return nil, nil }

func (f *fakeSource) FileNumBytes(ctx context.Context, file string) (int64, error) { return 0, nil }

func (f *fakeSource) CopyTo(ctx context.Context, file, destPath string) error { return nil }

// fakeExtractor turns every token batch into one graph row and one vector
// row, so a single document flows all the way to storage.
type fakeExtractor struct {
	calls atomic64
}

type atomic64 struct {
	mu sync.Mutex
	n  int
}

func (a *atomic64) inc() {
	a.mu.Lock()
	a.n++
	a.mu.Unlock()
}

func (a *atomic64) load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func (f *fakeExtractor) Extract(
	ctx context.Context, docID, docSource string, tokens []llm.Token,
) (Extraction, error) {

	f.calls.inc()

	if len(tokens) == 0 {
		return Extraction{}, nil
	}

	return Extraction{
		Graph: []storage.GraphRow{{
			DocID:     docID,
			DocSource: docSource,
			Knowledge: storage.SemanticKnowledge{
				Subject:   tokens[0].Text,
				Predicate: "relates_to",
				Object:    tokens[len(tokens)-1].Text,
				SourceID:  docID,
			},
		}},
		Vectors: []storage.VectorRow{{
			DocID:     docID,
			DocSource: docSource,
			Payload:   storage.VectorPayload{EventID: docID, Embeddings: []float32{1, 2, 3}},
		}},
	}, nil
}

// fakeStorage records every row it's given behind a mutex.
type fakeStorage struct {
	mu      sync.Mutex
	graphs  []storage.GraphRow
	indexed []storage.GraphRow
	vectors []storage.VectorRow
}

func (s *fakeStorage) CheckConnectivity(ctx context.Context) error { return nil }

func (s *fakeStorage) InsertGraph(ctx context.Context, collectionID string, rows []storage.GraphRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs = append(s.graphs, rows...)
	return nil
}

func (s *fakeStorage) IndexKnowledge(ctx context.Context, collectionID string, rows []storage.GraphRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = append(s.indexed, rows...)
	return nil
}

func (s *fakeStorage) InsertVector(ctx context.Context, collectionID string, rows []storage.VectorRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, rows...)
	return nil
}

func (s *fakeStorage) SimilaritySearchL2(
	ctx context.Context, sessionID, query, pipelineID string,
	embedding []float32, limit, offset int,
	topPairEmbeddings [][]float32, collectionID string,
) ([]storage.DocumentPayload, error) {
	return nil, nil
}

func (s *fakeStorage) FilterAndQuery(
	ctx context.Context, sessionID string, topPairs []storage.EntityPair,
	limit, offset int,
) ([]storage.DocumentPayload, error) {
	return nil, nil
}

func (s *fakeStorage) TraverseMetadataTable(
	ctx context.Context, pairs []storage.EntityPair,
) ([]storage.TraversedRow, error) {
	return nil, nil
}

func (s *fakeStorage) InsertDiscoveredKnowledge(ctx context.Context, rows []storage.DocumentPayload) error {
	return nil
}

func (s *fakeStorage) GetDiscoveredData(
	ctx context.Context, discoverySessionID, pipelineID string,
) ([]storage.DiscoveredKnowledge, error) {
	return nil, nil
}

func (s *fakeStorage) AutogenerateQueries(ctx context.Context, k int) ([]storage.QuerySuggestion, error) {
	return nil, nil
}

func testSettings(store *fakeStorage, src *fakeSource, extractor *fakeExtractor) PipelineSettings {
	return PipelineSettings{
		CollectionID: "test-collection",
		Source:       src,
		Model:        llm.NewFixtureModel(0, 0, nil),
		Extractor:    extractor,
		Storage:      store,
		BatchSize:    1,
	}
}

// waitFor polls cond until it returns true or the deadline elapses, failing
// the test otherwise. The pipeline's child actors run on their own
// goroutines, so assertions on side effects they produce can't be
// synchronous.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestSemanticPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{}
	src := &fakeSource{chunks: []source.CollectedBytes{
		{Data: []byte("hello world"), SourceID: "doc-1", DocSource: "fixture", Size: 11, EOF: true},
	}}
	extractor := &fakeExtractor{}

	clock := actor.NewRealClock()
	p, err := NewSemanticPipeline("pipe-1", testSettings(store, src, extractor), clock)
	require.NoError(t, err)
	require.Equal(t, "pipe-1", p.ID())

	ctx := context.Background()

	waitFor(t, 2*time.Second, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.graphs) == 1 && len(store.vectors) == 1
	})

	p.aggregateStats(ctx)
	p.mu.Lock()
	stats := p.stats
	p.mu.Unlock()

	require.Equal(t, uint64(1), stats.TotalGraphEvents)
	require.Equal(t, uint64(1), stats.TotalVectorEvents)
	require.Equal(t, uint64(1), stats.TotalDocs)
	require.Equal(t, uint64(11), stats.TotalDataProcessedSize)

	p.shutdown(ctx)
	p.mu.Lock()
	require.Equal(t, PipelineSucceeded, p.status)
	p.mu.Unlock()
}

func TestSemanticPipelineIngestTokensViaChannel(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{}
	src := &fakeSource{chunks: nil}
	extractor := &fakeExtractor{}

	clock := actor.NewRealClock()
	p, err := NewSemanticPipeline("pipe-2", testSettings(store, src, extractor), clock)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := p.Receive(ctx, pipelineIngestTokensMsg{
		batch: TokenBatch{
			DocID:     "ext-doc",
			DocSource: "external",
			Tokens:    []llm.Token{{ID: 0, Text: "foo"}, {ID: 1, Text: "bar"}},
		},
	}).Unpack()
	require.NoError(t, err)
	require.Equal(t, PipelineRunning, res.Status)

	waitFor(t, 2*time.Second, func() bool {
		return extractor.calls.load() >= 1
	})

	p.shutdown(ctx)
}

func TestSemanticPipelineHealthLoopFailsAfterRepeatedUnhealthy(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{}
	src := &fakeSource{connectErr: errConnectFailed}
	extractor := &fakeExtractor{}

	clock := actor.NewRealClock()
	p, err := NewSemanticPipeline("pipe-3", testSettings(store, src, extractor), clock)
	require.NoError(t, err)

	ctx := context.Background()
	t.Cleanup(func() { p.shutdown(ctx) })

	waitFor(t, 2*time.Second, func() bool {
		res, err := p.Receive(ctx, pipelineObserveMsg{}).Unpack()
		return err == nil && res.Status == PipelineRunning
	})

	// Drive checkHealth directly rather than through RunHealthLoop's
	// timers: the collector's poll goroutine marks itself unhealthy once
	// CheckConnectivity fails, so every evaluation cycle should see at
	// least one Unhealthy child and bump the retry counter until the
	// pipeline gives up.
	var status PipelineRunStatus
	for i := 0; i < maxUnhealthyRetries+1; i++ {
		p.checkHealth(ctx)

		p.mu.Lock()
		status = p.status
		p.mu.Unlock()

		if status != PipelineRunning {
			break
		}
	}

	require.Equal(t, PipelineFailed, status)
}

func TestWaitTimeBackoffCapsAt600Seconds(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Second, waitTime(0))
	require.Equal(t, 2*time.Second, waitTime(1))
	require.Equal(t, 4*time.Second, waitTime(2))
	require.Equal(t, 600*time.Second, waitTime(20))
}
