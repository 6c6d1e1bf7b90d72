package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/discovery"
	"github.com/latticeforge/veridian/internal/errs"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/pipeline"
	"github.com/latticeforge/veridian/internal/source"
	"github.com/latticeforge/veridian/internal/storage"
)

// fakeSource replays a fixed set of chunks, grounded on the same idiom as
// pipeline_test.go's fakeSource.
type fakeSource struct {
	chunks []source.CollectedBytes
}

func (f *fakeSource) CheckConnectivity(ctx context.Context) error { return nil }

func (f *fakeSource) PollData(ctx context.Context) (<-chan source.CollectedBytes, error) {
	ch := make(chan source.CollectedBytes, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeSource) GetSlice(ctx context.Context, id string, offset, n int64) ([]byte, error) {
	return nil, nil
}
func (f *fakeSource) GetAll(ctx context.Context, id string) ([]byte, error)    { return nil, nil }
func (f *fakeSource) FileNumBytes(ctx context.Context, id string) (int64, error) { return 0, nil }
func (f *fakeSource) CopyTo(ctx context.Context, id, destPath string) error      { return nil }

type fakeExtractor struct{}

func (fakeExtractor) Extract(
	ctx context.Context, docID, docSource string, tokens []llm.Token,
) (pipeline.Extraction, error) {
	return pipeline.Extraction{}, nil
}

// fakeStorage is a no-op storage.Storage, sufficient for the facade's
// lifecycle tests which don't assert on persisted content.
type fakeStorage struct{}

func (fakeStorage) CheckConnectivity(ctx context.Context) error { return nil }
func (fakeStorage) InsertGraph(ctx context.Context, collectionID string, rows []storage.GraphRow) error {
	return nil
}
func (fakeStorage) IndexKnowledge(ctx context.Context, collectionID string, rows []storage.GraphRow) error {
	return nil
}
func (fakeStorage) InsertVector(ctx context.Context, collectionID string, rows []storage.VectorRow) error {
	return nil
}
func (fakeStorage) SimilaritySearchL2(
	ctx context.Context, sessionID, query, pipelineID string,
	embedding []float32, limit, offset int,
	topPairEmbeddings [][]float32, collectionID string,
) ([]storage.DocumentPayload, error) {
	return nil, nil
}
func (fakeStorage) FilterAndQuery(
	ctx context.Context, sessionID string, topPairs []storage.EntityPair,
	limit, offset int,
) ([]storage.DocumentPayload, error) {
	return nil, nil
}
func (fakeStorage) TraverseMetadataTable(
	ctx context.Context, pairs []storage.EntityPair,
) ([]storage.TraversedRow, error) {
	return nil, nil
}
func (fakeStorage) InsertDiscoveredKnowledge(ctx context.Context, rows []storage.DocumentPayload) error {
	return nil
}
func (fakeStorage) GetDiscoveredData(
	ctx context.Context, discoverySessionID, pipelineID string,
) ([]storage.DiscoveredKnowledge, error) {
	return nil, nil
}
func (fakeStorage) AutogenerateQueries(ctx context.Context, k int) ([]storage.QuerySuggestion, error) {
	return nil, nil
}

func testSettings() pipeline.PipelineSettings {
	return pipeline.PipelineSettings{
		CollectionID: "svc-test-collection",
		Source: &fakeSource{chunks: []source.CollectedBytes{
			{Data: []byte("a b c"), SourceID: "d1", DocSource: "fixture", Size: 5, EOF: true},
		}},
		Model:     llm.NewFixtureModel(0, 0, nil),
		Extractor: fakeExtractor{},
		Storage:   fakeStorage{},
		BatchSize: 1,
	}
}

func newTestFacade() *Facade {
	pipelines := pipeline.NewSemanticService(actor.NewRealClock(), nil)
	sessions := discovery.NewSessionTable(fakeStorage{}, llm.NewFixtureModel(0, 0, nil))
	return NewFacade(pipelines, sessions)
}

func TestFacadePipelineLifecycle(t *testing.T) {
	t.Parallel()

	f := newTestFacade()
	ctx := context.Background()

	id, err := f.StartPipeline(ctx, "svc-facade-1", testSettings())
	require.NoError(t, err)
	require.Equal(t, "svc-facade-1", id)

	require.Contains(t, f.ListPipelines(), "svc-facade-1")

	require.Eventually(t, func() bool {
		stats, err := f.ObservePipeline(ctx, "svc-facade-1")
		return err == nil && stats.TotalGraphEvents+stats.TotalDocs >= 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.StopPipeline(ctx, "svc-facade-1"))

	_, err = f.ObservePipeline(ctx, "svc-facade-1")
	require.Equal(t, CodeNotFound, MapError(err))
}

func TestFacadeDiscoveryAndInsightSessions(t *testing.T) {
	t.Parallel()

	f := newTestFacade()
	ctx := context.Background()

	sess := f.StartDiscoverySession("svc-disc-1", discovery.ModeSearch)
	require.Equal(t, "svc-disc-1", sess.ID())

	insights, err := f.PageDiscovery(ctx, "svc-disc-1", discovery.QueryRequest{})
	require.NoError(t, err)
	require.NotNil(t, insights)

	require.NoError(t, f.StopDiscoverySession("svc-disc-1"))

	_, err = f.PageDiscovery(ctx, "svc-disc-1", discovery.QueryRequest{})
	require.Equal(t, CodeNotFound, MapError(err))

	ins := f.StartInsightSession("svc-ins-1", discovery.ModeSearch, false)
	require.NotNil(t, ins)

	summary, _, err := f.PromptInsight(ctx, "svc-ins-1", discovery.QueryRequest{})
	require.NoError(t, err)
	require.NotNil(t, summary)

	require.NoError(t, f.StopInsightSession("svc-ins-1"))
}

func TestMapErrorCodes(t *testing.T) {
	t.Parallel()

	require.Equal(t, CodeNotFound, MapError(errs.ErrPipelineNotFound))
	require.Equal(t, CodeNotFound, MapError(errs.ErrNotFound))
	require.Equal(t, CodeBadRequest, MapError(errs.ErrPipelineAlreadyExists))
	require.Equal(t, CodeBadRequest, MapError(errs.ErrInvalidParams))
	require.Equal(t, CodeUnauthorized, MapError(errs.ErrUnauthorized))
	require.Equal(t, CodeUnavailable, MapError(errs.ErrUnavailable))
	require.Equal(t, CodeTimeout, MapError(errs.ErrObserveTimeout))
	require.Equal(t, CodeInternal, MapError(errs.ErrDatabase))
	require.Equal(t, CodeNotFound, MapError(&errs.ErrorReply{Inner: errs.ErrPipelineNotFound}))
}
