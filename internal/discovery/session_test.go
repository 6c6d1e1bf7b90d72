package discovery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/storage"
)

// fakeStorage is a scripted storage.Storage: SimilaritySearchL2 and
// FilterAndQuery each return the next page from a configured queue, by
// call count, so pagination tests don't need a real backend.
type fakeStorage struct {
	mu sync.Mutex

	simPages    [][]storage.DocumentPayload
	filterPages [][]storage.DocumentPayload
	suggestions []storage.QuerySuggestion
	traverseOut []storage.TraversedRow

	simCalls     int
	filterCalls  int
	discovered   []storage.DocumentPayload
	traverseArgs []storage.EntityPair
}

func (s *fakeStorage) CheckConnectivity(ctx context.Context) error { return nil }

func (s *fakeStorage) InsertGraph(ctx context.Context, collectionID string, rows []storage.GraphRow) error {
	return nil
}

func (s *fakeStorage) IndexKnowledge(ctx context.Context, collectionID string, rows []storage.GraphRow) error {
	return nil
}

func (s *fakeStorage) InsertVector(ctx context.Context, collectionID string, rows []storage.VectorRow) error {
	return nil
}

func (s *fakeStorage) SimilaritySearchL2(
	ctx context.Context, sessionID, query, pipelineID string,
	embedding []float32, limit, offset int,
	topPairEmbeddings [][]float32, collectionID string,
) ([]storage.DocumentPayload, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.simCalls >= len(s.simPages) {
		return nil, nil
	}
	page := s.simPages[s.simCalls]
	s.simCalls++
	return page, nil
}

func (s *fakeStorage) FilterAndQuery(
	ctx context.Context, sessionID string, topPairs []storage.EntityPair,
	limit, offset int,
) ([]storage.DocumentPayload, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filterCalls >= len(s.filterPages) {
		return nil, nil
	}
	page := s.filterPages[s.filterCalls]
	s.filterCalls++
	return page, nil
}

func (s *fakeStorage) TraverseMetadataTable(
	ctx context.Context, pairs []storage.EntityPair,
) ([]storage.TraversedRow, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	s.traverseArgs = pairs
	return s.traverseOut, nil
}

func (s *fakeStorage) InsertDiscoveredKnowledge(ctx context.Context, rows []storage.DocumentPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discovered = append(s.discovered, rows...)
	return nil
}

func (s *fakeStorage) GetDiscoveredData(
	ctx context.Context, discoverySessionID, pipelineID string,
) ([]storage.DiscoveredKnowledge, error) {
	return nil, nil
}

func (s *fakeStorage) AutogenerateQueries(ctx context.Context, k int) ([]storage.QuerySuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestions, nil
}

func TestSessionSearchPaginationAdvancesPageRankAndResetsOnChangedQuery(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{
		simPages: [][]storage.DocumentPayload{
			{{Sentence: "s1", Subject: "A", Object: "B", Score: 1}},
			nil,
			{{Sentence: "s2", Subject: "C", Object: "D", Score: 1}},
			nil,
			{{Sentence: "s3", Subject: "E", Object: "F", Score: 1}},
			nil,
		},
	}
	model := llm.NewFixtureModel(0, 0, nil)

	s := NewSession("sess-1", ModeSearch, store, model)
	ctx := context.Background()

	out1, err := s.Query(ctx, QueryRequest{Query: "alpha"})
	require.NoError(t, err)
	require.Len(t, out1, 1)
	require.Equal(t, 1, s.state.pageRank)

	out2, err := s.Query(ctx, QueryRequest{Query: "alpha"})
	require.NoError(t, err)
	require.Len(t, out2, 1)
	require.Equal(t, 2, s.state.pageRank)
	require.NotEqual(t, out1[0].Sentence, out2[0].Sentence)

	out3, err := s.Query(ctx, QueryRequest{Query: "beta"})
	require.NoError(t, err)
	require.Len(t, out3, 1)
	require.Equal(t, 1, s.state.pageRank)
}

func TestSessionReturnsAutogeneratedSuggestionsWhenEmpty(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{
		suggestions: []storage.QuerySuggestion{
			{Query: "suggested query 1"},
			{Query: "suggested query 2"},
		},
	}
	model := llm.NewFixtureModel(0, 0, nil)

	s := NewSession("sess-2", ModeSearch, store, model)

	out, err := s.Query(context.Background(), QueryRequest{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, ins := range out {
		require.Equal(t, autogenSuggestionTag, ins.Tag)
	}
}

func TestSessionTraverserExtractsAndWalksPairs(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{
		simPages: [][]storage.DocumentPayload{
			{
				{Sentence: "s1", Subject: "A", Object: "B", Score: 1, CosineDistance: 0.1},
				{Sentence: "s2", Subject: "C", Object: "D", Score: 1, CosineDistance: 0.5},
			},
			nil,
		},
		traverseOut: []storage.TraversedRow{
			{RowID: "r1", DocID: "d1", Subject: "A", Object: "B", Sentence: "s1", Score: 0.9},
		},
	}
	model := llm.NewFixtureModel(0, 0, nil)

	s := NewSession("sess-3", ModeTraverser, store, model)

	out, err := s.Query(context.Background(), QueryRequest{Query: "alpha"})
	require.NoError(t, err)
	require.NotEmpty(t, out)

	require.Len(t, store.traverseArgs, 1)
	require.Equal(t, "A", store.traverseArgs[0].Subject)
	require.Equal(t, "B", store.traverseArgs[0].Object)

	var found bool
	for _, ins := range out {
		if ins.RelationshipStrength == 0.9 {
			found = true
		}
	}
	require.True(t, found)
}
