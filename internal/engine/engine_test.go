package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeforge/veridian/internal/llm"
)

func TestExtractProducesGraphAndVectorRowsForEntityPair(t *testing.T) {
	t.Parallel()

	model := llm.NewFixtureModel(512, 8, map[string]string{
		"alice": "PERSON",
		"acme":  "ORG",
	})

	e := NewEngine(model, []string{"Alice", "Acme"}, Config{})

	ctx := context.Background()
	tokens, err := model.Tokenize(ctx, "Alice joined Acme yesterday.")
	require.NoError(t, err)

	out, err := e.Extract(ctx, "doc-1", "fixture", tokens)
	require.NoError(t, err)
	require.Len(t, out.Graph, 1)
	require.Len(t, out.Vectors, 1)

	row := out.Graph[0].Knowledge
	require.Equal(t, "Alice", row.Subject)
	require.Equal(t, "Acme", row.Object)
}

func TestExtractSkipsChunksWithFewerThanTwoEntities(t *testing.T) {
	t.Parallel()

	model := llm.NewFixtureModel(512, 8, map[string]string{"alice": "PERSON"})
	e := NewEngine(model, []string{"Alice"}, Config{})

	ctx := context.Background()
	tokens, err := model.Tokenize(ctx, "Alice went home.")
	require.NoError(t, err)

	out, err := e.Extract(ctx, "doc-2", "fixture", tokens)
	require.NoError(t, err)
	require.Empty(t, out.Graph)
	require.Empty(t, out.Vectors)
}

func TestExtractEmitsL2NormalisedEmbeddings(t *testing.T) {
	t.Parallel()

	model := llm.NewFixtureModel(512, 8, map[string]string{
		"alice": "PERSON",
		"acme":  "ORG",
	})
	e := NewEngine(model, []string{"Alice", "Acme"}, Config{})

	ctx := context.Background()
	tokens, err := model.Tokenize(ctx, "Alice joined Acme yesterday.")
	require.NoError(t, err)

	out, err := e.Extract(ctx, "doc-3", "fixture", tokens)
	require.NoError(t, err)
	require.NotEmpty(t, out.Vectors)

	for _, v := range out.Vectors {
		var sumSq float64
		for _, x := range v.Payload.Embeddings {
			sumSq += float64(x) * float64(x)
		}
		require.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-3)
	}
}

func TestSplitSentencesAndPackChunksRespectMaxTokens(t *testing.T) {
	t.Parallel()

	model := llm.NewFixtureModel(3, 8, nil)
	ctx := context.Background()

	tokens, err := model.Tokenize(ctx, "One two three. Four five six seven eight nine.")
	require.NoError(t, err)

	sentences := splitSentences(tokens)
	require.Len(t, sentences, 2)

	chunks := packChunks(sentences, model.MaximumTokens())
	for _, c := range chunks {
		require.LessOrEqual(t, len(c.Tokens), 3)
	}
}
