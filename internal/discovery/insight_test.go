package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/storage"
)

func TestInsightSessionDegradesToRawInsightsWithoutLLM(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{
		simPages: [][]storage.DocumentPayload{
			{{Sentence: "paris is the capital of france", Subject: "paris", Object: "france", Score: 1}},
			nil,
		},
	}
	model := llm.NewFixtureModel(0, 0, nil)

	sess := NewSession("ins-sess-1", ModeSearch, store, model)
	ins := NewInsightSession(sess, false)

	summary, insights, err := ins.Prompt(context.Background(), QueryRequest{Query: "capital of france"})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Contains(t, summary, "paris is the capital of france")
}

func TestInsightSessionGeneratesSummaryWithLLM(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{
		simPages: [][]storage.DocumentPayload{
			{{Sentence: "paris is the capital of france", Subject: "paris", Object: "france", Score: 1}},
			nil,
		},
	}
	model := llm.NewFixtureModel(0, 0, nil)

	sess := NewSession("ins-sess-2", ModeSearch, store, model)
	ins := NewInsightSession(sess, true)

	summary, insights, err := ins.Prompt(context.Background(), QueryRequest{Query: "capital of france"})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Contains(t, summary, "summary of:")

	require.Len(t, ins.history, 1)
}
