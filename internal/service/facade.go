package service

import (
	"context"

	"github.com/latticeforge/veridian/internal/discovery"
	"github.com/latticeforge/veridian/internal/pipeline"
)

// Facade is the single entry point the public service surface of spec.md
// §6 sits behind: pipeline lifecycle and token ingestion against a
// pipeline.SemanticService, plus discovery/insight sessions against a
// discovery.SessionTable. It adds no behavior of its own beyond that
// delegation — transport (REST/gRPC), auth, and request decoding are all
// Non-goals.
type Facade struct {
	pipelines *pipeline.SemanticService
	sessions  *discovery.SessionTable
}

// NewFacade wires a Facade over an already-constructed pipeline registry
// and discovery session table.
func NewFacade(pipelines *pipeline.SemanticService, sessions *discovery.SessionTable) *Facade {
	return &Facade{pipelines: pipelines, sessions: sessions}
}

// StartPipeline spawns a new pipeline under id.
func (f *Facade) StartPipeline(
	ctx context.Context, id string, settings pipeline.PipelineSettings,
) (string, error) {
	return f.pipelines.SpawnPipeline(ctx, id, settings)
}

// StopPipeline shuts down and unregisters the named pipeline.
func (f *Facade) StopPipeline(ctx context.Context, id string) error {
	return f.pipelines.ShutdownPipeline(ctx, id)
}

// RestartPipeline shuts down and respawns the named pipeline with its
// original settings.
func (f *Facade) RestartPipeline(ctx context.Context, id string) (string, error) {
	return f.pipelines.RestartPipeline(ctx, id)
}

// SendTokens forwards a token batch to the named pipeline.
func (f *Facade) SendTokens(ctx context.Context, id string, batch pipeline.TokenBatch) error {
	return f.pipelines.SendIngestedTokens(ctx, id, batch)
}

// ObservePipeline returns the named pipeline's current statistics.
func (f *Facade) ObservePipeline(ctx context.Context, id string) (pipeline.Statistics, error) {
	return f.pipelines.ObservePipeline(ctx, id)
}

// ListPipelines returns the ids of every currently-registered pipeline.
func (f *Facade) ListPipelines() []string {
	return f.pipelines.GetPipelinesMetadata()
}

// StartDiscoverySession creates a discovery session in the given mode.
func (f *Facade) StartDiscoverySession(id string, mode discovery.Mode) *discovery.Session {
	return f.sessions.StartSession(id, mode)
}

// StopDiscoverySession destroys a discovery session.
func (f *Facade) StopDiscoverySession(id string) error {
	return f.sessions.StopSession(id)
}

// PageDiscovery runs one page of a discovery session's retrieval loop.
func (f *Facade) PageDiscovery(
	ctx context.Context, id string, req discovery.QueryRequest,
) ([]discovery.Insight, error) {

	sess, err := f.sessions.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.Query(ctx, req)
}

// StartInsightSession creates an LLM-wrapped insight session in the given
// mode. hasLLM controls whether Prompt calls below generate a summary or
// degrade to raw insights.
func (f *Facade) StartInsightSession(
	id string, mode discovery.Mode, hasLLM bool,
) *discovery.InsightSession {
	return f.sessions.StartInsightSession(id, mode, hasLLM)
}

// StopInsightSession destroys an insight session.
func (f *Facade) StopInsightSession(id string) error {
	return f.sessions.StopInsightSession(id)
}

// PromptInsight asks an insight session for a retrieval-grounded summary.
func (f *Facade) PromptInsight(
	ctx context.Context, id string, req discovery.QueryRequest,
) (string, []discovery.Insight, error) {

	sess, err := f.sessions.InsightSession(id)
	if err != nil {
		return "", nil, err
	}
	return sess.Prompt(ctx, req)
}
