package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// conversationWindow is how many past (query, summary) turns an
// InsightSession keeps in its bounded memory.
const conversationWindow = 5

// turn is one past exchange kept in an InsightSession's memory window.
type turn struct {
	query   string
	summary string
}

// InsightSession wraps a Session with a conversational agent: on a query
// it retrieves documents the same way Session.Query does, formats them
// plus a bounded window of prior turns into a prompt, and asks the model
// to generate a summary. When no LLM key is configured (model is nil),
// it degrades to returning the raw retrieved insights.
type InsightSession struct {
	session *Session
	hasLLM  bool

	mu      sync.Mutex
	history []turn
}

// NewInsightSession wraps session. hasLLM controls whether Prompt
// generates a summary via the model or falls back to raw insights —
// mirroring the spec's "no license/LLM key configured" degraded path.
func NewInsightSession(session *Session, hasLLM bool) *InsightSession {
	return &InsightSession{session: session, hasLLM: hasLLM}
}

// Prompt retrieves documents for req and either returns them raw (no LLM
// configured) or folds them plus the bounded conversation history into a
// prompt and returns the model's generated summary.
func (s *InsightSession) Prompt(ctx context.Context, req QueryRequest) (string, []Insight, error) {
	insights, err := s.session.Query(ctx, req)
	if err != nil {
		return "", nil, err
	}

	if !s.hasLLM || s.session.model == nil {
		return renderInsights(insights), insights, nil
	}

	s.mu.Lock()
	prompt := s.buildPrompt(req.Query, insights)
	s.mu.Unlock()

	summary, err := s.session.model.Generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	s.history = append(s.history, turn{query: req.Query, summary: summary})
	if len(s.history) > conversationWindow {
		s.history = s.history[len(s.history)-conversationWindow:]
	}
	s.mu.Unlock()

	return summary, insights, nil
}

func (s *InsightSession) buildPrompt(query string, insights []Insight) string {
	var b strings.Builder

	for _, t := range s.history {
		fmt.Fprintf(&b, "Previous question: %s\nPrevious answer: %s\n\n", t.query, t.summary)
	}

	b.WriteString("Question: " + query + "\n")
	b.WriteString("Retrieved context:\n")
	for _, ins := range insights {
		fmt.Fprintf(&b, "- (%s) %s\n", ins.Tag, ins.Sentence)
	}
	b.WriteString("\nSummarize the retrieved context in response to the question.")

	return b.String()
}

func renderInsights(insights []Insight) string {
	var b strings.Builder
	for _, ins := range insights {
		fmt.Fprintf(&b, "%s: %s\n", ins.Tag, ins.Sentence)
	}
	return b.String()
}
