package discovery

import (
	"context"
	"sync"

	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/storage"
)

// Session holds one discovery session's pagination state and drives
// either the Search or Traverser retrieval loop against it. A Session is
// safe for concurrent Query calls; the single-writer lock around its
// state follows the same short-critical-section discipline as
// cluster.Registry and actor.Receptionist.
type Session struct {
	id    string
	mode  Mode
	store storage.Storage
	model llm.Model

	mu    sync.Mutex
	state sessionState
}

// NewSession constructs a Session. mode selects the Search or Traverser
// retrieval loop; the session's lifecycle otherwise matches the spec's
// "created on start session, destroyed on stop or owning-actor kill".
func NewSession(id string, mode Mode, store storage.Storage, model llm.Model) *Session {
	return &Session{id: id, mode: mode, store: store, model: model}
}

// ID returns this session's identifier.
func (s *Session) ID() string { return s.id }

// Query runs one page of the session's retrieval loop.
func (s *Session) Query(ctx context.Context, req QueryRequest) ([]Insight, error) {
	req.SessionID = s.id

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeSearch {
		return retrieveCore(ctx, s.store, s.model, &s.state, req, nil)
	}

	return s.traverserQuery(ctx, req)
}

// traverserQuery layers the graph-walk on top of retrieveCore's loop: the
// first page of rows it sees is used to extract a candidate pair set,
// which is then compared against the session's previously traversed set
// (intersected when non-fresh and non-empty, else used as-is), traversed
// one hop via TraverseMetadataTable, and persisted.
func (s *Session) traverserQuery(ctx context.Context, req QueryRequest) ([]Insight, error) {
	changed := req.Query != s.state.lastQuery || !samePairs(req.TopPairs, s.state.lastTopPairs)

	var traversed []Insight
	var traverseErr error
	extractedOnce := false

	traverse := func(ctx context.Context, rows []storage.DocumentPayload) {
		if extractedOnce {
			return
		}
		extractedOnce = true

		extracted := extractTraversalPairs(rows)

		toWalk := extracted
		if !changed {
			if intersection := intersectPairs(extracted, s.state.prevPairs); len(intersection) > 0 {
				toWalk = intersection
			}
		}
		s.state.prevPairs = extracted

		pairs := pairMapValues(toWalk)
		if len(pairs) == 0 {
			return
		}

		rows2, err := s.store.TraverseMetadataTable(ctx, pairs)
		if err != nil {
			traverseErr = err
			return
		}

		traversed = make([]Insight, len(rows2))
		docs := make([]storage.DocumentPayload, len(rows2))
		for i, tr := range rows2 {
			traversed[i] = Insight{
				Sentence:             tr.Sentence,
				Subject:              tr.Subject,
				Object:               tr.Object,
				DocID:                tr.DocID,
				DocSource:            tr.DocSource,
				EventID:              tr.EventID,
				RelationshipStrength: tr.Score,
				Tag:                  tr.Subject + "-" + tr.Object,
			}
			docs[i] = storage.DocumentPayload{
				RowID: tr.RowID, DocID: tr.DocID, Subject: tr.Subject,
				Object: tr.Object, DocSource: tr.DocSource, Sentence: tr.Sentence,
				EventID: tr.EventID, Score: tr.Score,
			}
		}

		go func() {
			if err := s.store.InsertDiscoveredKnowledge(context.Background(), docs); err != nil {
				log.WarnS(context.Background(), "persisting traversed rows failed", err)
			}
		}()
	}

	baseInsights, err := retrieveCore(ctx, s.store, s.model, &s.state, req, traverse)
	if err != nil {
		return nil, err
	}
	if traverseErr != nil {
		return nil, traverseErr
	}

	out := append(baseInsights, traversed...)
	if len(out) > maxInsightsPerPage {
		out = out[:maxInsightsPerPage]
	}
	return out, nil
}

func intersectPairs(a, b map[pairKey]storage.EntityPair) map[pairKey]storage.EntityPair {
	out := make(map[pairKey]storage.EntityPair)
	for k, p := range a {
		if _, ok := b[k]; ok {
			out[k] = p
		}
	}
	return out
}

func pairMapValues(m map[pairKey]storage.EntityPair) []storage.EntityPair {
	out := make([]storage.EntityPair, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}
