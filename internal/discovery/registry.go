package discovery

import (
	"sync"

	"github.com/latticeforge/veridian/internal/errs"
	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/storage"
)

// SessionTable is the single-writer-lock-protected registry of live
// discovery and insight sessions, the same short-critical-section
// discipline cluster.Registry and actor.Receptionist use.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	insights map[string]*InsightSession
	store    storage.Storage
	model    llm.Model
}

// NewSessionTable constructs an empty registry backed by store and model.
func NewSessionTable(store storage.Storage, model llm.Model) *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*Session),
		insights: make(map[string]*InsightSession),
		store:    store,
		model:    model,
	}
}

// StartSession creates and registers a new discovery session, replacing
// any existing session under the same id — unlike pipeline ids, session
// ids are caller-generated per the spec's "created on start session"
// lifecycle and carry no duplicate-registration guard.
func (t *SessionTable) StartSession(id string, mode Mode) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := NewSession(id, mode, t.store, t.model)
	t.sessions[id] = s
	return s
}

// StopSession destroys a discovery session.
func (t *SessionTable) StopSession(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[id]; !ok {
		return errs.ErrNotFound
	}
	delete(t.sessions, id)
	return nil
}

// Session looks up a live discovery session.
func (t *SessionTable) Session(id string) (*Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return s, nil
}

// StartInsightSession creates and registers a new insight session wrapping
// a freshly-created discovery session.
func (t *SessionTable) StartInsightSession(id string, mode Mode, hasLLM bool) *InsightSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := NewSession(id, mode, t.store, t.model)
	ins := NewInsightSession(s, hasLLM)
	t.insights[id] = ins
	return ins
}

// StopInsightSession destroys an insight session.
func (t *SessionTable) StopInsightSession(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.insights[id]; !ok {
		return errs.ErrNotFound
	}
	delete(t.insights, id)
	return nil
}

// InsightSession looks up a live insight session.
func (t *SessionTable) InsightSession(id string) (*InsightSession, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.insights[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return s, nil
}
