package discovery

import "github.com/latticeforge/veridian/internal/storage"

// Mode selects a Session's retrieval loop.
type Mode int

const (
	// ModeSearch is the plain vector-similarity/pair-filter retrieval
	// loop.
	ModeSearch Mode = iota
	// ModeTraverser additionally walks the semantic-knowledge graph one
	// hop from the extracted pair set.
	ModeTraverser
)

// autogenSuggestionTag labels insights synthesized from
// autogenerate_queries rather than returned by a real retrieval call.
const autogenSuggestionTag = "Auto-generated suggestions"

// maxInsightsPerPage is the page size every retrieval loop fills before
// returning.
const maxInsightsPerPage = 10

// pairCosineDistanceCap bounds which similarity-search rows the Traverser
// variant extracts pairs from.
const pairCosineDistanceCap = 0.2

// maxTraversalPairs caps how many pairs the Traverser variant extracts
// per page.
const maxTraversalPairs = 3

// Insight is one ranked, deduplicated-by-sentence result returned by a
// retrieval loop.
type Insight struct {
	Sentence             string
	Subject              string
	Object               string
	DocID                string
	DocSource            string
	EventID              string
	Score                float32
	RelationshipStrength float32
	Tag                  string
}

// QueryRequest is one page request against a Session.
type QueryRequest struct {
	SessionID    string
	PipelineID   string
	CollectionID string
	Query        string
	TopPairs     []storage.EntityPair
}

// sessionState is the per-session pagination/cache state the spec names:
// last_query, last_top_pairs, current_offset, current_page_rank, and (for
// the Traverser variant) the previously extracted pair set.
type sessionState struct {
	lastQuery    string
	lastTopPairs []storage.EntityPair
	offset       int
	pageRank     int
	prevPairs    map[pairKey]storage.EntityPair
}

// pairKey identifies an EntityPair by its subject/object text, since
// storage.EntityPair carries no identifier of its own.
type pairKey struct {
	subject string
	object  string
}

func keyOf(p storage.EntityPair) pairKey {
	return pairKey{subject: p.Subject, object: p.Object}
}

func samePairs(a, b []storage.EntityPair) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[pairKey]bool, len(a))
	for _, p := range a {
		seen[keyOf(p)] = true
	}
	for _, p := range b {
		if !seen[keyOf(p)] {
			return false
		}
	}
	return true
}
