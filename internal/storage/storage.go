// Package storage declares the consumed storage capability interfaces: the
// vector/graph knowledge store the pipeline writes to and discovery reads
// from, and the metadata/secret key-value store backing pipeline, session,
// and secret persistence. Concrete per-backend SQL is out of scope; two
// reference adapters are provided in the pgvectorstore and metastore
// sub-packages.
package storage

import "context"

// SemanticKnowledge is the extracted-triple payload produced by the engine.
type SemanticKnowledge struct {
	Subject       string
	SubjectType   string
	Predicate     string
	PredicateType string
	Object        string
	ObjectType    string
	Sentence      string
	SourceID      string
	EventID       string
	Blob          []byte
	ImageID       string
}

// VectorPayload is the embedded-knowledge payload produced by the engine.
type VectorPayload struct {
	EventID    string
	Embeddings []float32
	Score      float32
}

// GraphRow is one row to insert_graph: a SemanticKnowledge triple tagged
// with its originating document.
type GraphRow struct {
	DocID     string
	DocSource string
	ImageID   string
	Knowledge SemanticKnowledge
}

// VectorRow is one row to insert_vector.
type VectorRow struct {
	DocID     string
	DocSource string
	ImageID   string
	Payload   VectorPayload
}

// DocumentPayload is a similarity-search/traversal result row, joined
// against the semantic-knowledge store on event_id.
type DocumentPayload struct {
	RowID             string
	DocID             string
	Subject           string
	Object            string
	DocSource         string
	Sentence          string
	EventID           string
	Score             float32
	CosineDistance    float32
	RelationshipScore float32
}

// TraversedRow is one result of traverse_metadata_table.
type TraversedRow struct {
	RowID     string
	DocID     string
	Subject   string
	Object    string
	DocSource string
	Sentence  string
	EventID   string
	Score     float32
}

// EntityPair is an ordered (subject, object) filter pair, optionally
// carrying precomputed embeddings for similarity search biasing.
type EntityPair struct {
	Subject      string
	Object       string
	SubjectEmbed []float32
	ObjectEmbed  []float32
}

// QuerySuggestion is one autogenerate_queries result.
type QuerySuggestion struct {
	Query          string
	Tags           []string
	Frequency      int
	TopPairs       []EntityPair
	DocumentSource string
}

// DiscoveredKnowledge is one row returned by get_discovered_data.
type DiscoveredKnowledge struct {
	DocumentPayload DocumentPayload
	DiscoveredAt    int64
}

// Storage is the capability interface the pipeline writes through and
// discovery reads through. Every method is async in spirit (it takes a
// context and may block on network I/O) and returns a tagged error from
// package errs on failure.
type Storage interface {
	CheckConnectivity(ctx context.Context) error

	InsertGraph(ctx context.Context, collectionID string, rows []GraphRow) error
	IndexKnowledge(ctx context.Context, collectionID string, rows []GraphRow) error
	InsertVector(ctx context.Context, collectionID string, rows []VectorRow) error

	// SimilaritySearchL2 returns rows with cosine distance <= 0.5,
	// ordered ascending, joined against the semantic-knowledge store on
	// event_id.
	SimilaritySearchL2(
		ctx context.Context, sessionID, query, pipelineID string,
		embedding []float32, limit, offset int,
		topPairEmbeddings [][]float32, collectionID string,
	) ([]DocumentPayload, error)

	FilterAndQuery(
		ctx context.Context, sessionID string, topPairs []EntityPair,
		limit, offset int,
	) ([]DocumentPayload, error)

	// TraverseMetadataTable traverses one hop (depth 1) from the given
	// entity pairs in both directions.
	TraverseMetadataTable(ctx context.Context, pairs []EntityPair) ([]TraversedRow, error)

	InsertDiscoveredKnowledge(ctx context.Context, rows []DocumentPayload) error

	GetDiscoveredData(
		ctx context.Context, discoverySessionID, pipelineID string,
	) ([]DiscoveredKnowledge, error)

	AutogenerateQueries(ctx context.Context, k int) ([]QuerySuggestion, error)
}

// MetaStore exposes typed get/set/delete over the pipelines,
// discovery_sessions, and insight_sessions tables.
type MetaStore interface {
	Get(ctx context.Context, table, key string) ([]byte, bool, error)
	Set(ctx context.Context, table, key string, value []byte) error
	Delete(ctx context.Context, table, key string) error
	List(ctx context.Context, table string) (map[string][]byte, error)
	Close() error
}

// SecretStore exposes generic get/set/delete plus a named accessor for the
// rian API key, the one secret the original system names explicitly.
type SecretStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	GetRianAPIKey(ctx context.Context) (string, bool, error)
	SetRianAPIKey(ctx context.Context, key string) error
}
