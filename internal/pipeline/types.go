package pipeline

import (
	"strconv"

	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/source"
	"github.com/latticeforge/veridian/internal/storage"
)

// HealthStatus is a child actor's self-reported condition, used by the
// pipeline's health loop.
type HealthStatus int

const (
	HealthHealthy HealthStatus = iota
	HealthUnhealthy
	HealthSuccess
)

// Statistics is the aggregated record the pipeline exposes via
// ObservePipeline, combining every child's running counters.
type Statistics struct {
	TotalDocs              uint64
	TotalEvents            uint64
	TotalEventsProcessed   uint64
	TotalEventsReceived    uint64
	TotalEventsSent        uint64
	TotalBatches           uint64
	TotalSentences         uint64
	TotalSubjects          uint64
	TotalPredicates        uint64
	TotalObjects           uint64
	TotalGraphEvents       uint64
	TotalVectorEvents      uint64
	TotalDataProcessedSize uint64
}

// Add accumulates delta's counters into s.
func (s *Statistics) Add(delta Statistics) {
	s.TotalDocs += delta.TotalDocs
	s.TotalEvents += delta.TotalEvents
	s.TotalEventsProcessed += delta.TotalEventsProcessed
	s.TotalEventsReceived += delta.TotalEventsReceived
	s.TotalEventsSent += delta.TotalEventsSent
	s.TotalBatches += delta.TotalBatches
	s.TotalSentences += delta.TotalSentences
	s.TotalSubjects += delta.TotalSubjects
	s.TotalPredicates += delta.TotalPredicates
	s.TotalObjects += delta.TotalObjects
	s.TotalGraphEvents += delta.TotalGraphEvents
	s.TotalVectorEvents += delta.TotalVectorEvents
	s.TotalDataProcessedSize += delta.TotalDataProcessedSize
}

// AsKV renders the record as the string-valued map cluster.MetricsPublisher
// expects.
func (s Statistics) AsKV() map[string]string {
	fmtU := func(v uint64) string { return strconv.FormatUint(v, 10) }

	return map[string]string{
		"total_docs":                fmtU(s.TotalDocs),
		"total_events":              fmtU(s.TotalEvents),
		"total_events_processed":    fmtU(s.TotalEventsProcessed),
		"total_events_received":     fmtU(s.TotalEventsReceived),
		"total_events_sent":         fmtU(s.TotalEventsSent),
		"total_batches":             fmtU(s.TotalBatches),
		"total_sentences":           fmtU(s.TotalSentences),
		"total_subjects":            fmtU(s.TotalSubjects),
		"total_predicates":          fmtU(s.TotalPredicates),
		"total_objects":             fmtU(s.TotalObjects),
		"total_graph_events":        fmtU(s.TotalGraphEvents),
		"total_vector_events":       fmtU(s.TotalVectorEvents),
		"total_data_processed_size": fmtU(s.TotalDataProcessedSize),
	}
}

// PipelineSettings is the caller-supplied configuration for one pipeline
// instance: where to collect from, which LM to tokenize with, which
// extraction engine to run, and which storage to write to.
type PipelineSettings struct {
	CollectionID string
	Source       source.Source
	Model        llm.Model
	Extractor    Extractor
	Storage      storage.Storage
	EntityList   []string
	BatchSize    int
}
