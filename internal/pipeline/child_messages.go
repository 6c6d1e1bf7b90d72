package pipeline

import (
	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/source"
	"github.com/latticeforge/veridian/internal/storage"
)

// childMessage is the single sealed message type shared by every child
// actor of a SemanticPipeline (Collector, Ingestor, EventStreamer,
// Indexer, StorageMapper, EngineRunner). Every child actor therefore
// shares one Actor[childMessage, childResult] instantiation; what varies
// between them is which variants their Receive switch handles, not the
// generic actor type itself.
type childMessage interface {
	actor.Message
	childMessageMarker()
}

// childResult is the common reply type across every child actor.
type childResult struct {
	Health HealthStatus
	Stats  Statistics
}

type baseChildMessage struct {
	actor.BaseMessage
}

func (baseChildMessage) childMessageMarker() {}

// healthCheckMsg asks a child to report its current HealthStatus.
type healthCheckMsg struct {
	baseChildMessage
}

func (healthCheckMsg) MessageType() string { return "pipeline.health_check" }

// statsMsg asks a child to report its running Statistics.
type statsMsg struct {
	baseChildMessage
}

func (statsMsg) MessageType() string { return "pipeline.stats" }

// shutdownMsg is answered by every child with HealthSuccess; no child
// stops or drains work on receiving it. The pipeline does not send it and
// tears children down through the actor system's normal Stop.
type shutdownMsg struct {
	baseChildMessage
}

func (shutdownMsg) MessageType() string { return "pipeline.shutdown" }

// ingestMsg carries one collected chunk from Collector to Ingestor.
type ingestMsg struct {
	baseChildMessage
	data source.CollectedBytes
}

func (ingestMsg) MessageType() string { return "pipeline.ingest" }

// docSeenMsg notifies EventStreamer that Collector finished pulling one
// document, for total_docs/total_data_processed_size accounting.
type docSeenMsg struct {
	baseChildMessage
	size int64
}

func (docSeenMsg) MessageType() string { return "pipeline.doc_seen" }

// graphEventMsg carries one extracted triple from EngineRunner to
// EventStreamer, which fans it out to StorageMapper and Indexer.
type graphEventMsg struct {
	baseChildMessage
	row storage.GraphRow
}

func (graphEventMsg) MessageType() string { return "pipeline.graph_event" }

// vectorEventMsg carries one embedded payload from EngineRunner to
// EventStreamer, which fans it out to StorageMapper.
type vectorEventMsg struct {
	baseChildMessage
	row storage.VectorRow
}

func (vectorEventMsg) MessageType() string { return "pipeline.vector_event" }

// batchDoneMsg notifies Indexer that EventStreamer finished a batch,
// prompting it to flush pending rows through IndexKnowledge.
type batchDoneMsg struct {
	baseChildMessage
	sentenceCount int
}

func (batchDoneMsg) MessageType() string { return "pipeline.batch_done" }
