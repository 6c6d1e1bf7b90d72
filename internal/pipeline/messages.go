package pipeline

import "github.com/latticeforge/veridian/internal/baselib/actor"

// pipelineMessage is the sealed message type a SemanticPipeline actor
// receives: either a control request from SemanticService, an injected
// token batch, or its own internal health-check retry trigger.
type pipelineMessage interface {
	actor.Message
	pipelineMessageMarker()
}

type basePipelineMessage struct {
	actor.BaseMessage
}

func (basePipelineMessage) pipelineMessageMarker() {}

// pipelineObserveMsg asks the pipeline for its current aggregated
// Statistics.
type pipelineObserveMsg struct {
	basePipelineMessage
}

func (pipelineObserveMsg) MessageType() string { return "pipeline.observe" }

// pipelineShutdownMsg asks the pipeline to cancel its children's context
// and Stop every child actor.
type pipelineShutdownMsg struct {
	basePipelineMessage
}

func (pipelineShutdownMsg) MessageType() string { return "pipeline.shutdown_pipe" }

// Priority marks shutdown as urgent, so it is never stuck behind a backlog
// of routine observe/ingest traffic in the pipeline actor's mailbox.
func (pipelineShutdownMsg) Priority() int { return 1 }

// pipelineIngestTokensMsg forwards an externally-supplied token batch
// onto the pipeline's token channel.
type pipelineIngestTokensMsg struct {
	basePipelineMessage
	batch TokenBatch
}

func (pipelineIngestTokensMsg) MessageType() string { return "pipeline.ingested_tokens" }

// pipelineTriggerMsg is the pipeline's own health-loop retry
// self-message, scheduled after wait_time(retry) when a check finds any
// child Unhealthy.
type pipelineTriggerMsg struct {
	basePipelineMessage
}

func (pipelineTriggerMsg) MessageType() string { return "pipeline.health_trigger" }

// Priority marks the health-loop retry trigger as urgent for the same
// reason as pipelineShutdownMsg: a wedged child's recovery check must not
// wait behind routine ingest traffic.
func (pipelineTriggerMsg) Priority() int { return 1 }

// pipelineResult is the reply type for every pipelineMessage.
type pipelineResult struct {
	Stats  Statistics
	Status PipelineRunStatus
	Retry  int
	Err    error
}

// PipelineRunStatus is the terminal/non-terminal state of a pipeline's
// health loop, surfaced to SemanticService for reaping.
type PipelineRunStatus int

const (
	PipelineRunning PipelineRunStatus = iota
	PipelineSucceeded
	PipelineFailed
)

func (s PipelineRunStatus) String() string {
	switch s {
	case PipelineSucceeded:
		return "successful"
	case PipelineFailed:
		return "failed"
	default:
		return "running"
	}
}

// serviceMessage is the sealed message type SemanticService receives.
type serviceMessage interface {
	actor.Message
	serviceMessageMarker()
}

type baseServiceMessage struct {
	actor.BaseMessage
}

func (baseServiceMessage) serviceMessageMarker() {}

type spawnPipelineMsg struct {
	baseServiceMessage
	id       string
	settings PipelineSettings
}

func (spawnPipelineMsg) MessageType() string { return "service.spawn_pipeline" }

type observePipelineMsg struct {
	baseServiceMessage
	id string
}

func (observePipelineMsg) MessageType() string { return "service.observe_pipeline" }

type shutdownPipelineMsg struct {
	baseServiceMessage
	id string
}

func (shutdownPipelineMsg) MessageType() string { return "service.shutdown_pipeline" }

type sendIngestedTokensMsg struct {
	baseServiceMessage
	id    string
	batch TokenBatch
}

func (sendIngestedTokensMsg) MessageType() string { return "service.send_ingested_tokens" }

type restartPipelineMsg struct {
	baseServiceMessage
	id string
}

func (restartPipelineMsg) MessageType() string { return "service.restart_pipeline" }

type getPipelinesMetadataMsg struct {
	baseServiceMessage
}

func (getPipelinesMetadataMsg) MessageType() string { return "service.get_pipelines_metadata" }

// reapMsg is the service's own HEARTBEAT self-message that sweeps
// terminal pipelines and publishes stats.
type reapMsg struct {
	baseServiceMessage
}

func (reapMsg) MessageType() string { return "service.reap" }

// serviceResult is the reply type for every serviceMessage.
type serviceResult struct {
	PipelineID string
	Stats      Statistics
	IDs        []string
	Counters   ServiceCounters
	Err        error
}

// ServiceCounters are the running/successful/failed pipeline counts
// SemanticService exposes as observable state.
type ServiceCounters struct {
	Running    int
	Successful int
	Failed     int
}
