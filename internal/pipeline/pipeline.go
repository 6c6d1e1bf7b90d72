package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/actorutil"
	"github.com/latticeforge/veridian/internal/baselib/actor"
)

// healthCheckInterval is how often a running pipeline evaluates its
// children's health.
const healthCheckInterval = 5 * time.Second

// maxUnhealthyRetries is the number of consecutive Unhealthy assessments
// tolerated before a pipeline gives up and exits with Failure.
const maxUnhealthyRetries = 3

// controlLoopInterval is the minimum time between two statistics
// re-aggregations triggered by RunHealthLoop. The loop checks it only after
// each health-check sleep, so re-aggregation happens at most once per
// health tick; ObservePipeline also aggregates on demand.
const controlLoopInterval = 2 * time.Second

// childMailboxSize is the mailbox capacity given to every child actor.
const childMailboxSize = 256

// engineRunnerPoolSize is the number of engineRunnerBehavior instances
// competing as consumers of the shared token channel. Extraction is the
// pipeline's most CPU-bound stage (sentence segmentation, entity
// labeling, beam search, embedding), so it is the one child worth
// horizontally scaling within a single pipeline instance; channel
// receive already distributes batches across the pool without any
// routing logic of its own.
const engineRunnerPoolSize = 3

// waitTime computes the health-loop backoff for the given consecutive
// retry count: min(600s, 2^retry s).
func waitTime(retry int) time.Duration {
	d := time.Duration(1<<uint(retry)) * time.Second
	maxWait := 600 * time.Second
	if d > maxWait {
		return maxWait
	}
	return d
}

// childHandle is whatever a pipeline needs from one of its child actors:
// a stable reference to ask/tell through, and a way to stop it for good.
// Both *actor.Actor and *actor.Supervisor satisfy this without adaptation.
type childHandle interface {
	Ref() actor.ActorRef[childMessage, childResult]
	Stop()
}

// poolChildHandle adapts an actorutil.Pool to childHandle, so a pool of
// interchangeable workers can sit in a childSet next to singleton actors
// and supervisors. Ref returns a round-robin ActorRef over the pool: a
// healthCheckMsg/statsMsg Ask sampling one member per call, the same way
// a health check behind a load balancer samples whichever backend it's
// routed to, rather than aggregating every member on every tick.
type poolChildHandle struct {
	pool *actorutil.Pool[childMessage, childResult]
}

func (h poolChildHandle) Ref() actor.ActorRef[childMessage, childResult] {
	return actorutil.NewPoolRef(h.pool)
}

func (h poolChildHandle) Stop() { h.pool.Stop() }

// childSet bundles every child handle of a running pipeline, in spawn
// order, for uniform health/stats polling and shutdown. StorageMapper,
// Indexer, and Ingestor are supervised: their behaviors are pure functions
// of the settings captured at construction, so a fresh instance from the
// same Factory is a safe drop-in replacement after a panic or a stall.
// EventStreamer and Collector are left as plain actors; Collector's
// behavior is also driven by an external Run(ctx) goroutine that a bare
// respawn would not restart. EngineRunner is a pool of engineRunnerPoolSize
// instances racing to drain the same token channel, for extraction
// throughput.
type childSet struct {
	mapper    *actor.Supervisor[childMessage, childResult]
	indexer   *actor.Supervisor[childMessage, childResult]
	ingestor  *actor.Supervisor[childMessage, childResult]
	streamer  *actor.Actor[childMessage, childResult]
	collector *actor.Actor[childMessage, childResult]
	runner    *actorutil.Pool[childMessage, childResult]
}

func (c *childSet) all() []childHandle {
	return []childHandle{
		c.mapper, c.indexer, c.ingestor, c.streamer, c.collector,
		poolChildHandle{c.runner},
	}
}

// SemanticPipeline is the actor.ActorBehavior driving one pipeline
// instance's child actor graph: Collector, Ingestor, EngineRunner,
// EventStreamer, Indexer, StorageMapper.
type SemanticPipeline struct {
	id       string
	settings PipelineSettings
	tokenCh  chan TokenBatch
	clock    actor.SchedulerClient

	children *childSet

	childCtx    context.Context
	childCancel context.CancelFunc

	mu     sync.Mutex
	stats  Statistics
	retry  int
	status PipelineRunStatus
}

// NewSemanticPipeline constructs and starts every child actor of a new
// pipeline instance, in the dependency order StorageMapper, Indexer,
// Ingestor, EventStreamer (the bus to the previous three), Collector
// (with the ingestor and the bus), EngineRunner (consuming the token
// receiver). clock drives the health loop's backoff and the control
// loop's tick; production callers pass actor.NewRealClock().
func NewSemanticPipeline(
	id string, settings PipelineSettings, clock actor.SchedulerClient,
) (*SemanticPipeline, error) {

	if settings.Source == nil || settings.Model == nil ||
		settings.Extractor == nil || settings.Storage == nil {

		return nil, fmt.Errorf("pipeline %q: incomplete settings", id)
	}

	childCtx, childCancel := context.WithCancel(context.Background())

	tokenCh := make(chan TokenBatch, 10)

	mapperSup := actor.NewSupervisor(actor.SupervisorConfig[childMessage, childResult]{
		ID: id + "-storage-mapper",
		Factory: func() actor.ActorBehavior[childMessage, childResult] {
			return newStorageMapperBehavior(settings.CollectionID, settings.Storage)
		},
		MailboxSize: childMailboxSize,
		Clock:       clock,
	})

	indexerSup := actor.NewSupervisor(actor.SupervisorConfig[childMessage, childResult]{
		ID: id + "-indexer",
		Factory: func() actor.ActorBehavior[childMessage, childResult] {
			return newIndexerBehavior(settings.CollectionID, settings.Storage)
		},
		MailboxSize: childMailboxSize,
		Clock:       clock,
	})

	ingestorSup := actor.NewSupervisor(actor.SupervisorConfig[childMessage, childResult]{
		ID: id + "-ingestor",
		Factory: func() actor.ActorBehavior[childMessage, childResult] {
			return newIngestorBehavior(settings.Model, tokenCh)
		},
		MailboxSize: childMailboxSize,
		Clock:       clock,
	})

	streamerBeh := newEventStreamerBehavior(
		settings.BatchSize,
		mapperSup.Ref(), indexerSup.Ref(), ingestorSup.Ref(),
	)
	streamerActor := actor.NewActor(actor.ActorConfig[childMessage, childResult]{
		ID: id + "-event-streamer", Behavior: streamerBeh,
		MailboxSize: childMailboxSize,
	})

	collectorBeh := newCollectorBehavior(
		settings.Source, ingestorSup.Ref(), streamerActor.Ref(),
	)
	collectorActor := actor.NewActor(actor.ActorConfig[childMessage, childResult]{
		ID: id + "-collector", Behavior: collectorBeh,
		MailboxSize: childMailboxSize,
	})

	// runnerBehaviors collects each pool member's concrete behavior as
	// NewPool's Factory constructs them (synchronously, in order), so
	// Run(ctx) can be started on every instance once the pool exists.
	// Run needs the pipeline-lifetime childCtx, not a per-message Ask/Tell
	// ctx, which is why it isn't called from inside Factory itself.
	runnerBehaviors := make([]*engineRunnerBehavior, 0, engineRunnerPoolSize)
	runnerPool := actorutil.NewPool(actorutil.PoolConfig[childMessage, childResult]{
		ID:   id + "-engine-runner",
		Size: engineRunnerPoolSize,
		Factory: func(idx int) actor.ActorBehavior[childMessage, childResult] {
			b := newEngineRunnerBehavior(
				settings.Extractor, streamerActor.Ref(), tokenCh,
			)
			runnerBehaviors = append(runnerBehaviors, b)
			return b
		},
		MailboxSize: childMailboxSize,
	})

	// mapperSup, indexerSup, and ingestorSup are already running: a
	// Supervisor starts its first instance as part of NewSupervisor.
	// runnerPool's members are started by NewPool itself.
	for _, a := range []*actor.Actor[childMessage, childResult]{
		streamerActor, collectorActor,
	} {
		a.Start()
	}

	collectorBeh.Run(childCtx)
	for _, b := range runnerBehaviors {
		b.Run(childCtx)
	}

	return &SemanticPipeline{
		id:       id,
		settings: settings,
		tokenCh:  tokenCh,
		clock:    clock,
		children: &childSet{
			mapper: mapperSup, indexer: indexerSup,
			ingestor: ingestorSup, streamer: streamerActor,
			collector: collectorActor, runner: runnerPool,
		},
		childCtx:    childCtx,
		childCancel: childCancel,
		status:      PipelineRunning,
	}, nil
}

// ID returns this pipeline instance's identifier.
func (p *SemanticPipeline) ID() string { return p.id }

// Clock returns the SchedulerClient this pipeline was constructed with, so
// callers driving RunHealthLoop reuse the same clock (real or virtual)
// rather than defaulting to wall time.
func (p *SemanticPipeline) Clock() actor.SchedulerClient { return p.clock }

// Receive implements actor.ActorBehavior[pipelineMessage, pipelineResult].
func (p *SemanticPipeline) Receive(
	ctx context.Context, msg pipelineMessage,
) fn.Result[pipelineResult] {

	switch m := msg.(type) {
	case pipelineObserveMsg:
		p.aggregateStats(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		return fn.Ok(pipelineResult{Stats: p.stats, Status: p.status})

	case pipelineIngestTokensMsg:
		select {
		case p.tokenCh <- m.batch:
		case <-ctx.Done():
			return fn.Err[pipelineResult](ctx.Err())
		}
		return fn.Ok(pipelineResult{})

	case pipelineShutdownMsg:
		p.shutdown(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		return fn.Ok(pipelineResult{Status: p.status})

	case pipelineTriggerMsg:
		p.checkHealth(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		return fn.Ok(pipelineResult{Status: p.status, Retry: p.retry})

	default:
		_ = m
		return fn.Err[pipelineResult](
			fmt.Errorf("pipeline: unhandled message %q", msg.MessageType()),
		)
	}
}

// aggregateStats polls every child's statsMsg and merges the replies into
// a single Statistics record.
func (p *SemanticPipeline) aggregateStats(ctx context.Context) {
	var total Statistics
	for _, child := range p.children.all() {
		fut := child.Ref().Ask(ctx, statsMsg{})
		res, err := fut.Await(ctx).Unpack()
		if err == nil {
			total.Add(res.Stats)
		}
	}

	p.mu.Lock()
	p.stats = total
	p.mu.Unlock()
}

// checkHealth implements the health loop of one evaluation cycle: poll
// every child's HealthStatus, and react per the Added/Unchanged retry
// policy. Healthy -> reset retry and continue. Any Unhealthy -> bump
// retry, and if the 4th consecutive unhealthy check is reached, fail the
// pipeline; otherwise the caller is expected to reschedule via
// ScheduleEvent(waitTime(retry)). All Success -> mark the pipeline
// succeeded.
func (p *SemanticPipeline) checkHealth(ctx context.Context) {
	allHealthy := true
	allSuccess := true

	for _, child := range p.children.all() {
		fut := child.Ref().Ask(ctx, healthCheckMsg{})
		res, err := fut.Await(ctx).Unpack()
		if err != nil {
			allHealthy = false
			allSuccess = false
			continue
		}

		status := res.Health
		if status != HealthSuccess {
			allSuccess = false
		}
		if status == HealthUnhealthy {
			allHealthy = false
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case allSuccess:
		p.status = PipelineSucceeded
		p.childCancel()

	case allHealthy:
		p.retry = 0

	default:
		p.retry++
		if p.retry > maxUnhealthyRetries {
			p.status = PipelineFailed
			p.childCancel()
		}
	}
}

// shutdown stops every child actor (and, for mapper/indexer/ingestor, their
// supervisor's health loop along with them so no further respawn happens).
func (p *SemanticPipeline) shutdown(ctx context.Context) {
	p.childCancel()

	for _, child := range p.children.all() {
		child.Stop()
	}

	p.mu.Lock()
	if p.status == PipelineRunning {
		p.status = PipelineSucceeded
	}
	p.mu.Unlock()
}

// RunHealthLoop drives the health-check tick and the control-loop stats
// tick for this pipeline's lifetime, using ref to deliver self-messages
// (pipelineTriggerMsg) the same way an external caller would. It returns
// once the pipeline reaches a terminal status or ctx is cancelled.
func RunHealthLoop(
	ctx context.Context, ref actor.ActorRef[pipelineMessage, pipelineResult],
	clock actor.SchedulerClient,
) PipelineRunStatus {

	lastStatsTick := clock.Now()
	sleepFor := healthCheckInterval

	for {
		if err := clock.Sleep(ctx, sleepFor); err != nil {
			return PipelineRunning
		}

		if clock.Now().Sub(lastStatsTick) >= controlLoopInterval {
			lastStatsTick = clock.Now()
			ref.Tell(ctx, pipelineObserveMsg{})
		}

		res, err := ref.Ask(ctx, pipelineTriggerMsg{}).Await(ctx).Unpack()
		if err != nil {
			continue
		}

		if res.Status != PipelineRunning {
			return res.Status
		}

		sleepFor = healthCheckInterval
		if res.Retry > 0 {
			sleepFor = waitTime(res.Retry)
		}
	}
}
