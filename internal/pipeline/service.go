package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/baselib/actor"
	"github.com/latticeforge/veridian/internal/cluster"
	"github.com/latticeforge/veridian/internal/errs"
	"github.com/latticeforge/veridian/internal/metrics"
)

// coldStartPermits bounds the number of pipelines that may be mid-start
// (child actors spawning, source connectivity being checked) at once.
const coldStartPermits = 10

// pipelineEntry is everything SemanticService tracks for one running (or
// just-terminated) pipeline, apart from its ActorRef: that's looked up
// through the receptionist on demand, so a respawned or relocated actor
// never leaves a stale reference cached here.
type pipelineEntry struct {
	settings PipelineSettings
	pipeline *SemanticPipeline
	raw      *actor.Actor[pipelineMessage, pipelineResult]
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.Mutex
	status PipelineRunStatus
}

// pipelineServiceKey returns the per-pipeline service key a single running
// pipeline actor registers under, so it can be found again by id through
// the receptionist rather than through a hand-kept ref field.
func pipelineServiceKey(id string) actor.ServiceKey[pipelineMessage, pipelineResult] {
	return actor.NewServiceKey[pipelineMessage, pipelineResult]("pipeline:" + id)
}

// allPipelinesKey is a second, shared registration every pipeline actor
// also carries, so ShutdownAll can reach every running pipeline in one
// broadcast without the service needing to track them itself.
var allPipelinesKey = actor.NewServiceKey[pipelineMessage, pipelineResult]("pipelines:all")

// SemanticService is the pipeline registry actor: it owns the
// fixed-capacity cold-start semaphore bounding concurrent pipeline
// startup, tracks every spawned pipeline by id, and on every HEARTBEAT
// reaps terminal pipelines, updates its running/successful/failed
// counters, and publishes per-pipeline statistics into the cluster's
// gossiped key-value map.
type SemanticService struct {
	clock     actor.SchedulerClient
	publisher *cluster.MetricsPublisher
	coldStart chan struct{}
	system    *actor.ActorSystem

	mu        sync.Mutex
	pipelines map[string]*pipelineEntry
	counters  ServiceCounters
}

// NewSemanticService returns a service driven by clock (actor.NewRealClock
// in production) and publishing stats through publisher. publisher may be
// nil, in which case stats are tracked locally but not gossiped. Pipeline
// actors are registered with the service's own ActorSystem receptionist
// for discovery, rather than built through it, since they need a
// PriorityMailbox (see spawn) that RegisterWithSystem doesn't offer.
func NewSemanticService(
	clock actor.SchedulerClient, publisher *cluster.MetricsPublisher,
) *SemanticService {

	return &SemanticService{
		clock:     clock,
		publisher: publisher,
		coldStart: make(chan struct{}, coldStartPermits),
		system:    actor.NewActorSystem(),
		pipelines: make(map[string]*pipelineEntry),
	}
}

// Receive implements actor.ActorBehavior[serviceMessage, serviceResult].
func (s *SemanticService) Receive(
	ctx context.Context, msg serviceMessage,
) fn.Result[serviceResult] {

	switch m := msg.(type) {
	case spawnPipelineMsg:
		id, err := s.spawn(ctx, m.id, m.settings)
		if err != nil {
			return fn.Err[serviceResult](err)
		}
		return fn.Ok(serviceResult{PipelineID: id})

	case observePipelineMsg:
		stats, err := s.observe(ctx, m.id)
		if err != nil {
			return fn.Err[serviceResult](err)
		}
		return fn.Ok(serviceResult{PipelineID: m.id, Stats: stats})

	case shutdownPipelineMsg:
		if err := s.shutdownOne(ctx, m.id); err != nil {
			return fn.Err[serviceResult](err)
		}
		return fn.Ok(serviceResult{PipelineID: m.id})

	case sendIngestedTokensMsg:
		if err := s.sendTokens(ctx, m.id, m.batch); err != nil {
			return fn.Err[serviceResult](err)
		}
		return fn.Ok(serviceResult{PipelineID: m.id})

	case restartPipelineMsg:
		id, err := s.restart(ctx, m.id)
		if err != nil {
			return fn.Err[serviceResult](err)
		}
		return fn.Ok(serviceResult{PipelineID: id})

	case getPipelinesMetadataMsg:
		return fn.Ok(serviceResult{IDs: s.metadata()})

	case reapMsg:
		s.reap(ctx)

		s.mu.Lock()
		counters := s.counters
		s.mu.Unlock()
		return fn.Ok(serviceResult{Counters: counters})

	default:
		_ = m
		return fn.Err[serviceResult](errs.ErrInvalidParams)
	}
}

// spawn takes a cold-start permit, constructs a new SemanticPipeline, and
// registers it under id. It returns PipelineAlreadyExists if id is
// already registered.
func (s *SemanticService) spawn(
	ctx context.Context, id string, settings PipelineSettings,
) (string, error) {

	s.mu.Lock()
	if _, exists := s.pipelines[id]; exists {
		s.mu.Unlock()
		return "", errs.ErrPipelineAlreadyExists
	}
	s.mu.Unlock()

	select {
	case s.coldStart <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-s.coldStart }()

	p, err := NewSemanticPipeline(id, settings, s.clock)
	if err != nil {
		return "", err
	}

	raw := actor.NewActor(actor.ActorConfig[pipelineMessage, pipelineResult]{
		ID:          id,
		Behavior:    p,
		MailboxSize: 64,
		// Shutdown and health-trigger messages carry Priority() > 0
		// (see messages.go), so this mailbox must be a PriorityMailbox
		// for that to have any effect; the default ChannelMailbox would
		// let a backlog of routine observe/ingest traffic stall them.
		MailboxFactory: func(
			ctx context.Context, capacity int,
		) actor.Mailbox[pipelineMessage, pipelineResult] {
			return actor.NewPriorityMailbox[pipelineMessage, pipelineResult](
				ctx, capacity,
			)
		},
	})
	raw.Start()

	receptionist := s.system.Receptionist()
	if err := actor.RegisterWithReceptionist(receptionist, pipelineServiceKey(id), raw.Ref()); err != nil {
		raw.Stop()
		return "", fmt.Errorf("pipeline %q: receptionist registration: %w", id, err)
	}
	if err := actor.RegisterWithReceptionist(receptionist, allPipelinesKey, raw.Ref()); err != nil {
		actor.UnregisterFromReceptionist(receptionist, pipelineServiceKey(id), raw.Ref())
		raw.Stop()
		return "", fmt.Errorf("pipeline %q: receptionist registration: %w", id, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &pipelineEntry{
		settings: settings,
		pipeline: p,
		raw:      raw,
		cancel:   cancel,
		done:     make(chan struct{}),
		status:   PipelineRunning,
	}

	go func() {
		defer close(entry.done)

		status := RunHealthLoop(runCtx, raw.Ref(), s.clock)

		entry.mu.Lock()
		entry.status = status
		entry.mu.Unlock()
	}()

	s.mu.Lock()
	s.pipelines[id] = entry
	s.counters.Running++
	s.mu.Unlock()

	s.publishCounters()

	return id, nil
}

// observe returns the current aggregated Statistics for a running
// pipeline.
func (s *SemanticService) observe(
	ctx context.Context, id string,
) (Statistics, error) {

	_, ref, ok := s.lookup(id)
	if !ok {
		return Statistics{}, errs.ErrPipelineNotFound
	}

	res, err := ref.Ask(ctx, pipelineObserveMsg{}).Await(ctx).Unpack()
	if err != nil {
		return Statistics{}, err
	}
	return res.Stats, nil
}

// shutdownOne tells the named pipeline to shut down and unregisters it,
// from both the service's own bookkeeping and the receptionist.
func (s *SemanticService) shutdownOne(ctx context.Context, id string) error {
	entry, ref, ok := s.lookup(id)
	if !ok {
		return errs.ErrPipelineNotFound
	}

	_, err := ref.Ask(ctx, pipelineShutdownMsg{}).Await(ctx).Unpack()

	entry.cancel()
	entry.raw.Stop()

	receptionist := s.system.Receptionist()
	actor.UnregisterFromReceptionist(receptionist, pipelineServiceKey(id), ref)
	actor.UnregisterFromReceptionist(receptionist, allPipelinesKey, ref)

	s.mu.Lock()
	delete(s.pipelines, id)
	s.mu.Unlock()

	return err
}

// sendTokens forwards a token batch to the named pipeline's token
// channel.
func (s *SemanticService) sendTokens(
	ctx context.Context, id string, batch TokenBatch,
) error {

	_, ref, ok := s.lookup(id)
	if !ok {
		return errs.ErrPipelineNotFound
	}

	_, err := ref.Ask(
		ctx, pipelineIngestTokensMsg{batch: batch},
	).Await(ctx).Unpack()
	return err
}

// restart shuts down the named pipeline and respawns it with the same
// settings.
func (s *SemanticService) restart(
	ctx context.Context, id string,
) (string, error) {

	entry, _, ok := s.lookup(id)
	if !ok {
		return "", errs.ErrPipelineNotFound
	}

	if err := s.shutdownOne(ctx, id); err != nil {
		return "", err
	}

	return s.spawn(ctx, id, entry.settings)
}

// metadata returns the ids of every currently-registered pipeline.
func (s *SemanticService) metadata() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.pipelines))
	for id := range s.pipelines {
		ids = append(ids, id)
	}
	return ids
}

// reap sweeps every registered pipeline whose health loop has reached a
// terminal status, updates the running/successful/failed counters, and
// publishes the survivors' statistics into the cluster key-value map.
func (s *SemanticService) reap(ctx context.Context) {
	s.mu.Lock()
	entries := make(map[string]*pipelineEntry, len(s.pipelines))
	for id, e := range s.pipelines {
		entries[id] = e
	}
	s.mu.Unlock()

	// First pass: classify every entry as live or terminal without
	// publishing anything, so the live set passed to Publish below is
	// complete rather than built up incrementally (a partial live set
	// would cause Publish to wrongly tombstone peers not yet visited).
	live := make(map[string]struct{}, len(entries))
	terminal := make(map[string]PipelineRunStatus, len(entries))

	for id, entry := range entries {
		entry.mu.Lock()
		status := entry.status
		entry.mu.Unlock()

		select {
		case <-entry.done:
			terminal[id] = status
		default:
			if status == PipelineRunning {
				live[id] = struct{}{}
			} else {
				terminal[id] = status
			}
		}
	}

	// Second pass: publish current stats for every live pipeline, and
	// reap + tombstone every terminal one.
	for id := range live {
		if s.publisher == nil {
			continue
		}

		_, ref, ok := s.lookup(id)
		if !ok {
			continue
		}

		res, err := ref.Ask(
			ctx, pipelineObserveMsg{},
		).Await(ctx).Unpack()
		if err != nil {
			continue
		}
		s.publisher.Publish(id, res.Stats.AsKV(), live)
	}

	for id, status := range terminal {
		if s.publisher != nil {
			s.publisher.Publish(id, nil, live)
		}

		if _, ref, ok := s.lookup(id); ok {
			receptionist := s.system.Receptionist()
			actor.UnregisterFromReceptionist(receptionist, pipelineServiceKey(id), ref)
			actor.UnregisterFromReceptionist(receptionist, allPipelinesKey, ref)
		}

		s.mu.Lock()
		delete(s.pipelines, id)
		s.counters.Running--
		if status == PipelineSucceeded {
			s.counters.Successful++
		} else {
			s.counters.Failed++
		}
		s.mu.Unlock()

		s.publishCounters()
	}
}

// publishCounters mirrors the current running/successful/failed pipeline
// counts into the package's Prometheus gauges.
func (s *SemanticService) publishCounters() {
	s.mu.Lock()
	c := s.counters
	s.mu.Unlock()

	metrics.PipelinesRunning.Set(float64(c.Running))
	metrics.PipelinesSucceeded.Set(float64(c.Successful))
	metrics.PipelinesFailed.Set(float64(c.Failed))
}

// lookup returns a pipeline's bookkeeping entry together with an ActorRef
// for it. The ref is key.Ref(s.system), the receptionist-backed router
// rather than a hand-picked entry out of FindInReceptionist: a pipeline id
// normally has exactly one registered actor, so the round-robin strategy
// always resolves to it, but routing through the same mechanism multiple
// interchangeable registrants would use means a respawned or migrated
// pipeline actor is picked up automatically without this method needing
// its own selection logic.
func (s *SemanticService) lookup(
	id string,
) (*pipelineEntry, actor.ActorRef[pipelineMessage, pipelineResult], bool) {

	s.mu.Lock()
	entry, ok := s.pipelines[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil, false
	}

	key := pipelineServiceKey(id)
	if len(actor.FindInReceptionist(s.system.Receptionist(), key)) == 0 {
		return nil, nil, false
	}

	return entry, key.Ref(s.system), true
}

// SpawnPipeline starts a new pipeline under id with the given settings.
// Exported for internal/service's facade over the (unspecified) REST/gRPC
// surface; the Receive-driven serviceMessage path is the actor-internal
// route to the same logic.
func (s *SemanticService) SpawnPipeline(
	ctx context.Context, id string, settings PipelineSettings,
) (string, error) {
	return s.spawn(ctx, id, settings)
}

// ObservePipeline returns the named pipeline's current Statistics.
func (s *SemanticService) ObservePipeline(ctx context.Context, id string) (Statistics, error) {
	return s.observe(ctx, id)
}

// ShutdownPipeline stops and unregisters the named pipeline.
func (s *SemanticService) ShutdownPipeline(ctx context.Context, id string) error {
	return s.shutdownOne(ctx, id)
}

// SendIngestedTokens forwards a token batch to the named pipeline.
func (s *SemanticService) SendIngestedTokens(
	ctx context.Context, id string, batch TokenBatch,
) error {
	return s.sendTokens(ctx, id, batch)
}

// RestartPipeline shuts down and respawns the named pipeline with its
// original settings.
func (s *SemanticService) RestartPipeline(ctx context.Context, id string) (string, error) {
	return s.restart(ctx, id)
}

// GetPipelinesMetadata returns the ids of every currently-registered
// pipeline.
func (s *SemanticService) GetPipelinesMetadata() []string {
	return s.metadata()
}

// ShutdownAll broadcasts a shutdown request to every pipeline currently
// registered under the shared allPipelinesKey, for a clean process exit
// that doesn't require iterating the service's own bookkeeping. Returns
// the number of pipelines reached. Unlike ShutdownPipeline, this does not
// wait for each pipeline to finish shutting down or clean up the service's
// local entries, since the caller is tearing the whole process down.
func (s *SemanticService) ShutdownAll(ctx context.Context) int {
	return allPipelinesKey.Broadcast(s.system, ctx, pipelineShutdownMsg{})
}

// Counters returns the current running/successful/failed pipeline counts.
func (s *SemanticService) Counters() ServiceCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// RunHeartbeatLoop reaps terminal pipelines and publishes live stats every
// interval, until ctx is cancelled. It is the free-standing counterpart to
// the reapMsg self-message a SemanticService actor would otherwise
// schedule for itself on HEARTBEAT.
func (s *SemanticService) RunHeartbeatLoop(ctx context.Context, interval time.Duration) {
	for {
		if err := s.clock.Sleep(ctx, interval); err != nil {
			return
		}
		s.reap(ctx)
	}
}
