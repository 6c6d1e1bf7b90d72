package actor

import (
	"context"
	"sync"
	"time"
)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig[M Message, R any] struct {
	// ID is the identifier prefix used for supervised actor instances.
	ID string

	// Factory builds a fresh behavior for each (re)spawn. It is called
	// once up front and again every time the supervised actor exits with
	// a status that warrants a respawn.
	Factory func() ActorBehavior[M, R]

	// MailboxSize is the mailbox capacity for the supervised actor.
	MailboxSize int

	// DLO receives messages the supervised actor couldn't process.
	DLO ActorRef[Message, any]

	// HeartbeatInterval is how often the supervisor checks the
	// supervised actor's Progress snapshot for advancement.
	HeartbeatInterval time.Duration

	// Clock drives the heartbeat loop; defaults to RealClock.
	Clock SchedulerClient

	// MaxRespawns caps how many times the supervisor will respawn after
	// an Unhealthy/Panicked exit before giving up. Zero means unlimited.
	MaxRespawns int
}

// Supervisor owns a single logical actor across its lifetime, respawning it
// (reusing the stored Factory and mailbox capacity) whenever it exits
// unhealthily, and declaring it Unhealthy if its Progress counter stalls for
// a full heartbeat interval while not in a protected zone.
//
// A respawned instance gets a brand new mailbox (the old one was already
// closed and drained as part of the terminated actor's own shutdown — see
// Actor.process — so there is no live channel left to hand over). Message
// continuity is instead guaranteed at the reference level: Ref returns a
// stable proxy, cached for the Supervisor's lifetime, that resolves to
// whichever instance is current at the moment a message is actually sent.
// A caller that obtains and holds onto that proxy before a respawn keeps
// working after it, exactly as if the mailbox itself had survived.
type Supervisor[M Message, R any] struct {
	cfg SupervisorConfig[M, R]

	mu          sync.Mutex
	current     *Actor[M, R]
	numPanics   int
	numErrors   int
	numKills    int
	numRespawns int
	lastSeen    uint64

	ref *supervisorRef[M, R]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates and starts a Supervisor, spawning the first instance
// of the supervised actor immediately.
func NewSupervisor[M Message, R any](cfg SupervisorConfig[M, R]) *Supervisor[M, R] {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor[M, R]{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.ref = &supervisorRef[M, R]{sup: s}

	s.spawnLocked()

	go s.healthLoop()

	return s
}

// spawnLocked creates and starts a new supervised actor instance. Callers
// must hold s.mu.
func (s *Supervisor[M, R]) spawnLocked() {
	s.current = NewActor(ActorConfig[M, R]{
		ID:          s.cfg.ID,
		Behavior:    s.cfg.Factory(),
		DLO:         s.cfg.DLO,
		MailboxSize: s.cfg.MailboxSize,
	})
	s.current.Start()
	s.lastSeen = s.current.Progress().Snapshot()
}

// Ref returns a stable ActorRef that always routes to the currently
// supervised instance, even across respawns — the same value is returned
// every call, and every Tell/Ask against it resolves s.current at send
// time rather than at the time Ref was obtained, so holding onto the
// returned ref across a respawn is safe.
func (s *Supervisor[M, R]) Ref() ActorRef[M, R] {
	return s.ref
}

// currentRef returns the live ActorRef of whichever instance is current
// right now. Called by supervisorRef on every Tell/Ask.
func (s *Supervisor[M, R]) currentRef() ActorRef[M, R] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.Ref()
}

// supervisorRef implements ActorRef[M, R] by forwarding every call to
// whichever actor instance its Supervisor currently considers current.
type supervisorRef[M Message, R any] struct {
	sup *Supervisor[M, R]
}

func (r *supervisorRef[M, R]) Tell(ctx context.Context, msg M) {
	r.sup.currentRef().Tell(ctx, msg)
}

func (r *supervisorRef[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	return r.sup.currentRef().Ask(ctx, msg)
}

func (r *supervisorRef[M, R]) ID() string {
	return r.sup.cfg.ID
}

// Stats returns the supervisor's panic/error/kill/respawn counters.
func (s *Supervisor[M, R]) Stats() (numPanics, numErrors, numKills, numRespawns int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.numPanics, s.numErrors, s.numKills, s.numRespawns
}

// healthLoop runs the heartbeat-interval health check: if the supervised
// actor's Progress hasn't advanced since the last check and it isn't inside
// a protected zone, the actor is declared Unhealthy and respawned.
func (s *Supervisor[M, R]) healthLoop() {
	defer close(s.done)

	for {
		if err := s.cfg.Clock.Sleep(s.ctx, s.cfg.HeartbeatInterval); err != nil {
			return
		}

		s.mu.Lock()

		actor := s.current
		status := actor.ExitStatus()
		stalled := actor.Progress().Snapshot() == s.lastSeen &&
			!actor.Progress().InProtectedZone()

		switch {
		case status == ExitPanicked:
			s.numPanics++
			s.respawnLocked()
		case status == ExitFailure || status == ExitDownstreamClosed:
			s.numErrors++
			s.respawnLocked()
		case status == ExitKilled:
			s.numKills++
			s.respawnLocked()
		case stalled:
			log.WarnS(s.ctx, "Supervised actor unhealthy, respawning",
				ErrActorTerminated, "actor_id", s.cfg.ID)
			actor.Stop()
			s.numErrors++
			s.respawnLocked()
		default:
			s.lastSeen = actor.Progress().Snapshot()
		}

		s.mu.Unlock()
	}
}

// respawnLocked replaces the current supervised actor with a fresh one,
// unless MaxRespawns has been reached. Callers must hold s.mu.
func (s *Supervisor[M, R]) respawnLocked() {
	if s.cfg.MaxRespawns > 0 && s.numRespawns >= s.cfg.MaxRespawns {
		log.ErrorS(s.ctx, "Supervisor exhausted respawn budget",
			ErrActorTerminated, "actor_id", s.cfg.ID)
		return
	}

	s.numRespawns++
	s.spawnLocked()
}

// Stop stops the supervisor's health loop and the current supervised actor.
// No further respawns occur after this returns.
func (s *Supervisor[M, R]) Stop() {
	s.cancel()
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Stop()
}
