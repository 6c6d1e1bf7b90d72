package actor

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrNoActorsAvailable is returned by a RoutingStrategy that is given no
// candidates to choose from.
var ErrNoActorsAvailable = errors.New("no actors available")

// RoutingStrategy picks one actor reference out of a set of candidates for a
// single Tell/Ask call. Implementations must be safe for concurrent use.
type RoutingStrategy[M Message, R any] interface {
	// Select returns the actor reference to route the next message to, or
	// ErrNoActorsAvailable if refs is empty.
	Select(refs []ActorRef[M, R]) (ActorRef[M, R], error)
}

// roundRobinStrategy cycles through candidates in order, wrapping around.
type roundRobinStrategy[M Message, R any] struct {
	next atomic.Uint64
}

// NewRoundRobinStrategy creates a RoutingStrategy that distributes messages
// evenly across all candidates in turn.
func NewRoundRobinStrategy[M Message, R any]() RoutingStrategy[M, R] {
	return &roundRobinStrategy[M, R]{}
}

func (s *roundRobinStrategy[M, R]) Select(
	refs []ActorRef[M, R]) (ActorRef[M, R], error) {

	if len(refs) == 0 {
		return nil, ErrNoActorsAvailable
	}

	n := s.next.Add(1) - 1
	return refs[int(n%uint64(len(refs)))], nil
}

// router is a virtual ActorRef that resolves its service key against the
// receptionist on every call, so it always reflects the current set of
// registered actors (actors joining or leaving the cluster, respawns, etc.)
// without callers needing to re-resolve references themselves.
type router[M Message, R any] struct {
	receptionist *Receptionist
	key          ServiceKey[M, R]
	strategy     RoutingStrategy[M, R]
	deadLetters  ActorRef[Message, any]
}

// NewRouter builds a load-balancing ActorRef over all actors currently
// registered under key. If no actors are registered when a call is made, the
// message is redirected to deadLetters instead.
func NewRouter[M Message, R any](
	receptionist *Receptionist, key ServiceKey[M, R],
	strategy RoutingStrategy[M, R], deadLetters ActorRef[Message, any],
) ActorRef[M, R] {

	return &router[M, R]{
		receptionist: receptionist,
		key:          key,
		strategy:     strategy,
		deadLetters:  deadLetters,
	}
}

func (r *router[M, R]) ID() string {
	return "router->" + r.key.name
}

func (r *router[M, R]) pick() (ActorRef[M, R], bool) {
	refs := FindInReceptionist(r.receptionist, r.key)
	if len(refs) == 0 {
		return nil, false
	}

	target, err := r.strategy.Select(refs)
	if err != nil {
		return nil, false
	}

	return target, true
}

func (r *router[M, R]) Tell(ctx context.Context, msg M) {
	target, ok := r.pick()
	if !ok {
		if r.deadLetters != nil {
			r.deadLetters.Tell(ctx, msg)
		}
		return
	}

	target.Tell(ctx, msg)
}

func (r *router[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	target, ok := r.pick()
	if !ok {
		promise := NewPromise[R]()
		promise.Complete(fn.Err[R](ErrActorTerminated))
		return promise.Future()
	}

	return target.Ask(ctx, msg)
}
