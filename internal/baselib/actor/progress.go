package actor

import (
	"context"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Progress tracks liveness for a single actor independent of its kill
// switch. A supervisor compares the counter's value across successive
// heartbeats: if it hasn't advanced and the actor isn't inside a protected
// zone, the actor is declared Unhealthy.
type Progress struct {
	counter   atomic.Uint64
	protected atomic.Int64
}

// NewProgress creates a zeroed progress tracker.
func NewProgress() *Progress {
	return &Progress{}
}

// Record advances the progress counter. Actors should call this once per
// message processed (or more often for long-running handlers) so the
// supervisor can distinguish "busy" from "stuck".
func (p *Progress) Record() {
	p.counter.Add(1)
}

// Snapshot returns the current counter value for comparison against a
// previous Snapshot taken at the last heartbeat.
func (p *Progress) Snapshot() uint64 {
	return p.counter.Load()
}

// InProtectedZone reports whether the actor is currently inside a
// long-running operation that the supervisor should not treat as stuck even
// though the counter isn't advancing (e.g. awaiting a downstream RPC).
func (p *Progress) InProtectedZone() bool {
	return p.protected.Load() > 0
}

// EnterProtectedZone marks the start of an operation during which the
// progress counter may legitimately stall. The returned function must be
// called to leave the zone; zones nest, so the actor is only considered
// unprotected once every EnterProtectedZone call has a matching exit.
func (p *Progress) EnterProtectedZone() (exit func()) {
	p.protected.Add(1)

	var once bool
	return func() {
		if once {
			return
		}
		once = true
		p.protected.Add(-1)
	}
}

// ProtectFuture runs fn inside a protected zone, recording progress and
// exiting the zone once fn returns regardless of outcome.
func ProtectFuture[T any](
	ctx context.Context, p *Progress, f func(ctx context.Context) fn.Result[T],
) fn.Result[T] {

	exit := p.EnterProtectedZone()
	defer exit()

	result := f(ctx)
	p.Record()

	return result
}
