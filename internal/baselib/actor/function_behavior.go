package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// functionBehavior adapts a plain function into an ActorBehavior, so simple
// actors don't need to declare a named type just to implement Receive.
type functionBehavior[M Message, R any] struct {
	fn func(ctx context.Context, msg M) fn.Result[R]
}

// NewFunctionBehavior wraps a function as an ActorBehavior. This is the
// common case for actors whose entire logic fits in a closure; actors
// needing OnStop cleanup should implement ActorBehavior (and Stoppable)
// directly on a named type instead.
func NewFunctionBehavior[M Message, R any](
	f func(ctx context.Context, msg M) fn.Result[R],
) ActorBehavior[M, R] {

	return &functionBehavior[M, R]{fn: f}
}

func (b *functionBehavior[M, R]) Receive(
	ctx context.Context, msg M,
) fn.Result[R] {

	return b.fn(ctx, msg)
}
