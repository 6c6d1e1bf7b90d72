package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promise is the concrete Promise/Future pair used to bridge an Ask call to
// its eventual response. A single promise is shared between the sender
// (which awaits the Future) and the actor's process loop (which calls
// Complete once Receive returns a result).
type promise[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	once      sync.Once
	result    fn.Result[T]
}

// NewPromise creates a new, uncompleted Promise/Future pair.
func NewPromise[T any]() Promise[T] {
	return &promise[T]{
		done: make(chan struct{}),
	}
}

// Complete attempts to set the result of the future. Only the first call
// wins; subsequent calls are no-ops and return false.
func (p *promise[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.mu.Lock()
		p.result = result
		p.mu.Unlock()

		close(p.done)
		completed = true
	})

	return completed
}

// Future returns the Future view of this promise.
func (p *promise[T]) Future() Future[T] {
	return (*future[T])(p)
}

// future is the consumer-facing half of a promise. It is defined as a
// distinct named type (rather than reusing *promise[T]) so that Promise and
// Future remain separate capabilities: holding a Future does not grant the
// ability to Complete it.
type future[T any] promise[T]

func (f *future[T]) snapshot() fn.Result[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.result
}

// Await blocks until the promise is completed or the context is cancelled.
func (f *future[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-f.done:
		return f.snapshot()
	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply returns a new Future whose result is the application of fn to
// this future's result, once available. Context cancellation while waiting
// for the original future propagates as an error result on the new future.
func (f *future[T]) ThenApply(ctx context.Context, apply func(T) T) Future[T] {
	derived := NewPromise[T]()

	go func() {
		result := f.Await(ctx)
		val, err := result.Unpack()
		if err != nil {
			derived.Complete(fn.Err[T](err))
			return
		}

		derived.Complete(fn.Ok(apply(val)))
	}()

	return derived.Future()
}

// OnComplete registers a callback to run once the future resolves, either
// with its real result or with the context's error if ctx is cancelled
// first.
func (f *future[T]) OnComplete(ctx context.Context, cb func(fn.Result[T])) {
	go func() {
		cb(f.Await(ctx))
	}()
}
