package actor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SchedulerClient abstracts wall-clock operations so actors can be driven
// deterministically under test. Production code uses RealClock; tests that
// need to assert on timer-driven behavior (health check backoff, heartbeat
// intervals) use VirtualClock instead.
type SchedulerClient interface {
	// Now returns the current time as seen by this clock.
	Now() time.Time

	// Sleep blocks until d has elapsed on this clock, or ctx is cancelled,
	// whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error

	// ScheduleEvent arranges for cb to run once, after d has elapsed on
	// this clock. It returns a cancel function that prevents cb from
	// firing if called before the event is due.
	ScheduleEvent(d time.Duration, cb func()) (cancel func())
}

// RealClock is a SchedulerClient backed by the actual wall clock and the
// standard library's timer machinery.
type RealClock struct{}

// NewRealClock returns a SchedulerClient driven by wall-clock time.
func NewRealClock() RealClock {
	return RealClock{}
}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (RealClock) ScheduleEvent(d time.Duration, cb func()) (cancel func()) {
	timer := time.AfterFunc(d, cb)
	return func() { timer.Stop() }
}

// virtualEvent is a pending callback registered on a VirtualClock.
type virtualEvent struct {
	due      time.Time
	cb       func()
	cancelled bool
}

// VirtualClock is a SchedulerClient whose notion of time only advances when
// Advance is called explicitly. It exists so tests can exercise
// backoff/heartbeat logic without real sleeps. It has no guard against a
// test that forgets to advance time: such a test blocks in Sleep until its
// context is cancelled.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	events []*virtualEvent
	waiters []chan struct{}
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Sleep blocks until the clock has advanced by at least d, or ctx is
// cancelled. Unlike RealClock, nothing external drives this forward; a test
// must call Advance for it to return before ctx is cancelled.
func (c *VirtualClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	target := c.now.Add(d)
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			c.mu.Lock()
			reached := !c.now.Before(target)
			if !reached {
				ch = make(chan struct{})
				c.waiters = append(c.waiters, ch)
			}
			c.mu.Unlock()

			if reached {
				return nil
			}
		}
	}
}

func (c *VirtualClock) ScheduleEvent(
	d time.Duration, cb func(),
) (cancel func()) {

	c.mu.Lock()
	defer c.mu.Unlock()

	ev := &virtualEvent{due: c.now.Add(d), cb: cb}
	c.events = append(c.events, ev)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		ev.cancelled = true
	}
}

// Advance moves the virtual clock forward by d, firing any scheduled events
// whose due time has been reached and waking any Sleep callers whose target
// has been reached. This is the only thing that makes time pass on a
// VirtualClock; a test that blocks on Sleep/ScheduleEvent without calling
// Advance will hang forever rather than silently using real time (there
// is no fallback to the wall clock here).
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()

	c.now = c.now.Add(d)

	due := make([]*virtualEvent, 0, len(c.events))
	remaining := make([]*virtualEvent, 0, len(c.events))
	for _, ev := range c.events {
		if ev.cancelled {
			continue
		}
		if !ev.due.After(c.now) {
			due = append(due, ev)
		} else {
			remaining = append(remaining, ev)
		}
	}
	c.events = remaining

	sort.Slice(due, func(i, j int) bool {
		return due[i].due.Before(due[j].due)
	})

	waiters := c.waiters
	c.waiters = nil

	c.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}

	for _, ev := range due {
		ev.cb()
	}
}
