package actor

// ActorExitStatus describes why an actor's process loop terminated. A
// Supervisor inspects this to decide whether a respawn is warranted and
// whether to propagate a kill to sibling actors sharing a kill switch.
type ActorExitStatus int

const (
	// ExitSuccess means the mailbox was closed and drained normally (Stop
	// was called or the actor's context ended). Senders are not counted,
	// so the mailbox never closes on its own when the last sender goes.
	// Actor.process reports only ExitSuccess, ExitPanicked and ExitKilled.
	ExitSuccess ActorExitStatus = iota

	// ExitFailure marks a fatal error exit. Trips the kill switch.
	// Actor.process never reports it: an error result from Receive is
	// returned to the asker and the actor keeps processing messages.
	ExitFailure

	// ExitPanicked means the behavior's Receive call panicked. Trips the
	// kill switch.
	ExitPanicked

	// ExitKilled means the actor observed its kill switch tripped (by
	// itself, a sibling, or an ancestor) and stopped processing.
	ExitKilled

	// ExitDownstreamClosed means an actor this one depends on (e.g. a
	// child in a supervision tree) exited and this actor chose to follow
	// suit. Trips the kill switch.
	ExitDownstreamClosed

	// ExitQuit is a success-like exit distinguished from ExitSuccess for
	// observability. Actor.process never reports it: Stop ends an actor
	// with ExitSuccess.
	ExitQuit
)

// String implements fmt.Stringer.
func (s ActorExitStatus) String() string {
	switch s {
	case ExitSuccess:
		return "success"
	case ExitFailure:
		return "failure"
	case ExitPanicked:
		return "panicked"
	case ExitKilled:
		return "killed"
	case ExitDownstreamClosed:
		return "downstream_closed"
	case ExitQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// TripsKillSwitch reports whether reaching this exit status should trip the
// actor's kill switch, per the Failure/Panicked/DownstreamClosed semantics.
func (s ActorExitStatus) TripsKillSwitch() bool {
	switch s {
	case ExitFailure, ExitPanicked, ExitDownstreamClosed:
		return true
	default:
		return false
	}
}
