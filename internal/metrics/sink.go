package metrics

// Sink defines the interface for recording metrics. All methods are
// fire-and-forget: implementations must not block or propagate errors.
type Sink interface {
	// Write path
	TransitionApplied(from, to string)
	TransitionConflict()
	TransitionRejected(reason string)

	// Live queries
	WatchRegistered()
	WatchClosed()
	EmissionPublished()

	// Sync
	OutboundPushed(outcome string)
	InboundApplied(kind string)
	InboundDuplicate()
	BootstrapCompleted(subscription string, seconds float64)
}

// Outcome constants for OutboundPushed.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)
