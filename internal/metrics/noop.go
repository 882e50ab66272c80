package metrics

// NoopSink is a no-op implementation of Sink. Used when metrics are
// disabled, and in tests, to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TransitionApplied(from, to string) {}

func (n *NoopSink) TransitionConflict() {}

func (n *NoopSink) TransitionRejected(reason string) {}

func (n *NoopSink) WatchRegistered() {}

func (n *NoopSink) WatchClosed() {}

func (n *NoopSink) EmissionPublished() {}

func (n *NoopSink) OutboundPushed(outcome string) {}

func (n *NoopSink) InboundApplied(kind string) {}

func (n *NoopSink) InboundDuplicate() {}

func (n *NoopSink) BootstrapCompleted(subscription string, seconds float64) {}
