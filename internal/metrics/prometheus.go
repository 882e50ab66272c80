package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	transitionsTotal         *prometheus.CounterVec
	transitionConflictsTotal prometheus.Counter
	transitionRejectedTotal  *prometheus.CounterVec

	watchesActive  prometheus.Gauge
	emissionsTotal prometheus.Counter

	outboundTotal     *prometheus.CounterVec
	inboundTotal      *prometheus.CounterVec
	inboundDuplicates prometheus.Counter
	bootstrapDuration *prometheus.HistogramVec
}

// NewPrometheusSink creates a new Prometheus metrics sink registered on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_transitions_total",
			Help: "Total number of committed job status transitions.",
		}, []string{"from", "to"}),
		transitionConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_transition_conflicts_total",
			Help: "Total number of conditional transitions that lost the race.",
		}),
		transitionRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_transition_rejected_total",
			Help: "Total number of rejected transition attempts, by reason.",
		}, []string{"reason"}),
		watchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobtracker_watches_active",
			Help: "Number of currently registered live queries.",
		}),
		emissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_emissions_total",
			Help: "Total number of live query result emissions.",
		}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_sync_outbound_total",
			Help: "Total number of outbound mutation pushes, by outcome.",
		}, []string{"outcome"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_sync_inbound_total",
			Help: "Total number of applied inbound remote changes, by kind.",
		}, []string{"kind"}),
		inboundDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtracker_sync_inbound_duplicates_total",
			Help: "Total number of redelivered remote changes skipped by dedup.",
		}),
		bootstrapDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobtracker_subscription_bootstrap_duration_seconds",
			Help:    "Duration of subscription initial data loads.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"subscription"}),
	}

	s.register(reg, s.transitionsTotal, "jobtracker_transitions_total")
	s.register(reg, s.transitionConflictsTotal, "jobtracker_transition_conflicts_total")
	s.register(reg, s.transitionRejectedTotal, "jobtracker_transition_rejected_total")
	s.register(reg, s.watchesActive, "jobtracker_watches_active")
	s.register(reg, s.emissionsTotal, "jobtracker_emissions_total")
	s.register(reg, s.outboundTotal, "jobtracker_sync_outbound_total")
	s.register(reg, s.inboundTotal, "jobtracker_sync_inbound_total")
	s.register(reg, s.inboundDuplicates, "jobtracker_sync_inbound_duplicates_total")
	s.register(reg, s.bootstrapDuration, "jobtracker_subscription_bootstrap_duration_seconds")
	return s
}

// register attempts to register a collector, logging and continuing when it
// fails so metrics never take the process down.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) TransitionApplied(from, to string) {
	s.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (s *PrometheusSink) TransitionConflict() {
	s.transitionConflictsTotal.Inc()
}

func (s *PrometheusSink) TransitionRejected(reason string) {
	s.transitionRejectedTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) WatchRegistered() {
	s.watchesActive.Inc()
}

func (s *PrometheusSink) WatchClosed() {
	s.watchesActive.Dec()
}

func (s *PrometheusSink) EmissionPublished() {
	s.emissionsTotal.Inc()
}

func (s *PrometheusSink) OutboundPushed(outcome string) {
	s.outboundTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) InboundApplied(kind string) {
	s.inboundTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) InboundDuplicate() {
	s.inboundDuplicates.Inc()
}

func (s *PrometheusSink) BootstrapCompleted(subscription string, seconds float64) {
	s.bootstrapDuration.WithLabelValues(subscription).Observe(seconds)
}
