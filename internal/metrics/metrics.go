package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the agent's Prometheus collectors. A nil *Recorder is a no-op.
type Recorder struct {
	cycles        *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	executions    *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defi_agent_cycles_total",
				Help: "Decision cycles by outcome",
			},
			[]string{"result"},
		),
		providerCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defi_agent_provider_calls_total",
				Help: "Provider opinions by provider and outcome",
			},
			[]string{"provider", "result"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defi_agent_consensus_decisions_total",
				Help: "Consolidated decisions by track, action and confidence",
			},
			[]string{"track", "action", "confidence"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "defi_agent_executions_total",
				Help: "Sub-action executions by track and outcome",
			},
			[]string{"track", "result"},
		),
		cycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "defi_agent_cycle_duration_seconds",
				Help:    "Duration of decision cycles in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
	}
}

func (r *Recorder) RecordCycle(result string, seconds float64) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(seconds)
}

func (r *Recorder) RecordProviderCall(provider, result string) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider, result).Inc()
}

func (r *Recorder) RecordDecision(track, action, confidence string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(track, action, confidence).Inc()
}

func (r *Recorder) RecordExecution(track, result string) {
	if r == nil {
		return
	}
	r.executions.WithLabelValues(track, result).Inc()
}
