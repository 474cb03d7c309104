package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LeadMetrics exposes counters/histograms for intake, enrichment and the sweeper.
type LeadMetrics struct {
	submissionsTotal    *prometheus.CounterVec
	enqueueFailures     prometheus.Counter
	enrichmentCalls     *prometheus.CounterVec
	enrichmentLatency   *prometheus.HistogramVec
	enrichmentJobsTotal *prometheus.CounterVec
	sweepUpdatedTotal   *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moveleads",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Lead form submissions by outcome",
		}, []string{"outcome"}),
		enqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "moveleads",
			Subsystem: "intake",
			Name:      "enqueue_failures_total",
			Help:      "Stored leads whose enrichment job could not be published",
		}),
		enrichmentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moveleads",
			Subsystem: "enrichment",
			Name:      "calls_total",
			Help:      "Model calls by call name and outcome",
		}, []string{"call", "outcome"}),
		enrichmentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "moveleads",
			Subsystem: "enrichment",
			Name:      "call_latency_seconds",
			Help:      "Latency of model calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"call"}),
		enrichmentJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moveleads",
			Subsystem: "enrichment",
			Name:      "jobs_total",
			Help:      "Enrichment jobs by outcome",
		}, []string{"outcome"}),
		sweepUpdatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moveleads",
			Subsystem: "sweeper",
			Name:      "leads_touched_total",
			Help:      "Leads updated or re-queued by scheduled sweeps",
		}, []string{"sweep"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.enqueueFailures, m.enrichmentCalls,
		m.enrichmentLatency, m.enrichmentJobsTotal, m.sweepUpdatedTotal)
	return m
}

func (m *LeadMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveEnqueueFailure() {
	if m == nil {
		return
	}
	m.enqueueFailures.Inc()
}

func (m *LeadMetrics) ObserveEnrichmentCall(call, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.enrichmentCalls.WithLabelValues(call, outcome).Inc()
	m.enrichmentLatency.WithLabelValues(call).Observe(d.Seconds())
}

func (m *LeadMetrics) ObserveEnrichmentJob(outcome string, _ time.Duration) {
	if m == nil {
		return
	}
	m.enrichmentJobsTotal.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveSweep(sweep string, touched int) {
	if m == nil || touched <= 0 {
		return
	}
	m.sweepUpdatedTotal.WithLabelValues(sweep).Add(float64(touched))
}
