package telemetry

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters and histograms for resolution and commits.
// All methods are safe on a nil receiver.
type BookingMetrics struct {
	resolutions   *prometheus.CounterVec
	candidates    prometheus.Histogram
	available     prometheus.Histogram
	commits       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "resolutions_total",
			Help:      "Availability resolutions by outcome",
		}, []string{"outcome"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "candidates_per_resolution",
			Help:      "Candidate start times offered per resolution",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		available: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "available_per_resolution",
			Help:      "Start times that survived resolution",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Meeting commits by outcome",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "collaborator_duration_seconds",
			Help:      "Latency of calls to schedule, busy-time and calendar collaborators",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collaborator", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutions, m.candidates, m.available, m.commits, m.fetchDuration)
	return m
}

func (m *BookingMetrics) ObserveResolution(outcome string, candidates, available int) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.candidates.Observe(float64(candidates))
	m.available.Observe(float64(available))
}

func (m *BookingMetrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCollaborator(collaborator string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetchDuration.WithLabelValues(collaborator, status).Observe(seconds)
}
