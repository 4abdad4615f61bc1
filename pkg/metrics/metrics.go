package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AssignmentsTotal counts ResourceCluster.GetTaskExecutorFor outcomes.
	AssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Total number of executor assignment attempts by outcome",
		},
		[]string{"outcome"}, // ok, failed
	)

	// SubmissionsTotal counts Gateway.SubmitTask outcomes.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_submissions_total",
			Help: "Total number of task submission attempts by outcome",
		},
		[]string{"outcome"}, // ok, failed
	)

	// CancellationsTotal counts Gateway.CancelTask outcomes.
	CancellationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_cancellations_total",
			Help: "Total number of cancellation attempts by outcome",
		},
		[]string{"outcome"}, // ok, failed, dropped
	)

	// RetriesTotal counts retries scheduled by phase.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_retries_total",
			Help: "Total number of retries scheduled by pipeline phase",
		},
		[]string{"phase"}, // assignment, cancellation
	)

	// InFlightRequests tracks schedule requests with a placement pipeline
	// currently running (NEW through LAUNCHED/REPORTED_FAIL) plus cancel
	// requests whose cancellation is still being attempted.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_in_flight_requests",
			Help: "Number of schedule requests with an active placement pipeline plus cancel requests still being attempted",
		},
	)

	// PlacementDuration measures assign-to-launch (or assign-to-failure)
	// latency for one ScheduleRequest, summed across all of its attempts.
	PlacementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_placement_duration_seconds",
			Help:    "Time from first assignment attempt to terminal outcome, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RaftLeader reports whether this engine replica holds the HA elector's
	// leadership, when HA is enabled.
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_raft_is_leader",
			Help: "Whether this engine replica is the elected active dispatcher (1 = leader, 0 = standby)",
		},
	)
)

func init() {
	prometheus.MustRegister(AssignmentsTotal)
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(CancellationsTotal)
	prometheus.MustRegister(RetriesTotal)
	prometheus.MustRegister(InFlightRequests)
	prometheus.MustRegister(PlacementDuration)
	prometheus.MustRegister(RaftLeader)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to one label combination of a
// histogram vec.
func (t *Timer) ObserveDurationVec(histogramVec *prometheus.HistogramVec, labelValues ...string) {
	histogramVec.WithLabelValues(labelValues...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
