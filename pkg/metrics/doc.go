/*
Package metrics provides Prometheus metrics collection and exposition for
dispatchd, plus the health/readiness/liveness endpoints cmd/dispatchd's
admin HTTP server serves.

All metrics are registered at package init and exposed via Handler() for
scraping.

# Metrics Catalog

dispatch_assignments_total{outcome}:
  - Type: Counter
  - Description: ResourceCluster.GetTaskExecutorFor outcomes
  - Labels: outcome (ok, failed)

dispatch_submissions_total{outcome}:
  - Type: Counter
  - Description: Gateway.SubmitTask outcomes
  - Labels: outcome (ok, failed)

dispatch_cancellations_total{outcome}:
  - Type: Counter
  - Description: Gateway.CancelTask outcomes
  - Labels: outcome (ok, failed, dropped)

dispatch_retries_total{phase}:
  - Type: Counter
  - Description: Retries scheduled by pipeline phase
  - Labels: phase (assignment, cancellation)

dispatch_in_flight_requests:
  - Type: Gauge
  - Description: Schedule requests with an active placement pipeline,
    plus cancel requests whose cancellation is still being attempted

dispatch_placement_duration_seconds:
  - Type: Histogram
  - Description: Time from first assignment attempt to terminal outcome
    (launched or failed), summed across all of a request's attempts
  - Buckets: Default Prometheus buckets

dispatch_raft_is_leader:
  - Type: Gauge
  - Description: Whether this engine replica is the elected active
    dispatcher (1 = leader, 0 = standby); only moves off its zero value
    when HA is enabled

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.PlacementDuration)

	metrics.AssignmentsTotal.WithLabelValues("ok").Inc()
	metrics.InFlightRequests.Inc()

# Health Endpoints

health.go backs cmd/dispatchd's /health, /ready, and /live endpoints:
components register themselves with RegisterComponent, and GetReadiness
treats "mailbox" and "resource_cluster" as the critical set that must be
healthy before the process reports ready.
*/
package metrics
