/*
Package health provides generic health-check primitives: HTTP and TCP
checkers against a Checker interface, plus a Status tracker that turns a
stream of individual Results into a debounced healthy/unhealthy verdict
using consecutive-failure and consecutive-success thresholds.

The Dispatch Engine has no business polling task executors itself (that is
ResourceCluster's job), but a Gateway implementation backed by a real
executor-facing transport can use an HTTPChecker or TCPChecker to verify an
executor is reachable before issuing SubmitTask, as HTTPGateway does. The
admin HTTP server's /health and /ready endpoints (cmd/dispatchd) do not use
this package; pkg/metrics backs them with its own component registry.

	checker := health.NewHTTPChecker("http://executor-7:9090/status")
	status := &health.Status{StartedAt: time.Now()}

	result := checker.Check(ctx)
	status.LastResult = result
	status.LastCheck = result.CheckedAt
	if result.Healthy {
		status.ConsecutiveSuccesses++
		status.ConsecutiveFailures = 0
	} else {
		status.ConsecutiveFailures++
		status.ConsecutiveSuccesses = 0
	}
	status.Healthy = status.ConsecutiveFailures < cfg.Retries

TCPChecker is the cheaper check when only port reachability matters (e.g. a
gateway's transport socket), HTTPChecker when the executor exposes a richer
status endpoint.
*/
package health
