package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/dispatchd/pkg/health"
)

// HTTPGateway is a Gateway backed by a task executor's HTTP control plane.
// It gates SubmitTask on a reachability pre-check (health) tracked across
// calls so a flapping executor degrades to fast failures instead of hanging
// on every attempt.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	checker health.Checker
	status  *health.Status
	cfg     health.Config
}

// NewHTTPGateway creates an HTTPGateway against an executor reachable at
// baseURL (e.g. "http://executor-7:9090"). It uses an HTTPChecker against
// baseURL+"/status" for reachability; cfg governs the consecutive-failure
// threshold before that executor is treated as down.
func NewHTTPGateway(baseURL string, cfg health.Config) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		checker: health.NewHTTPChecker(baseURL + "/status"),
		status:  health.NewStatus(),
		cfg:     cfg,
	}
}

// SubmitTask posts payload to the executor's /tasks endpoint, after a
// reachability check. An executor that has crossed the failure threshold is
// failed fast without attempting the request.
func (g *HTTPGateway) SubmitTask(ctx context.Context, payload any) error {
	if !g.probe(ctx) {
		return fmt.Errorf("executor %s is unreachable: %s", g.baseURL, g.status.LastResult.Message)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("executor rejected task submission: HTTP %d", resp.StatusCode)
	}
	return nil
}

// CancelTask asks the executor to stop workerID. A 404 is treated as
// success: the cancellation pipeline can't distinguish "never started" from
// "already gone."
func (g *HTTPGateway) CancelTask(ctx context.Context, workerID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/tasks/"+workerID, nil)
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("executor rejected cancellation: HTTP %d", resp.StatusCode)
	}
	return nil
}

// probe runs the reachability checker and folds the result into g.status,
// returning whether the executor is currently considered healthy.
func (g *HTTPGateway) probe(ctx context.Context) bool {
	result := g.checker.Check(ctx)
	g.status.Update(result, g.cfg)
	return g.status.Healthy
}
