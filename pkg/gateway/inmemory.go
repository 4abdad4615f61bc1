package gateway

import (
	"context"
	"sync"
)

// InMemory is a reference Gateway that accepts every submission and
// cancellation in-process, recording calls for assertions. It is the
// Gateway a single-node cmd/dispatchd deployment or a test wires in.
type InMemory struct {
	mu        sync.Mutex
	submitted []any
	cancelled []string
	submitErr error
	cancelErr error
}

// NewInMemory creates an InMemory Gateway that accepts everything.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// FailSubmit makes every subsequent SubmitTask call return err until
// cleared.
func (g *InMemory) FailSubmit(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitErr = err
}

// FailCancel makes every subsequent CancelTask call return err until cleared.
func (g *InMemory) FailCancel(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelErr = err
}

// ClearFailures resets injected failures.
func (g *InMemory) ClearFailures() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitErr = nil
	g.cancelErr = nil
}

// SubmitTask implements Gateway.
func (g *InMemory) SubmitTask(ctx context.Context, payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitErr != nil {
		return g.submitErr
	}
	g.submitted = append(g.submitted, payload)
	return nil
}

// CancelTask implements Gateway.
func (g *InMemory) CancelTask(ctx context.Context, workerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, workerID)
	return nil
}

// Submitted returns a snapshot of every payload accepted so far.
func (g *InMemory) Submitted() []any {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]any, len(g.submitted))
	copy(out, g.submitted)
	return out
}

// CancelCallCount returns how many successful CancelTask calls were made
// for the given worker ID. Use CancelAttempts/CountingGateway when a test
// needs to count calls that were made to fail.
func (g *InMemory) CancelCallCount(workerID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 0
	for _, id := range g.cancelled {
		if id == workerID {
			count++
		}
	}
	return count
}

// CancelAttempts tracks every CancelTask invocation regardless of outcome,
// for tests asserting exact retry counts (e.g. S8).
type CancelAttempts struct {
	mu    sync.Mutex
	count int
}

func (c *CancelAttempts) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

// Count returns the number of recorded attempts.
func (c *CancelAttempts) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// CountingGateway wraps a Gateway and records every CancelTask call via the
// given CancelAttempts tracker, regardless of whether the wrapped call
// succeeds or fails. Tests use it to assert exact retry counts (S8) without
// threading extra state through InMemory itself.
type CountingGateway struct {
	Inner   Gateway
	Cancels *CancelAttempts
}

// SubmitTask delegates to Inner.
func (c *CountingGateway) SubmitTask(ctx context.Context, payload any) error {
	return c.Inner.SubmitTask(ctx, payload)
}

// CancelTask delegates to Inner after recording the attempt.
func (c *CountingGateway) CancelTask(ctx context.Context, workerID string) error {
	c.Cancels.inc()
	return c.Inner.CancelTask(ctx, workerID)
}
