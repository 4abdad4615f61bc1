package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type scriptedChecker struct {
	mu      sync.Mutex
	healthy bool
}

func (c *scriptedChecker) Check(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{Healthy: c.healthy, CheckedAt: time.Now()}
}

func (c *scriptedChecker) Type() CheckType { return CheckTypeTCP }

func (c *scriptedChecker) setHealthy(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = v
}

func TestMonitor_ReportsChangeOnTransition(t *testing.T) {
	checker := &scriptedChecker{healthy: true}
	changes := make(chan Status, 8)

	m := NewMonitor(func(name string, status Status) {
		changes <- status
	})
	m.Watch("executor-1", checker, Config{Interval: 5 * time.Millisecond, Timeout: time.Second, Retries: 1})
	defer m.Unwatch("executor-1")

	checker.setHealthy(false)

	select {
	case status := <-changes:
		assert.False(t, status.Healthy)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unhealthy transition")
	}

	status, ok := m.Status("executor-1")
	assert.True(t, ok)
	assert.False(t, status.Healthy)
}

func TestMonitor_UnwatchStopsPolling(t *testing.T) {
	checker := &scriptedChecker{healthy: true}
	m := NewMonitor(nil)
	m.Watch("executor-1", checker, Config{Interval: 5 * time.Millisecond, Timeout: time.Second, Retries: 1})

	m.Unwatch("executor-1")

	_, ok := m.Status("executor-1")
	assert.False(t, ok)
}
