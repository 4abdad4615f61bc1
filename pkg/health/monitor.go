package health

import (
	"context"
	"sync"
	"time"
)

// target tracks one monitored Checker's state.
type target struct {
	checker Checker
	status  *Status
	config  Config
	cancel  context.CancelFunc
}

// Monitor runs a named set of Checkers on their own ticking goroutines and
// reports transitions through OnChange. A Gateway wanting continuous
// reachability tracking for more than one executor (rather than the
// single pre-flight probe HTTPGateway does inline) registers one Checker
// per executor here instead of rolling its own ticker loop.
type Monitor struct {
	mu       sync.Mutex
	targets  map[string]*target
	onChange func(name string, status Status)
}

// NewMonitor creates an empty Monitor. onChange may be nil.
func NewMonitor(onChange func(name string, status Status)) *Monitor {
	if onChange == nil {
		onChange = func(string, Status) {}
	}
	return &Monitor{
		targets:  make(map[string]*target),
		onChange: onChange,
	}
}

// Watch starts polling checker every cfg.Interval under name, assuming
// healthy until the first result lands. Watching a name already being
// watched replaces it.
func (m *Monitor) Watch(name string, checker Checker, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.targets[name]; ok {
		existing.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &target{
		checker: checker,
		status:  NewStatus(),
		config:  cfg,
		cancel:  cancel,
	}
	m.targets[name] = t

	go m.pollLoop(ctx, name, t)
}

// Unwatch stops polling name.
func (m *Monitor) Unwatch(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.targets[name]; ok {
		t.cancel()
		delete(m.targets, name)
	}
}

// Status returns the last known status for name, or false if name isn't
// being watched.
func (m *Monitor) Status(name string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.targets[name]
	if !ok {
		return Status{}, false
	}
	return *t.status, true
}

func (m *Monitor) pollLoop(ctx context.Context, name string, t *target) {
	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	m.runCheck(ctx, name, t)

	for {
		select {
		case <-ticker.C:
			m.runCheck(ctx, name, t)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) runCheck(ctx context.Context, name string, t *target) {
	checkCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	result := t.checker.Check(checkCtx)

	m.mu.Lock()
	wasHealthy := t.status.Healthy
	t.status.Update(result, t.config)
	nowStatus := *t.status
	m.mu.Unlock()

	if nowStatus.Healthy != wasHealthy {
		m.onChange(name, nowStatus)
	}
}
