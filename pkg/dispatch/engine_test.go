package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/dispatchd/pkg/gateway"
	"github.com/cuemby/dispatchd/pkg/payload"
	"github.com/cuemby/dispatchd/pkg/router"
	"github.com/cuemby/dispatchd/pkg/timer"
	"github.com/cuemby/dispatchd/pkg/types"
)

// fakeCluster is a ResourceCluster test double that lets each test script a
// sequence of GetTaskExecutorFor outcomes (by index) rather than modeling
// real capacity accounting, which pkg/cluster's InMemory already covers.
type fakeCluster struct {
	mu            sync.Mutex
	assignErrs    []error // nil entries mean success
	assignCalls   int
	executorID    types.TaskExecutorID
	registration  types.TaskExecutorRegistration
	gw            gateway.Gateway
	hostIndexErr  error
	hostIndexID   types.TaskExecutorID
	hostIndexHost string
	releaseCalls  []releasedReservation
}

type releasedReservation struct {
	id       types.TaskExecutorID
	workerID string
}

func newFakeCluster(gw gateway.Gateway) *fakeCluster {
	return &fakeCluster{
		executorID:    "exec-1",
		registration:  types.TaskExecutorRegistration{Hostname: "host-1", ClusterID: "c1", ResourceID: "r1", WorkerPorts: []int{9000}},
		gw:            gw,
		hostIndexID:   "exec-1",
		hostIndexHost: "host-1",
	}
}

func (f *fakeCluster) GetTaskExecutorFor(ctx context.Context, machineDef types.MachineDefinition, workerID string) (types.TaskExecutorID, error) {
	f.mu.Lock()
	idx := f.assignCalls
	f.assignCalls++
	f.mu.Unlock()

	if idx < len(f.assignErrs) && f.assignErrs[idx] != nil {
		return "", f.assignErrs[idx]
	}
	return f.executorID, nil
}

func (f *fakeCluster) GetTaskExecutorGateway(ctx context.Context, id types.TaskExecutorID) (gateway.Gateway, error) {
	return f.gw, nil
}

func (f *fakeCluster) GetTaskExecutorInfo(ctx context.Context, id types.TaskExecutorID) (types.TaskExecutorRegistration, error) {
	return f.registration, nil
}

func (f *fakeCluster) GetTaskExecutorInfoByHost(ctx context.Context, hostname string) (types.TaskExecutorID, types.TaskExecutorRegistration, error) {
	if f.hostIndexErr != nil {
		return "", types.TaskExecutorRegistration{}, f.hostIndexErr
	}
	return f.hostIndexID, f.registration, nil
}

func (f *fakeCluster) assignCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assignCalls
}

func (f *fakeCluster) ReleaseReservation(id types.TaskExecutorID, workerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls = append(f.releaseCalls, releasedReservation{id: id, workerID: workerID})
}

func (f *fakeCluster) releaseCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.releaseCalls)
}

type testHarness struct {
	engine *Engine
	clock  *timer.Manual
	sub    router.Subscription
	broker *router.Broker
}

func newHarness(t *testing.T, cfg Config, rc *fakeCluster) *testHarness {
	t.Helper()

	broker := router.NewBroker()
	broker.Start()
	sub := broker.Subscribe()

	clock := timer.NewManual(time.Unix(0, 0))
	engine := New(cfg, rc, broker, payload.NewDefault(), clock)
	go engine.Run()

	t.Cleanup(func() {
		engine.Stop()
		broker.Unsubscribe(sub)
		broker.Stop()
	})

	return &testHarness{engine: engine, clock: clock, sub: sub, broker: broker}
}

func (h *testHarness) awaitEvent(t *testing.T, timeout time.Duration) types.WorkerEvent {
	t.Helper()
	select {
	case envelope := <-h.sub:
		return envelope.Event
	case <-time.After(timeout):
		t.Fatal("timed out waiting for routed event")
		return nil
	}
}

func TestEngine_SuccessfulPlacement(t *testing.T) {
	gw := gateway.NewInMemory()
	rc := newFakeCluster(gw)
	h := newHarness(t, DefaultConfig(), rc)

	h.engine.Submit(types.ScheduleRequest{WorkerID: "w-1", JobID: "job-1", StageNum: 0})

	event := h.awaitEvent(t, time.Second)
	launched, ok := event.(types.WorkerLaunched)
	require.True(t, ok, "expected WorkerLaunched, got %T", event)

	assert.Equal(t, "w-1", launched.WorkerID)
	assert.Equal(t, "host-1", launched.Hostname)
	assert.Len(t, gw.Submitted(), 1)
}

func TestEngine_AssignmentFailureThenRetrySucceeds(t *testing.T) {
	gw := gateway.NewInMemory()
	rc := newFakeCluster(gw)
	rc.assignErrs = []error{errors.New("no capacity")}
	h := newHarness(t, DefaultConfig(), rc)

	h.engine.Submit(types.ScheduleRequest{WorkerID: "w-2", JobID: "job-1", StageNum: 1})

	waitForAssignCalls(t, rc, 1)
	h.clock.Advance(60 * time.Second)

	event := h.awaitEvent(t, time.Second)
	launched, ok := event.(types.WorkerLaunched)
	require.True(t, ok, "expected WorkerLaunched after retry, got %T", event)

	assert.Equal(t, "w-2", launched.WorkerID)
	assert.Equal(t, 2, rc.assignCallCount(), "expected 2 GetTaskExecutorFor calls (initial + 1 retry)")
}

func TestEngine_SubmissionFailureIsTerminalNotRetried(t *testing.T) {
	gw := gateway.NewInMemory()
	gw.FailSubmit(errors.New("executor rejected payload"))
	rc := newFakeCluster(gw)
	h := newHarness(t, DefaultConfig(), rc)

	h.engine.Submit(types.ScheduleRequest{WorkerID: "w-3", JobID: "job-1", StageNum: 0})

	event := h.awaitEvent(t, time.Second)
	failed, ok := event.(types.WorkerLaunchFailed)
	require.True(t, ok, "expected WorkerLaunchFailed, got %T", event)
	assert.Equal(t, "w-3", failed.WorkerID)

	h.clock.Advance(time.Hour)
	assert.Equal(t, 1, rc.assignCallCount(), "submission failure should not trigger any retry")
	assert.Equal(t, 1, rc.releaseCallCount(), "terminal submission failure must release the reserved capacity")
}

// TestEngine_AttemptCapExhausted is scenario S7: with a cap of 2, two
// consecutive assignment failures produce WorkerLaunchFailed mentioning the
// attempt cap, and no third GetTaskExecutorFor call is made.
func TestEngine_AttemptCapExhausted(t *testing.T) {
	gw := gateway.NewInMemory()
	rc := newFakeCluster(gw)
	rc.assignErrs = []error{errors.New("no capacity"), errors.New("no capacity")}

	cfg := DefaultConfig()
	cfg.MaxAssignmentAttempts = 2
	h := newHarness(t, cfg, rc)

	h.engine.Submit(types.ScheduleRequest{WorkerID: "w-4", JobID: "job-1", StageNum: 0})

	waitForAssignCalls(t, rc, 1)
	h.clock.Advance(60 * time.Second)
	waitForAssignCalls(t, rc, 2)
	h.clock.Advance(60 * time.Second)

	event := h.awaitEvent(t, time.Second)
	failed, ok := event.(types.WorkerLaunchFailed)
	require.True(t, ok, "expected WorkerLaunchFailed, got %T", event)
	assert.NotEmpty(t, failed.CauseString)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rc.assignCallCount())
	assert.Equal(t, 0, rc.releaseCallCount(), "a failed assignment attempt never reserved capacity to release")
}

func waitForAssignCalls(t *testing.T, rc *fakeCluster, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for rc.assignCallCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d assign calls, got %d", n, rc.assignCallCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEngine_CancellationSuccess(t *testing.T) {
	gw := gateway.NewInMemory()
	rc := newFakeCluster(gw)
	h := newHarness(t, DefaultConfig(), rc)

	h.engine.Cancel("w-5", "host-1")

	deadline := time.Now().Add(time.Second)
	for gw.CancelCallCount("w-5") < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, gw.CancelCallCount("w-5"))

	deadline = time.Now().Add(time.Second)
	for rc.releaseCallCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, rc.releaseCallCount(), "a successful cancellation must release the reserved capacity")
}

// TestEngine_CancellationRetriedThenDropped is scenario S8: CancelTask fails
// on every attempt; with CancellationRetryLimit=2 the engine issues exactly
// 3 calls total (1 initial + 2 retries), spaced by the retry delay, then
// stops.
func TestEngine_CancellationRetriedThenDropped(t *testing.T) {
	inner := gateway.NewInMemory()
	inner.FailCancel(errors.New("executor unreachable"))
	attempts := &gateway.CancelAttempts{}
	gw := &gateway.CountingGateway{Inner: inner, Cancels: attempts}

	rc := newFakeCluster(gw)
	cfg := DefaultConfig()
	cfg.CancellationRetryLimit = 2
	h := newHarness(t, cfg, rc)

	h.engine.Cancel("w-6", "host-1")

	waitForCancelAttempts(t, attempts, 1)
	h.clock.Advance(60 * time.Second)
	waitForCancelAttempts(t, attempts, 2)
	h.clock.Advance(60 * time.Second)
	waitForCancelAttempts(t, attempts, 3)

	h.clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 3, attempts.Count())
}

func waitForCancelAttempts(t *testing.T, attempts *gateway.CancelAttempts, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for attempts.Count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d cancel attempts, got %d", n, attempts.Count())
		}
		time.Sleep(time.Millisecond)
	}
}

// TestEngine_DuplicateSubmitForSameWorkerIsDropped guards the "single
// in-flight per request" invariant: a second ScheduleRequestEvent for a
// workerID already mid-placement finds the FSM outside {new,
// failed_assign} and is dropped rather than double-processed.
func TestEngine_DuplicateSubmitForSameWorkerIsDropped(t *testing.T) {
	gw := gateway.NewInMemory()
	rc := newFakeCluster(gw)
	h := newHarness(t, DefaultConfig(), rc)

	h.engine.Submit(types.ScheduleRequest{WorkerID: "w-7", JobID: "job-1", StageNum: 0})
	h.engine.Submit(types.ScheduleRequest{WorkerID: "w-7", JobID: "job-1", StageNum: 0})

	h.awaitEvent(t, time.Second)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rc.assignCallCount(), "expected the duplicate submit to be dropped")
}

// fakeElector is an ha.Elector test double whose leadership can be flipped
// on demand via leadershipCh.
type fakeElector struct {
	mu         sync.Mutex
	isLeader   bool
	leadership chan bool
}

func newFakeElector(initial bool) *fakeElector {
	return &fakeElector{isLeader: initial, leadership: make(chan bool, 1)}
}

func (f *fakeElector) Leader() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isLeader
}

func (f *fakeElector) WaitForLeadership(ctx context.Context) <-chan bool {
	out := make(chan bool)
	go func() {
		defer close(out)
		for {
			select {
			case v, ok := <-f.leadership:
				if !ok {
					return
				}
				f.mu.Lock()
				f.isLeader = v
				f.mu.Unlock()
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *fakeElector) setLeader(v bool) { f.leadership <- v }

// TestEngine_PausesDrainingWhenNotLeader covers SPEC_FULL.md §12: a non-leader
// replica queues Submit messages without draining them until it is told it
// holds leadership.
func TestEngine_PausesDrainingWhenNotLeader(t *testing.T) {
	gw := gateway.NewInMemory()
	rc := newFakeCluster(gw)

	broker := router.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	clock := timer.NewManual(time.Unix(0, 0))
	engine := New(DefaultConfig(), rc, broker, payload.NewDefault(), clock)
	elector := newFakeElector(false)
	engine.SetElector(elector)
	go engine.Run()
	defer engine.Stop()

	engine.Submit(types.ScheduleRequest{WorkerID: "w-9", JobID: "job-1", StageNum: 0})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rc.assignCallCount(), "expected mailbox not to drain while not leader")

	elector.setLeader(true)

	deadline := time.Now().Add(time.Second)
	for rc.assignCallCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, rc.assignCallCount(), "expected mailbox to drain once leadership is granted")
}
