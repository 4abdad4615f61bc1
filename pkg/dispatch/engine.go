package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/cuemby/dispatchd/pkg/cluster"
	"github.com/cuemby/dispatchd/pkg/ha"
	"github.com/cuemby/dispatchd/pkg/log"
	"github.com/cuemby/dispatchd/pkg/metrics"
	"github.com/cuemby/dispatchd/pkg/payload"
	"github.com/cuemby/dispatchd/pkg/router"
	"github.com/cuemby/dispatchd/pkg/timer"
	"github.com/cuemby/dispatchd/pkg/types"
)

// placementState is the per-workerID bookkeeping the event loop keeps for
// an in-flight placement pipeline. Because it is only ever read or written
// from inside Run's single goroutine, it needs no lock of its own: the
// mailbox is the engine's mutual-exclusion mechanism.
type placementState struct {
	sm       *fsm.FSM
	envelope types.AttemptEnvelope

	// executorID is the executor the current attempt reserved capacity on,
	// set once GetTaskExecutorFor succeeds and cleared once that
	// reservation is released. Empty between attempts and before the
	// first assignment.
	executorID types.TaskExecutorID

	// startedAt marks when this worker's placement pipeline first entered
	// the mailbox (attempt 1), for dispatch_placement_duration_seconds.
	startedAt time.Time
}

// Engine is the Dispatch Engine: a single-consumer mailbox that serializes
// all placement and cancellation state transitions for every in-flight
// request, per §4.1.
type Engine struct {
	cfg            Config
	cluster        cluster.ResourceCluster
	payloadBuilder payload.Builder
	pub            *publisher
	clock          timer.Timer
	assignPolicy   *timer.RetryPolicy
	cancelPolicy   *timer.RetryPolicy

	mailbox chan message
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// elector gates mailbox draining to whichever replica holds
	// leadership (§12). Nil means this engine always drains, the single-
	// replica case.
	elector ha.Elector

	placements map[string]*placementState
}

// New constructs an Engine. Call Run in its own goroutine before Submit or
// Cancel; call Stop to shut the loop down.
func New(cfg Config, resourceCluster cluster.ResourceCluster, jobRouter router.JobMessageRouter, builder payload.Builder, clock timer.Timer) *Engine {
	assignPolicy := timer.NewRetryPolicy(cfg.AssignmentRetryDelay)
	if cfg.MaxAssignmentAttempts > 0 {
		assignPolicy = assignPolicy.WithMaxAttempts(cfg.MaxAssignmentAttempts)
	}

	return &Engine{
		cfg:            cfg,
		cluster:        resourceCluster,
		payloadBuilder: builder,
		pub:            newPublisher(jobRouter),
		clock:          clock,
		assignPolicy:   assignPolicy,
		cancelPolicy:   timer.NewRetryPolicy(cfg.AssignmentRetryDelay).WithMaxAttempts(cfg.CancellationRetryLimit + 1),
		mailbox:        make(chan message, cfg.MailboxBufferSize),
		stopCh:         make(chan struct{}),
		placements:     make(map[string]*placementState),
	}
}

// Submit implements the inbound API: it enqueues a ScheduleRequestEvent for
// attempt 1. This is a plain Go method call, not a network service (§6) —
// the caller is whatever process embeds the engine.
func (e *Engine) Submit(request types.ScheduleRequest) {
	e.mailbox <- scheduleRequestMsg{envelope: types.AttemptEnvelope{Request: request, Attempt: 1}}
}

// Cancel implements the inbound API: it enqueues a CancelRequestEvent.
func (e *Engine) Cancel(workerID, hostName string) {
	e.mailbox <- cancelRequestMsg{workerID: workerID, hostName: hostName}
}

// post re-enqueues an internal message, giving up silently if the engine
// has been stopped (an in-flight async call racing Stop, not an error).
func (e *Engine) post(msg message) {
	select {
	case e.mailbox <- msg:
	case <-e.stopCh:
	}
}

// SetElector wires an optional leadership gate into the engine. Call this
// before Run. When set, the mailbox is only drained while this replica
// holds leadership; on leadership loss, draining pauses and messages queue
// in the mailbox (up to its buffer) rather than being discarded (§12).
func (e *Engine) SetElector(elector ha.Elector) {
	e.elector = elector
}

// Run drains the mailbox until Stop is called. Callers run this in its own
// goroutine.
func (e *Engine) Run() {
	mailboxCh := e.mailbox
	var leaderCh <-chan bool

	if e.elector != nil {
		if !e.elector.Leader() {
			mailboxCh = nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		leaderCh = e.elector.WaitForLeadership(ctx)
	}

	for {
		select {
		case msg := <-mailboxCh:
			e.handle(msg)
		case isLeader, ok := <-leaderCh:
			if !ok {
				leaderCh = nil
				continue
			}
			if isLeader {
				mailboxCh = e.mailbox
			} else {
				mailboxCh = nil
			}
		case <-e.stopCh:
			return
		}
	}
}

// Stop signals Run to exit. In-flight async collaborator calls may still
// complete and attempt to post to the mailbox; post treats stopCh as a
// signal to drop rather than block.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Engine) handle(msg message) {
	switch m := msg.(type) {
	case scheduleRequestMsg:
		e.handleScheduleRequest(m)
	case cancelRequestMsg:
		e.handleCancelRequest(m)
	case retryCancelRequestMsg:
		e.handleRetryCancelRequest(m)
	case assignedScheduleRequestMsg:
		e.handleAssigned(m)
	case failedToScheduleRequestMsg:
		e.handleFailedToSchedule(m)
	case submittedScheduleRequestMsg:
		e.handleSubmitted(m)
	case failedToSubmitScheduleRequestMsg:
		e.handleFailedToSubmit(m)
	case readyToLaunchMsg:
		e.handleReadyToLaunch(m)
	case launchLookupFailedMsg:
		e.handleLaunchLookupFailed(m)
	case noopMsg:
		log.WithWorkerID(m.workerID).Debug().Msg("cancellation completed")
	}
}

func (e *Engine) placementFor(workerID string) *placementState {
	ps, ok := e.placements[workerID]
	if !ok {
		ps = &placementState{sm: newPlacementFSM()}
		e.placements[workerID] = ps
	}
	return ps
}

func (e *Engine) handleScheduleRequest(m scheduleRequestMsg) {
	workerID := m.envelope.Request.WorkerID
	ps := e.placementFor(workerID)
	ps.envelope = m.envelope

	if err := advance(workerID, ps.sm, eventSubmit); err != nil {
		log.WithAttempt(workerID, m.envelope.Attempt).Error().Err(err).Msg("dropping message")
		return
	}

	if m.envelope.Attempt == 1 {
		metrics.InFlightRequests.Inc()
		ps.startedAt = time.Now()
	}

	l := log.WithAttempt(workerID, m.envelope.Attempt)
	l.Info().Msg("assigning executor")

	e.goAsync(func() {
		ctx := context.Background()
		id, err := e.cluster.GetTaskExecutorFor(ctx, m.envelope.Request.MachineDefinition, workerID)
		if err != nil {
			metrics.AssignmentsTotal.WithLabelValues("failed").Inc()
			e.post(failedToScheduleRequestMsg{envelope: m.envelope, cause: newAssignmentUnavailable(err)})
			return
		}
		metrics.AssignmentsTotal.WithLabelValues("ok").Inc()
		e.post(assignedScheduleRequestMsg{envelope: m.envelope, executorID: id})
	})
}

func (e *Engine) handleAssigned(m assignedScheduleRequestMsg) {
	workerID := m.envelope.Request.WorkerID
	ps := e.placementFor(workerID)

	if err := advance(workerID, ps.sm, eventAssignOK); err != nil {
		log.WithWorkerID(workerID).Error().Err(err).Msg("dropping message")
		return
	}
	ps.executorID = m.executorID

	l := log.WithAttempt(workerID, m.envelope.Attempt)
	l.Info().Str("executor_id", string(m.executorID)).Msg("executor assigned, submitting task")

	e.goAsync(func() {
		ctx := context.Background()

		registration, err := e.cluster.GetTaskExecutorInfo(ctx, m.executorID)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
			e.post(failedToSubmitScheduleRequestMsg{envelope: m.envelope, executorID: m.executorID, cause: newLookupFailure(err)})
			return
		}

		gw, err := e.cluster.GetTaskExecutorGateway(ctx, m.executorID)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
			e.post(failedToSubmitScheduleRequestMsg{envelope: m.envelope, executorID: m.executorID, cause: newLookupFailure(err)})
			return
		}

		executorPayload, err := e.payloadBuilder.Build(m.envelope.Request, registration)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
			e.post(failedToSubmitScheduleRequestMsg{envelope: m.envelope, executorID: m.executorID, cause: newSubmissionRejected(err)})
			return
		}

		if err := gw.SubmitTask(ctx, executorPayload); err != nil {
			metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
			e.post(failedToSubmitScheduleRequestMsg{envelope: m.envelope, executorID: m.executorID, cause: newSubmissionRejected(err)})
			return
		}

		metrics.SubmissionsTotal.WithLabelValues("ok").Inc()
		e.post(submittedScheduleRequestMsg{envelope: m.envelope, executorID: m.executorID})
	})
}

func (e *Engine) handleFailedToSchedule(m failedToScheduleRequestMsg) {
	workerID := m.envelope.Request.WorkerID
	ps := e.placementFor(workerID)

	if err := advance(workerID, ps.sm, eventAssignFail); err != nil {
		log.WithWorkerID(workerID).Error().Err(err).Msg("dropping message")
		return
	}

	l := log.WithAttempt(workerID, m.envelope.Attempt)

	delay, ok := e.assignPolicy.NextDelay(m.envelope.Attempt + 1)
	if !ok {
		l.Warn().Err(m.cause).Msg("assignment attempt cap exhausted")
		e.terminateFailed(workerID, m.envelope, attemptCapExhausted(e.cfg.MaxAssignmentAttempts))
		return
	}

	metrics.RetriesTotal.WithLabelValues("assignment").Inc()
	l.Info().Err(m.cause).Dur("retry_delay", delay).Msg("assignment failed, scheduling retry")

	nextEnvelope := m.envelope.NextAttempt(m.cause)
	e.clock.ScheduleOnce(delay, func() {
		e.post(scheduleRequestMsg{envelope: nextEnvelope})
	})
}

func (e *Engine) handleSubmitted(m submittedScheduleRequestMsg) {
	workerID := m.envelope.Request.WorkerID
	ps := e.placementFor(workerID)

	if err := advance(workerID, ps.sm, eventSubmitOK); err != nil {
		log.WithWorkerID(workerID).Error().Err(err).Msg("dropping message")
		return
	}

	e.goAsync(func() {
		ctx := context.Background()
		registration, err := e.cluster.GetTaskExecutorInfo(ctx, m.executorID)
		if err != nil {
			e.post(launchLookupFailedMsg{envelope: m.envelope, cause: newLookupFailure(err)})
			return
		}
		e.post(readyToLaunchMsg{envelope: m.envelope, registration: registration})
	})
}

func (e *Engine) handleReadyToLaunch(m readyToLaunchMsg) {
	workerID := m.envelope.Request.WorkerID
	ps := e.placementFor(workerID)

	if err := advance(workerID, ps.sm, eventPublishLaunched); err != nil {
		log.WithWorkerID(workerID).Error().Err(err).Msg("dropping message")
		return
	}

	e.pub.publishLaunched(types.WorkerLaunched{
		WorkerID:    workerID,
		StageNum:    m.envelope.Request.StageNum,
		Hostname:    m.registration.Hostname,
		ResourceID:  m.registration.ResourceID,
		WorkerPorts: m.registration.WorkerPorts,
	})

	if !ps.startedAt.IsZero() {
		metrics.PlacementDuration.Observe(time.Since(ps.startedAt).Seconds())
	}
	metrics.InFlightRequests.Dec()
	delete(e.placements, workerID)
	log.WithAttempt(workerID, m.envelope.Attempt).Info().Msg("worker launched")
}

func (e *Engine) handleLaunchLookupFailed(m launchLookupFailedMsg) {
	workerID := m.envelope.Request.WorkerID
	log.WithAttempt(workerID, m.envelope.Attempt).Error().Err(m.cause).Msg("post-submission registration re-read failed")
	e.terminateFailed(workerID, m.envelope, m.cause)
}

func (e *Engine) handleFailedToSubmit(m failedToSubmitScheduleRequestMsg) {
	workerID := m.envelope.Request.WorkerID
	ps := e.placementFor(workerID)

	if err := advance(workerID, ps.sm, eventSubmitFail); err != nil {
		log.WithWorkerID(workerID).Error().Err(err).Msg("dropping message")
		return
	}

	log.WithAttempt(workerID, m.envelope.Attempt).Error().Err(m.cause).Msg("submission rejected")
	e.terminateFailed(workerID, m.envelope, m.cause)
}

// terminateFailed drives the FSM into its REPORTED_FAIL terminal state and
// publishes WorkerLaunchFailed. Submission failure and attempt-cap
// exhaustion both end here: neither is retried within this engine (§7).
func (e *Engine) terminateFailed(workerID string, envelope types.AttemptEnvelope, cause error) {
	ps := e.placementFor(workerID)

	// Every terminal-failure path (attempt-cap exhaustion from
	// FAILED_ASSIGN, a post-submission registration re-read failure from
	// SUBMITTED, or an already-FAILED_SUBMIT state) converges here before
	// publish_failed fires, so that event always has one source state.
	if ps.sm.Current() != stateFailedSubmit {
		ps.sm.SetState(stateFailedSubmit)
	}
	if err := advance(workerID, ps.sm, eventPublishFailed); err != nil {
		log.WithWorkerID(workerID).Error().Err(err).Msg("dropping message")
		return
	}

	e.pub.publishLaunchFailed(types.WorkerLaunchFailed{
		WorkerID:    workerID,
		StageNum:    envelope.Request.StageNum,
		CauseString: cause.Error(),
	})

	if ps.executorID != "" {
		e.cluster.ReleaseReservation(ps.executorID, workerID)
	}
	if !ps.startedAt.IsZero() {
		metrics.PlacementDuration.Observe(time.Since(ps.startedAt).Seconds())
	}
	metrics.InFlightRequests.Dec()
	delete(e.placements, workerID)
}

func (e *Engine) handleCancelRequest(m cancelRequestMsg) {
	metrics.InFlightRequests.Inc()
	e.attemptCancel(m.workerID, m.hostName, "", 1)
}

func (e *Engine) handleRetryCancelRequest(m retryCancelRequestMsg) {
	e.attemptCancel(m.workerID, m.hostName, m.executorID, m.attempt)
}

func (e *Engine) attemptCancel(workerID, hostName string, knownExecutor types.TaskExecutorID, attempt int) {
	l := log.WithAttempt(workerID, attempt)
	l.Info().Msg("attempting cancellation")

	e.goAsync(func() {
		ctx := context.Background()

		executorID := knownExecutor
		if executorID == "" {
			id, _, err := e.cluster.GetTaskExecutorInfoByHost(ctx, hostName)
			if err != nil {
				e.onCancelFailed(workerID, hostName, "", attempt, newLookupFailure(err))
				return
			}
			executorID = id
		}

		gw, err := e.cluster.GetTaskExecutorGateway(ctx, executorID)
		if err != nil {
			e.onCancelFailed(workerID, hostName, executorID, attempt, newLookupFailure(err))
			return
		}

		if err := gw.CancelTask(ctx, workerID); err != nil {
			e.onCancelFailed(workerID, hostName, executorID, attempt, newCancellationFailure(err))
			return
		}

		e.cluster.ReleaseReservation(executorID, workerID)
		metrics.CancellationsTotal.WithLabelValues("ok").Inc()
		metrics.InFlightRequests.Dec()
		e.post(noopMsg{workerID: workerID})
	})
}

func (e *Engine) onCancelFailed(workerID, hostName string, executorID types.TaskExecutorID, attempt int, cause error) {
	l := log.WithAttempt(workerID, attempt)

	delay, ok := e.cancelPolicy.NextDelay(attempt + 1)
	if !ok {
		metrics.CancellationsTotal.WithLabelValues("dropped").Inc()
		metrics.InFlightRequests.Dec()
		l.Error().Err(cause).Msg("cancellation retry budget exhausted, dropping")
		return
	}

	metrics.CancellationsTotal.WithLabelValues("failed").Inc()
	metrics.RetriesTotal.WithLabelValues("cancellation").Inc()
	l.Info().Err(cause).Dur("retry_delay", delay).Msg("cancellation failed, scheduling retry")

	e.clock.ScheduleOnce(delay, func() {
		e.post(retryCancelRequestMsg{workerID: workerID, hostName: hostName, executorID: executorID, attempt: attempt + 1})
	})
}

// goAsync runs fn on its own goroutine, tracked so Stop can wait for
// in-flight collaborator calls to finish posting (or give up on stopCh)
// before returning.
func (e *Engine) goAsync(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}
