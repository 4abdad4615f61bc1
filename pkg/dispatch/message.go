package dispatch

import (
	"github.com/cuemby/dispatchd/pkg/types"
)

// message is the closed set of variants the engine's mailbox accepts. The
// unexported marker method keeps the set closed to this package, the
// idiomatic Go substitute for the tagged-union dispatch of the source
// design: async RPC completions are wrapped in one of these and re-posted
// to the mailbox rather than handled directly on the calling goroutine.
type message interface {
	isMessage()
}

// scheduleRequestMsg carries a new or retried placement attempt into the
// placement pipeline.
type scheduleRequestMsg struct {
	envelope types.AttemptEnvelope
}

func (scheduleRequestMsg) isMessage() {}

// cancelRequestMsg starts the cancellation pipeline for a worker believed to
// be running on hostName.
type cancelRequestMsg struct {
	workerID string
	hostName string
}

func (cancelRequestMsg) isMessage() {}

// retryCancelRequestMsg re-enqueues a cancellation attempt after a failed
// CancelTask call, closing the gap the distilled design left open (§9 OQ2).
type retryCancelRequestMsg struct {
	workerID   string
	hostName   string
	executorID types.TaskExecutorID
	attempt    int
}

func (retryCancelRequestMsg) isMessage() {}

// assignedScheduleRequestMsg is posted when ResourceCluster.GetTaskExecutorFor
// succeeds.
type assignedScheduleRequestMsg struct {
	envelope   types.AttemptEnvelope
	executorID types.TaskExecutorID
}

func (assignedScheduleRequestMsg) isMessage() {}

// failedToScheduleRequestMsg is posted when GetTaskExecutorFor fails.
type failedToScheduleRequestMsg struct {
	envelope types.AttemptEnvelope
	cause    error
}

func (failedToScheduleRequestMsg) isMessage() {}

// submittedScheduleRequestMsg is posted when Gateway.SubmitTask succeeds.
type submittedScheduleRequestMsg struct {
	envelope   types.AttemptEnvelope
	executorID types.TaskExecutorID
}

func (submittedScheduleRequestMsg) isMessage() {}

// failedToSubmitScheduleRequestMsg is posted when Gateway.SubmitTask fails.
type failedToSubmitScheduleRequestMsg struct {
	envelope   types.AttemptEnvelope
	executorID types.TaskExecutorID
	cause      error
}

func (failedToSubmitScheduleRequestMsg) isMessage() {}

// noopMsg completes a cancellation pipeline with nothing further to do.
type noopMsg struct {
	workerID string
}

func (noopMsg) isMessage() {}

// readyToLaunchMsg is posted once the post-submission registration re-read
// (ASSIGNED → SUBMITTED → LAUNCHED's "re-read the current registration"
// step) succeeds, carrying the registration to publish WorkerLaunched from.
type readyToLaunchMsg struct {
	envelope     types.AttemptEnvelope
	registration types.TaskExecutorRegistration
}

func (readyToLaunchMsg) isMessage() {}

// launchLookupFailedMsg is posted when that re-read fails; per §7 a
// LookupFailure here is treated as a submission-phase failure.
type launchLookupFailedMsg struct {
	envelope types.AttemptEnvelope
	cause    error
}

func (launchLookupFailedMsg) isMessage() {}
