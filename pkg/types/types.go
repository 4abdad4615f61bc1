// Package types holds the data model shared by every Dispatch Engine
// collaborator: the request that comes in, the executor descriptors the
// resource cluster hands back, and the worker lifecycle events that go out
// to the job-management plane.
package types

// ScheduleRequest describes one worker of one stage of a streaming job that
// needs to be placed on a task executor. It is immutable once constructed;
// retries operate on AttemptEnvelope, never on a mutated ScheduleRequest.
type ScheduleRequest struct {
	WorkerID          string
	JobID             string
	StageNum          int
	MachineDefinition MachineDefinition

	// Payload is opaque deployment-artifact data the engine never
	// interprets; it is handed verbatim to the PayloadBuilder.
	Payload map[string]string
}

// MachineDefinition is the resource shape a worker requires. ResourceCluster
// implementations match it against executor capacity.
type MachineDefinition struct {
	CPUCores    float64
	MemoryBytes int64
	DiskBytes   int64
	NetworkBps  int64
	GPUCount    int
}

// AttemptEnvelope wraps a ScheduleRequest with the attempt number the
// placement pipeline is currently driving and, for attempt > 1, the cause of
// the previous attempt's assignment failure.
type AttemptEnvelope struct {
	Request     ScheduleRequest
	Attempt     int
	PrevFailure error
}

// NextAttempt returns a new envelope for the same request with Attempt
// incremented and cause recorded. It never mutates the receiver, preserving
// the invariant that attempt numbers only ever increase for a given worker.
func (e AttemptEnvelope) NextAttempt(cause error) AttemptEnvelope {
	return AttemptEnvelope{
		Request:     e.Request,
		Attempt:     e.Attempt + 1,
		PrevFailure: cause,
	}
}

// TaskExecutorID is the opaque identifier of a cluster node capable of
// running a task, as produced by ResourceCluster.GetTaskExecutorFor.
type TaskExecutorID string

// TaskExecutorRegistration describes a selected executor: where it lives and
// which ports have been reserved for the worker it is about to run.
type TaskExecutorRegistration struct {
	Hostname    string
	ClusterID   string
	ResourceID  string
	WorkerPorts []int
}

// CancelRequest identifies a worker to cancel and the host believed to be
// running it; the cancellation pipeline resolves the host to an executor
// independently of any placement pipeline in flight for the same worker.
type CancelRequest struct {
	WorkerID string
	HostName string
}

// ExecutorPayload is the opaque result of PayloadBuilder.Build. The engine
// never inspects it; it is handed straight to Gateway.SubmitTask.
type ExecutorPayload any

// WorkerEvent is the closed set of lifecycle events the Dispatch Engine
// publishes to the job-management plane. The unexported marker method keeps
// the set closed to this package's two variants, the idiomatic Go substitute
// for a sum type.
type WorkerEvent interface {
	isWorkerEvent()
}

// WorkerLaunched reports that an executor accepted a worker's task.
type WorkerLaunched struct {
	WorkerID          string
	StageNum          int
	Hostname          string
	ResourceID        string
	ClusterResourceID string // optional; empty when the executor has none
	WorkerPorts       []int
}

func (WorkerLaunched) isWorkerEvent() {}

// WorkerLaunchFailed reports that placement failed terminally: the
// submission phase failed (executor lookup, payload build, or the executor's
// rejection), the post-submission registration re-read failed, or an
// assignment attempt cap (when configured) was exhausted.
type WorkerLaunchFailed struct {
	WorkerID    string
	StageNum    int
	CauseString string
}

func (WorkerLaunchFailed) isWorkerEvent() {}
