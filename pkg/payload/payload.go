package payload

import (
	"github.com/cuemby/dispatchd/pkg/types"
)

// Builder produces the executor-bound payload for a ScheduleRequest once it
// has been assigned an executor. Build must be a pure function: no I/O, no
// shared mutable state, safe for concurrent use.
type Builder interface {
	Build(request types.ScheduleRequest, registration types.TaskExecutorRegistration) (types.ExecutorPayload, error)
}

// ExecuteStagePayload is the Default builder's opaque payload shape: the
// fields a task executor needs to run one worker of one job stage.
type ExecuteStagePayload struct {
	WorkerID    string
	JobID       string
	StageNum    int
	Hostname    string
	ClusterID   string
	ResourceID  string
	WorkerPorts []int
	Artifact    map[string]string
}

// Default builds an ExecuteStagePayload directly from the request and
// registration, with no transformation beyond shaping the fields the
// executor protocol expects.
type Default struct{}

// NewDefault creates a Default Builder.
func NewDefault() *Default {
	return &Default{}
}

// Build implements Builder.
func (Default) Build(request types.ScheduleRequest, registration types.TaskExecutorRegistration) (types.ExecutorPayload, error) {
	return ExecuteStagePayload{
		WorkerID:    request.WorkerID,
		JobID:       request.JobID,
		StageNum:    request.StageNum,
		Hostname:    registration.Hostname,
		ClusterID:   registration.ClusterID,
		ResourceID:  registration.ResourceID,
		WorkerPorts: registration.WorkerPorts,
		Artifact:    request.Payload,
	}, nil
}
