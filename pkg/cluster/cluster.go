package cluster

import (
	"context"

	"github.com/cuemby/dispatchd/pkg/gateway"
	"github.com/cuemby/dispatchd/pkg/types"
)

// ResourceCluster is the Dispatch Engine's sole view of executor inventory
// and placement policy. The engine never decides which executor to use; it
// only asks. Implementations must be safe for concurrent use.
type ResourceCluster interface {
	// GetTaskExecutorFor returns an executor whose registration satisfies
	// machineDef, reserved for workerID, or an error if none is currently
	// available.
	GetTaskExecutorFor(ctx context.Context, machineDef types.MachineDefinition, workerID string) (types.TaskExecutorID, error)

	// GetTaskExecutorGateway returns the Gateway for a previously assigned
	// executor.
	GetTaskExecutorGateway(ctx context.Context, id types.TaskExecutorID) (gateway.Gateway, error)

	// GetTaskExecutorInfo returns the current registration for an executor.
	// Called again at submission time because the registration may have
	// evolved since assignment.
	GetTaskExecutorInfo(ctx context.Context, id types.TaskExecutorID) (types.TaskExecutorRegistration, error)

	// GetTaskExecutorInfoByHost resolves a hostname to the executor hosting
	// it, for the cancellation pipeline.
	GetTaskExecutorInfoByHost(ctx context.Context, hostname string) (types.TaskExecutorID, types.TaskExecutorRegistration, error)

	// ReleaseReservation frees the capacity GetTaskExecutorFor reserved for
	// workerID on id. The engine calls this once workerID's reservation on
	// id is no longer needed: a terminal placement failure (the worker never
	// launched) or a successful cancellation (the worker is gone). A
	// successful launch does not call this — the worker is legitimately
	// consuming that capacity until it is cancelled.
	ReleaseReservation(id types.TaskExecutorID, workerID string)
}
