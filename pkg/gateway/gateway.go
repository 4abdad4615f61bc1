package gateway

import "context"

// Gateway is the per-executor RPC handle the Dispatch Engine uses to submit
// and cancel tasks. Implementations must be safe for concurrent use: the
// engine may issue SubmitTask for one attempt while a CancelTask for the
// same worker races in from the cancellation pipeline.
type Gateway interface {
	// SubmitTask hands an opaque, executor-bound payload to the executor.
	SubmitTask(ctx context.Context, payload any) error

	// CancelTask asks the executor to stop the named worker. Implementations
	// should treat "worker not found" as success: the cancellation pipeline
	// has no way to distinguish "never started" from "already gone."
	CancelTask(ctx context.Context, workerID string) error
}
