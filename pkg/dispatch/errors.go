package dispatch

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Every collaborator failure the engine handles is conceptually a remote
// call outcome, even when the concrete collaborator in a given deployment
// happens to be in-process. Classifying each kind through grpc/codes keeps
// that origin explicit and gives operators a familiar status vocabulary in
// logs and metrics labels.

// newAssignmentUnavailable wraps a ResourceCluster.GetTaskExecutorFor failure.
func newAssignmentUnavailable(cause error) error {
	return status.Errorf(codes.ResourceExhausted, "no executor available: %v", cause)
}

// newSubmissionRejected wraps a Gateway.SubmitTask failure.
func newSubmissionRejected(cause error) error {
	return status.Errorf(codes.FailedPrecondition, "executor rejected submission: %v", cause)
}

// newRoutingFailure marks a JobMessageRouter.RouteWorkerEvent false return.
func newRoutingFailure(eventKind string) error {
	return status.Errorf(codes.Internal, "router declined %s event", eventKind)
}

// newCancellationFailure wraps a Gateway.CancelTask failure.
func newCancellationFailure(cause error) error {
	return status.Errorf(codes.Unavailable, "cancellation failed: %v", cause)
}

// newLookupFailure wraps a GetTaskExecutorGateway/GetTaskExecutorInfo
// failure encountered inside a handler.
func newLookupFailure(cause error) error {
	return status.Errorf(codes.NotFound, "executor lookup failed: %v", cause)
}

// attemptCapExhausted reports that MaxAssignmentAttempts was reached without
// a successful assignment.
func attemptCapExhausted(maxAttempts int) error {
	return status.Errorf(codes.ResourceExhausted, "assignment attempt cap (%d) exhausted", maxAttempts)
}
