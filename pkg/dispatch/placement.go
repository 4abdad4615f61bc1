package dispatch

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Placement pipeline states and events, exactly the state machine in §4.2.
// One FSM instance lives for the full lifetime of a workerID's placement,
// including retries: a retried attempt re-enters ASSIGNING through the same
// "submit" event a brand new request uses, since the handler issues the
// identical GetTaskExecutorFor call either way.
const (
	stateNew          = "new"
	stateAssigning    = "assigning"
	stateAssigned     = "assigned"
	stateFailedAssign = "failed_assign"
	stateSubmitted    = "submitted"
	stateFailedSubmit = "failed_submit"
	stateLaunched     = "launched"
	stateReportedFail = "reported_fail"

	eventSubmit          = "submit"
	eventAssignOK        = "assign_ok"
	eventAssignFail      = "assign_fail"
	eventSubmitOK        = "submit_ok"
	eventSubmitFail      = "submit_fail"
	eventPublishLaunched = "publish_launched"
	eventPublishFailed   = "publish_failed"
)

func newPlacementFSM() *fsm.FSM {
	return fsm.NewFSM(
		stateNew,
		fsm.Events{
			{Name: eventSubmit, Src: []string{stateNew, stateFailedAssign}, Dst: stateAssigning},
			{Name: eventAssignOK, Src: []string{stateAssigning}, Dst: stateAssigned},
			{Name: eventAssignFail, Src: []string{stateAssigning}, Dst: stateFailedAssign},
			{Name: eventSubmitOK, Src: []string{stateAssigned}, Dst: stateSubmitted},
			{Name: eventSubmitFail, Src: []string{stateAssigned}, Dst: stateFailedSubmit},
			{Name: eventPublishLaunched, Src: []string{stateSubmitted}, Dst: stateLaunched},
			{Name: eventPublishFailed, Src: []string{stateFailedSubmit}, Dst: stateReportedFail},
		},
		fsm.Callbacks{},
	)
}

// advance drives the FSM with event and turns the library's "no transition
// for this event from this state" error into a package error identifying
// the offending workerID, since that case indicates a race the engine's
// single-consumer mailbox is supposed to make impossible.
func advance(workerID string, sm *fsm.FSM, event string) error {
	if err := sm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("worker %s: invalid placement transition %q from %q: %w", workerID, event, sm.Current(), err)
	}
	return nil
}

func isTerminal(state string) bool {
	return state == stateLaunched || state == stateReportedFail
}
