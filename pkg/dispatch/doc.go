/*
Package dispatch implements the Dispatch Engine: the scheduler dispatch
actor that places one worker of a streaming job's stage onto a remote task
executor, and cancels one that is already running.

A single-consumer mailbox (Engine.mailbox) serializes every state
transition for every in-flight request. Submit and Cancel enqueue the two
public message variants; every other variant is produced internally when an
async collaborator call completes and re-posted to the same mailbox, so RPC
callbacks never touch engine state directly. The placement pipeline drives
one github.com/looplab/fsm state machine per workerID through
NEW/ASSIGNING/ASSIGNED/SUBMITTED/LAUNCHED (and the FAILED_ASSIGN/
FAILED_SUBMIT/REPORTED_FAIL failure states), retrying assignment failures on
a github.com/cenkalti/backoff/v5 constant-delay policy up to an optional
attempt cap. The cancellation pipeline resolves a hostname to an executor,
issues a remote cancel, and retries failures on the same delay up to a
configured retry limit before giving up and logging.

	engine := dispatch.New(dispatch.DefaultConfig(), resourceCluster, jobRouter, payload.NewDefault(), timer.NewWallClock())
	go engine.Run()
	defer engine.Stop()

	engine.Submit(types.ScheduleRequest{WorkerID: "w-1", JobID: "job-1", StageNum: 0})
	engine.Cancel("w-1", "host-7")
*/
package dispatch
