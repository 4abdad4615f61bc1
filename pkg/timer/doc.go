/*
Package timer provides the Dispatch Engine's Timer collaborator — a
cancelable ScheduleOnce primitive the placement and cancellation pipelines
use to re-post a ScheduleRequestEvent or RetryCancelRequestEvent after a
retry delay — plus the RetryPolicy that computes that delay.

WallClock schedules real work with time.AfterFunc. Manual is a fake clock
for tests: nothing fires until the test calls Advance or Fire, making the
60-second assignment-retry delay and the cancellation-retry backoff
deterministic and instant to exercise.

RetryPolicy wraps github.com/cenkalti/backoff/v5's constant backoff policy
rather than hand-rolling a duration constant, so the "fixed delay, no
jitter" behavior is an explicit, swappable policy object:

	policy := timer.NewRetryPolicy(60 * time.Second)
	delay, ok := policy.NextDelay(2) // always 60s; ok is false only past a WithMaxAttempts cap

	clock := timer.NewWallClock()
	handle := clock.ScheduleOnce(delay, func() { mailbox <- retryEvent })
	defer handle.Cancel()
*/
package timer
