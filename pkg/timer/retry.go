package timer

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy computes the delay before the next retry attempt and, when a
// maximum attempt count is configured, reports when the budget is
// exhausted. Both the assignment-retry and cancellation-retry pipelines use
// the same constant-delay policy, per the fixed 60-second retry interval.
type RetryPolicy struct {
	backoff     *backoff.ConstantBackOff
	maxAttempts int // 0 means unbounded
}

// NewRetryPolicy builds a RetryPolicy with a fixed delay and no attempt cap.
func NewRetryPolicy(delay time.Duration) *RetryPolicy {
	return &RetryPolicy{backoff: backoff.NewConstantBackOff(delay)}
}

// WithMaxAttempts returns a copy of the policy bounded to maxAttempts
// attempts in total, the first attempt included. A value of 0 leaves the
// policy unbounded.
func (p *RetryPolicy) WithMaxAttempts(maxAttempts int) *RetryPolicy {
	return &RetryPolicy{backoff: p.backoff, maxAttempts: maxAttempts}
}

// NextDelay returns the delay to wait before attempt number attempt (the
// attempt about to be made, 1-indexed), and whether that attempt is still
// within budget. When the policy is unbounded, ok is always true.
func (p *RetryPolicy) NextDelay(attempt int) (delay time.Duration, ok bool) {
	if p.maxAttempts > 0 && attempt > p.maxAttempts {
		return 0, false
	}
	return p.backoff.NextBackOff(), true
}
