package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceFiresElapsedActions(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))

	fired := false
	clock.ScheduleOnce(60*time.Second, func() { fired = true })

	clock.Advance(30 * time.Second)
	assert.False(t, fired, "action fired before its delay elapsed")

	clock.Advance(30 * time.Second)
	assert.True(t, fired, "expected action to fire once delay elapsed")
}

func TestManual_CancelPreventsFiring(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))

	fired := false
	handle := clock.ScheduleOnce(time.Second, func() { fired = true })
	handle.Cancel()

	clock.Advance(time.Minute)
	assert.False(t, fired, "expected cancelled action not to fire")
	assert.Equal(t, 0, clock.PendingCount())
}

func TestManual_Fire(t *testing.T) {
	clock := NewManual(time.Unix(0, 0))

	order := []int{}
	clock.ScheduleOnce(time.Hour, func() { order = append(order, 1) })
	clock.ScheduleOnce(time.Hour, func() { order = append(order, 2) })

	assert.True(t, clock.Fire(), "expected Fire to find a pending action")
	assert.True(t, clock.Fire(), "expected Fire to find a second pending action")
	assert.False(t, clock.Fire(), "expected Fire to report false once drained")
	assert.Equal(t, []int{1, 2}, order)
}

func TestWallClock_ScheduleOnce(t *testing.T) {
	clock := NewWallClock()

	done := make(chan struct{})
	clock.ScheduleOnce(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wall clock action to fire")
	}
}

func TestWallClock_Cancel(t *testing.T) {
	clock := NewWallClock()

	fired := false
	handle := clock.ScheduleOnce(20*time.Millisecond, func() { fired = true })
	handle.Cancel()

	time.Sleep(40 * time.Millisecond)
	assert.False(t, fired, "expected cancelled wall clock action not to fire")
}

func TestRetryPolicy_ConstantDelay(t *testing.T) {
	policy := NewRetryPolicy(60 * time.Second)

	d1, ok1 := policy.NextDelay(1)
	d2, ok2 := policy.NextDelay(2)

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, 60*time.Second, d1)
	assert.Equal(t, 60*time.Second, d2)
}

func TestRetryPolicy_MaxAttempts(t *testing.T) {
	policy := NewRetryPolicy(60 * time.Second).WithMaxAttempts(3)

	for attempt := 1; attempt <= 3; attempt++ {
		_, ok := policy.NextDelay(attempt)
		assert.True(t, ok, "expected attempt %d to be within budget", attempt)
	}

	_, ok := policy.NextDelay(4)
	assert.False(t, ok, "expected attempt 4 to exceed the retry budget")
}
