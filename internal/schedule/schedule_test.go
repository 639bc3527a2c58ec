package schedule_test

import (
	"context"
	"testing"
	"time"

	"warden/internal/schedule"
	"warden/internal/schedule/scheduletest"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAfterRunsOnce(t *testing.T) {
	clock := scheduletest.NewClock(time.Unix(0, 0))
	s := schedule.New(clock, zap.NewNop())

	runs := 0
	s.After("k", 10*time.Second, func(context.Context) { runs++ })
	clock.Advance(9 * time.Second)
	assert.Equal(t, 0, runs)
	clock.Advance(time.Minute)
	assert.Equal(t, 1, runs)
	assert.False(t, s.Scheduled("k"))
}

func TestEveryStopsWhenCancelledFromCallback(t *testing.T) {
	clock := scheduletest.NewClock(time.Unix(0, 0))
	s := schedule.New(clock, zap.NewNop())

	runs := 0
	s.Every("g", 5*time.Second, func(context.Context) {
		runs++
		if runs == 3 {
			assert.True(t, s.Cancel("g"))
		}
	})
	clock.Advance(time.Minute)
	assert.Equal(t, 3, runs)
	assert.False(t, s.Cancel("g"))
	assert.Zero(t, clock.Pending())
}

func TestReplacingKeyDropsOldTimer(t *testing.T) {
	clock := scheduletest.NewClock(time.Unix(0, 0))
	s := schedule.New(clock, zap.NewNop())

	var got []string
	s.After("k", 5*time.Second, func(context.Context) { got = append(got, "old") })
	s.After("k", 8*time.Second, func(context.Context) { got = append(got, "new") })
	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"new"}, got)
}

func TestPanicIsContained(t *testing.T) {
	clock := scheduletest.NewClock(time.Unix(0, 0))
	s := schedule.New(clock, zap.NewNop())

	runs := 0
	s.Every("p", time.Second, func(context.Context) {
		runs++
		panic("boom")
	})
	assert.NotPanics(t, func() { clock.Advance(3 * time.Second) })
	assert.Equal(t, 3, runs)
}

func TestStopDisarmsEverything(t *testing.T) {
	clock := scheduletest.NewClock(time.Unix(0, 0))
	s := schedule.New(clock, zap.NewNop())

	runs := 0
	s.Every("a", time.Second, func(context.Context) { runs++ })
	s.After("b", time.Second, func(context.Context) { runs++ })
	s.Stop()
	clock.Advance(10 * time.Second)
	assert.Zero(t, runs)
	s.After("c", time.Second, func(context.Context) { runs++ })
	assert.False(t, s.Scheduled("c"))
}
