package sched

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicros_WrapSafe(t *testing.T) {
	before := Micros(math.MaxUint32 - 99)
	after := before.Add(300)

	assert.Equal(t, Micros(200), after)
	assert.Equal(t, Micros(300), after.Sub(before))
	assert.Equal(t, int32(300), before.Until(after))
	assert.Equal(t, int32(-300), after.Until(before))
	assert.Equal(t, 300*time.Microsecond, after.Sub(before).Duration())
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(10)
	assert.Equal(t, Micros(10), c.Now())
	assert.Equal(t, Micros(25), c.Advance(15))
	c.Set(math.MaxUint32)
	assert.Equal(t, Micros(4), c.Advance(5))
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, uint32(c.Now().Sub(a)), uint32(2000))
}

func TestTickClock(t *testing.T) {
	tc := NewTickClock(4)
	tc.Start(time.Millisecond)

	for i := 0; i < 3; i++ {
		select {
		case <-tc.Ch:
		case <-time.After(time.Second):
			t.Fatal("no tick")
		}
	}
	tc.Stop()
	for range tc.Ch {
	}
	assert.GreaterOrEqual(t, tc.Count(), int64(3))
}

func TestRun_StopsWithContext(t *testing.T) {
	var runs int
	s := New(DefaultConfig(), NewMonotonicClock(), []TaskSpec{
		{Name: "TELEMETRY", Period: 100, Priority: PriorityLow, Runner: RunnerFunc(func(ExecContext) { runs++ })},
	})
	require.True(t, s.Enable(0))

	tc := NewTickClock(1)
	tc.Start(200 * time.Microsecond)
	defer tc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, s.Run(ctx, tc))
	assert.Positive(t, runs)
}

func TestSimulate(t *testing.T) {
	clock := NewManualClock(0)
	s := New(DefaultConfig(), clock, nil)

	assert.Equal(t, uint64(10), s.Simulate(context.Background(), clock, 1000, 100))
	assert.Equal(t, Micros(1000), clock.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, s.Simulate(ctx, clock, 1000, 100))
}

func TestSimulate_LongerThanHalfCounter(t *testing.T) {
	clock := NewManualClock(0)
	s := New(DefaultConfig(), clock, nil)

	d := Micros((40 * time.Minute).Microseconds())
	assert.Equal(t, uint64(24000), s.Simulate(context.Background(), clock, d, 100_000))
	assert.Equal(t, d, clock.Now())
}
