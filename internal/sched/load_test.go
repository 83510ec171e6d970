package sched

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLED struct {
	states []bool
}

func (f *fakeLED) Set(on bool) { f.states = append(f.states, on) }

func TestLoadMonitor_Percent(t *testing.T) {
	s, _ := newTestScheduler(t, testSpec("telemetry", PriorityLow, 1000, nil))
	led := &fakeLED{}
	mon := NewLoadMonitor(led)

	// telemetry is waiting in exactly three of these passes
	for _, now := range []Micros{1000, 1100, 1200, 2100, 2200, 2300, 3100, 3200, 3300, 3400} {
		s.Tick(now)
	}
	mon.Run(ExecContext{Now: 3500, Self: noTask, sched: s})

	assert.Equal(t, uint8(30), s.LoadPercent())
	load := s.Load()
	assert.Equal(t, uint32(10), load.Cycles)
	assert.Equal(t, uint32(3), load.LoadedCycles)
	assert.Equal(t, uint32(3), load.WaitingTotal)
	assert.Equal(t, uint64(1), load.Samples)
	assert.Equal(t, []bool{true}, led.states)

	// accumulators were reset by the sample
	mon.Run(ExecContext{Now: 3600, Self: noTask, sched: s})
	assert.Equal(t, uint8(0), s.LoadPercent())
	assert.Equal(t, []bool{true, false}, led.states)
	assert.False(t, mon.Heartbeat())
}

func TestLoadMonitor_NoCycles(t *testing.T) {
	s := New(DefaultConfig(), NewManualClock(0), nil)
	mon := NewLoadMonitor(nil)

	assert.NotPanics(t, func() { mon.Run(ExecContext{sched: s}) })
	assert.Equal(t, uint8(0), s.LoadPercent())
	assert.True(t, mon.Heartbeat())
}

func TestLoadMonitor_ScheduledAsTask(t *testing.T) {
	led := &fakeLED{}
	mon := NewLoadMonitor(led)
	var loads []StatusEvent
	clock := NewManualClock(0)
	s := New(DefaultConfig(), clock, []TaskSpec{
		testSpec("gyro", PriorityRealTime, 1000, nil),
		testSpec("load", PriorityMediumHigh, DefaultConfig().LoadMonitorPeriod(), mon),
		testSpec("telemetry", PriorityLow, 500, nil),
	}, WithObserver(ObserverFunc(func(ev StatusEvent) {
		if ev.Kind == StatusLoad {
			loads = append(loads, ev)
		}
	})))
	for i := 0; i < 3; i++ {
		require.True(t, s.Enable(TaskID(i)))
	}

	ticks := s.Simulate(context.Background(), clock, 1_000_000, 100)
	assert.Equal(t, uint64(10000), ticks)

	// 10 Hz over one second
	require.Len(t, loads, 9)
	assert.Equal(t, TaskID(1), loads[0].TaskID)
	assert.Len(t, led.states, 9)

	load := s.Load()
	assert.Equal(t, uint64(9), load.Samples)
	assert.NotZero(t, load.Cycles)
	assert.LessOrEqual(t, int(load.Percent), 100)
}
