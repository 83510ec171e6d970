package sched

import (
	"context"
)

// Run is the super loop: every tick of tc triggers one Tick at the scheduler
// clock's current time. It returns when ctx is done or tc stops.
func (s *Scheduler) Run(ctx context.Context, tc *TickClock) error {
	for {
		// 1) check shutdown
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-tc.Ch:
			if !ok {
				return nil
			}
			// 2) one scheduler pass
			s.Tick(s.clock.Now())
		}
	}
}

// Simulate drives the scheduler in virtual time: a Tick every step until
// duration has elapsed on clock. Callbacks may advance the clock themselves
// to model their cost. The budget is measured as unsigned elapsed time, so any
// duration below a full counter period works. It returns the number of ticks
// performed.
func (s *Scheduler) Simulate(ctx context.Context, clock *ManualClock, duration, step Micros) uint64 {
	if step == 0 {
		step = 1
	}
	start := clock.Now()
	var ticks uint64
	for {
		if clock.Now().Sub(start) >= duration || ctx.Err() != nil {
			return ticks
		}
		s.Tick(clock.Now())
		ticks++
		before := clock.Now().Sub(start)
		clock.Advance(step)
		if clock.Now().Sub(start) < before {
			// advanced past a full counter period
			return ticks
		}
	}
}
