package job

import (
	"sync/atomic"
	"time"

	"fcsched/internal/sched"
)

// Advancer is a clock a workload can push forward to model its cost.
type Advancer interface {
	Advance(d sched.Micros) sched.Micros
}

// Work is a simulated subsystem callback that consumes a fixed cost and
// counts its runs.
type Work struct {
	name  string
	cost  sched.Micros
	clock Advancer // nil: burn real time instead
	runs  atomic.Uint64
	hook  func(ctx sched.ExecContext)
}

// Cost returns a workload that takes cost microseconds per run. With a
// non-nil clock the cost is charged to it; otherwise the callback spins for
// that long.
func Cost(name string, cost sched.Micros, clock Advancer) *Work {
	return &Work{name: name, cost: cost, clock: clock}
}

// Then adds a function called after the cost has been consumed.
func (w *Work) Then(fn func(ctx sched.ExecContext)) *Work {
	w.hook = fn
	return w
}

func (w *Work) Run(ctx sched.ExecContext) {
	w.runs.Add(1)
	switch {
	case w.cost == 0:
	case w.clock != nil:
		w.clock.Advance(w.cost)
	default:
		spin(w.cost.Duration())
	}
	if w.hook != nil {
		w.hook(ctx)
	}
}

func (w *Work) Name() string { return w.name }

func (w *Work) Runs() uint64 { return w.runs.Load() }

// spin busy-waits for d.
func spin(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
