// internal/sched/scheduler.go

package sched

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// Scheduler is a cooperative, run-to-completion task dispatcher. Each Tick
// first serves real-time tasks by deadline and then runs at most one
// best-effort task chosen by age.
type Scheduler struct {
	mu        sync.Mutex // protects the scheduler state; released while a callback runs
	clock     Clock      // measures callback execution time
	minPeriod Micros     // floor applied to every period
	guard     Micros     // real-time slack needed before best-effort work may run

	tasks   []task       // registry arena, indexed by TaskID, never grown
	queue   *activeQueue // enabled tasks by descending static priority
	order   []TaskID     // scratch copy of the queue for the current lane
	current TaskID       // task whose callback is executing, or noTask

	statsEnabled bool

	// load accounting, consumed by the load monitor
	cycles       uint32
	loadedCycles uint32
	waitingTotal uint32
	load         LoadStats

	observers []Observer
	log       zerolog.Logger
}

// Option configures a Scheduler.
type Option = func(*Scheduler)

// WithLogger sets the logger used for configuration-time diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observers = append(s.observers, o)
	}
}

// New builds the registry from the static task table. No task is enabled;
// the configuration layer decides which ones go into the active queue.
func New(cfg Config, clock Clock, specs []TaskSpec, opts ...Option) *Scheduler {
	cfg.sanitize()
	if clock == nil {
		clock = NewMonotonicClock()
	}

	s := &Scheduler{
		clock:        clock,
		minPeriod:    Micros(cfg.MinPeriodUs),
		guard:        Micros(cfg.GuardUs),
		current:      noTask,
		statsEnabled: cfg.Statistics,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(specs) >= int(TaskSelf) {
		s.log.Error().Int("tasks", len(specs)).Msg("task table truncated")
		specs = specs[:int(TaskSelf)-1]
	}
	s.tasks = make([]task, len(specs))
	for i, spec := range specs {
		s.tasks[i] = newTask(TaskID(i), spec, s.minPeriod)
	}
	s.queue = newActiveQueue(len(specs))
	s.order = make([]TaskID, 0, len(specs))

	s.log.Debug().
		Int("tasks", len(s.tasks)).
		Uint32("min_period_us", uint32(s.minPeriod)).
		Uint32("guard_us", uint32(s.guard)).
		Bool("statistics", s.statsEnabled).
		Msg("scheduler ready")
	return s
}

// Tick runs one scheduler pass at time now. It never fails; it makes the
// best decision it can for the inputs it has.
func (s *Scheduler) Tick(now Micros) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ran, slack := s.dispatchRealTime(now)
	if !ran && slack <= int64(s.guard) {
		s.emit(StatusEvent{Now: now, Kind: StatusGuard, TaskID: noTask, Slack: clampSlack(slack)})
		return
	}
	s.dispatchBestEffort(now)
}

// dispatchRealTime runs every real-time task whose deadline has elapsed and
// returns whether any ran together with the remaining slack estimate.
func (s *Scheduler) dispatchRealTime(now Micros) (bool, int64) {
	s.order = s.order[:0]
	s.queue.each(func(id TaskID, p Priority) bool {
		switch {
		case p > PriorityRealTime:
			// administrative entries sort ahead of the real-time block
			return true
		case p < PriorityRealTime:
			return false
		}
		s.order = append(s.order, id)
		return true
	})

	ran := false
	slack := int64(math.MaxInt32)
	for _, id := range s.order {
		t := &s.tasks[id]
		if !t.enabled {
			// disabled by a callback earlier in this pass
			continue
		}
		taskSlack := int64(t.period) - int64(now.Sub(t.lastExec))
		if taskSlack < slack {
			slack = taskSlack
		}
		if taskSlack > 0 {
			continue
		}
		s.execute(t, now, LaneRealTime)
		ran = true
		slack -= int64(t.stats.maxExec)
	}
	return ran, slack
}

// dispatchBestEffort ages every non real-time task and runs the one with the
// highest dynamic priority. The first task reaching the maximum wins ties.
func (s *Scheduler) dispatchBestEffort(now Micros) {
	s.order = s.queue.snapshot(s.order)

	var (
		selected *task
		best     uint64
		waiting  uint32
	)
	for _, id := range s.order {
		t := &s.tasks[id]
		if t.priority == PriorityRealTime {
			continue
		}
		t.ageCycles = uint32(now.Sub(t.lastExec) / t.period)
		if t.ageCycles > 0 {
			t.dynPriority = 1 + uint64(t.priority)*uint64(t.ageCycles)
			waiting++
		}
		if t.dynPriority > best {
			best = t.dynPriority
			selected = t
		}
	}

	s.cycles++
	s.waitingTotal += waiting
	if waiting > 0 {
		s.loadedCycles++
	}

	if selected == nil {
		s.emit(StatusEvent{Now: now, Kind: StatusIdle, TaskID: noTask})
		return
	}
	s.execute(selected, now, LaneBestEffort)
}

// execute runs one callback with the lock released so the callback may call
// back into the scheduler. Must be called with s.mu held.
func (s *Scheduler) execute(t *task, now Micros, lane Lane) {
	t.lastInterval = now.Sub(t.lastExec)
	t.lastExec = now
	t.runs++
	dyn := t.dynPriority
	nominal := t.period

	elapsed := s.invoke(t.runner, ExecContext{Now: now, Self: t.id, sched: s})

	if lane == LaneBestEffort {
		t.dynPriority = 0
	}
	if s.statsEnabled {
		t.stats.recordExec(elapsed)
		t.stats.recordPeriod(t.lastInterval, nominal)
	}

	s.emit(StatusEvent{
		Now:             now,
		Kind:            StatusDispatch,
		Lane:            lane,
		TaskID:          t.id,
		ExecTime:        elapsed,
		DynamicPriority: dyn,
		Value:           t.lastInterval,
	})
}

// invoke runs the callback unlocked and returns its execution time. The lock
// is taken back even when the callback panics, so the panic reaches the
// caller of Tick intact.
func (s *Scheduler) invoke(runner Runner, ctx ExecContext) Micros {
	s.current = ctx.Self
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = noTask
	}()

	start := s.clock.Now()
	runner.Run(ctx)
	return s.clock.Now().Sub(start)
}

// Enable puts a task into the active queue. It fails for unknown ids, when
// the task is already enabled or when the queue is full.
func (s *Scheduler) Enable(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(id)
	if !ok {
		s.log.Warn().Uint16("task", uint16(id)).Msg("enable: no such task")
		return false
	}
	if !s.queue.enqueue(t.id, t.priority) {
		s.log.Warn().Uint16("task", uint16(t.id)).Str("name", t.name).Msg("enable rejected")
		return false
	}
	t.enabled = true
	s.emit(StatusEvent{Kind: StatusEnable, TaskID: t.id})
	return true
}

// Disable takes a task out of the active queue. Its registry entry, period
// and statistics are kept so it can be enabled again later.
func (s *Scheduler) Disable(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(id)
	if !ok || !s.queue.remove(t.id) {
		s.log.Warn().Uint16("task", uint16(id)).Msg("disable: task not enabled")
		return false
	}
	t.enabled = false
	s.emit(StatusEvent{Kind: StatusDisable, TaskID: t.id})
	return true
}

// IsEnabled reports active queue membership.
func (s *Scheduler) IsEnabled(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(id)
	return ok && s.queue.contains(t.id)
}

// ActiveQueue returns the queue order from head to tail.
func (s *Scheduler) ActiveQueue() []TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.snapshot(make([]TaskID, 0, s.queue.len()))
}

// SetPeriod stores a new period, silently raised to the configured floor.
// It returns false only for an unknown task.
func (s *Scheduler) SetPeriod(id TaskID, periodUs uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(id)
	if !ok {
		return false
	}
	t.period = clampPeriod(Micros(periodUs), s.minPeriod)
	if t.period != Micros(periodUs) {
		s.log.Debug().Str("name", t.name).Uint32("requested_us", periodUs).
			Uint32("period_us", uint32(t.period)).Msg("period clamped")
	}
	s.emit(StatusEvent{Kind: StatusPeriod, TaskID: t.id, Value: t.period})
	return true
}

// GetInfo returns a snapshot of a task.
func (s *Scheduler) GetInfo(id TaskID) (TaskInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(id)
	if !ok {
		return TaskInfo{}, false
	}
	return t.info(), true
}

// Lookup finds a task by its labels.
func (s *Scheduler) Lookup(name, subName string) (TaskID, bool) {
	for i := range s.tasks {
		if s.tasks[i].name == name && s.tasks[i].subName == subName {
			return TaskID(i), true
		}
	}
	return noTask, false
}

// TaskCount is the size of the registry.
func (s *Scheduler) TaskCount() int { return len(s.tasks) }

// Current returns the task whose callback is executing.
func (s *Scheduler) Current() (TaskID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != noTask
}

func (s *Scheduler) EnableStatistics() {
	s.mu.Lock()
	s.statsEnabled = true
	s.mu.Unlock()
	s.log.Debug().Msg("statistics enabled")
}

func (s *Scheduler) DisableStatistics() {
	s.mu.Lock()
	s.statsEnabled = false
	s.mu.Unlock()
	s.log.Debug().Msg("statistics disabled")
}

func (s *Scheduler) StatisticsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsEnabled
}

// ResetStatistics clears every statistic of a task. It is a no-op, returning
// false, while statistics are disabled.
func (s *Scheduler) ResetStatistics(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(id)
	if !ok || !s.statsEnabled {
		return false
	}
	t.stats.reset()
	return true
}

// ResetMaxExecutionTime clears the worst execution time of a task.
func (s *Scheduler) ResetMaxExecutionTime(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.lookup(id)
	if !ok || !s.statsEnabled {
		return false
	}
	t.stats.resetMax()
	return true
}

// lookup resolves TaskSelf and validates the id. Must be called with s.mu held.
func (s *Scheduler) lookup(id TaskID) (*task, bool) {
	if id == TaskSelf {
		id = s.current
	}
	if int(id) >= len(s.tasks) {
		return nil, false
	}
	return &s.tasks[id], true
}

func (s *Scheduler) emit(ev StatusEvent) {
	for _, o := range s.observers {
		o.Observe(ev)
	}
}

func clampSlack(v int64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}
