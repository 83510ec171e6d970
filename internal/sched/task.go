package sched

import (
	"fmt"
	"strings"
)

// TaskID uniquely identifies a task in the scheduler. It is the index of the
// task in the registry arena.
type TaskID uint16

// TaskSelf resolves to the task whose callback is currently executing.
const TaskSelf TaskID = ^TaskID(0)

// noTask marks "nothing is executing".
const noTask = TaskSelf

// Priority is the static weight of a task. The numeric values are used
// directly as multipliers when aging best-effort tasks.
type Priority uint8

const (
	PriorityDisabled   Priority = 0
	PriorityLow        Priority = 1
	PriorityMedium     Priority = 3
	PriorityMediumHigh Priority = 4
	PriorityHigh       Priority = 5
	PriorityRealTime   Priority = 6
	PriorityMaximum    Priority = 255
)

var priorityNames = map[Priority]string{
	PriorityDisabled:   "DISABLED",
	PriorityLow:        "LOW",
	PriorityMedium:     "MEDIUM",
	PriorityMediumHigh: "MEDIUM_HIGH",
	PriorityHigh:       "HIGH",
	PriorityRealTime:   "REAL_TIME",
	PriorityMaximum:    "MAXIMUM",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", uint8(p))
}

// ParsePriority maps a configuration name (case insensitive, '-' or '_') to
// its Priority.
func ParsePriority(s string) (Priority, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for p, name := range priorityNames {
		if name == key {
			return p, nil
		}
	}
	return PriorityDisabled, fmt.Errorf("unknown priority %q", s)
}

// ExecContext is handed to a task callback for the duration of one run.
type ExecContext struct {
	Now   Micros // time the dispatcher decided to run the task
	Self  TaskID // the task being run
	sched *Scheduler
}

// Scheduler returns the scheduler running the task, so a callback can adjust
// itself (for instance SetPeriod(TaskSelf, ...)).
func (c ExecContext) Scheduler() *Scheduler { return c.sched }

// Runner is the work of a task. Run must return promptly: the scheduler is
// cooperative and nothing preempts a callback.
type Runner interface {
	Run(ctx ExecContext)
}

// RunnerFunc adapts a plain function to Runner.
type RunnerFunc func(ctx ExecContext)

func (f RunnerFunc) Run(ctx ExecContext) { f(ctx) }

// TaskSpec is one row of the static task table given to New.
type TaskSpec struct {
	Name     string
	SubName  string
	Runner   Runner
	Period   Micros
	Priority Priority
}

// TaskInfo is a value snapshot of a task, safe to keep after the call.
type TaskInfo struct {
	ID              TaskID
	Name            string
	SubName         string
	Enabled         bool
	Period          Micros
	StaticPriority  Priority
	DynamicPriority uint64
	AgeCycles       uint32
	MaxExecTime     Micros
	TotalExecTime   uint64
	AvgExecTime     Micros
	LatestPeriod    Micros // last observed interval between two runs
	Jitter          float64
	Runs            uint64
}

// task is the registry record. Only the scheduler mutates it.
type task struct {
	id       TaskID
	name     string
	subName  string
	runner   Runner
	period   Micros
	priority Priority

	enabled      bool
	dynPriority  uint64
	ageCycles    uint32
	lastExec     Micros
	lastInterval Micros
	runs         uint64

	stats execStats
}

func newTask(id TaskID, spec TaskSpec, minPeriod Micros) task {
	runner := spec.Runner
	if runner == nil {
		runner = RunnerFunc(func(ExecContext) {})
	}
	t := task{
		id:       id,
		name:     spec.Name,
		subName:  spec.SubName,
		runner:   runner,
		period:   clampPeriod(spec.Period, minPeriod),
		priority: spec.Priority,
		stats:    newExecStats(),
	}
	return t
}

func (t *task) info() TaskInfo {
	return TaskInfo{
		ID:              t.id,
		Name:            t.name,
		SubName:         t.subName,
		Enabled:         t.enabled,
		Period:          t.period,
		StaticPriority:  t.priority,
		DynamicPriority: t.dynPriority,
		AgeCycles:       t.ageCycles,
		MaxExecTime:     t.stats.maxExec,
		TotalExecTime:   t.stats.totalExec,
		AvgExecTime:     t.stats.avgExec(),
		LatestPeriod:    t.lastInterval,
		Jitter:          t.stats.tau,
		Runs:            t.runs,
	}
}

// clampPeriod keeps a period at or above the configured floor.
func clampPeriod(period, floor Micros) Micros {
	if floor == 0 {
		floor = 1
	}
	if period < floor {
		return floor
	}
	return period
}
