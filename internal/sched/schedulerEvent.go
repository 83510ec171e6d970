// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusDispatch
	StatusGuard
	StatusEnable
	StatusDisable
	StatusPeriod
	StatusLoad
)

// Lane tells which part of the dispatcher ran a task.
type Lane uint8

const (
	LaneNone Lane = iota
	LaneRealTime
	LaneBestEffort
)

// StatusEvent is emitted on dispatch decisions and on queue/registry changes.
type StatusEvent struct {
	Now             Micros
	Kind            StatusKind
	Lane            Lane
	TaskID          TaskID
	ExecTime        Micros
	DynamicPriority uint64
	Slack           int32 // real-time slack estimate for Guard events
	Value           Micros
}

// Observer receives events synchronously from the scheduler context. It must
// not call back into the Scheduler.
type Observer interface {
	Observe(ev StatusEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev StatusEvent)

func (f ObserverFunc) Observe(ev StatusEvent) { f(ev) }

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusDispatch:
		return "Dispatch"
	case StatusGuard:
		return "Guard"
	case StatusEnable:
		return "Enable"
	case StatusDisable:
		return "Disable"
	case StatusPeriod:
		return "Period"
	case StatusLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

func (l Lane) String() string {
	switch l {
	case LaneRealTime:
		return "rt"
	case LaneBestEffort:
		return "be"
	default:
		return "-"
	}
}
