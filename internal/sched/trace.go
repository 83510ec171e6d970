// internal/sched/trace.go

package sched

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rs/zerolog"
)

// AddObserver registers an observer after construction.
func (s *Scheduler) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// TaskName returns "name/sub_name" for diagnostics. Labels never change after
// New, so no lock is taken.
func (s *Scheduler) TaskName(id TaskID) string {
	if int(id) >= len(s.tasks) {
		return ""
	}
	t := &s.tasks[id]
	if t.subName == "" {
		return t.name
	}
	return t.name + "/" + t.subName
}

// CSVTrace writes every event as a CSV row.
type CSVTrace struct {
	w     *csv.Writer
	names func(TaskID) string
	err   error
}

// NewCSVTrace writes the header and returns the observer. names may be nil.
func NewCSVTrace(out io.Writer, names func(TaskID) string) *CSVTrace {
	w := csv.NewWriter(out)

	// write header
	err := w.Write([]string{"tick_us", "event", "lane", "task_id", "task", "exec_us", "dynamic_priority", "value"})
	w.Flush()
	return &CSVTrace{w: w, names: names, err: err}
}

func (c *CSVTrace) Observe(ev StatusEvent) {
	if c.err != nil {
		return
	}
	id, name := "", ""
	if ev.TaskID != noTask {
		id = strconv.FormatUint(uint64(ev.TaskID), 10)
		if c.names != nil {
			name = c.names(ev.TaskID)
		}
	}
	value := strconv.FormatUint(uint64(ev.Value), 10)
	if ev.Kind == StatusGuard {
		value = strconv.FormatInt(int64(ev.Slack), 10)
	}
	c.err = c.w.Write([]string{
		strconv.FormatUint(uint64(ev.Now), 10),
		ev.Kind.String(),
		ev.Lane.String(),
		id,
		name,
		strconv.FormatUint(uint64(ev.ExecTime), 10),
		strconv.FormatUint(ev.DynamicPriority, 10),
		value,
	})
}

// Flush pushes buffered rows and reports the first write error.
func (c *CSVTrace) Flush() error {
	c.w.Flush()
	if c.err != nil {
		return c.err
	}
	return c.w.Error()
}

// LogObserver writes events to a zerolog logger at trace level.
type LogObserver struct {
	log   zerolog.Logger
	names func(TaskID) string
}

func NewLogObserver(log zerolog.Logger, names func(TaskID) string) *LogObserver {
	return &LogObserver{log: log, names: names}
}

func (l *LogObserver) Observe(ev StatusEvent) {
	e := l.log.Trace()
	if !e.Enabled() {
		return
	}
	e = e.Uint32("tick_us", uint32(ev.Now)).Str("lane", ev.Lane.String())
	if ev.TaskID != noTask {
		e = e.Uint16("task_id", uint16(ev.TaskID))
		if l.names != nil {
			e = e.Str("task", l.names(ev.TaskID))
		}
	}
	switch ev.Kind {
	case StatusDispatch:
		e = e.Uint32("exec_us", uint32(ev.ExecTime)).Uint64("dyn", ev.DynamicPriority)
	case StatusGuard:
		e = e.Int32("slack_us", ev.Slack)
	default:
		e = e.Uint32("value", uint32(ev.Value))
	}
	e.Msg(ev.Kind.String())
}
