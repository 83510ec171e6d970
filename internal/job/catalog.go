package job

import (
	"github.com/pkg/errors"

	"fcsched/internal/sched"
)

// Names of the built-in workloads.
const (
	Gyro       = "gyro"
	Attitude   = "attitude"
	Rate       = "rate"
	RC         = "rc"
	Baro       = "baro"
	Telemetry  = "telemetry"
	StackCheck = "stackcheck"
	Load       = "load"
)

// DefaultTasks is the table used when the configuration lists none.
func DefaultTasks() []sched.TaskConfig {
	return []sched.TaskConfig{
		{Name: "IMU", SubName: "gyro", Job: Gyro, Priority: "REAL_TIME", PeriodUs: 1000, CostUs: 60, Enabled: true},
		{Name: "PID", SubName: "rate", Job: Rate, Priority: "REAL_TIME", PeriodUs: 1000, CostUs: 40, Enabled: true},
		{Name: "AHRS", SubName: "attitude", Job: Attitude, Priority: "HIGH", PeriodUs: 2000, CostUs: 120, Enabled: true},
		{Name: "RX", SubName: "rc", Job: RC, Priority: "MEDIUM_HIGH", PeriodUs: 20000, CostUs: 80, Enabled: true},
		{Name: "BARO", SubName: "", Job: Baro, Priority: "MEDIUM", PeriodUs: 25000, CostUs: 150, Enabled: true},
		{Name: "TELEMETRY", SubName: "", Job: Telemetry, Priority: "LOW", PeriodUs: 100000, CostUs: 300, Enabled: true},
		{Name: "SYSTEM", SubName: "load", Job: Load, Priority: "MEDIUM_HIGH", Enabled: true},
		{Name: "SYSTEM", SubName: "stack", Job: StackCheck, Priority: "LOW", PeriodUs: 1000000, CostUs: 20, Enabled: false},
	}
}

// Table is a task table ready for sched.New.
type Table struct {
	Specs   []sched.TaskSpec
	Enabled []bool
	Works   []*Work
	Monitor *sched.LoadMonitor
}

// Build turns the configured rows into runners. clock receives the cost of
// every workload (nil spins in real time). Exactly one "load" row gets the
// load monitor; its period comes from LoadMonitorHz when none is given.
func Build(cfg sched.Config, clock Advancer, indicator sched.Indicator) (*Table, error) {
	rows := cfg.Tasks
	if len(rows) == 0 {
		rows = DefaultTasks()
	}

	tbl := &Table{}
	for i, row := range rows {
		prio, err := sched.ParsePriority(row.Priority)
		if err != nil {
			return nil, errors.Wrapf(err, "task %d (%s)", i, row.Name)
		}

		spec := sched.TaskSpec{
			Name:     row.Name,
			SubName:  row.SubName,
			Period:   sched.Micros(row.PeriodUs),
			Priority: prio,
		}

		var work *Work
		switch row.Job {
		case Load:
			if tbl.Monitor != nil {
				return nil, errors.Errorf("task %d (%s): second load monitor", i, row.Name)
			}
			tbl.Monitor = sched.NewLoadMonitor(indicator)
			spec.Runner = tbl.Monitor
			if spec.Period == 0 {
				spec.Period = cfg.LoadMonitorPeriod()
			}
		case Gyro, Attitude, Rate, RC, Telemetry, StackCheck:
			work = Cost(row.Job, sched.Micros(row.CostUs), clock)
		case Baro:
			work = Cost(row.Job, sched.Micros(row.CostUs), clock).Then(baroPhases(spec.Period))
		default:
			return nil, errors.Errorf("task %d (%s): unknown job %q", i, row.Name, row.Job)
		}
		if work != nil {
			spec.Runner = work
		}

		tbl.Specs = append(tbl.Specs, spec)
		tbl.Enabled = append(tbl.Enabled, row.Enabled)
		tbl.Works = append(tbl.Works, work)
	}
	return tbl, nil
}

// Apply enables the rows flagged as enabled and returns how many made it
// into the active queue.
func (t *Table) Apply(s *sched.Scheduler) int {
	n := 0
	for i, on := range t.Enabled {
		if on && s.Enable(sched.TaskID(i)) {
			n++
		}
	}
	return n
}

// baroPhases alternates a short conversion wait with the full sampling
// period, rescheduling the running task through TaskSelf.
func baroPhases(period sched.Micros) func(ctx sched.ExecContext) {
	converting := false
	return func(ctx sched.ExecContext) {
		converting = !converting
		next := period
		if converting {
			next = period / 2
		}
		ctx.Scheduler().SetPeriod(sched.TaskSelf, uint32(next))
	}
}
