package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"fcsched/internal/job"
	"fcsched/internal/sched"
)

const consoleTimeFormat = "15:04:05.000"

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "scheduler YAML file (defaults when empty)",
	}
	durationFlag = cli.DurationFlag{
		Name:  "duration, d",
		Value: 2 * time.Second,
		Usage: "how long to run the scheduler",
	}
	traceFlag = cli.StringFlag{
		Name:  "trace",
		Usage: "write every scheduler event to this CSV file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Value: "info",
		Usage: "trace, debug, info, warn or error",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "fcsched"
	app.Usage = "cooperative flight-controller task scheduler"
	app.HideVersion = true
	app.Flags = []cli.Flag{configFlag, traceFlag, logLevelFlag}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the task table in real time",
			Flags:  []cli.Flag{durationFlag},
			Action: runCommand,
		},
		{
			Name:   "simulate",
			Usage:  "run the task table on a virtual clock",
			Flags:  []cli.Flag{durationFlag},
			Action: simulateCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) error {
	clock := sched.NewMonotonicClock()
	return execute(c, clock, nil, func(ctx context.Context, s *sched.Scheduler, cfg sched.Config) error {
		ctx, stop := context.WithTimeout(ctx, c.Duration("duration"))
		defer stop()

		tc := sched.NewTickClock(1)
		tc.Start(time.Duration(cfg.TickUs) * time.Microsecond)
		defer tc.Stop()
		return s.Run(ctx, tc)
	})
}

func simulateCommand(c *cli.Context) error {
	clock := sched.NewManualClock(0)
	return execute(c, clock, clock, func(ctx context.Context, s *sched.Scheduler, cfg sched.Config) error {
		d := c.Duration("duration")
		budget, err := virtualDuration(d)
		if err != nil {
			return err
		}
		ticks := s.Simulate(ctx, clock, budget, sched.Micros(cfg.TickUs))
		zerolog.Ctx(ctx).Info().Uint64("ticks", ticks).Dur("virtual", d).Msg("simulation done")
		return nil
	})
}

// virtualDuration converts d to the scheduler's wrapping microsecond counter,
// which cannot express a span of a full counter period or more.
func virtualDuration(d time.Duration) (sched.Micros, error) {
	us := d.Microseconds()
	if us < 0 || us > math.MaxUint32 {
		return 0, errors.Errorf("duration %s outside the 0..%s counter range", d, sched.Micros(math.MaxUint32).Duration())
	}
	return sched.Micros(us), nil
}

type driveFn = func(ctx context.Context, s *sched.Scheduler, cfg sched.Config) error

// execute loads the configuration, builds the scheduler and hands it to drive.
func execute(c *cli.Context, clock sched.Clock, cost job.Advancer, drive driveFn) error {
	log := newConsoleLogger(c.GlobalString("log-level"))

	cfg, err := sched.Load(c.GlobalString("config"))
	if err != nil {
		return err
	}

	led := &statusLED{log: log}
	tbl, err := job.Build(cfg, cost, led)
	if err != nil {
		return errors.Wrap(err, "task table")
	}

	s := sched.New(cfg, clock, tbl.Specs, sched.WithLogger(log.With().Str("component", "sched").Logger()))
	s.AddObserver(sched.NewLogObserver(log, s.TaskName))

	var trace *sched.CSVTrace
	if path := c.GlobalString("trace"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "open trace")
		}
		defer f.Close()
		trace = sched.NewCSVTrace(f, s.TaskName)
		s.AddObserver(trace)
	}

	enabled := tbl.Apply(s)
	log.Info().Int("tasks", s.TaskCount()).Int("enabled", enabled).Msg("task table loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = log.WithContext(ctx)

	if err := drive(ctx, s, cfg); err != nil {
		return err
	}

	if trace != nil {
		if err := trace.Flush(); err != nil {
			return errors.Wrap(err, "write trace")
		}
	}
	printReport(s, led)
	return nil
}

func printReport(s *sched.Scheduler, led *statusLED) {
	fmt.Printf("%-22s %-11s %3s %8s %8s %8s %8s %10s %8s\n",
		"task", "priority", "on", "period", "avg", "max", "latest", "runs", "jitter")
	for i := 0; i < s.TaskCount(); i++ {
		info, _ := s.GetInfo(sched.TaskID(i))
		on := "no"
		if info.Enabled {
			on = "yes"
		}
		fmt.Printf("%-22s %-11s %3s %8d %8d %8d %8d %10d %8.1f\n",
			s.TaskName(info.ID), info.StaticPriority, on, info.Period,
			info.AvgExecTime, info.MaxExecTime, info.LatestPeriod, info.Runs, info.Jitter)
	}
	load := s.Load()
	fmt.Printf("load: %d%% (%d/%d cycles loaded, %d samples), heartbeat toggles: %d\n",
		load.Percent, load.LoadedCycles, load.Cycles, load.Samples, led.toggles)
}

func newConsoleLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

// statusLED stands in for the board heartbeat LED.
type statusLED struct {
	log     zerolog.Logger
	on      bool
	toggles int
}

func (l *statusLED) Set(on bool) {
	if on != l.on {
		l.toggles++
	}
	l.on = on
	l.log.Trace().Bool("on", on).Msg("heartbeat")
}
