package sched

import (
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// Config mirrors the scheduler section of the firmware YAML.
type Config struct {
	TickUs        uint32       `yaml:"tick_us"`         // 100 (by default), driver tick interval
	MinPeriodUs   uint32       `yaml:"min_period_us"`   // 100 (by default), floor of every task period
	GuardUs       uint32       `yaml:"guard_us"`        // 10 (by default), slack needed before best-effort work
	Statistics    bool         `yaml:"statistics"`      // true (by default)
	LoadMonitorHz uint32       `yaml:"load_monitor_hz"` // 10 (by default)
	Tasks         []TaskConfig `yaml:"tasks"`
}

// TaskConfig is one row of the task table. Job names the workload that backs
// the task; the scheduler itself never looks at it.
type TaskConfig struct {
	Name     string `yaml:"name"`
	SubName  string `yaml:"sub_name"`
	Job      string `yaml:"job"`
	Priority string `yaml:"priority"`
	PeriodUs uint32 `yaml:"period_us"`
	CostUs   uint32 `yaml:"cost_us"`
	Enabled  bool   `yaml:"enabled"`
}

// DefaultConfig is used when no configuration file is given.
func DefaultConfig() Config {
	return Config{
		TickUs:        100,
		MinPeriodUs:   100,
		GuardUs:       10,
		Statistics:    true,
		LoadMonitorHz: 10,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}

	cfg.sanitize()
	for i, tc := range cfg.Tasks {
		if _, err := ParsePriority(tc.Priority); err != nil {
			return cfg, errors.Wrapf(err, "task %d (%s)", i, tc.Name)
		}
	}
	return cfg, nil
}

// sanity clamps
func (c *Config) sanitize() {
	def := DefaultConfig()
	if c.TickUs == 0 {
		c.TickUs = def.TickUs
	}
	if c.MinPeriodUs == 0 {
		c.MinPeriodUs = def.MinPeriodUs
	}
	if c.LoadMonitorHz == 0 {
		c.LoadMonitorHz = def.LoadMonitorHz
	}
}

// LoadMonitorPeriod converts LoadMonitorHz to a task period.
func (c Config) LoadMonitorPeriod() Micros {
	hz := c.LoadMonitorHz
	if hz == 0 {
		hz = DefaultConfig().LoadMonitorHz
	}
	return Micros(1_000_000 / hz)
}
