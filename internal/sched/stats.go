package sched

import (
	"math"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

const (
	// execAvgWindow is the EMA window of the mean execution time.
	execAvgWindow = 32
	// jitterWindow is the number of observed periods per tau estimate.
	jitterWindow = 100
)

// execStats is the optional per-task instrumentation.
type execStats struct {
	execSum   uint64 // moving sum; the mean is execSum / execAvgWindow
	maxExec   Micros
	totalExec uint64

	periods *circularbuffer.Queue // deviation of each observed period from its nominal one
	samples uint64                // observed periods since the last reset
	tau     float64
}

func newExecStats() execStats {
	return execStats{periods: circularbuffer.New(jitterWindow)}
}

// recordExec folds one execution time into mean, max and total.
func (s *execStats) recordExec(elapsed Micros) {
	s.execSum += uint64(elapsed) - s.execSum/execAvgWindow
	if elapsed > s.maxExec {
		s.maxExec = elapsed
	}
	s.totalExec += uint64(elapsed)
}

func (s *execStats) avgExec() Micros {
	return Micros(s.execSum / execAvgWindow)
}

// recordPeriod appends an observed period against the nominal period that
// governed it. Once the window holds jitterWindow samples, the RMS deviation
// is computed, the worst case is kept and the window restarts. It reports
// whether a window closed.
func (s *execStats) recordPeriod(observed, nominal Micros) bool {
	s.periods.Enqueue(int64(observed) - int64(nominal))
	s.samples++
	if !s.periods.Full() {
		return false
	}

	tau := rmsDeviation(s.periods.Values())
	if tau > s.tau {
		s.tau = tau
	}
	s.periods.Clear()
	return true
}

func rmsDeviation(deviations []interface{}) float64 {
	if len(deviations) == 0 {
		return 0
	}
	var sum float64
	for _, v := range deviations {
		d := float64(v.(int64))
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(deviations)))
}

func (s *execStats) reset() {
	s.execSum = 0
	s.maxExec = 0
	s.totalExec = 0
	s.periods.Clear()
	s.samples = 0
	s.tau = 0
}

func (s *execStats) resetMax() {
	s.maxExec = 0
}
