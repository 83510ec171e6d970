package sched

// Indicator is the heartbeat output toggled by the load monitor, e.g. a
// status LED.
type Indicator interface {
	Set(on bool)
}

// LoadStats is the window the last load sample was computed from.
type LoadStats struct {
	Percent      uint8
	Cycles       uint32 // best-effort passes in the window
	LoadedCycles uint32 // passes that had at least one task waiting
	WaitingTotal uint32 // sum of waiting tasks across the window
	Samples      uint64
}

// LoadMonitor is a task that turns the dispatcher's waiting counters into a
// load percentage. Register it in the task table like any other task.
type LoadMonitor struct {
	indicator Indicator
	beat      bool
}

func NewLoadMonitor(indicator Indicator) *LoadMonitor {
	return &LoadMonitor{indicator: indicator}
}

func (m *LoadMonitor) Run(ctx ExecContext) {
	if s := ctx.Scheduler(); s != nil {
		s.sampleLoad(ctx.Now)
	}
	m.beat = !m.beat
	if m.indicator != nil {
		m.indicator.Set(m.beat)
	}
}

// Heartbeat is the state last written to the indicator.
func (m *LoadMonitor) Heartbeat() bool { return m.beat }

// sampleLoad closes the current accounting window.
func (s *Scheduler) sampleLoad(now Micros) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := LoadStats{
		Cycles:       s.cycles,
		LoadedCycles: s.loadedCycles,
		WaitingTotal: s.waitingTotal,
		Samples:      s.load.Samples + 1,
	}
	if st.Cycles > 0 {
		st.Percent = uint8(uint64(100) * uint64(st.LoadedCycles) / uint64(st.Cycles))
	}
	s.load = st
	s.cycles, s.loadedCycles, s.waitingTotal = 0, 0, 0

	s.emit(StatusEvent{Now: now, Kind: StatusLoad, TaskID: s.current, Value: Micros(st.Percent)})
}

// LoadPercent is the latest load sample.
func (s *Scheduler) LoadPercent() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load.Percent
}

// Load returns the latest load sample with its window.
func (s *Scheduler) Load() LoadStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load
}
