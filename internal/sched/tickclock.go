// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
	"time"
)

// Micros is a wrapping microsecond count from a monotonic counter.
type Micros uint32

// Sub returns m - earlier modulo 2^32, correct across one counter wrap.
func (m Micros) Sub(earlier Micros) Micros { return m - earlier }

// Add returns m + d modulo 2^32.
func (m Micros) Add(d Micros) Micros { return m + d }

// Until returns the signed distance from m to deadline; negative once the
// deadline has passed.
func (m Micros) Until(deadline Micros) int32 { return int32(deadline - m) }

// Duration converts a microsecond count to a time.Duration.
func (m Micros) Duration() time.Duration { return time.Duration(m) * time.Microsecond }

// Clock is the monotonic microsecond time source.
type Clock interface {
	Now() Micros
}

// MonotonicClock counts microseconds since it was created.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() Micros {
	return Micros(uint64(time.Since(c.start).Microseconds()))
}

// ManualClock only moves when told to. Callbacks may Advance it to model
// their execution time.
type ManualClock struct {
	now atomic.Uint32
}

func NewManualClock(start Micros) *ManualClock {
	c := &ManualClock{}
	c.now.Store(uint32(start))
	return c
}

func (c *ManualClock) Now() Micros { return Micros(c.now.Load()) }

func (c *ManualClock) Set(t Micros) { c.now.Store(uint32(t)) }

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d Micros) Micros { return Micros(c.now.Add(uint32(d))) }

// TickClock emits ticks and counts them atomically.
type TickClock struct {
	Ch    chan struct{}
	count atomic.Int64
	stop  chan struct{}
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval. A tick is dropped when
// the consumer is still busy with the previous ones.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.Ch <- struct{}{}:
				default:
				}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks.
func (c *TickClock) Stop() {
	close(c.stop)
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}
