// Package session tracks the vehicle's on-time against the local wall clock:
// when the current session started, when it restarted, and how regularly
// frames are arriving.
package session

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/basestation/internal/timeutil"
)

// DefaultLinkHistory is the number of updates kept for Summary.
const DefaultLinkHistory = 64

// State is the session clock as of the latest sample.
type State struct {
	DeviceStart     uint32        `json:"device_start_ms"` // on-time of the first sample in the session
	WallStart       time.Time     `json:"wall_start"`
	LastUpdate      time.Time     `json:"last_update"`
	UpdatePeriod    time.Duration `json:"update_period"`
	UpdateFrequency float64       `json:"update_frequency_hz"`
	Latency         time.Duration `json:"latency"`
}

// Summary aggregates the recent link history.
type Summary struct {
	Samples       int     `json:"samples"`
	PeriodMean    float64 `json:"period_mean_s"`
	PeriodStdDev  float64 `json:"period_stddev_s"`
	LatencyMean   float64 `json:"latency_mean_s"`
	LatencyP95    float64 `json:"latency_p95_s"`
	FrequencyMean float64 `json:"frequency_mean_hz"`
}

// Clock is safe for concurrent use, although the station serialises calls
// to Observe under its own lock.
type Clock struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	started bool
	last    uint32
	state   State

	historyLen int
	periods    []float64
	latencies  []float64
}

// New returns a Clock reading wall time from clock. historyLen <= 0 selects
// DefaultLinkHistory.
func New(clock timeutil.Clock, historyLen int) *Clock {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if historyLen <= 0 {
		historyLen = DefaultLinkHistory
	}
	return &Clock{clock: clock, historyLen: historyLen}
}

// Observe records a sample with the given on-time in milliseconds. It
// returns true when the sample starts a new session: the first sample ever,
// or one whose on-time is lower than the previous sample's.
func (c *Clock) Observe(onTimeMs uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if !c.started || onTimeMs < c.last {
		c.started = true
		c.last = onTimeMs
		c.state = State{
			DeviceStart: onTimeMs,
			WallStart:   now,
			LastUpdate:  now,
		}
		c.periods = c.periods[:0]
		c.latencies = c.latencies[:0]
		return true
	}

	wallElapsed := now.Sub(c.state.WallStart)
	deviceElapsed := time.Duration(onTimeMs-c.state.DeviceStart) * time.Millisecond
	latency := wallElapsed - deviceElapsed
	if latency < 0 {
		latency = -latency
	}

	period := now.Sub(c.state.LastUpdate)
	freq := 0.0
	if period > 0 {
		freq = 1 / period.Seconds()
	}

	c.last = onTimeMs
	c.state.LastUpdate = now
	c.state.UpdatePeriod = period
	c.state.UpdateFrequency = freq
	c.state.Latency = latency

	c.periods = appendBounded(c.periods, period.Seconds(), c.historyLen)
	c.latencies = appendBounded(c.latencies, latency.Seconds(), c.historyLen)
	return false
}

func appendBounded(s []float64, v float64, n int) []float64 {
	if len(s) >= n {
		copy(s, s[1:])
		s = s[:n-1]
	}
	return append(s, v)
}

// State returns the current clock state. It is the zero State before the
// first sample.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Summary returns statistics over the last updates in the current session.
// The first sample of a session has no period and is not counted.
func (c *Clock) Summary() Summary {
	c.mu.Lock()
	periods := append([]float64(nil), c.periods...)
	latencies := append([]float64(nil), c.latencies...)
	c.mu.Unlock()

	sum := Summary{Samples: len(periods)}
	if len(periods) == 0 {
		return sum
	}

	sum.PeriodMean = stat.Mean(periods, nil)
	if len(periods) > 1 {
		sum.PeriodStdDev = stat.StdDev(periods, nil)
	}
	if sum.PeriodMean > 0 {
		sum.FrequencyMean = 1 / sum.PeriodMean
	}

	sum.LatencyMean = stat.Mean(latencies, nil)
	sort.Float64s(latencies)
	sum.LatencyP95 = stat.Quantile(0.95, stat.Empirical, latencies, nil)
	return sum
}
