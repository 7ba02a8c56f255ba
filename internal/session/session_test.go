package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/basestation/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestObserve_FirstSampleStartsSession(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	c := New(clock, 0)

	assert.Equal(t, State{}, c.State())
	assert.True(t, c.Observe(5000))

	st := c.State()
	assert.Equal(t, uint32(5000), st.DeviceStart)
	assert.Equal(t, epoch, st.WallStart)
	assert.Equal(t, epoch, st.LastUpdate)
	assert.Zero(t, st.UpdatePeriod)
	assert.Zero(t, st.UpdateFrequency)
	assert.Zero(t, st.Latency)
}

func TestObserve_PeriodFrequencyLatency(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	c := New(clock, 0)

	require.True(t, c.Observe(1000))

	// Frame on-time advances 100ms but arrives 120ms later.
	clock.Advance(120 * time.Millisecond)
	require.False(t, c.Observe(1100))

	st := c.State()
	assert.Equal(t, 120*time.Millisecond, st.UpdatePeriod)
	assert.InDelta(t, 1/0.12, st.UpdateFrequency, 1e-9)
	assert.Equal(t, 20*time.Millisecond, st.Latency)
	assert.Equal(t, epoch.Add(120*time.Millisecond), st.LastUpdate)

	// Device runs ahead of the wall clock: latency is an absolute value.
	clock.Advance(50 * time.Millisecond)
	require.False(t, c.Observe(1300))
	assert.Equal(t, 130*time.Millisecond, c.State().Latency)
}

func TestObserve_ZeroPeriod(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	c := New(clock, 0)

	c.Observe(1000)
	c.Observe(1000)

	st := c.State()
	assert.Zero(t, st.UpdatePeriod)
	assert.Zero(t, st.UpdateFrequency)
}

func TestObserve_Restart(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	c := New(clock, 0)

	c.Observe(500)
	clock.Advance(100 * time.Millisecond)
	c.Observe(600)
	clock.Advance(100 * time.Millisecond)

	// Lower than the previous sample but not lower than the session start.
	assert.True(t, c.Observe(550))

	st := c.State()
	assert.Equal(t, uint32(550), st.DeviceStart)
	assert.Equal(t, epoch.Add(200*time.Millisecond), st.WallStart)
	assert.Zero(t, st.UpdatePeriod)
	assert.Zero(t, st.Latency)
	assert.Equal(t, 0, c.Summary().Samples)

	clock.Advance(100 * time.Millisecond)
	assert.True(t, c.Observe(100))
	assert.Equal(t, uint32(100), c.State().DeviceStart)
}

func TestSummary(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	c := New(clock, 4)

	assert.Equal(t, Summary{}, c.Summary())

	on := uint32(0)
	c.Observe(on)
	for i := 0; i < 6; i++ {
		clock.Advance(100 * time.Millisecond)
		on += 100
		c.Observe(on)
	}

	s := c.Summary()
	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 0.1, s.PeriodMean, 1e-9)
	assert.InDelta(t, 0, s.PeriodStdDev, 1e-9)
	assert.InDelta(t, 10, s.FrequencyMean, 1e-6)
	assert.InDelta(t, 0, s.LatencyMean, 1e-9)
	assert.InDelta(t, 0, s.LatencyP95, 1e-9)
}

func TestSummary_LatencyP95(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	c := New(clock, 0)

	c.Observe(0)
	// Every frame arrives 10ms later than its on-time step implies.
	on := uint32(0)
	for i := 0; i < 20; i++ {
		clock.Advance(110 * time.Millisecond)
		on += 100
		c.Observe(on)
	}

	s := c.Summary()
	assert.Equal(t, 20, s.Samples)
	assert.InDelta(t, 0.11, s.PeriodMean, 1e-9)
	// Latency grows 10ms per frame: 10, 20, ... 200ms.
	assert.InDelta(t, 0.105, s.LatencyMean, 1e-9)
	assert.InDelta(t, 0.19, s.LatencyP95, 1e-9)
}
