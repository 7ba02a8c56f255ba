package network

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/basestation/internal/monitoring"
	"github.com/banshee-data/basestation/internal/timeutil"
)

// PacketStats tracks datagram counts between log reports. It is safe for
// concurrent use.
type PacketStats struct {
	mu        sync.Mutex
	clock     timeutil.Clock
	packets   int64
	bytes     int64
	rejected  int64
	lastReset time.Time
}

// NewPacketStats returns stats measuring intervals with clock (nil for the
// wall clock).
func NewPacketStats(clock timeutil.Clock) *PacketStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PacketStats{clock: clock, lastReset: clock.Now()}
}

// AddPacket records an accepted datagram of n bytes.
func (ps *PacketStats) AddPacket(n int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packets++
	ps.bytes += int64(n)
}

// AddRejected records a datagram the handler refused.
func (ps *PacketStats) AddRejected() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.rejected++
}

// Interval is one reporting period's counters.
type Interval struct {
	Packets  int64
	Bytes    int64
	Rejected int64
	Duration time.Duration
}

// GetAndReset returns the counters since the previous call and zeroes them.
func (ps *PacketStats) GetAndReset() Interval {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.clock.Now()
	iv := Interval{
		Packets:  ps.packets,
		Bytes:    ps.bytes,
		Rejected: ps.rejected,
		Duration: now.Sub(ps.lastReset),
	}
	ps.packets, ps.bytes, ps.rejected = 0, 0, 0
	ps.lastReset = now
	return iv
}

// LogStats logs the rates since the previous report. Quiet intervals are
// not logged.
func (ps *PacketStats) LogStats() {
	iv := ps.GetAndReset()
	if (iv.Packets == 0 && iv.Rejected == 0) || iv.Duration <= 0 {
		return
	}
	secs := iv.Duration.Seconds()
	monitoring.Logf("Telemetry stats (/sec): %s, %.1f frames, %s rejected in %s",
		humanize.Bytes(uint64(float64(iv.Bytes)/secs)),
		float64(iv.Packets)/secs,
		humanize.Comma(iv.Rejected),
		iv.Duration.Round(time.Second))
}
