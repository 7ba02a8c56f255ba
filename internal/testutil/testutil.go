// Package testutil provides shared test helpers and fixtures.
package testutil

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/monitoring"
)

// Epoch is the fixed start time used by mock clocks in tests.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// Sample returns a v2 sample at on-time ms and the given position in degrees.
func Sample(ms uint32, lat, lon float64) frame.Sample {
	return frame.Sample{
		Layout:       frame.LayoutV2,
		OnTime:       ms,
		GPSLatitude:  int32(math.Round(lat * frame.CoordinateScale)),
		GPSLongitude: int32(math.Round(lon * frame.CoordinateScale)),
	}
}

// LogCapture collects lines written through monitoring.Logf.
type LogCapture struct {
	mu    sync.Mutex
	lines []string
}

// Lines returns the captured lines.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// CaptureLogs redirects monitoring.Logf into a LogCapture until the test
// ends.
func CaptureLogs(t testing.TB) *LogCapture {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })

	c := &LogCapture{}
	monitoring.SetLogger(func(format string, v ...interface{}) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines = append(c.lines, fmt.Sprintf(format, v...))
	})
	return c
}
