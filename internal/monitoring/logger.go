// Package monitoring holds the shared diagnostic logger used by the pipeline
// and its frame sources.
package monitoring

import (
	"log"
	"sync"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Throttle gates repetitive log lines (bad frames arriving at link rate) so
// that at most one line per interval reaches Logf. Suppressed lines are
// counted and reported with the next line that gets through.
type Throttle struct {
	mu         sync.Mutex
	interval   time.Duration
	last       time.Time
	suppressed int
}

// NewThrottle returns a Throttle allowing one line per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Logf logs through the package logger unless a line was emitted less than
// interval before now.
func (t *Throttle) Logf(now time.Time, format string, v ...interface{}) {
	t.mu.Lock()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.suppressed++
		t.mu.Unlock()
		return
	}
	suppressed := t.suppressed
	t.suppressed = 0
	t.last = now
	t.mu.Unlock()

	if suppressed > 0 {
		format += " (%d similar suppressed)"
		v = append(v, suppressed)
	}
	Logf(format, v...)
}
