// Package series keeps rolling, time-windowed series of chartable values
// derived from telemetry samples.
//
// A Store owns a set of typed Channels. Each sample is turned into zero or
// more readings per channel, stamped with the sample on-time, and every
// channel is then trimmed so that it only holds points within the retention
// window of the newest sample. Trimming compares integer milliseconds;
// seconds are derived for display only.
//
// Backing arrays are append-only: a written element is never overwritten,
// trimming only advances a start offset, and compaction or reset moves to a
// fresh array. Views therefore share storage with the live store and stay
// immutable without copying.
package series

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/basestation/internal/units"
)

// Number is the set of value types a channel may carry.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// DataPoint is one chartable observation.
type DataPoint[T Number] struct {
	ID     uuid.UUID `json:"id"`
	Time   float64   `json:"time"` // seconds of vehicle on-time
	OnTime uint32    `json:"on_time_ms"`
	Name   string    `json:"name"`
	Value  T         `json:"value"`
}

// Reading is a named value extracted from a sample, before it is stamped.
type Reading[T Number] struct {
	Name  string
	Value T
}

// compactMin is the number of dead leading elements tolerated before a
// window is copied to a new array.
const compactMin = 256

// Window is a time-ordered, append-only list of points with a movable start.
// The zero value is an empty window.
type Window[T Number] struct {
	points []DataPoint[T]
	start  int
}

// Append adds p after the newest point.
func (w *Window[T]) Append(p DataPoint[T]) {
	w.points = append(w.points, p)
}

// cutoff returns the oldest on-time kept when latest is the newest sample,
// saturating at zero.
func cutoff(latest uint32, window time.Duration) uint32 {
	w := window.Milliseconds()
	if int64(latest) <= w {
		return 0
	}
	return latest - uint32(w)
}

// TrimBefore drops every leading point with OnTime < fromMs. Points are in
// arrival order, so trimming stops at the first retained point.
func (w *Window[T]) TrimBefore(fromMs uint32) {
	for w.start < len(w.points) && w.points[w.start].OnTime < fromMs {
		w.start++
	}
	if w.start >= compactMin && w.start > len(w.points)/2 {
		live := make([]DataPoint[T], len(w.points)-w.start, cap(w.points))
		copy(live, w.points[w.start:])
		w.points = live
		w.start = 0
	}
}

// Reset empties the window. The old backing array is released, never reused.
func (w *Window[T]) Reset() {
	w.points = nil
	w.start = 0
}

// Len returns the number of retained points.
func (w *Window[T]) Len() int { return len(w.points) - w.start }

// Points returns the retained points. The result shares storage with w and
// must not be modified; its capacity is clipped so appends never alias.
func (w *Window[T]) Points() []DataPoint[T] {
	end := len(w.points)
	return w.points[w.start:end:end]
}

// timeline tracks sample on-times in milliseconds for the store's domain
// with the same append-only discipline as Window.
type timeline struct {
	times []uint32
	start int
}

func (l *timeline) add(ms uint32) { l.times = append(l.times, ms) }

func (l *timeline) trimBefore(fromMs uint32) {
	for l.start < len(l.times) && l.times[l.start] < fromMs {
		l.start++
	}
	if l.start >= compactMin && l.start > len(l.times)/2 {
		live := make([]uint32, len(l.times)-l.start, cap(l.times))
		copy(live, l.times[l.start:])
		l.times = live
		l.start = 0
	}
}

func (l *timeline) reset() {
	l.times = nil
	l.start = 0
}

func (l *timeline) domain() Domain {
	if l.start >= len(l.times) {
		return Domain{}
	}
	return Domain{
		From:  units.MillisToSeconds(l.times[l.start]),
		To:    units.MillisToSeconds(l.times[len(l.times)-1]),
		Valid: true,
	}
}
