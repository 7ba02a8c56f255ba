// Package region accumulates a bounding rectangle, in projected map units,
// that covers every pair of reference points seen since the last reset.
package region

import (
	"math"

	"github.com/banshee-data/basestation/internal/geo"
)

// DefaultPadding is added on every side of each pair's rectangle, in map
// units, so that points never sit on the region's edge.
const DefaultPadding = 0.6

// Region is a rectangle in map units. X and Y are the north-west corner.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies within r, edges included.
func (r Region) Contains(p geo.MapPoint) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// ContainsRegion reports whether o lies entirely within r.
func (r Region) ContainsRegion(o Region) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

// Center returns the geographic centre of r.
func (r Region) Center() geo.Coordinate {
	return geo.Unproject(geo.MapPoint{X: r.X + r.Width/2, Y: r.Y + r.Height/2})
}

// Span returns the latitude and longitude extent of r in degrees.
func (r Region) Span() (latDelta, lonDelta float64) {
	nw := geo.Unproject(geo.MapPoint{X: r.X, Y: r.Y})
	se := geo.Unproject(geo.MapPoint{X: r.X + r.Width, Y: r.Y + r.Height})
	return math.Abs(nw.Latitude - se.Latitude), math.Abs(se.Longitude - nw.Longitude)
}

// Accumulator grows a Region monotonically until Reset. It is not safe for
// concurrent use.
type Accumulator struct {
	padding                float64
	set                    bool
	minX, minY, maxX, maxY float64
}

// New returns an empty accumulator. A negative padding selects
// DefaultPadding.
func New(padding float64) *Accumulator {
	if padding < 0 {
		padding = DefaultPadding
	}
	return &Accumulator{padding: padding}
}

// Accumulate folds the padded rectangle covering a and b into the region and
// returns the result.
func (a *Accumulator) Accumulate(p, q geo.Coordinate) Region {
	pp, qp := geo.Project(p), geo.Project(q)
	minX := math.Min(pp.X, qp.X) - a.padding
	minY := math.Min(pp.Y, qp.Y) - a.padding
	maxX := math.Max(pp.X, qp.X) + a.padding
	maxY := math.Max(pp.Y, qp.Y) + a.padding

	if !a.set {
		a.minX, a.minY, a.maxX, a.maxY = minX, minY, maxX, maxY
		a.set = true
	} else {
		a.minX = math.Min(a.minX, minX)
		a.minY = math.Min(a.minY, minY)
		a.maxX = math.Max(a.maxX, maxX)
		a.maxY = math.Max(a.maxY, maxY)
	}
	return a.region()
}

func (a *Accumulator) region() Region {
	return Region{X: a.minX, Y: a.minY, Width: a.maxX - a.minX, Height: a.maxY - a.minY}
}

// Current returns the accumulated region. ok is false when nothing has been
// accumulated since construction or the last Reset.
func (a *Accumulator) Current() (r Region, ok bool) {
	if !a.set {
		return Region{}, false
	}
	return a.region(), true
}

// Reset clears the region; the next Accumulate starts from its own pair.
func (a *Accumulator) Reset() {
	*a = Accumulator{padding: a.padding}
}
