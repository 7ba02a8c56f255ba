// Package track keeps a distance-decimated ground track of vehicle
// positions.
package track

import "github.com/banshee-data/basestation/internal/geo"

// DefaultMinDistance is the default spacing between retained points, in
// metres.
const DefaultMinDistance = 2.0

// Track is an append-only sequence of positions in which every point lies
// more than MinDistance from its predecessor. The first point is always
// kept. A Track is not safe for concurrent use.
type Track struct {
	minDistance float64
	points      []geo.Coordinate
}

// New returns an empty track. minDistance <= 0 selects DefaultMinDistance.
func New(minDistance float64) *Track {
	if minDistance <= 0 {
		minDistance = DefaultMinDistance
	}
	return &Track{minDistance: minDistance}
}

// MinDistance returns the configured spacing in metres.
func (t *Track) MinDistance() float64 { return t.minDistance }

// Add appends c if the track is empty or c is more than MinDistance from the
// last retained point. It reports whether c was kept.
func (t *Track) Add(c geo.Coordinate) bool {
	if n := len(t.points); n > 0 && geo.DistanceMeters(t.points[n-1], c) <= t.minDistance {
		return false
	}
	t.points = append(t.points, c)
	return true
}

// Points returns the retained positions. The slice shares storage with the
// track and must not be modified.
func (t *Track) Points() []geo.Coordinate {
	n := len(t.points)
	return t.points[:n:n]
}

// Len returns the number of retained positions.
func (t *Track) Len() int { return len(t.points) }

// Last returns the newest retained position.
func (t *Track) Last() (geo.Coordinate, bool) {
	if len(t.points) == 0 {
		return geo.Coordinate{}, false
	}
	return t.points[len(t.points)-1], true
}

// Reset discards every point. Slices returned by Points stay valid.
func (t *Track) Reset() {
	t.points = nil
}
