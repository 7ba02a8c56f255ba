// Package geo holds the geographic primitives shared by the track simplifier
// and the bounding-region accumulator: WGS84 coordinates, great-circle
// distance, and a planar map projection.
package geo

import (
	"math"

	golanggeo "github.com/kellydunn/golang-geo"
)

// WorldSize is the width and height of the projected world in map units.
// It matches the 2^28 point world used by common slippy-map toolkits so that
// regions can be handed to map clients without rescaling.
const WorldSize = 268435456.0

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// IsZero reports whether c is the zero coordinate. Vehicles without a GPS fix
// report 0,0 so the zero value doubles as "no position".
func (c Coordinate) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	pa := golanggeo.NewPoint(a.Latitude, a.Longitude)
	pb := golanggeo.NewPoint(b.Latitude, b.Longitude)
	return pa.GreatCircleDistance(pb) * 1000.0
}

// MapPoint is a projected position in map units. X grows east, Y grows south.
type MapPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project converts c to spherical Web Mercator map units.
func Project(c Coordinate) MapPoint {
	x := (c.Longitude + 180.0) / 360.0 * WorldSize
	sinLat := math.Sin(c.Latitude * math.Pi / 180.0)
	y := (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * WorldSize
	return MapPoint{X: x, Y: y}
}

// Unproject is the inverse of Project.
func Unproject(p MapPoint) Coordinate {
	lon := p.X/WorldSize*360.0 - 180.0
	n := math.Pi * (1 - 2*p.Y/WorldSize)
	lat := math.Atan(math.Sinh(n)) * 180.0 / math.Pi
	return Coordinate{Latitude: lat, Longitude: lon}
}
