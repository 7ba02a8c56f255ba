package api

import (
	"time"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/region"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/session"
	"github.com/banshee-data/basestation/internal/station"
	"github.com/banshee-data/basestation/internal/units"
)

type statusResponse struct {
	Seq         uint64             `json:"seq"`
	Arming      frame.ArmingStatus `json:"arming"`
	Subsystems  frame.Subsystems   `json:"subsystems"`
	FlightMode  string             `json:"flight_mode"`
	FlightModes []string           `json:"flight_modes"`
	Sticks      frame.Sticks       `json:"sticks"`
}

type regionResponse struct {
	Seq         uint64         `json:"seq"`
	Set         bool           `json:"set"`
	AutoFraming bool           `json:"auto_framing"`
	Region      region.Region  `json:"region"`
	Center      geo.Coordinate `json:"center"`
	LatDelta    float64        `json:"lat_delta"`
	LonDelta    float64        `json:"lon_delta"`
}

type linkResponse struct {
	Seq     uint64          `json:"seq"`
	State   session.State   `json:"state"`
	Summary session.Summary `json:"summary"`
	Frames  station.Stats   `json:"frames"`
}

type trackResponse struct {
	Seq    uint64           `json:"seq"`
	Count  int              `json:"count"`
	Points []geo.Coordinate `json:"points"`
}

type seriesResponse struct {
	Seq     uint64                    `json:"seq"`
	Units   string                    `json:"units"`
	Domain  series.Domain             `json:"domain"`
	Channel string                    `json:"channel,omitempty"`
	Points  []series.Point            `json:"points,omitempty"`
	All     map[string][]series.Point `json:"channels,omitempty"`
}

// liveResponse is the per-frame payload of the event stream.
type liveResponse struct {
	Seq      uint64         `json:"seq"`
	Created  time.Time      `json:"created"`
	Sessions uint64         `json:"sessions"`
	Units    string         `json:"units"`
	Speed    float64        `json:"speed"`
	Sample   *frame.Sample  `json:"sample"`
	Status   statusResponse `json:"status"`
	Region   regionResponse `json:"region"`
	Link     session.State  `json:"link"`
	Vehicle  geo.Coordinate `json:"vehicle"`
	Home     geo.Coordinate `json:"home"`
	Observer geo.Coordinate `json:"observer"`
}

type snapshotResponse struct {
	liveResponse
	Domain series.Domain    `json:"domain"`
	Track  []geo.Coordinate `json:"track"`
}

func newStatus(snap *station.Snapshot) statusResponse {
	r := statusResponse{
		Seq:        snap.Seq,
		Arming:     snap.Arming,
		Subsystems: snap.Subsystems,
		FlightMode: snap.FlightMode,
		Sticks:     snap.Sticks,
	}
	if snap.Sample != nil {
		r.FlightModes = snap.Sample.FlightModes()
	}
	return r
}

func newRegion(snap *station.Snapshot) regionResponse {
	r := regionResponse{
		Seq:         snap.Seq,
		Set:         snap.RegionSet,
		AutoFraming: snap.AutoFraming,
	}
	if snap.RegionSet {
		r.Region = snap.Region
		r.Center = snap.Region.Center()
		r.LatDelta, r.LonDelta = snap.Region.Span()
	}
	return r
}

func newLive(snap *station.Snapshot, unit string) liveResponse {
	r := liveResponse{
		Seq:      snap.Seq,
		Created:  snap.Created,
		Sessions: snap.Sessions,
		Units:    unit,
		Sample:   snap.Sample,
		Status:   newStatus(snap),
		Region:   newRegion(snap),
		Link:     snap.Link,
		Vehicle:  snap.Vehicle,
		Home:     snap.Home,
		Observer: snap.Observer,
	}
	if snap.Sample != nil {
		r.Speed = units.ConvertSpeed(float64(snap.Sample.GPSSpeed), unit)
	}
	return r
}

// convertPoints returns the speed channel's points in unit, copying so the
// snapshot's own values are left alone.
func convertPoints(channel string, points []series.Point, unit string) []series.Point {
	if channel != series.ChannelSpeed || unit == units.MPS {
		return points
	}
	out := make([]series.Point, len(points))
	for i, p := range points {
		p.Value = units.ConvertSpeed(p.Value, unit)
		out[i] = p
	}
	return out
}
