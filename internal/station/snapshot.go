package station

import (
	"time"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/region"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/session"
)

// Snapshot is the committed state after one update. Snapshots are never
// modified once published and may be shared between goroutines.
type Snapshot struct {
	Seq      uint64    `json:"seq"`
	Created  time.Time `json:"created"`
	Sessions uint64    `json:"sessions"`

	// Sample is nil until the first frame is accepted.
	Sample     *frame.Sample      `json:"sample,omitempty"`
	Arming     frame.ArmingStatus `json:"arming"`
	Subsystems frame.Subsystems   `json:"subsystems"`
	FlightMode string             `json:"flight_mode"`
	Sticks     frame.Sticks       `json:"sticks"`

	Series series.View      `json:"series"`
	Track  []geo.Coordinate `json:"track"`

	Region      region.Region `json:"region"`
	RegionSet   bool          `json:"region_set"`
	AutoFraming bool          `json:"auto_framing"`

	Link        session.State   `json:"link"`
	LinkSummary session.Summary `json:"link_summary"`

	Vehicle  geo.Coordinate `json:"vehicle"`
	Home     geo.Coordinate `json:"home"`
	Observer geo.Coordinate `json:"observer"`
}

// Stats counts frames seen by a Station.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Sessions uint64 `json:"sessions"`
}
