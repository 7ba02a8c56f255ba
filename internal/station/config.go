package station

import (
	"time"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/region"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/session"
	"github.com/banshee-data/basestation/internal/timeutil"
	"github.com/banshee-data/basestation/internal/track"
)

// Config configures a Station. Use DefaultConfig and override fields.
type Config struct {
	Layout           frame.Layout
	Window           time.Duration
	TrackMinDistance float64 // metres
	RegionPadding    float64 // map units
	LinkHistory      int

	// Observer is the fixed ground position used as the second point of
	// each auto-framing pair. Zero means no observer.
	Observer geo.Coordinate

	AutoFraming          bool
	ResetRegionOnRestart bool

	// Channels replaces series.DefaultChannels when non-nil.
	Channels []series.Channel

	Clock timeutil.Clock
}

// DefaultConfig returns the standard configuration for the given layout.
func DefaultConfig(layout frame.Layout) Config {
	return Config{
		Layout:           layout,
		Window:           series.DefaultWindow,
		TrackMinDistance: track.DefaultMinDistance,
		RegionPadding:    region.DefaultPadding,
		LinkHistory:      session.DefaultLinkHistory,
		AutoFraming:      true,
	}
}
