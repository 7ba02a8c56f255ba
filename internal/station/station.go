// Package station owns one telemetry pipeline: it decodes frames, applies
// each one to the session clock, series store, track and bounding region as
// a single atomic update, and publishes the result as an immutable Snapshot.
package station

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool/v2"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/monitoring"
	"github.com/banshee-data/basestation/internal/region"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/session"
	"github.com/banshee-data/basestation/internal/timeutil"
	"github.com/banshee-data/basestation/internal/track"
)

// Station is safe for concurrent use. Frame sources may call HandleFrame
// from their own goroutines; updates are serialised.
type Station struct {
	cfg   Config
	clock timeutil.Clock

	mu          sync.Mutex
	session     *session.Clock
	store       *series.Store
	track       *track.Track
	region      *region.Accumulator
	observer    geo.Coordinate
	last        *frame.Sample
	lastVehicle geo.Coordinate
	lastHome    geo.Coordinate
	seq         uint64

	autoFraming *abool.AtomicBool
	latest      atomic.Pointer[Snapshot]

	subMu  sync.Mutex
	subs   map[int]chan *Snapshot
	nextID int

	accepted atomic.Uint64
	rejected atomic.Uint64
	sessions atomic.Uint64

	rejectLog *monitoring.Throttle
}

// New returns a Station for cfg. It fails only on an invalid layout or
// duplicate channel names.
func New(cfg Config) (*Station, error) {
	if !cfg.Layout.Valid() {
		return nil, fmt.Errorf("%w: %s", frame.ErrUnknownLayout, cfg.Layout)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	channels := cfg.Channels
	if channels == nil {
		channels = series.DefaultChannels()
	}
	store, err := series.NewStore(cfg.Window, channels...)
	if err != nil {
		return nil, err
	}

	s := &Station{
		cfg:         cfg,
		clock:       cfg.Clock,
		session:     session.New(cfg.Clock, cfg.LinkHistory),
		store:       store,
		track:       track.New(cfg.TrackMinDistance),
		region:      region.New(cfg.RegionPadding),
		observer:    cfg.Observer,
		autoFraming: abool.NewBool(cfg.AutoFraming),
		subs:        make(map[int]chan *Snapshot),
		rejectLog:   monitoring.NewThrottle(time.Second),
	}
	s.mu.Lock()
	s.commitLocked()
	s.mu.Unlock()
	return s, nil
}

// Layout returns the configured frame layout.
func (s *Station) Layout() frame.Layout { return s.cfg.Layout }

// HandleFrame decodes data and applies it. A frame that fails to decode
// changes nothing but the rejected counter; the decode error is returned.
func (s *Station) HandleFrame(data []byte) error {
	sample, err := frame.Decode(data, s.cfg.Layout)
	if err != nil {
		s.rejected.Add(1)
		s.rejectLog.Logf(s.clock.Now(), "station: rejected frame: %v", err)
		return err
	}
	s.Apply(sample)
	return nil
}

// Apply commits one decoded sample and returns the resulting snapshot.
func (s *Station) Apply(sample frame.Sample) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Observe(sample.OnTime) {
		if s.sessions.Load() > 0 {
			monitoring.Logf("station: vehicle restarted (on-time %dms), starting session %d", sample.OnTime, s.sessions.Load()+1)
		}
		s.sessions.Add(1)
		s.store.Reset()
		s.track.Reset()
		if s.cfg.ResetRegionOnRestart {
			s.resetRegionLocked()
		}
	}

	s.store.Add(sample)

	vehicle, home := sample.Position(), sample.Home()
	if vehicle.Latitude != 0 {
		s.track.Add(vehicle)
	}
	if s.autoFraming.IsSet() && (vehicle != s.lastVehicle || home != s.lastHome) {
		s.frameLocked(vehicle, home)
	}
	s.lastVehicle, s.lastHome = vehicle, home

	s.last = &sample
	s.accepted.Add(1)
	return s.commitLocked()
}

// frameLocked folds the current reference pairs into the region: home then
// vehicle against the observer, or vehicle against home when there is no
// observer. Positions with a zero latitude have no fix and are skipped.
func (s *Station) frameLocked(vehicle, home geo.Coordinate) {
	hasVehicle, hasHome := vehicle.Latitude != 0, home.Latitude != 0
	switch {
	case !s.observer.IsZero():
		if hasHome {
			s.region.Accumulate(home, s.observer)
		}
		if hasVehicle {
			s.region.Accumulate(vehicle, s.observer)
		}
	case hasVehicle && hasHome:
		s.region.Accumulate(vehicle, home)
	case hasVehicle:
		s.region.Accumulate(vehicle, vehicle)
	}
}

func (s *Station) resetRegionLocked() {
	s.region.Reset()
	// Forget the last positions so the next frame re-seeds the region.
	s.lastVehicle, s.lastHome = geo.Coordinate{}, geo.Coordinate{}
}

// commitLocked builds a snapshot from the current state, publishes it and
// returns it. Callers hold s.mu.
func (s *Station) commitLocked() *Snapshot {
	s.seq++
	snap := &Snapshot{
		Seq:         s.seq,
		Created:     s.clock.Now(),
		Sessions:    s.sessions.Load(),
		Series:      s.store.View(),
		Track:       s.track.Points(),
		AutoFraming: s.autoFraming.IsSet(),
		Link:        s.session.State(),
		LinkSummary: s.session.Summary(),
		Observer:    s.observer,
	}
	snap.Region, snap.RegionSet = s.region.Current()
	if s.last != nil {
		sample := *s.last
		snap.Sample = &sample
		snap.Arming = sample.Arming()
		snap.Subsystems = sample.Subsystems()
		snap.FlightMode = sample.FlightModeText()
		snap.Sticks = sample.Sticks()
		snap.Vehicle = sample.Position()
		snap.Home = sample.Home()
	}

	s.latest.Store(snap)
	s.publish(snap)
	return snap
}

// Snapshot returns the latest committed snapshot. It is never nil.
func (s *Station) Snapshot() *Snapshot {
	return s.latest.Load()
}

// ResetAccumulatedBounds clears the bounding region. The next frame with a
// position starts a new one.
func (s *Station) ResetAccumulatedBounds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetRegionLocked()
	s.commitLocked()
}

// SetAutoFraming enables or disables region accumulation. Changing the
// value also resets the region.
func (s *Station) SetAutoFraming(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.autoFraming.SetToIf(!enabled, enabled) {
		return
	}
	s.resetRegionLocked()
	s.commitLocked()
}

// AutoFraming reports whether region accumulation is enabled.
func (s *Station) AutoFraming() bool { return s.autoFraming.IsSet() }

// SetObserver sets the ground observer position used for auto-framing. A
// zero coordinate clears it.
func (s *Station) SetObserver(c geo.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = c
	s.lastVehicle, s.lastHome = geo.Coordinate{}, geo.Coordinate{}
	s.commitLocked()
}

// Stats returns frame counters.
func (s *Station) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Sessions: s.sessions.Load(),
	}
}
