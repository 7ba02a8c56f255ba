// Package api serves the station's committed snapshots over HTTP as JSON and
// as a server-sent event stream, and exposes the region controls.
package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/ratelimit"
	"tailscale.com/tsweb"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/httputil"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/station"
	"github.com/banshee-data/basestation/internal/units"
	"github.com/banshee-data/basestation/internal/version"
)

// DefaultStreamInterval is the minimum gap between two stream events.
const DefaultStreamInterval = 100 * time.Millisecond

// Station is the part of *station.Station the API depends on.
type Station interface {
	Layout() frame.Layout
	Snapshot() *station.Snapshot
	Subscribe() (int, <-chan *station.Snapshot)
	Unsubscribe(id int)
	Stats() station.Stats
	ResetAccumulatedBounds()
	SetAutoFraming(enabled bool)
}

// Server serves the station's HTTP API over a Station.
type Server struct {
	station Station
	units   string

	// StreamInterval paces /api/stream. Zero selects DefaultStreamInterval.
	StreamInterval time.Duration
}

// NewServer returns a Server reporting speeds in unitName. An unknown unit
// falls back to metres per second.
func NewServer(st Station, unitName string) *Server {
	if !units.IsValid(unitName) {
		unitName = units.MPS
	}
	return &Server{station: st, units: unitName}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshot", s.showSnapshot)
	mux.HandleFunc("/api/series", s.showSeries)
	mux.HandleFunc("/api/domain", s.showDomain)
	mux.HandleFunc("/api/track", s.showTrack)
	mux.HandleFunc("/api/region", s.showRegion)
	mux.HandleFunc("/api/region/reset", s.resetRegion)
	mux.HandleFunc("/api/region/autoframe", s.setAutoFraming)
	mux.HandleFunc("/api/link", s.showLink)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/stream", s.stream)
	return mux
}

// AttachAdminRoutes registers the station debug page on mux.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("station", "station frame counters", func(w http.ResponseWriter, r *http.Request) {
		snap := s.station.Snapshot()
		httputil.WriteJSONOK(w, map[string]interface{}{
			"layout":       s.station.Layout().String(),
			"frames":       s.station.Stats(),
			"seq":          snap.Seq,
			"link":         snap.Link,
			"link_summary": snap.LinkSummary,
		})
	})
}

// unitsFor returns the request's ?units= override or the server default.
func (s *Server) unitsFor(r *http.Request) (string, bool) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, true
	}
	return u, units.IsValid(u)
}

func (s *Server) requestUnits(w http.ResponseWriter, r *http.Request) (string, bool) {
	u, ok := s.unitsFor(r)
	if !ok {
		httputil.BadRequest(w, "invalid units: must be one of "+units.ValidUnitsString())
	}
	return u, ok
}

func (s *Server) showSnapshot(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	u, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	snap := s.station.Snapshot()
	httputil.WriteJSONOK(w, snapshotResponse{
		liveResponse: newLive(snap, u),
		Domain:       snap.Series.Domain,
		Track:        snap.Track,
	})
}

func (s *Server) showSeries(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	u, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	snap := s.station.Snapshot()
	view := snap.Series
	resp := seriesResponse{Seq: snap.Seq, Units: u, Domain: view.Domain}

	if name := r.URL.Query().Get("channel"); name != "" {
		if !view.Has(name) {
			httputil.NotFound(w, "unknown channel: "+name)
			return
		}
		resp.Channel = name
		resp.Points = convertPoints(name, view.Values(name), u)
		if resp.Points == nil {
			resp.Points = []series.Point{}
		}
		httputil.WriteJSONOK(w, resp)
		return
	}

	resp.All = make(map[string][]series.Point)
	for _, name := range view.Names() {
		resp.All[name] = convertPoints(name, view.Values(name), u)
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showDomain(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.station.Snapshot().Series.Domain)
}

func (s *Server) showTrack(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.station.Snapshot()
	httputil.WriteJSONOK(w, trackResponse{Seq: snap.Seq, Count: len(snap.Track), Points: snap.Track})
}

func (s *Server) showRegion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, newRegion(s.station.Snapshot()))
}

func (s *Server) resetRegion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	s.station.ResetAccumulatedBounds()
	httputil.WriteJSONOK(w, newRegion(s.station.Snapshot()))
}

func (s *Server) setAutoFraming(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	enabled, err := strconv.ParseBool(r.FormValue("enabled"))
	if err != nil {
		httputil.BadRequest(w, "invalid 'enabled' parameter")
		return
	}
	s.station.SetAutoFraming(enabled)
	httputil.WriteJSONOK(w, newRegion(s.station.Snapshot()))
}

func (s *Server) showLink(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.station.Snapshot()
	httputil.WriteJSONOK(w, linkResponse{
		Seq:     snap.Seq,
		State:   snap.Link,
		Summary: snap.LinkSummary,
		Frames:  s.station.Stats(),
	})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, newStatus(s.station.Snapshot()))
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":  s.units,
		"layout": s.station.Layout().String(),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}

// stream sends the latest snapshot as a "snapshot" event whenever a new one
// is committed, at most once per StreamInterval. Snapshots committed in
// between are skipped; the client always receives the newest.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	u, ok := s.requestUnits(w, r)
	if !ok {
		return
	}
	events, err := httputil.NewEventStream(w)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	id, ch := s.station.Subscribe()
	defer s.station.Unsubscribe(id)

	interval := s.StreamInterval
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	rl := ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack)

	ctx := r.Context()
	for {
		rl.Take()
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := events.Send("snapshot", newLive(snap, u)); err != nil {
				return
			}
		}
	}
}
