package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/monitoring"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/station"
	"github.com/banshee-data/basestation/internal/testutil"
	"github.com/banshee-data/basestation/internal/timeutil"
	"github.com/banshee-data/basestation/internal/units"
)

func init() {
	monitoring.SetLogger(nil)
}

func setupTestServer(t *testing.T, unitName string) (*Server, *station.Station, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(testutil.Epoch)
	cfg := station.DefaultConfig(frame.LayoutV2)
	cfg.Clock = clock
	st, err := station.New(cfg)
	require.NoError(t, err)
	return NewServer(st, unitName), st, clock
}

func sampleAt(ms uint32, lat, lon float64, speed int16) frame.Sample {
	s := testutil.Sample(ms, lat, lon)
	s.GPSSpeed = speed
	return s
}

func get(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestNewServer_InvalidUnitsFallBack(t *testing.T) {
	s, _, _ := setupTestServer(t, "furlongs")
	assert.Equal(t, units.MPS, s.units)
}

func TestShowSnapshot_BeforeFirstFrame(t *testing.T) {
	s, _, _ := setupTestServer(t, units.MPS)

	rec := get(t, s, http.MethodGet, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[snapshotResponse](t, rec)
	assert.Nil(t, resp.Sample)
	assert.Equal(t, uint64(1), resp.Seq)
	assert.False(t, resp.Domain.Valid)
	assert.False(t, resp.Region.Set)
	assert.Empty(t, resp.Status.Arming.Label)
}

func TestShowSnapshot_ConvertsSpeed(t *testing.T) {
	tests := []struct {
		name   string
		server string
		query  string
		want   float64
	}{
		{"server default", units.MPH, "", 22.369},
		{"request override", units.MPH, "?units=kph", 36},
		{"metres per second", units.MPS, "", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st, _ := setupTestServer(t, tt.server)
			st.Apply(sampleAt(1000, 51.47, -0.45, 10))

			rec := get(t, s, http.MethodGet, "/api/snapshot"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode[snapshotResponse](t, rec)
			require.NotNil(t, resp.Sample)
			assert.InDelta(t, tt.want, resp.Speed, 0.01)
			assert.Equal(t, int16(10), resp.Sample.GPSSpeed)
			assert.Len(t, resp.Track, 1)
		})
	}
}

func TestInvalidUnits(t *testing.T) {
	s, _, _ := setupTestServer(t, units.MPS)
	for _, path := range []string{"/api/snapshot", "/api/series", "/api/stream"} {
		rec := get(t, s, http.MethodGet, path+"?units=furlongs")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := setupTestServer(t, units.MPS)
	tests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/snapshot"},
		{http.MethodDelete, "/api/series"},
		{http.MethodPost, "/api/track"},
		{http.MethodGet, "/api/region/reset"},
		{http.MethodGet, "/api/region/autoframe"},
		{http.MethodPut, "/api/version"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := get(t, s, tt.method, tt.path)
			testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
		})
	}
}

func TestShowSeries(t *testing.T) {
	s, st, _ := setupTestServer(t, units.KPH)
	st.Apply(sampleAt(1000, 51.47, -0.45, 10))
	st.Apply(sampleAt(1100, 51.47, -0.45, 20))

	t.Run("single channel", func(t *testing.T) {
		rec := get(t, s, http.MethodGet, "/api/series?channel=speed")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[seriesResponse](t, rec)
		assert.Equal(t, series.ChannelSpeed, resp.Channel)
		require.Len(t, resp.Points, 2)
		assert.InDelta(t, 36.0, resp.Points[0].Value, 1e-9)
		assert.InDelta(t, 72.0, resp.Points[1].Value, 1e-9)
		assert.InDelta(t, 1.0, resp.Domain.From, 1e-9)
		assert.InDelta(t, 1.1, resp.Domain.To, 1e-9)
	})

	t.Run("unconverted channel", func(t *testing.T) {
		rec := get(t, s, http.MethodGet, "/api/series?channel=gyro")
		resp := decode[seriesResponse](t, rec)
		assert.Len(t, resp.Points, 6)
	})

	t.Run("all channels", func(t *testing.T) {
		rec := get(t, s, http.MethodGet, "/api/series")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[seriesResponse](t, rec)
		for _, name := range []string{series.ChannelAltitude, series.ChannelSpeed, series.ChannelRSSI} {
			assert.Contains(t, resp.All, name)
		}
		assert.InDelta(t, 36.0, resp.All[series.ChannelSpeed][0].Value, 1e-9)
	})

	t.Run("unknown channel", func(t *testing.T) {
		rec := get(t, s, http.MethodGet, "/api/series?channel=warp")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	// The committed snapshot is untouched by conversion.
	pts := st.Snapshot().Series.Values(series.ChannelSpeed)
	assert.Equal(t, 10.0, pts[0].Value)
}

func TestShowDomainAndTrack(t *testing.T) {
	s, st, _ := setupTestServer(t, units.MPS)
	st.Apply(sampleAt(5000, 51.47, -0.45, 0))
	st.Apply(sampleAt(5500, 51.4701, -0.45, 0))

	domain := decode[series.Domain](t, get(t, s, http.MethodGet, "/api/domain"))
	assert.Equal(t, series.Domain{From: 5, To: 5.5, Valid: true}, domain)

	tr := decode[trackResponse](t, get(t, s, http.MethodGet, "/api/track"))
	assert.Equal(t, 2, tr.Count)
	assert.InDelta(t, 51.4701, tr.Points[1].Latitude, 1e-7)
}

func TestRegionControls(t *testing.T) {
	s, st, _ := setupTestServer(t, units.MPS)
	st.Apply(sampleAt(1000, 51.47, -0.45, 0))

	region := decode[regionResponse](t, get(t, s, http.MethodGet, "/api/region"))
	require.True(t, region.Set)
	assert.True(t, region.AutoFraming)
	assert.InDelta(t, 51.47, region.Center.Latitude, 1e-4)
	assert.Greater(t, region.LatDelta, 0.0)

	rec := get(t, s, http.MethodPost, "/api/region/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[regionResponse](t, rec).Set)

	rec = get(t, s, http.MethodPost, "/api/region/autoframe?enabled=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, s, http.MethodPost, "/api/region/autoframe?enabled=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[regionResponse](t, rec).AutoFraming)
	assert.False(t, st.AutoFraming())

	st.Apply(sampleAt(1100, 51.48, -0.45, 0))
	assert.False(t, decode[regionResponse](t, get(t, s, http.MethodGet, "/api/region")).Set)
}

func TestShowLink(t *testing.T) {
	s, st, clock := setupTestServer(t, units.MPS)
	st.Apply(sampleAt(1000, 0, 0, 0))
	clock.Advance(100 * time.Millisecond)
	st.Apply(sampleAt(1100, 0, 0, 0))
	require.Error(t, st.HandleFrame([]byte{1, 2, 3}))

	link := decode[linkResponse](t, get(t, s, http.MethodGet, "/api/link"))
	assert.Equal(t, station.Stats{Accepted: 2, Rejected: 1, Sessions: 1}, link.Frames)
	assert.Equal(t, 100*time.Millisecond, link.State.UpdatePeriod)
	assert.InDelta(t, 10.0, link.State.UpdateFrequency, 1e-9)
}

func TestShowStatus(t *testing.T) {
	s, st, _ := setupTestServer(t, units.MPS)
	sample := sampleAt(1000, 0, 0, 0)
	sample.ArmingFlags = 1 << frame.ArmingArmedBit
	sample.Status = 1 << frame.StatusGPSBit
	sample.FlightMode = 1214
	st.Apply(sample)

	status := decode[statusResponse](t, get(t, s, http.MethodGet, "/api/status"))
	assert.Equal(t, frame.ArmingStatus{Label: "ARMED", Severity: frame.SeverityActive}, status.Arming)
	assert.True(t, status.Subsystems.GPS)
	assert.False(t, status.Subsystems.Barometer)
	assert.Equal(t, "ARMED ANGLE ALT HOLD RTH", status.FlightMode)
	assert.Equal(t, []string{"ARMED", "ANGLE", "ALT HOLD", "RTH"}, status.FlightModes)
}

func TestShowConfigAndVersion(t *testing.T) {
	s, _, _ := setupTestServer(t, units.KMPH)

	cfg := decode[map[string]string](t, get(t, s, http.MethodGet, "/api/config"))
	assert.Equal(t, map[string]string{"units": "kmph", "layout": frame.LayoutV2.String()}, cfg)

	rec := get(t, s, http.MethodGet, "/api/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec), "version")
}

// readEvent returns the data of the next "snapshot" event.
func readEvent(t *testing.T, r *bufio.Reader) liveResponse {
	t.Helper()
	sawEvent := false
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "event: snapshot":
			sawEvent = true
		case sawEvent && strings.HasPrefix(line, "data: "):
			var resp liveResponse
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp))
			return resp
		}
	}
}

func TestStream(t *testing.T) {
	s, st, _ := setupTestServer(t, units.KPH)
	s.StreamInterval = time.Millisecond
	srv := httptest.NewServer(LoggingMiddleware(s.ServeMux()))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Nil(t, first.Sample)

	st.Apply(sampleAt(1000, 51.47, -0.45, 5))
	next := readEvent(t, r)
	require.NotNil(t, next.Sample)
	assert.Equal(t, uint32(1000), next.Sample.OnTime)
	assert.InDelta(t, 18.0, next.Speed, 1e-9)
	assert.Equal(t, "kph", next.Units)
}

func TestStream_LatestWins(t *testing.T) {
	s, st, _ := setupTestServer(t, units.MPS)
	s.StreamInterval = 50 * time.Millisecond
	srv := httptest.NewServer(s.ServeMux())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	readEvent(t, r)

	// A burst of frames between two events collapses to the newest.
	for i := uint32(1); i <= 20; i++ {
		st.Apply(sampleAt(1000+i*10, 0, 0, 0))
	}
	var last liveResponse
	for last.Sample == nil || last.Sample.OnTime != 1200 {
		last = readEvent(t, r)
	}
	assert.Equal(t, uint64(21), last.Seq)
}

func TestLoggingMiddleware(t *testing.T) {
	logs := testutil.CaptureLogs(t)

	s, _, _ := setupTestServer(t, units.MPS)
	handler := LoggingMiddleware(s.ServeMux())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/series?channel=warp", nil))

	lines := logs.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], statusCodeColor(http.StatusNotFound))
	assert.Contains(t, lines[0], "/api/series?channel=warp")
}

func TestStatusCodeColor(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, colorBoldGreen + "200" + colorReset},
		{304, colorYellow + "304" + colorReset},
		{404, colorBoldRed + "404" + colorReset},
		{503, colorBoldRed + "503" + colorReset},
		{101, "101"},
	}
	for _, tt := range tests {
		if got := statusCodeColor(tt.code); got != tt.want {
			t.Errorf("statusCodeColor(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestAttachAdminRoutes(t *testing.T) {
	s, st, _ := setupTestServer(t, units.MPS)
	st.Apply(sampleAt(1000, 0, 0, 0))
	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/station", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, `{"accepted":1,"rejected":0,"sessions":1}`, string(body["frames"]))
}
