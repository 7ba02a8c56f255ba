package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/network"
	"github.com/banshee-data/basestation/internal/region"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/serialmux"
	"github.com/banshee-data/basestation/internal/timeutil"
	"github.com/banshee-data/basestation/internal/track"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyDefaults(t *testing.T) {
	cfg := Empty()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SourceDev, cfg.GetSource())
	assert.Equal(t, frame.LayoutV2, cfg.GetLayout())
	assert.Equal(t, "mps", cfg.GetUnits())
	assert.Equal(t, ":8080", cfg.GetListen())
	assert.Equal(t, series.DefaultWindow, cfg.GetWindowLength())
	assert.Equal(t, 100*time.Millisecond, cfg.GetStreamInterval())
	assert.Equal(t, track.DefaultMinDistance, cfg.GetTrackMinDistance())
	assert.Equal(t, region.DefaultPadding, cfg.GetRegionPadding())
	assert.True(t, cfg.GetAutoFraming())
	assert.False(t, cfg.GetResetRegionOnRestart())
	assert.True(t, cfg.GetObserver().IsZero())
	assert.Equal(t, ":14560", cfg.GetUDPAddress())
	assert.Equal(t, time.Minute, cfg.GetUDPLogInterval())
	assert.Equal(t, serialmux.DefaultBaudRate, cfg.GetSerialOptions().BaudRate)
	assert.Equal(t, network.DefaultUDPPort, cfg.GetReplayConfig(nil).Port)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "basestation.json", `{
		"source": "serial",
		"layout": "v1",
		"units": "kph",
		"window_length": "10s",
		"track_min_distance": 5,
		"auto_framing": false,
		"observer": {"latitude": 51.5, "longitude": -0.12},
		"serial": {"port": "/dev/ttyUSB0", "options": {"baud_rate": 57600}}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceSerial, cfg.GetSource())
	assert.Equal(t, frame.LayoutV1, cfg.GetLayout())
	assert.Equal(t, "kph", cfg.GetUnits())
	assert.Equal(t, 10*time.Second, cfg.GetWindowLength())
	assert.Equal(t, 5.0, cfg.GetTrackMinDistance())
	assert.False(t, cfg.GetAutoFraming())
	assert.Equal(t, geo.Coordinate{Latitude: 51.5, Longitude: -0.12}, cfg.GetObserver())
	assert.Equal(t, "/dev/ttyUSB0", cfg.GetSerialPort())
	assert.Equal(t, serialmux.PortOptions{BaudRate: 57600, DataBits: 8, StopBits: 1, Parity: "N"}, cfg.GetSerialOptions())
}

func TestLoad_YAML(t *testing.T) {
	for _, name := range []string{"basestation.yaml", "basestation.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, strings.Join([]string{
				"source: pcap",
				"region_padding: 1.5",
				"reset_region_on_restart: true",
				"observer:",
				"  latitude: 47.25",
				"  longitude: 8.5",
				"pcap:",
				"  path: flight.pcap",
				"  port: 14550",
				"  realtime: true",
				"  speed: 4",
				"udp:",
				"  log_interval: 30s",
			}, "\n"))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, SourcePCAP, cfg.GetSource())
			assert.Equal(t, 1.5, cfg.GetRegionPadding())
			assert.True(t, cfg.GetResetRegionOnRestart())
			assert.Equal(t, geo.Coordinate{Latitude: 47.25, Longitude: 8.5}, cfg.GetObserver())
			assert.Equal(t, "flight.pcap", cfg.GetPCAPPath())
			assert.Equal(t, 30*time.Second, cfg.GetUDPLogInterval())

			clock := timeutil.NewMockClock(time.Time{})
			rc := cfg.GetReplayConfig(clock)
			assert.Equal(t, 14550, rc.Port)
			assert.True(t, rc.Realtime)
			assert.Equal(t, 4.0, rc.Speed)
			assert.Same(t, clock, rc.Clock)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name, file, content, wantErr string
	}{
		{"extension", "config.toml", "", "extension"},
		{"bad json", "config.json", "{", "failed to parse"},
		{"bad yaml", "config.yaml", "source: [", "failed to parse"},
		{"invalid value", "config.json", `{"units": "furlongs"}`, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"unknown source", Config{Source: ptrString("carrier-pigeon")}, "unknown source"},
		{"layout", Config{Layout: ptrString("v3")}, "layout"},
		{"units", Config{Units: ptrString("knots")}, "invalid units"},
		{"window", Config{WindowLength: ptrString("soon")}, "window_length"},
		{"negative window", Config{WindowLength: ptrString("-5s")}, "must be positive"},
		{"track distance", Config{TrackMinDistance: ptrFloat64(-1)}, "track_min_distance"},
		{"padding", Config{RegionPadding: ptrFloat64(-0.1)}, "region_padding"},
		{"link history", Config{LinkHistory: ptrInt(0)}, "link_history"},
		{"observer", Config{Observer: &geo.Coordinate{Latitude: 91}}, "observer"},
		{"baud", Config{Serial: &SerialConfig{Options: serialmux.PortOptions{BaudRate: 1234}}}, "serial"},
		{"serial needs port", Config{Source: ptrString(SourceSerial)}, "serial.port"},
		{"pcap needs path", Config{Source: ptrString(SourcePCAP)}, "pcap.path"},
		{"pcap port", Config{PCAP: &PCAPConfig{Port: ptrInt(70000)}}, "pcap.port"},
		{"pcap speed", Config{PCAP: &PCAPConfig{Speed: ptrFloat64(0)}}, "pcap.speed"},
		{"udp interval", Config{UDP: &UDPConfig{LogInterval: ptrString("x")}}, "udp.log_interval"},
		{"ok", Config{Source: ptrString(SourceUDP), AutoFraming: ptrBool(true)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStationConfig(t *testing.T) {
	cfg := &Config{
		Layout:               ptrString("v1"),
		WindowLength:         ptrString("45s"),
		TrackMinDistance:     ptrFloat64(3),
		RegionPadding:        ptrFloat64(0.8),
		LinkHistory:          ptrInt(16),
		AutoFraming:          ptrBool(false),
		ResetRegionOnRestart: ptrBool(true),
		Observer:             &geo.Coordinate{Latitude: 1, Longitude: 2},
	}
	clock := timeutil.NewMockClock(time.Time{})
	sc := cfg.StationConfig(clock)

	assert.Equal(t, frame.LayoutV1, sc.Layout)
	assert.Equal(t, 45*time.Second, sc.Window)
	assert.Equal(t, 3.0, sc.TrackMinDistance)
	assert.Equal(t, 0.8, sc.RegionPadding)
	assert.Equal(t, 16, sc.LinkHistory)
	assert.False(t, sc.AutoFraming)
	assert.True(t, sc.ResetRegionOnRestart)
	assert.Equal(t, geo.Coordinate{Latitude: 1, Longitude: 2}, sc.Observer)
	assert.Same(t, clock, sc.Clock)
}
