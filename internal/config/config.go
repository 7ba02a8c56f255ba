// Package config loads the base station configuration file. Every field is
// optional: Get* accessors supply the default for anything left unset, so
// partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/network"
	"github.com/banshee-data/basestation/internal/region"
	"github.com/banshee-data/basestation/internal/serialmux"
	"github.com/banshee-data/basestation/internal/series"
	"github.com/banshee-data/basestation/internal/session"
	"github.com/banshee-data/basestation/internal/station"
	"github.com/banshee-data/basestation/internal/timeutil"
	"github.com/banshee-data/basestation/internal/track"
	"github.com/banshee-data/basestation/internal/units"
)

// Frame sources.
const (
	SourceSerial = "serial"
	SourceUDP    = "udp"
	SourcePCAP   = "pcap"
	SourceBLE    = "ble"
	SourceDev    = "dev"
	SourceNone   = "none"
)

// Sources lists the accepted source values.
var Sources = []string{SourceSerial, SourceUDP, SourcePCAP, SourceBLE, SourceDev, SourceNone}

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration. Durations are strings like "30s".
type Config struct {
	Source *string `json:"source,omitempty" yaml:"source,omitempty"`
	Layout *string `json:"layout,omitempty" yaml:"layout,omitempty"`
	Units  *string `json:"units,omitempty" yaml:"units,omitempty"`
	Listen *string `json:"listen,omitempty" yaml:"listen,omitempty"`

	WindowLength         *string  `json:"window_length,omitempty" yaml:"window_length,omitempty"`
	TrackMinDistance     *float64 `json:"track_min_distance,omitempty" yaml:"track_min_distance,omitempty"`
	RegionPadding        *float64 `json:"region_padding,omitempty" yaml:"region_padding,omitempty"`
	LinkHistory          *int     `json:"link_history,omitempty" yaml:"link_history,omitempty"`
	AutoFraming          *bool    `json:"auto_framing,omitempty" yaml:"auto_framing,omitempty"`
	ResetRegionOnRestart *bool    `json:"reset_region_on_restart,omitempty" yaml:"reset_region_on_restart,omitempty"`
	StreamInterval       *string  `json:"stream_interval,omitempty" yaml:"stream_interval,omitempty"`

	Observer *geo.Coordinate `json:"observer,omitempty" yaml:"observer,omitempty"`

	Serial *SerialConfig `json:"serial,omitempty" yaml:"serial,omitempty"`
	UDP    *UDPConfig    `json:"udp,omitempty" yaml:"udp,omitempty"`
	PCAP   *PCAPConfig   `json:"pcap,omitempty" yaml:"pcap,omitempty"`
}

// SerialConfig selects the serial telemetry radio.
type SerialConfig struct {
	Port    *string               `json:"port,omitempty" yaml:"port,omitempty"`
	Options serialmux.PortOptions `json:"options" yaml:"options"`
}

// UDPConfig configures the datagram listener.
type UDPConfig struct {
	Address     *string `json:"address,omitempty" yaml:"address,omitempty"`
	RcvBuf      *int    `json:"rcvbuf,omitempty" yaml:"rcvbuf,omitempty"`
	LogInterval *string `json:"log_interval,omitempty" yaml:"log_interval,omitempty"`
}

// PCAPConfig configures capture replay.
type PCAPConfig struct {
	Path     *string  `json:"path,omitempty" yaml:"path,omitempty"`
	Port     *int     `json:"port,omitempty" yaml:"port,omitempty"`
	Realtime *bool    `json:"realtime,omitempty" yaml:"realtime,omitempty"`
	Speed    *float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a .json, .yaml or .yml file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, *v)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Source != nil && !slices.Contains(Sources, *c.Source) {
		return fmt.Errorf("unknown source %q: expected one of %v", *c.Source, Sources)
	}
	if c.Layout != nil {
		if _, err := frame.ParseLayout(*c.Layout); err != nil {
			return err
		}
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q: must be one of %s", *c.Units, units.ValidUnitsString())
	}

	if err := validDuration("window_length", c.WindowLength); err != nil {
		return err
	}
	if err := validDuration("stream_interval", c.StreamInterval); err != nil {
		return err
	}
	if c.TrackMinDistance != nil && *c.TrackMinDistance < 0 {
		return fmt.Errorf("track_min_distance must be non-negative, got %f", *c.TrackMinDistance)
	}
	if c.RegionPadding != nil && *c.RegionPadding < 0 {
		return fmt.Errorf("region_padding must be non-negative, got %f", *c.RegionPadding)
	}
	if c.LinkHistory != nil && *c.LinkHistory < 1 {
		return fmt.Errorf("link_history must be at least 1, got %d", *c.LinkHistory)
	}
	if o := c.Observer; o != nil {
		if o.Latitude < -90 || o.Latitude > 90 || o.Longitude < -180 || o.Longitude > 180 {
			return fmt.Errorf("observer out of range: %f,%f", o.Latitude, o.Longitude)
		}
	}

	if c.Serial != nil {
		if _, err := c.Serial.Options.Normalise(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	if c.UDP != nil {
		if err := validDuration("udp.log_interval", c.UDP.LogInterval); err != nil {
			return err
		}
		if c.UDP.RcvBuf != nil && *c.UDP.RcvBuf < 0 {
			return fmt.Errorf("udp.rcvbuf must be non-negative, got %d", *c.UDP.RcvBuf)
		}
	}
	if c.PCAP != nil {
		if c.PCAP.Port != nil && (*c.PCAP.Port < 1 || *c.PCAP.Port > 65535) {
			return fmt.Errorf("pcap.port out of range: %d", *c.PCAP.Port)
		}
		if c.PCAP.Speed != nil && *c.PCAP.Speed <= 0 {
			return fmt.Errorf("pcap.speed must be positive, got %f", *c.PCAP.Speed)
		}
	}

	switch c.GetSource() {
	case SourceSerial:
		if c.GetSerialPort() == "" {
			return fmt.Errorf("source %q requires serial.port", SourceSerial)
		}
	case SourcePCAP:
		if c.GetPCAPPath() == "" {
			return fmt.Errorf("source %q requires pcap.path", SourcePCAP)
		}
	}
	return nil
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetSource returns the frame source or "dev".
func (c *Config) GetSource() string {
	if c.Source == nil {
		return SourceDev
	}
	return *c.Source
}

// GetLayout returns the frame layout or v2. Validate rejects bad values.
func (c *Config) GetLayout() frame.Layout {
	if c.Layout == nil {
		return frame.LayoutV2
	}
	l, err := frame.ParseLayout(*c.Layout)
	if err != nil {
		return frame.LayoutV2
	}
	return l
}

// GetUnits returns the speed units or "mps".
func (c *Config) GetUnits() string {
	if c.Units == nil {
		return units.MPS
	}
	return *c.Units
}

// GetListen returns the HTTP listen address or ":8080".
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetWindowLength returns the series window or series.DefaultWindow.
func (c *Config) GetWindowLength() time.Duration {
	return getDuration(c.WindowLength, series.DefaultWindow)
}

// GetStreamInterval returns the event stream pacing interval or 100ms.
func (c *Config) GetStreamInterval() time.Duration {
	return getDuration(c.StreamInterval, 100*time.Millisecond)
}

// GetTrackMinDistance returns the track spacing in metres.
func (c *Config) GetTrackMinDistance() float64 {
	if c.TrackMinDistance == nil {
		return track.DefaultMinDistance
	}
	return *c.TrackMinDistance
}

// GetRegionPadding returns the region padding in map units.
func (c *Config) GetRegionPadding() float64 {
	if c.RegionPadding == nil {
		return region.DefaultPadding
	}
	return *c.RegionPadding
}

// GetLinkHistory returns the number of updates kept for link statistics.
func (c *Config) GetLinkHistory() int {
	if c.LinkHistory == nil {
		return session.DefaultLinkHistory
	}
	return *c.LinkHistory
}

// GetAutoFraming returns whether auto-framing starts enabled (default true).
func (c *Config) GetAutoFraming() bool {
	if c.AutoFraming == nil {
		return true
	}
	return *c.AutoFraming
}

// GetResetRegionOnRestart returns whether a vehicle restart clears the
// region (default false).
func (c *Config) GetResetRegionOnRestart() bool {
	if c.ResetRegionOnRestart == nil {
		return false
	}
	return *c.ResetRegionOnRestart
}

// GetObserver returns the observer position, zero when unset.
func (c *Config) GetObserver() geo.Coordinate {
	if c.Observer == nil {
		return geo.Coordinate{}
	}
	return *c.Observer
}

// GetSerialPort returns the serial device path, empty when unset.
func (c *Config) GetSerialPort() string {
	if c.Serial == nil || c.Serial.Port == nil {
		return ""
	}
	return *c.Serial.Port
}

// GetSerialOptions returns the normalised serial options. Validate has
// already rejected bad values, so errors fall back to the defaults.
func (c *Config) GetSerialOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = c.Serial.Options
	}
	n, err := opts.Normalise()
	if err != nil {
		n, _ = serialmux.PortOptions{}.Normalise()
	}
	return n
}

// GetUDPAddress returns the UDP listen address.
func (c *Config) GetUDPAddress() string {
	if c.UDP == nil || c.UDP.Address == nil || *c.UDP.Address == "" {
		return fmt.Sprintf(":%d", network.DefaultUDPPort)
	}
	return *c.UDP.Address
}

// GetUDPRcvBuf returns the requested socket receive buffer, 0 for the OS
// default.
func (c *Config) GetUDPRcvBuf() int {
	if c.UDP == nil || c.UDP.RcvBuf == nil {
		return 0
	}
	return *c.UDP.RcvBuf
}

// GetUDPLogInterval returns how often packet stats are logged.
func (c *Config) GetUDPLogInterval() time.Duration {
	if c.UDP == nil {
		return time.Minute
	}
	return getDuration(c.UDP.LogInterval, time.Minute)
}

// GetPCAPPath returns the capture file to replay, empty when unset.
func (c *Config) GetPCAPPath() string {
	if c.PCAP == nil || c.PCAP.Path == nil {
		return ""
	}
	return *c.PCAP.Path
}

// GetReplayConfig returns replay settings for the capture.
func (c *Config) GetReplayConfig(clock timeutil.Clock) network.ReplayConfig {
	rc := network.ReplayConfig{Port: network.DefaultUDPPort, Speed: 1, Clock: clock}
	if c.PCAP == nil {
		return rc
	}
	if c.PCAP.Port != nil {
		rc.Port = *c.PCAP.Port
	}
	if c.PCAP.Realtime != nil {
		rc.Realtime = *c.PCAP.Realtime
	}
	if c.PCAP.Speed != nil {
		rc.Speed = *c.PCAP.Speed
	}
	return rc
}

// StationConfig builds the station configuration.
func (c *Config) StationConfig(clock timeutil.Clock) station.Config {
	sc := station.DefaultConfig(c.GetLayout())
	sc.Window = c.GetWindowLength()
	sc.TrackMinDistance = c.GetTrackMinDistance()
	sc.RegionPadding = c.GetRegionPadding()
	sc.LinkHistory = c.GetLinkHistory()
	sc.Observer = c.GetObserver()
	sc.AutoFraming = c.GetAutoFraming()
	sc.ResetRegionOnRestart = c.GetResetRegionOnRestart()
	sc.Clock = clock
	return sc
}
