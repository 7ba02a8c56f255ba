// Package frame decodes the fixed-length binary telemetry frames sent by the
// vehicle into immutable Samples, and interprets their bitfields.
//
// Decoding is table driven: each Layout is an ordered list of fixed-width
// integer fields and the required frame length is the sum of their widths.
// Values are kept exactly as transmitted; scaled units are exposed through
// methods so that the raw integers stay available for display and tests.
package frame

import (
	"time"

	"github.com/banshee-data/basestation/internal/geo"
)

const (
	// CoordinateScale converts raw GPS integers to decimal degrees.
	CoordinateScale = 1e7
	// AccelScale converts raw accelerometer counts to g.
	AccelScale = 512.0
	// StickCenter and StickRange normalise receiver channel values
	// (1000..2000 µs) to 0..1.
	StickCenter = 1000.0
	StickRange  = 1000.0
)

// Sample is one decoded telemetry frame. Fields absent from the frame's
// Layout are zero.
type Sample struct {
	Layout Layout `json:"layout"`

	OnTime         uint32 `json:"on_time_ms"` // milliseconds since vehicle power-on
	ArmingFlags    uint16 `json:"arming_flags"`
	Status         uint8  `json:"status"`
	BatteryPercent uint8  `json:"battery_percent"`
	HomeDistance   uint16 `json:"home_distance_m"`
	HomeDirection  int16  `json:"home_direction_deg"`

	GPSFixType    uint8 `json:"gps_fix_type"`
	GPSSatellites uint8 `json:"gps_satellites"`

	NavMode           uint8 `json:"nav_mode"`
	NavState          uint8 `json:"nav_state"`
	NavWaypointAction uint8 `json:"nav_wp_action"`
	NavWaypointNumber uint8 `json:"nav_wp_number"`
	NavHeadingTarget  int16 `json:"nav_heading_target"`

	Roll  int16 `json:"roll"`
	Pitch int16 `json:"pitch"`
	Yaw   int16 `json:"yaw"`

	AccX  int16 `json:"acc_x"`
	AccY  int16 `json:"acc_y"`
	AccZ  int16 `json:"acc_z"`
	GyroX int16 `json:"gyro_x"`
	GyroY int16 `json:"gyro_y"`
	GyroZ int16 `json:"gyro_z"`
	MagX  int16 `json:"mag_x"`
	MagY  int16 `json:"mag_y"`
	MagZ  int16 `json:"mag_z"`

	GPSLatitude  int32 `json:"gps_latitude"`  // degrees * 1e7
	GPSLongitude int32 `json:"gps_longitude"` // degrees * 1e7
	GPSCourse    int16 `json:"gps_course"`
	GPSSpeed     int16 `json:"gps_speed_mps"`
	GPSAltitude  int16 `json:"gps_altitude_m"`

	BaroAltitude int32 `json:"baro_altitude_m"`
	NavZPosition int32 `json:"nav_z_position"`
	NavZVelocity int16 `json:"nav_z_velocity"`

	RxRoll     int16 `json:"rx_roll"`
	RxPitch    int16 `json:"rx_pitch"`
	RxYaw      int16 `json:"rx_yaw"`
	RxThrottle int16 `json:"rx_throttle"`

	ThrottlePercent int8 `json:"throttle_percent"`
	RSSI            int8 `json:"rssi"`

	HomeLatitude  int32 `json:"home_latitude"`  // degrees * 1e7
	HomeLongitude int32 `json:"home_longitude"` // degrees * 1e7
	FlightMode    uint16 `json:"flight_mode"`
	RSSISecondary int8   `json:"rssi_secondary"`
}

// OnTimeDuration returns the on-time as a duration.
func (s Sample) OnTimeDuration() time.Duration {
	return time.Duration(s.OnTime) * time.Millisecond
}

// Latitude returns the GPS latitude in degrees.
func (s Sample) Latitude() float64 { return float64(s.GPSLatitude) / CoordinateScale }

// Longitude returns the GPS longitude in degrees.
func (s Sample) Longitude() float64 { return float64(s.GPSLongitude) / CoordinateScale }

// Position returns the vehicle GPS position. A zero coordinate means no fix.
func (s Sample) Position() geo.Coordinate {
	return geo.Coordinate{Latitude: s.Latitude(), Longitude: s.Longitude()}
}

// Home returns the home position, zero when the layout does not carry it or
// home has not been set.
func (s Sample) Home() geo.Coordinate {
	return geo.Coordinate{
		Latitude:  float64(s.HomeLatitude) / CoordinateScale,
		Longitude: float64(s.HomeLongitude) / CoordinateScale,
	}
}

// Accel returns the accelerometer triple in g.
func (s Sample) Accel() (x, y, z float64) {
	return float64(s.AccX) / AccelScale, float64(s.AccY) / AccelScale, float64(s.AccZ) / AccelScale
}

// Sticks holds receiver channels normalised to 0..1 (0.5 is centred).
type Sticks struct {
	Throttle float64 `json:"throttle"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	Roll     float64 `json:"roll"`
}

// Sticks returns the normalised receiver stick positions.
func (s Sample) Sticks() Sticks {
	norm := func(v int16) float64 { return (float64(v) - StickCenter) / StickRange }
	return Sticks{
		Throttle: norm(s.RxThrottle),
		Yaw:      norm(s.RxYaw),
		Pitch:    norm(s.RxPitch),
		Roll:     norm(s.RxRoll),
	}
}
