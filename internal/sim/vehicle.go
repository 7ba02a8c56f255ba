// Package sim produces deterministic telemetry from a simulated vehicle
// flying a figure-eight around a home position. It backs the dev mode and
// tests that need realistic frames.
package sim

import (
	"math"
	"time"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/timeutil"
)

const metresPerDegree = 111195.0

// Vehicle describes the simulated flight. Zero fields take defaults.
type Vehicle struct {
	Home      geo.Coordinate
	RadiusM   float64       // half-width of the figure-eight, default 150 m
	AltitudeM float64       // mean altitude, default 60 m
	Period    time.Duration // one lap, default 90 s
	Battery   uint8         // starting battery percent, default 100
	// Endurance is the time to drain the battery to zero, default 20 min.
	Endurance time.Duration
}

func (v Vehicle) withDefaults() Vehicle {
	if v.Home.IsZero() {
		v.Home = geo.Coordinate{Latitude: 51.4700, Longitude: -0.4543}
	}
	if v.RadiusM <= 0 {
		v.RadiusM = 150
	}
	if v.AltitudeM <= 0 {
		v.AltitudeM = 60
	}
	if v.Period <= 0 {
		v.Period = 90 * time.Second
	}
	if v.Battery == 0 {
		v.Battery = 100
	}
	if v.Endurance <= 0 {
		v.Endurance = 20 * time.Minute
	}
	return v
}

// Sample returns the vehicle state at onTime after power-on.
func (v Vehicle) Sample(onTime time.Duration) frame.Sample {
	v = v.withDefaults()

	phase := float64(onTime%v.Period) / float64(v.Period)
	w := 2 * math.Pi * phase

	// x east, y north, in metres from home
	x := v.RadiusM * math.Sin(w)
	y := 0.5 * v.RadiusM * math.Sin(2*w)

	// velocity in m/s, derivative of the path above
	omega := 2 * math.Pi / v.Period.Seconds()
	vx := v.RadiusM * omega * math.Cos(w)
	vy := v.RadiusM * omega * math.Cos(2*w)
	speed := math.Hypot(vx, vy)
	course := math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)

	lat := v.Home.Latitude + y/metresPerDegree
	lon := v.Home.Longitude + x/(metresPerDegree*math.Cos(v.Home.Latitude*math.Pi/180))
	pos := geo.Coordinate{Latitude: lat, Longitude: lon}

	alt := v.AltitudeM + 5*math.Sin(w/2)
	climb := 5 * (omega / 2) * math.Cos(w/2)

	drained := float64(v.Battery) * onTime.Seconds() / v.Endurance.Seconds()
	battery := math.Max(0, float64(v.Battery)-drained)

	bank := math.Atan2(speed*speed, 9.81*v.RadiusM) * 180 / math.Pi
	if math.Cos(w) < 0 {
		bank = -bank
	}

	fromHome := math.Atan2(-x, -y)*180/math.Pi + 360

	dist := geo.DistanceMeters(v.Home, pos)

	return frame.Sample{
		OnTime:          uint32(onTime / time.Millisecond),
		ArmingFlags:     1 << frame.ArmingArmedBit,
		Status:          1<<frame.StatusGPSBit | 1<<frame.StatusBarometerBit | 1<<frame.StatusCompassBit | 1<<frame.StatusAccelerometerBit | 1<<frame.StatusGyroscopeBit,
		BatteryPercent:  uint8(math.Round(battery)),
		HomeDistance:    uint16(math.Round(dist)),
		HomeDirection:   int16(math.Mod(fromHome, 360)),
		GPSFixType:      3,
		GPSSatellites:   14,
		Roll:            int16(math.Round(bank * 10)),
		Pitch:           int16(math.Round(-climb * 10)),
		Yaw:             int16(math.Round(course)),
		AccX:            int16(math.Round(-vy * omega / 9.81 * frame.AccelScale)),
		AccY:            int16(math.Round(vx * omega / 9.81 * frame.AccelScale)),
		AccZ:            int16(frame.AccelScale),
		GyroX:           int16(math.Round(bank)),
		GyroY:           0,
		GyroZ:           int16(math.Round(omega * 180 / math.Pi)),
		MagX:            int16(math.Round(200 * math.Cos(course*math.Pi/180))),
		MagY:            int16(math.Round(-200 * math.Sin(course*math.Pi/180))),
		MagZ:            400,
		GPSLatitude:     int32(math.Round(lat * frame.CoordinateScale)),
		GPSLongitude:    int32(math.Round(lon * frame.CoordinateScale)),
		GPSCourse:       int16(math.Round(course)),
		GPSSpeed:        int16(math.Round(speed)),
		GPSAltitude:     int16(math.Round(alt)),
		BaroAltitude:    int32(math.Round(alt - 1)),
		NavZPosition:    int32(math.Round(alt)),
		NavZVelocity:    int16(math.Round(climb * 100)),
		RxRoll:          int16(1500 + math.Round(bank*5)),
		RxPitch:         1500,
		RxYaw:           1500,
		RxThrottle:      1600,
		ThrottlePercent: 60,
		RSSI:            rssi(-60, dist/20),
		HomeLatitude:    int32(math.Round(v.Home.Latitude * frame.CoordinateScale)),
		HomeLongitude:   int32(math.Round(v.Home.Longitude * frame.CoordinateScale)),
		FlightMode:      114, // ARMED ANGLE HEADING HOLD
		RSSISecondary:   rssi(-70, dist/15),
	}
}

// rssi returns base dBm less loss, clamped to the int8 range.
func rssi(base, loss float64) int8 {
	return int8(math.Max(-127, math.Min(0, math.Round(base-loss))))
}

// Generator turns a Vehicle into a stream of encoded frames timed by a
// clock.
type Generator struct {
	vehicle Vehicle
	layout  frame.Layout
	clock   timeutil.Clock
	start   time.Time

	// RestartEvery simulates a vehicle power cycle: on-time wraps back to
	// zero each interval. Zero disables restarts.
	RestartEvery time.Duration
}

// NewGenerator returns a generator whose on-time starts now.
func NewGenerator(v Vehicle, layout frame.Layout, clock timeutil.Clock) *Generator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Generator{vehicle: v, layout: layout, clock: clock, start: clock.Now()}
}

// OnTime returns the simulated time since power-on.
func (g *Generator) OnTime() time.Duration {
	elapsed := g.clock.Since(g.start)
	if g.RestartEvery > 0 {
		elapsed %= g.RestartEvery
	}
	return elapsed
}

// Sample returns the current vehicle state.
func (g *Generator) Sample() frame.Sample {
	s := g.vehicle.Sample(g.OnTime())
	s.Layout = g.layout
	return s
}

// Next returns the current state encoded in the generator's layout.
func (g *Generator) Next() []byte {
	b, err := frame.Encode(g.Sample(), g.layout)
	if err != nil {
		return nil
	}
	return b
}
