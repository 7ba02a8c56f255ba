package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/timeutil"
)

func TestVehicle_StaysNearHome(t *testing.T) {
	v := Vehicle{Home: geo.Coordinate{Latitude: 45, Longitude: -122}, RadiusM: 200, Period: time.Minute}

	for ms := 0; ms < 60000; ms += 250 {
		s := v.Sample(time.Duration(ms) * time.Millisecond)
		d := geo.DistanceMeters(v.Home, s.Position())
		if d > 200*1.01 {
			t.Fatalf("at %dms vehicle is %.1fm from home", ms, d)
		}
		if s.GPSCourse < 0 || s.GPSCourse > 360 {
			t.Fatalf("course out of range: %d", s.GPSCourse)
		}
	}
}

func TestVehicle_Deterministic(t *testing.T) {
	v := Vehicle{}
	assert.Equal(t, v.Sample(12345*time.Millisecond), v.Sample(12345*time.Millisecond))
}

func TestVehicle_DerivedStatus(t *testing.T) {
	s := Vehicle{}.Sample(time.Second)
	assert.Equal(t, "ARMED", s.Arming().Label)
	assert.Equal(t, frame.Subsystems{GPS: true, Barometer: true, Compass: true, Accelerometer: true, Gyroscope: true}, s.Subsystems())
	assert.Equal(t, "ARMED ANGLE HEADING HOLD", s.FlightModeText())
	assert.Equal(t, uint32(1000), s.OnTime)
	assert.False(t, s.Home().IsZero())
	assert.InDelta(t, 1.0, func() float64 { _, _, z := s.Accel(); return z }(), 1e-9)
}

func TestVehicle_BatteryDrains(t *testing.T) {
	v := Vehicle{Endurance: 10 * time.Minute}
	assert.Equal(t, uint8(100), v.Sample(0).BatteryPercent)
	assert.Equal(t, uint8(50), v.Sample(5*time.Minute).BatteryPercent)
	assert.Equal(t, uint8(0), v.Sample(time.Hour).BatteryPercent)
}

func TestGenerator_FramesDecode(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	for _, layout := range []frame.Layout{frame.LayoutV1, frame.LayoutV2} {
		g := NewGenerator(Vehicle{}, layout, clock)
		clock.Advance(1500 * time.Millisecond)

		data := g.Next()
		require.Len(t, data, layout.Len())
		s, err := frame.Decode(data, layout)
		require.NoError(t, err)
		assert.Equal(t, uint32(1500), s.OnTime)
		want := g.Sample()
		assert.Equal(t, layout, s.Layout)
		assert.Equal(t, want.GPSLatitude, s.GPSLatitude)
		assert.Equal(t, want.GPSLongitude, s.GPSLongitude)
		assert.Equal(t, want.BatteryPercent, s.BatteryPercent)
	}
}

func TestGenerator_RestartEvery(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGenerator(Vehicle{}, frame.LayoutV2, clock)
	g.RestartEvery = 10 * time.Second

	clock.Advance(9 * time.Second)
	before := g.Sample().OnTime
	clock.Advance(2 * time.Second)
	after := g.Sample().OnTime

	assert.Equal(t, uint32(9000), before)
	assert.Equal(t, uint32(1000), after)
	assert.Less(t, after, before)
	assert.False(t, math.IsNaN(g.Sample().Latitude()))
}
