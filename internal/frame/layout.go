package frame

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Layout selects one of the known frame revisions. Revisions differ in field
// set and byte order and are always chosen by configuration; a payload is
// never inspected to guess its revision.
type Layout int

const (
	// LayoutV1 is the first big-endian frame carrying navigation state
	// and throttle percent.
	LayoutV1 Layout = 1
	// LayoutV2 is the little-endian frame that drops the navigation block
	// and adds home position, flight mode and a second RSSI value.
	LayoutV2 Layout = 2
)

// ParseLayout parses a configured revision name ("v1", "v2", "1", "2").
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return LayoutV1, nil
	case "v2", "2":
		return LayoutV2, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected v1 or v2)", ErrUnknownLayout, s)
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutV1:
		return "v1"
	case LayoutV2:
		return "v2"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Valid reports whether l is a known revision.
func (l Layout) Valid() bool {
	_, ok := layouts[l]
	return ok
}

// Len returns the exact frame length for the revision, the sum of its field
// widths. Unknown revisions report 0.
func (l Layout) Len() int {
	spec, ok := layouts[l]
	if !ok {
		return 0
	}
	return spec.size
}

// ByteOrder returns the revision's byte order, or nil for unknown revisions.
func (l Layout) ByteOrder() binary.ByteOrder {
	spec, ok := layouts[l]
	if !ok {
		return nil
	}
	return spec.order
}

// Fields lists the revision's field names in wire order.
func (l Layout) Fields() []string {
	spec, ok := layouts[l]
	if !ok {
		return nil
	}
	names := make([]string, len(spec.fields))
	for i, f := range spec.fields {
		names[i] = f.name
	}
	return names
}

type kind uint8

const (
	kindU8 kind = iota
	kindI8
	kindU16
	kindI16
	kindU32
	kindI32
)

func (k kind) width() int {
	switch k {
	case kindU8, kindI8:
		return 1
	case kindU16, kindI16:
		return 2
	default:
		return 4
	}
}

func (k kind) read(order binary.ByteOrder, b []byte) int64 {
	switch k {
	case kindU8:
		return int64(b[0])
	case kindI8:
		return int64(int8(b[0]))
	case kindU16:
		return int64(order.Uint16(b))
	case kindI16:
		return int64(int16(order.Uint16(b)))
	case kindU32:
		return int64(order.Uint32(b))
	default:
		return int64(int32(order.Uint32(b)))
	}
}

func (k kind) write(order binary.ByteOrder, b []byte, v int64) {
	switch k {
	case kindU8, kindI8:
		b[0] = byte(v)
	case kindU16, kindI16:
		order.PutUint16(b, uint16(v))
	default:
		order.PutUint32(b, uint32(v))
	}
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32
}

type field struct {
	name string
	kind kind
	get  func(*Sample) int64
	set  func(*Sample, int64)
}

func newField[T integer](name string, k kind, ptr func(*Sample) *T) field {
	return field{
		name: name,
		kind: k,
		get:  func(s *Sample) int64 { return int64(*ptr(s)) },
		set:  func(s *Sample, v int64) { *ptr(s) = T(v) },
	}
}

type layoutSpec struct {
	order  binary.ByteOrder
	fields []field
	size   int
}

func newLayoutSpec(order binary.ByteOrder, fields ...field) layoutSpec {
	size := 0
	for _, f := range fields {
		size += f.kind.width()
	}
	return layoutSpec{order: order, fields: fields, size: size}
}

var (
	fOnTime        = newField("on_time", kindU32, func(s *Sample) *uint32 { return &s.OnTime })
	fArmingFlags   = newField("arming_flags", kindU16, func(s *Sample) *uint16 { return &s.ArmingFlags })
	fStatus        = newField("status", kindU8, func(s *Sample) *uint8 { return &s.Status })
	fBattery       = newField("battery_percent", kindU8, func(s *Sample) *uint8 { return &s.BatteryPercent })
	fHomeDistance  = newField("home_distance", kindU16, func(s *Sample) *uint16 { return &s.HomeDistance })
	fHomeDirection = newField("home_direction", kindI16, func(s *Sample) *int16 { return &s.HomeDirection })
	fFixType       = newField("gps_fix_type", kindU8, func(s *Sample) *uint8 { return &s.GPSFixType })
	fSatellites    = newField("gps_satellites", kindU8, func(s *Sample) *uint8 { return &s.GPSSatellites })
	fNavMode       = newField("nav_mode", kindU8, func(s *Sample) *uint8 { return &s.NavMode })
	fNavState      = newField("nav_state", kindU8, func(s *Sample) *uint8 { return &s.NavState })
	fNavWPAction   = newField("nav_wp_action", kindU8, func(s *Sample) *uint8 { return &s.NavWaypointAction })
	fNavWPNumber   = newField("nav_wp_number", kindU8, func(s *Sample) *uint8 { return &s.NavWaypointNumber })
	fNavHeading    = newField("nav_heading_target", kindI16, func(s *Sample) *int16 { return &s.NavHeadingTarget })
	fRoll          = newField("roll", kindI16, func(s *Sample) *int16 { return &s.Roll })
	fPitch         = newField("pitch", kindI16, func(s *Sample) *int16 { return &s.Pitch })
	fYaw           = newField("yaw", kindI16, func(s *Sample) *int16 { return &s.Yaw })
	fAccX          = newField("acc_x", kindI16, func(s *Sample) *int16 { return &s.AccX })
	fAccY          = newField("acc_y", kindI16, func(s *Sample) *int16 { return &s.AccY })
	fAccZ          = newField("acc_z", kindI16, func(s *Sample) *int16 { return &s.AccZ })
	fGyroX         = newField("gyro_x", kindI16, func(s *Sample) *int16 { return &s.GyroX })
	fGyroY         = newField("gyro_y", kindI16, func(s *Sample) *int16 { return &s.GyroY })
	fGyroZ         = newField("gyro_z", kindI16, func(s *Sample) *int16 { return &s.GyroZ })
	fMagX          = newField("mag_x", kindI16, func(s *Sample) *int16 { return &s.MagX })
	fMagY          = newField("mag_y", kindI16, func(s *Sample) *int16 { return &s.MagY })
	fMagZ          = newField("mag_z", kindI16, func(s *Sample) *int16 { return &s.MagZ })
	fLatitude      = newField("gps_latitude", kindI32, func(s *Sample) *int32 { return &s.GPSLatitude })
	fLongitude     = newField("gps_longitude", kindI32, func(s *Sample) *int32 { return &s.GPSLongitude })
	fCourse        = newField("gps_course", kindI16, func(s *Sample) *int16 { return &s.GPSCourse })
	fSpeed         = newField("gps_speed", kindI16, func(s *Sample) *int16 { return &s.GPSSpeed })
	fGPSAltitude   = newField("gps_altitude", kindI16, func(s *Sample) *int16 { return &s.GPSAltitude })
	fBaroAltitude  = newField("baro_altitude", kindI32, func(s *Sample) *int32 { return &s.BaroAltitude })
	fZPosition     = newField("nav_z_position", kindI32, func(s *Sample) *int32 { return &s.NavZPosition })
	fZVelocity     = newField("nav_z_velocity", kindI16, func(s *Sample) *int16 { return &s.NavZVelocity })
	fRxRoll        = newField("rx_roll", kindI16, func(s *Sample) *int16 { return &s.RxRoll })
	fRxPitch       = newField("rx_pitch", kindI16, func(s *Sample) *int16 { return &s.RxPitch })
	fRxYaw         = newField("rx_yaw", kindI16, func(s *Sample) *int16 { return &s.RxYaw })
	fRxThrottle    = newField("rx_throttle", kindI16, func(s *Sample) *int16 { return &s.RxThrottle })
	fThrottle      = newField("throttle_percent", kindI8, func(s *Sample) *int8 { return &s.ThrottlePercent })
	fRSSI          = newField("rssi", kindI8, func(s *Sample) *int8 { return &s.RSSI })
	fHomeLatitude  = newField("home_latitude", kindI32, func(s *Sample) *int32 { return &s.HomeLatitude })
	fHomeLongitude = newField("home_longitude", kindI32, func(s *Sample) *int32 { return &s.HomeLongitude })
	fFlightMode    = newField("flight_mode", kindU16, func(s *Sample) *uint16 { return &s.FlightMode })
	fRSSISecondary = newField("rssi_secondary", kindI8, func(s *Sample) *int8 { return &s.RSSISecondary })
)

var layouts = map[Layout]layoutSpec{
	LayoutV1: newLayoutSpec(binary.BigEndian,
		fOnTime, fArmingFlags, fStatus, fBattery, fHomeDistance, fHomeDirection,
		fFixType, fSatellites, fNavMode, fNavState, fNavWPAction, fNavWPNumber, fNavHeading,
		fRoll, fPitch, fYaw,
		fAccX, fAccY, fAccZ,
		fGyroX, fGyroY, fGyroZ,
		fMagX, fMagY, fMagZ,
		fLatitude, fLongitude, fCourse, fSpeed, fGPSAltitude,
		fBaroAltitude, fZPosition, fZVelocity,
		fRxRoll, fRxPitch, fRxYaw, fRxThrottle,
		fThrottle, fRSSI,
	),
	LayoutV2: newLayoutSpec(binary.LittleEndian,
		fOnTime, fArmingFlags, fStatus, fBattery, fHomeDistance, fHomeDirection,
		fSatellites,
		fRoll, fPitch, fYaw,
		fAccX, fAccY, fAccZ,
		fGyroX, fGyroY, fGyroZ,
		fMagX, fMagY, fMagZ,
		fLatitude, fLongitude, fCourse, fSpeed, fGPSAltitude,
		fBaroAltitude, fZPosition, fZVelocity,
		fRxRoll, fRxPitch, fRxYaw, fRxThrottle,
		fHomeLatitude, fHomeLongitude,
		fRSSI, fFlightMode, fRSSISecondary,
	),
}
