package frame

import "strings"

// Severity grades an arming status for display.
type Severity string

const (
	// SeverityOK marks a disarmed, healthy vehicle.
	SeverityOK Severity = "ok"
	// SeverityActive marks a vehicle that is armed.
	SeverityActive Severity = "active"
	// SeverityFault marks a status carrying an arming fault.
	SeverityFault Severity = "fault"
)

// ArmingStatus is the classified arming bitfield.
type ArmingStatus struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// Arming flag bits, checked in this priority order.
const (
	ArmingHardwareFailureBit = 15
	ArmingArmedBit           = 2
	ArmingNotLevelBit        = 8
	ArmingNavUnsafeBit       = 11
)

var armingRules = []struct {
	bit    uint
	status ArmingStatus
}{
	{ArmingHardwareFailureBit, ArmingStatus{"HARDWARE", SeverityFault}},
	{ArmingArmedBit, ArmingStatus{"ARMED", SeverityActive}},
	{ArmingNotLevelBit, ArmingStatus{"NOT LEVEL", SeverityFault}},
	{ArmingNavUnsafeBit, ArmingStatus{"NAV UNSAFE", SeverityFault}},
}

// ArmingReady is reported when none of the checked bits is set.
var ArmingReady = ArmingStatus{"READY", SeverityOK}

// Arming classifies the arming bitfield. The first matching bit in priority
// order wins regardless of how many bits are set.
func (s Sample) Arming() ArmingStatus {
	for _, r := range armingRules {
		if s.ArmingFlags&(1<<r.bit) != 0 {
			return r.status
		}
	}
	return ArmingReady
}

// Subsystems reports which sensors the flight controller considers healthy.
type Subsystems struct {
	GPS           bool `json:"gps"`
	Barometer     bool `json:"barometer"`
	Compass       bool `json:"compass"`
	Accelerometer bool `json:"accelerometer"`
	Gyroscope     bool `json:"gyroscope"`
}

// Status bits for Subsystems.
const (
	StatusGPSBit           = 2
	StatusBarometerBit     = 3
	StatusCompassBit       = 4
	StatusAccelerometerBit = 5
	StatusGyroscopeBit     = 6
)

// Subsystems decodes the status bitfield.
func (s Sample) Subsystems() Subsystems {
	bit := func(n uint) bool { return s.Status&(1<<n) != 0 }
	return Subsystems{
		GPS:           bit(StatusGPSBit),
		Barometer:     bit(StatusBarometerBit),
		Compass:       bit(StatusCompassBit),
		Accelerometer: bit(StatusAccelerometerBit),
		Gyroscope:     bit(StatusGyroscopeBit),
	}
}

type modeThreshold struct {
	value int
	label string
}

// flightModeColumns mirrors the firmware encoding: the mode value is a sum of
// per-column digits (ones, tens, hundreds, thousands), and each digit is a sum
// of 8/4/2/1 flags. This is decimal, not binary; keep the table as is.
var flightModeColumns = [4][4]modeThreshold{
	{{8, "LAUNCH"}, {4, "ARMED"}, {2, "ARM PREVENTED"}, {1, "OK TO ARM"}},
	{{8, "TURTLE"}, {4, "MANUAL"}, {2, "HORIZON"}, {1, "ANGLE"}},
	{{8, "SURFACE"}, {4, "POS HOLD"}, {2, "ALT HOLD"}, {1, "HEADING HOLD"}},
	{{8, "CRUISE"}, {4, "HEADFREE"}, {2, "WAYPOINT"}, {1, "RTH"}},
}

// FlightModes decodes a flight-mode value into labels, ones column first and
// within a column from the highest threshold down. Digits above the thousands
// column are ignored.
func FlightModes(mode uint16) []string {
	var labels []string
	v := int(mode)
	for _, column := range flightModeColumns {
		digit := v % 10
		v /= 10
		for _, t := range column {
			if digit >= t.value {
				labels = append(labels, t.label)
				digit -= t.value
			}
		}
	}
	return labels
}

// FlightModes decodes the sample's flight-mode field.
func (s Sample) FlightModes() []string {
	return FlightModes(s.FlightMode)
}

// FlightModeText joins the active flight modes with single spaces.
func (s Sample) FlightModeText() string {
	return strings.Join(s.FlightModes(), " ")
}
