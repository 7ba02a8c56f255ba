// Package units holds the unit conversions shared by the series store and the
// HTTP API: telemetry time in milliseconds and ground speed in metres per second.
package units

import "strings"

// Speed unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ValidUnitsString returns a comma-separated list of valid units for error messages
func ValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a ground speed from metres per second to the target units.
// Unknown units fall back to m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// MillisToSeconds converts a device on-time in milliseconds to seconds.
// Frames carry milliseconds; the series store keeps seconds.
func MillisToSeconds(ms uint32) float64 {
	return float64(ms) / 1000.0
}
