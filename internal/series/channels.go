package series

import "github.com/banshee-data/basestation/internal/frame"

// Default channel names.
const (
	ChannelAltitude = "altitude"
	ChannelGyro     = "gyro"
	ChannelSpeed    = "speed"
	ChannelAccel    = "accel"
	ChannelAttitude = "attitude"
	ChannelRSSI     = "rssi"
	ChannelBattery  = "battery"
)

// DefaultChannels returns a fresh set of the standard channels.
func DefaultChannels() []Channel {
	return []Channel{
		NewChannel(ChannelAltitude, func(s frame.Sample) []Reading[int32] {
			return []Reading[int32]{
				{"GPS", int32(s.GPSAltitude)},
				{"Barometer", s.BaroAltitude},
				{"Estimate", s.NavZPosition},
			}
		}),
		NewChannel(ChannelGyro, func(s frame.Sample) []Reading[int16] {
			return []Reading[int16]{{"X", s.GyroX}, {"Y", s.GyroY}, {"Z", s.GyroZ}}
		}),
		NewChannel(ChannelSpeed, func(s frame.Sample) []Reading[int16] {
			return []Reading[int16]{{"Speed", s.GPSSpeed}}
		}),
		NewChannel(ChannelAccel, func(s frame.Sample) []Reading[float64] {
			x, y, z := s.Accel()
			return []Reading[float64]{{"X", x}, {"Y", y}, {"Z", z}}
		}),
		NewChannel(ChannelAttitude, func(s frame.Sample) []Reading[int16] {
			return []Reading[int16]{{"Roll", s.Roll}, {"Pitch", s.Pitch}, {"Yaw", s.Yaw}}
		}),
		NewChannel(ChannelRSSI, func(s frame.Sample) []Reading[int16] {
			r := []Reading[int16]{{"Primary", int16(s.RSSI)}}
			if s.Layout == frame.LayoutV2 {
				r = append(r, Reading[int16]{"Secondary", int16(s.RSSISecondary)})
			}
			return r
		}),
		NewChannel(ChannelBattery, func(s frame.Sample) []Reading[uint8] {
			return []Reading[uint8]{{"Battery", s.BatteryPercent}}
		}),
	}
}
