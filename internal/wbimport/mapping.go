package wbimport

import (
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/wbmqtt-import/internal/device"
)

// Control types published in meta payloads.
const (
	TypeSwitch           = "switch"
	TypeRange            = "range"
	TypeVoltage          = "voltage"
	TypePower            = "power"
	TypePowerConsumption = "power_consumption"
	TypeTemperature      = "temperature"
	TypeRelHumidity      = "rel_humidity"
	TypeText             = "text"
	TypePushbutton       = "pushbutton"
)

// Payloads written to binary command topics.
const (
	payloadOn  = "1"
	payloadOff = "0"
)

// profile is the device presentation of a control type.
type profile struct {
	Kind       device.Kind
	ProbeType  string
	ScaleTitle string
	Icon       string
}

// sensorProfiles lists the numeric types with their own presentation.
var sensorProfiles = map[string]profile{
	TypeVoltage:          {device.KindSensorMultilevel, "energy", "V", "energy"},
	TypePower:            {device.KindSensorMultilevel, "meterElectric_watt", "W", "energy"},
	TypePowerConsumption: {device.KindSensorMultilevel, "meterElectric_kilowatt_hour", "kWh", "meter"},
	TypeTemperature:      {device.KindSensorMultilevel, "temperature", "°C", "temperature"},
	TypeRelHumidity:      {device.KindSensorMultilevel, "humidity", "%", "humidity"},
}

// profileFor maps a control type to a device presentation. The second
// result is false for types that produce no device.
func profileFor(typ string, readonly bool) (profile, bool) {
	switch typ {
	case TypeText, TypePushbutton:
		return profile{}, false
	case TypeSwitch:
		if readonly {
			return profile{Kind: device.KindSensorBinary, ProbeType: "general_purpose", Icon: "switch"}, true
		}
		return profile{Kind: device.KindSwitchBinary, ProbeType: "switch", Icon: "switch"}, true
	case TypeRange:
		return profile{Kind: device.KindSwitchMultilevel, ProbeType: "multilevel", Icon: "multilevel"}, true
	}
	if p, ok := sensorProfiles[typ]; ok {
		return p, true
	}
	return profile{Kind: device.KindSensorMultilevel, ProbeType: "general_purpose"}, true
}

// Supported reports whether controls of typ become devices.
func Supported(typ string) bool {
	_, ok := profileFor(typ, false)
	return ok
}

// effectiveMax returns the range maximum used for scaling. A missing or
// non-positive maximum scales one to one.
func effectiveMax(maxLevel int) int {
	if maxLevel <= 0 {
		return device.MaxLevel
	}
	return maxLevel
}

// toLevel converts a raw payload to a level for kind. The second result
// is false when the payload cannot be converted.
func toLevel(kind device.Kind, raw string, maxLevel int) (any, bool) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case device.KindSensorBinary, device.KindSwitchBinary:
		if raw == payloadOn {
			return device.LevelOn, true
		}
		return device.LevelOff, true
	case device.KindSwitchMultilevel:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return clampLevel(int(math.Round(f * device.MaxLevel / float64(effectiveMax(maxLevel))))), true
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	}
}

// fromLevel converts a multilevel level back to a raw range value.
func fromLevel(level, maxLevel int) int {
	return int(math.Round(float64(effectiveMax(maxLevel)) * float64(clampLevel(level)) / device.MaxLevel))
}

func clampLevel(n int) int {
	if n < 0 {
		return 0
	}
	if n > device.MaxLevel {
		return device.MaxLevel
	}
	return n
}

// commandPayload returns the payload to publish on the command topic for
// cmd. The second result is false when kind does not accept cmd.
func commandPayload(kind device.Kind, cmd device.Command, maxLevel int) (string, bool) {
	switch kind {
	case device.KindSwitchBinary:
		if cmd.Kind != device.CommandSwitch {
			return "", false
		}
		if cmd.On {
			return payloadOn, true
		}
		return payloadOff, true
	case device.KindSwitchMultilevel:
		level := cmd.Level
		if cmd.Kind == device.CommandSwitch {
			level = 0
			if cmd.On {
				level = device.MaxLevel
			}
		}
		return strconv.Itoa(fromLevel(level, maxLevel)), true
	}
	return "", false
}

// numericLevel returns the telemetry value of a level.
func numericLevel(level any) (float64, bool) {
	switch v := level.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		switch v {
		case device.LevelOn:
			return 1, true
		case device.LevelOff:
			return 0, true
		}
	}
	return 0, false
}
