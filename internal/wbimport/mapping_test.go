package wbimport

import (
	"strconv"
	"testing"

	"github.com/nerrad567/wbmqtt-import/internal/device"
)

func TestProfileFor(t *testing.T) {
	tests := []struct {
		typ      string
		readonly bool
		want     profile
		ok       bool
	}{
		{TypeSwitch, true, profile{device.KindSensorBinary, "general_purpose", "", "switch"}, true},
		{TypeSwitch, false, profile{device.KindSwitchBinary, "switch", "", "switch"}, true},
		{TypeRange, false, profile{device.KindSwitchMultilevel, "multilevel", "", "multilevel"}, true},
		{TypeVoltage, true, profile{device.KindSensorMultilevel, "energy", "V", "energy"}, true},
		{TypePower, true, profile{device.KindSensorMultilevel, "meterElectric_watt", "W", "energy"}, true},
		{TypePowerConsumption, true, profile{device.KindSensorMultilevel, "meterElectric_kilowatt_hour", "kWh", "meter"}, true},
		{TypeTemperature, true, profile{device.KindSensorMultilevel, "temperature", "°C", "temperature"}, true},
		{TypeRelHumidity, true, profile{device.KindSensorMultilevel, "humidity", "%", "humidity"}, true},
		{"lux", true, profile{device.KindSensorMultilevel, "general_purpose", "", ""}, true},
		{TypeText, true, profile{}, false},
		{TypePushbutton, false, profile{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, ok := profileFor(tt.typ, tt.readonly)
			if ok != tt.ok || got != tt.want {
				t.Errorf("profileFor(%q, %v) = %+v, %v, want %+v, %v", tt.typ, tt.readonly, got, ok, tt.want, tt.ok)
			}
			if Supported(tt.typ) != tt.ok {
				t.Errorf("Supported(%q) = %v", tt.typ, !tt.ok)
			}
		})
	}
}

func TestToLevel(t *testing.T) {
	tests := []struct {
		name     string
		kind     device.Kind
		raw      string
		maxLevel int
		want     any
		wantOK   bool
	}{
		{"binary on", device.KindSwitchBinary, "1", 0, device.LevelOn, true},
		{"binary off", device.KindSwitchBinary, "0", 0, device.LevelOff, true},
		{"binary other", device.KindSensorBinary, "yes", 0, device.LevelOff, true},
		{"binary padded", device.KindSensorBinary, " 1\n", 0, device.LevelOn, true},
		{"range 255", device.KindSwitchMultilevel, "128", 255, 50, true},
		{"range top", device.KindSwitchMultilevel, "255", 255, 99, true},
		{"range no max", device.KindSwitchMultilevel, "42", 0, 42, true},
		{"range clamps", device.KindSwitchMultilevel, "300", 255, 99, true},
		{"range negative", device.KindSwitchMultilevel, "-5", 255, 0, true},
		{"range garbage", device.KindSwitchMultilevel, "dim", 255, nil, false},
		{"sensor", device.KindSensorMultilevel, "21.5", 0, 21.5, true},
		{"sensor garbage", device.KindSensorMultilevel, "n/a", 0, nil, false},
		{"sensor nan", device.KindSensorMultilevel, "NaN", 0, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toLevel(tt.kind, tt.raw, tt.maxLevel)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("toLevel(%s, %q, %d) = %v, %v, want %v, %v", tt.kind, tt.raw, tt.maxLevel, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCommandPayload(t *testing.T) {
	tests := []struct {
		name     string
		kind     device.Kind
		cmd      device.Command
		maxLevel int
		want     string
		wantOK   bool
	}{
		{"switch on", device.KindSwitchBinary, device.Switch(true), 0, "1", true},
		{"switch off", device.KindSwitchBinary, device.Switch(false), 0, "0", true},
		{"switch exact", device.KindSwitchBinary, device.SetLevel(50), 0, "", false},
		{"range exact top", device.KindSwitchMultilevel, device.SetLevel(99), 255, "255", true},
		{"range exact mid", device.KindSwitchMultilevel, device.SetLevel(50), 255, "129", true},
		{"range on", device.KindSwitchMultilevel, device.Switch(true), 255, "255", true},
		{"range off", device.KindSwitchMultilevel, device.Switch(false), 255, "0", true},
		{"range no max", device.KindSwitchMultilevel, device.SetLevel(42), 0, "42", true},
		{"range clamps", device.KindSwitchMultilevel, device.SetLevel(150), 100, "100", true},
		{"sensor", device.KindSensorMultilevel, device.Switch(true), 0, "", false},
		{"binary sensor", device.KindSensorBinary, device.Switch(true), 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := commandPayload(tt.kind, tt.cmd, tt.maxLevel)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("commandPayload() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// The level reported for a raw value, written back, lands within the
// error of two nearest-integer roundings.
func TestRangeRoundTrip(t *testing.T) {
	for _, maxLevel := range []int{1, 2, 10, 50, 99, 100, 255, 1000, 4095} {
		bound := maxLevel/198 + 1
		for raw := 0; raw <= maxLevel; raw++ {
			level, ok := toLevel(device.KindSwitchMultilevel, strconv.Itoa(raw), maxLevel)
			if !ok {
				t.Fatalf("toLevel(%d) failed", raw)
			}
			back := fromLevel(level.(int), maxLevel)
			if diff := abs(back - raw); diff > bound {
				t.Fatalf("maxLevel=%d raw=%d: level %d maps back to %d (diff %d > %d)", maxLevel, raw, level, back, diff, bound)
			}
		}
	}
}

func TestNumericLevel(t *testing.T) {
	tests := []struct {
		level  any
		want   float64
		wantOK bool
	}{
		{device.LevelOn, 1, true},
		{device.LevelOff, 0, true},
		{42, 42, true},
		{21.5, 21.5, true},
		{nil, 0, false},
		{"dim", 0, false},
	}
	for _, tt := range tests {
		got, ok := numericLevel(tt.level)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("numericLevel(%v) = %v, %v", tt.level, got, ok)
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
