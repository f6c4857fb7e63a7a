package device

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		level   *int
		want    Command
		wantErr bool
	}{
		{"on", "on", nil, Switch(true), false},
		{"off upper case", "OFF", nil, Switch(false), false},
		{"exact", "exact", intPtr(42), SetLevel(42), false},
		{"exact bounds", "exact", intPtr(99), SetLevel(99), false},
		{"exact without level", "exact", nil, Command{}, true},
		{"exact out of range", "exact", intPtr(100), Command{}, true},
		{"negative level", "exact", intPtr(-1), Command{}, true},
		{"unknown", "toggle", nil, Command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.command, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("ParseCommand() error = %v, want ErrInvalidCommand", err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Switch(true), "on"},
		{Switch(false), "off"},
		{SetLevel(7), "exact(7)"},
		{Command{}, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind         Kind
		valid        bool
		binary       bool
		controllable bool
	}{
		{KindSensorBinary, true, true, false},
		{KindSwitchBinary, true, true, true},
		{KindSwitchMultilevel, true, false, true},
		{KindSensorMultilevel, true, false, false},
		{"doorlock", false, false, false},
	}
	for _, tt := range tests {
		if tt.kind.Valid() != tt.valid || tt.kind.Binary() != tt.binary || tt.kind.Controllable() != tt.controllable {
			t.Errorf("%s: Valid/Binary/Controllable = %v/%v/%v", tt.kind, tt.kind.Valid(), tt.kind.Binary(), tt.kind.Controllable())
		}
	}
}
