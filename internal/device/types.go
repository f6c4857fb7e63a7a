package device

import (
	"fmt"
	"time"
)

// Kind classifies a logical device.
type Kind string

// Device kinds understood by the registry.
const (
	KindSensorBinary     Kind = "sensorBinary"
	KindSwitchBinary     Kind = "switchBinary"
	KindSwitchMultilevel Kind = "switchMultilevel"
	KindSensorMultilevel Kind = "sensorMultilevel"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSensorBinary, KindSwitchBinary, KindSwitchMultilevel, KindSensorMultilevel:
		return true
	}
	return false
}

// Binary reports whether the level is "on"/"off".
func (k Kind) Binary() bool {
	return k == KindSensorBinary || k == KindSwitchBinary
}

// Controllable reports whether the kind accepts commands.
func (k Kind) Controllable() bool {
	return k == KindSwitchBinary || k == KindSwitchMultilevel
}

// Levels of binary devices.
const (
	LevelOn  = "on"
	LevelOff = "off"
)

// MaxLevel is the top of the multilevel scale.
const MaxLevel = 99

// Attribute paths. Paths without a prefix are device properties; the
// "metrics:" prefix holds the live, displayed values.
const (
	PathDeviceType = "deviceType"
	PathProbeType  = "probeType"
	PathOwner      = "owner"
	PathTitle      = "metrics:title"
	PathLevel      = "metrics:level"
	PathScaleTitle = "metrics:scaleTitle"
	PathIcon       = "metrics:icon"
	PathFailed     = "metrics:isFailed"
)

// Descriptor is everything needed to create a device.
type Descriptor struct {
	ID         string
	Kind       Kind
	Owner      string
	ProbeType  string
	Title      string
	ScaleTitle string
	Icon       string
	Level      any
}

// Validate checks required descriptor fields.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDevice, d.Kind)
	}
	return nil
}

// Snapshot is a point-in-time copy of a device, safe to serialise.
type Snapshot struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"device_type"`
	Owner      string    `json:"owner,omitempty"`
	ProbeType  string    `json:"probe_type,omitempty"`
	Title      string    `json:"title"`
	ScaleTitle string    `json:"scale_title,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	Level      any       `json:"level"`
	Failed     bool      `json:"failed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChangeType describes what happened to a device.
type ChangeType string

// Change types delivered to listeners.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// Change is delivered to registry listeners.
type Change struct {
	Type     ChangeType `json:"type"`
	DeviceID string     `json:"device_id"`
	Path     string     `json:"path,omitempty"`
	Value    any        `json:"value,omitempty"`
}
