package mqtt

import (
	"fmt"
	"strings"
)

// Wiren Board topic convention segments.
//
//	/devices/<device>/controls/<control>        raw value
//	/devices/<device>/controls/<control>/meta   JSON metadata
//	/devices/<device>/controls/<control>/on     command
const (
	SegmentDevices  = "devices"
	SegmentControls = "controls"
	SegmentMeta     = "meta"
	SegmentCommand  = "on"
)

// Topics provides builders for Wiren Board MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Control("wb-gpio", "EXT1_R3A1")
//	// Returns: "/devices/wb-gpio/controls/EXT1_R3A1"
type Topics struct{}

// Control returns the value topic of a control.
func (Topics) Control(device, control string) string {
	return fmt.Sprintf("/%s/%s/%s/%s", SegmentDevices, device, SegmentControls, control)
}

// Meta returns the metadata topic of a control.
func (t Topics) Meta(device, control string) string {
	return t.Control(device, control) + "/" + SegmentMeta
}

// Command returns the command topic for a control value topic, keeping
// whatever leading-slash form the control topic was seen with.
func (Topics) Command(controlTopic string) string {
	return strings.TrimSuffix(controlTopic, "/") + "/" + SegmentCommand
}

// SplitTopic splits topic into segments, dropping one leading "/".
func SplitTopic(topic string) []string {
	topic = strings.TrimPrefix(topic, "/")
	if topic == "" {
		return nil
	}
	return strings.Split(topic, "/")
}
