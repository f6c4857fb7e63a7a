package wbimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/mqtt"
)

// Path shape of recognised topics after the leading "/" is dropped.
const (
	controlPathLen = 4 // devices/<device>/controls/<control>
	metaPathLen    = 5 // devices/<device>/controls/<control>/meta
)

// ValueUpdate is a raw value seen on a control topic.
type ValueUpdate struct {
	DeviceID string
	Value    string
}

// Definition is a control described by its meta topic.
type Definition struct {
	DeviceID string
	// Name is "<device>/<control>".
	Name     string
	Type     string
	Readonly bool
	// CurrentValue is the last raw value seen for the control, if any.
	CurrentValue *string
	MaxLevel     int
	// Topic is the control value topic, in the form it was received.
	Topic string
}

// Classified is the outcome of one message. Both fields are nil for
// ignored messages.
type Classified struct {
	Update     *ValueUpdate
	Definition *Definition
}

// controlMeta is the payload of a meta topic.
type controlMeta struct {
	Type     string     `json:"type"`
	Readonly flexBool   `json:"readonly"`
	Max      flexNumber `json:"max"`
}

// flexBool accepts true/false, "1"/"0", "true"/"false" and numbers.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case float64:
		*b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes":
			*b = true
		case "", "0", "false", "no":
			*b = false
		default:
			return fmt.Errorf("readonly: unexpected value %q", t)
		}
	default:
		return fmt.Errorf("readonly: unexpected value %s", data)
	}
	return nil
}

// flexNumber accepts a number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("max: %w", err)
		}
		*n = flexNumber(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = flexNumber(f)
	return nil
}

// Classifier turns inbound messages into tree updates and events.
type Classifier struct {
	moduleID       string
	tree           *Tree
	nativePrefixes []string
	allow          map[string]bool
}

// NewClassifier creates a classifier writing into tree. Meta topics of
// devices whose name starts with a native prefix are skipped; a non-empty
// allow list restricts definitions to the named devices.
func NewClassifier(moduleID string, tree *Tree, nativePrefixes, allow []string) *Classifier {
	c := &Classifier{
		moduleID:       moduleID,
		tree:           tree,
		nativePrefixes: append([]string(nil), nativePrefixes...),
	}
	if len(allow) > 0 {
		c.allow = make(map[string]bool, len(allow))
		for _, name := range allow {
			c.allow[name] = true
		}
	}
	return c
}

// Classify handles one message. Messages outside the control topic
// shape are ignored and leave the tree untouched. A meta payload that
// does not parse returns ErrMalformedMeta and leaves the control's meta
// node unchanged.
func (c *Classifier) Classify(topic string, payload []byte) (Classified, error) {
	path := mqtt.SplitTopic(topic)
	if !controlShape(path) {
		return Classified{}, nil
	}

	deviceName, controlName := path[1], path[3]
	id := DeviceID(c.moduleID, deviceName, controlName)
	value := string(payload)

	c.tree.Ensure(path[:3])

	if len(path) == controlPathLen {
		c.tree.Set(path, value)
		return Classified{Update: &ValueUpdate{DeviceID: id, Value: value}}, nil
	}

	if c.skipDevice(deviceName) {
		return Classified{}, nil
	}

	var meta controlMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return Classified{}, fmt.Errorf("%w: %s: %w", ErrMalformedMeta, topic, err)
	}
	control := c.tree.Ensure(path[:controlPathLen])
	c.tree.Set(path, value)

	def := &Definition{
		DeviceID: id,
		Name:     deviceName + "/" + controlName,
		Type:     meta.Type,
		Readonly: bool(meta.Readonly),
		MaxLevel: int(math.Round(float64(meta.Max))),
		Topic:    strings.TrimSuffix(topic, "/"+mqtt.SegmentMeta),
	}
	if v, ok := control.Value(); ok {
		def.CurrentValue = &v
	}
	return Classified{Definition: def}, nil
}

func (c *Classifier) skipDevice(name string) bool {
	for _, prefix := range c.nativePrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return c.allow != nil && !c.allow[name]
}

// controlShape reports whether path is a control value or meta path.
func controlShape(path []string) bool {
	switch len(path) {
	case controlPathLen:
	case metaPathLen:
		if path[4] != mqtt.SegmentMeta {
			return false
		}
	default:
		return false
	}
	if path[0] != mqtt.SegmentDevices || path[2] != mqtt.SegmentControls {
		return false
	}
	for _, seg := range path {
		if seg == "" {
			return false
		}
	}
	return true
}

// DeviceID derives the registry id of a control. Spaces become "_" and
// runs of "_" collapse to one.
//
//	DeviceID("1", "wb-w1", "28-00") // "WB_1_wb-w1_controls_28-00"
func DeviceID(moduleID, deviceName, controlName string) string {
	raw := "WB_" + moduleID + "_" + deviceName + "_" + mqtt.SegmentControls + "_" + controlName

	var b strings.Builder
	b.Grow(len(raw))
	prevUnderscore := false
	for _, r := range raw {
		if r == ' ' {
			r = '_'
		}
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// controlPath returns the tree path of a control from its definition topic.
func controlPath(topic string) []string {
	return mqtt.SplitTopic(topic)
}
