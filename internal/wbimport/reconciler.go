package wbimport

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nerrad567/wbmqtt-import/internal/device"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/mqtt"
	"github.com/nerrad567/wbmqtt-import/internal/namespace"
)

// DeviceInfo describes a discovered device.
type DeviceInfo struct {
	Descriptor
	Enabled   bool `json:"enabled"`
	Supported bool `json:"supported"`
	// Device is the live registry entry, if the device is materialised.
	Device *device.Snapshot `json:"device,omitempty"`
}

// applyDefinition reconciles one control definition.
func (m *Module) applyDefinition(def Definition) {
	id := def.DeviceID
	desc := Descriptor{
		DeviceID: id,
		Name:     def.Name,
		Type:     def.Type,
		Readonly: def.Readonly,
		Level:    def.CurrentValue,
		MaxLevel: def.MaxLevel,
		Topic:    def.Topic,
	}
	prev, existed := m.descriptors[id]
	m.descriptors[id] = desc

	if !m.knownSet[id] {
		m.known = append(m.known, id)
		m.knownSet[id] = true
		if m.listing.Add(id, desc.Name) {
			m.listing.Publish()
		}
		switch {
		case !Supported(desc.Type):
			m.logger.Debug("control type not supported", "device_id", id, "type", desc.Type)
		case m.materialize(desc):
			m.enabled[id] = true
		}
		m.logger.Info("control discovered", "device_id", id, "name", desc.Name, "type", desc.Type)
		m.persist()
		return
	}

	if m.enabled[id] {
		if !Supported(desc.Type) {
			m.release(id)
			delete(m.enabled, id)
			m.logger.Debug("control type no longer supported", "device_id", id, "type", desc.Type)
		} else if !m.materialize(desc) {
			delete(m.enabled, id)
		}
	}

	if !existed || !sameDescriptor(prev, desc) {
		m.persist()
	}
}

// applyValue updates the level of a materialised device.
func (m *Module) applyValue(u ValueUpdate) {
	desc, known := m.descriptors[u.DeviceID]
	if known {
		v := u.Value
		desc.Level = &v
		m.descriptors[u.DeviceID] = desc
	}

	dev, ok := m.own(u.DeviceID)
	if !ok || !known {
		return
	}
	level, ok := toLevel(dev.Kind(), u.Value, desc.MaxLevel)
	if !ok {
		m.logger.Debug("ignoring unparsable value", "device_id", u.DeviceID, "value", u.Value)
		return
	}
	dev.Set(device.PathLevel, level)

	if m.telemetry != nil {
		if v, ok := numericLevel(level); ok {
			m.telemetry.WriteDeviceMetric(u.DeviceID, measurementName(desc), v)
		}
	}
}

// materialize creates the registry device for desc. An existing device of
// the same kind is kept; one of another kind is replaced.
func (m *Module) materialize(desc Descriptor) bool {
	p, ok := profileFor(desc.Type, desc.Readonly)
	if !ok {
		return false
	}

	if existing, ok := m.registry.Get(desc.DeviceID); ok {
		if existing.Owner() != m.owner {
			m.logger.Error("device id taken by another owner", "device_id", desc.DeviceID, "owner", existing.Owner())
			return false
		}
		if existing.Kind() == p.Kind {
			return true
		}
		m.registry.Remove(desc.DeviceID)
		m.logger.Info("device kind changed, replacing",
			"device_id", desc.DeviceID,
			"from", existing.Kind(),
			"to", p.Kind,
		)
	}

	dev, err := m.registry.Create(device.Descriptor{
		ID:         desc.DeviceID,
		Kind:       p.Kind,
		Owner:      m.owner,
		ProbeType:  p.ProbeType,
		Title:      desc.Name,
		ScaleTitle: p.ScaleTitle,
		Icon:       p.Icon,
		Level:      initialLevel(p.Kind, desc),
	})
	if errors.Is(err, device.ErrDeviceExists) {
		return true
	}
	if err != nil {
		m.logger.Error("creating device failed", "device_id", desc.DeviceID, "error", err)
		return false
	}
	m.generated[desc.DeviceID] = true
	if m.failed {
		dev.Set(device.PathFailed, true)
	}
	m.logger.Debug("device created", "device_id", desc.DeviceID, "kind", p.Kind)
	return true
}

// release removes the registry device of id if the module owns it.
func (m *Module) release(id string) {
	if _, ok := m.own(id); ok {
		m.registry.Remove(id)
	}
	delete(m.generated, id)
}

// own returns the registry device of id unless another owner holds it.
func (m *Module) own(id string) (*device.Device, bool) {
	dev, ok := m.registry.Get(id)
	if !ok || dev.Owner() != m.owner {
		return nil, false
	}
	return dev, true
}

// initialLevel is the level a new device starts with: the last seen raw
// value when it converts, otherwise off, 0 or nil by kind.
func initialLevel(kind device.Kind, desc Descriptor) any {
	if desc.Level != nil {
		if level, ok := toLevel(kind, *desc.Level, desc.MaxLevel); ok {
			return level
		}
	}
	switch kind {
	case device.KindSensorBinary, device.KindSwitchBinary:
		return device.LevelOff
	case device.KindSwitchMultilevel:
		return 0
	}
	return nil
}

// measurementName is the telemetry measurement of a device.
func measurementName(desc Descriptor) string {
	if desc.Type == "" {
		return "value"
	}
	return desc.Type
}

// sameDescriptor compares descriptors by level value rather than by
// pointer.
func sameDescriptor(a, b Descriptor) bool {
	if (a.Level == nil) != (b.Level == nil) {
		return false
	}
	if a.Level != nil && *a.Level != *b.Level {
		return false
	}
	a.Level, b.Level = nil, nil
	return a == b
}

// command publishes cmd on the command topic of id.
func (m *Module) command(id string, cmd device.Command) error {
	desc, ok := m.descriptors[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	dev, ok := m.own(id)
	if !ok {
		return fmt.Errorf("%w: %s is not enabled", ErrUnknownDevice, id)
	}

	payload, ok := commandPayload(dev.Kind(), cmd, desc.MaxLevel)
	if !ok {
		m.logger.Debug("command ignored", "device_id", id, "kind", dev.Kind(), "command", cmd.String())
		return nil
	}
	if m.state != StateConnected {
		m.logger.Debug("command dropped, not connected", "device_id", id, "command", cmd.String())
		return nil
	}

	topic := mqtt.Topics{}.Command(desc.Topic)
	if err := m.transport.Publish(topic, []byte(payload), false); err != nil {
		m.logger.Warn("publishing command failed", "device_id", id, "topic", topic, "error", err)
		return err
	}
	m.logger.Debug("command published", "device_id", id, "topic", topic, "payload", payload)
	return nil
}

// setEnabled adds id to, or removes it from, the enabled set. Enabling
// fails without side effects when the device cannot be created.
func (m *Module) setEnabled(id string, enabled bool) error {
	desc, ok := m.descriptors[id]
	if !ok || !m.knownSet[id] {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	if enabled {
		if m.enabled[id] {
			return nil
		}
		if !Supported(desc.Type) {
			return fmt.Errorf("%w: %s", ErrUnsupportedType, desc.Type)
		}
		if !m.materialize(desc) {
			return fmt.Errorf("%w: %s", ErrCreateFailed, id)
		}
		m.enabled[id] = true
		m.logger.Info("device enabled", "device_id", id)
	} else {
		if !m.enabled[id] {
			return nil
		}
		delete(m.enabled, id)
		m.release(id)
		m.logger.Info("device disabled", "device_id", id)
	}
	m.persist()
	return nil
}

// forget removes id from everything the module tracks and persists.
func (m *Module) forget(id string) error {
	if !m.knownSet[id] {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	desc := m.descriptors[id]

	for i, known := range m.known {
		if known == id {
			m.known = append(m.known[:i], m.known[i+1:]...)
			break
		}
	}
	delete(m.knownSet, id)
	delete(m.enabled, id)
	delete(m.descriptors, id)
	m.release(id)

	if m.listing.Remove(id) {
		m.listing.Publish()
	}
	if desc.Topic != "" {
		m.tree.Remove(controlPath(desc.Topic))
	}
	m.persist()
	m.logger.Info("device forgotten", "device_id", id)
	return nil
}

// restore loads a persisted snapshot before the loop starts.
func (m *Module) restore(snap Snapshot) {
	pruned := 0
	for _, id := range snap.Known {
		if m.knownSet[id] {
			continue
		}
		desc, ok := snap.Descriptors[id]
		if !ok {
			pruned++
			continue
		}
		m.known = append(m.known, id)
		m.knownSet[id] = true
		m.descriptors[id] = desc
	}

	for _, id := range snap.Enabled {
		if !m.knownSet[id] {
			pruned++
			m.logger.Debug("pruning stale enabled device", "device_id", id)
			continue
		}
		m.enabled[id] = true
	}

	entries := make([]namespace.Entry, 0, len(m.known))
	for _, id := range m.known {
		entries = append(entries, namespace.Entry{DeviceID: id, DeviceName: m.descriptors[id].Name})
	}
	m.listing.Reset(entries)
	m.listing.Publish()

	for _, id := range m.known {
		if m.enabled[id] && !m.materialize(m.descriptors[id]) {
			delete(m.enabled, id)
			pruned++
		}
	}

	if pruned > 0 {
		m.persist()
	}
	m.refreshStatus()
}

// snapshot deep-copies the persisted state so the saver never shares maps
// with the loop.
func (m *Module) snapshot() Snapshot {
	enabled := make([]string, 0, len(m.enabled))
	for id := range m.enabled {
		enabled = append(enabled, id)
	}
	sort.Strings(enabled)

	snap := Snapshot{
		Known:       m.known,
		Enabled:     enabled,
		Descriptors: m.descriptors,
	}
	return snap.clone()
}

// persist queues the current state for saving. Saves are coalesced.
func (m *Module) persist() {
	m.saver.Submit(m.snapshot())
}

// deviceInfo describes a known device, with its registry snapshot when it
// is materialised.
func (m *Module) deviceInfo(id string) (DeviceInfo, bool) {
	desc, ok := m.descriptors[id]
	if !ok || !m.knownSet[id] {
		return DeviceInfo{}, false
	}
	info := DeviceInfo{
		Descriptor: desc,
		Enabled:    m.enabled[id],
		Supported:  Supported(desc.Type),
	}
	if desc.Level != nil {
		v := *desc.Level
		info.Level = &v
	}
	if dev, ok := m.own(id); ok {
		s := dev.Snapshot()
		info.Device = &s
	}
	return info, true
}

// deviceInfos lists known devices in discovery order.
func (m *Module) deviceInfos() []DeviceInfo {
	out := make([]DeviceInfo, 0, len(m.known))
	for _, id := range m.known {
		if info, ok := m.deviceInfo(id); ok {
			out = append(out, info)
		}
	}
	return out
}
