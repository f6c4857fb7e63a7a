package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CommandHandler executes commands for the devices an owner created.
type CommandHandler interface {
	HandleCommand(ctx context.Context, deviceID string, cmd Command) error
}

// Device is a live registry entry. Attributes are addressed by path,
// for example PathLevel ("metrics:level").
//
// All methods are safe for concurrent use.
type Device struct {
	id    string
	kind  Kind
	owner string

	mu        sync.RWMutex
	attrs     map[string]any
	updatedAt time.Time

	notify func(Change)
}

// ID returns the device id.
func (d *Device) ID() string { return d.id }

// Kind returns the device kind.
func (d *Device) Kind() Kind { return d.kind }

// Owner returns the module that created the device.
func (d *Device) Owner() string { return d.owner }

// Get returns the attribute at path, or nil.
func (d *Device) Get(path string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.attrs[path]
}

// Set stores value at path and notifies listeners if it changed.
// Identity paths (deviceType, owner) are read-only.
func (d *Device) Set(path string, value any) {
	if path == PathDeviceType || path == PathOwner {
		return
	}

	d.mu.Lock()
	old, existed := d.attrs[path]
	if existed && sameValue(old, value) {
		d.mu.Unlock()
		return
	}
	d.attrs[path] = value
	d.updatedAt = time.Now().UTC()
	notify := d.notify
	d.mu.Unlock()

	if notify != nil {
		notify(Change{Type: ChangeUpdated, DeviceID: d.id, Path: path, Value: value})
	}
}

// Snapshot returns a copy of the device's current state.
func (d *Device) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		ID:        d.id,
		Kind:      d.kind,
		Owner:     d.owner,
		Level:     d.attrs[PathLevel],
		UpdatedAt: d.updatedAt,
	}
	s.ProbeType, _ = d.attrs[PathProbeType].(string)
	s.Title, _ = d.attrs[PathTitle].(string)
	s.ScaleTitle, _ = d.attrs[PathScaleTitle].(string)
	s.Icon, _ = d.attrs[PathIcon].(string)
	s.Failed, _ = d.attrs[PathFailed].(bool)
	return s
}

// sameValue compares the scalar values devices hold. Anything else is
// treated as changed.
func sameValue(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// Registry is the in-memory catalogue of live logical devices.
//
// Modules create devices with Create and register themselves as the
// CommandHandler for their owner name; Command routes user intents to
// that owner. Listeners observe every create, update and remove.
//
// All public methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*Device
	handlers map[string]CommandHandler

	listenersMu sync.RWMutex
	listeners   map[int]func(Change)
	nextID      int

	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:   make(map[string]*Device),
		handlers:  make(map[string]CommandHandler),
		listeners: make(map[int]func(Change)),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RegisterHandler routes commands for devices owned by owner to h.
func (r *Registry) RegisterHandler(owner string, h CommandHandler) {
	r.mu.Lock()
	r.handlers[owner] = h
	r.mu.Unlock()
}

// UnregisterHandler removes the command handler for owner.
func (r *Registry) UnregisterHandler(owner string) {
	r.mu.Lock()
	delete(r.handlers, owner)
	r.mu.Unlock()
}

// Create adds a device. If the id is already present the existing device
// is returned together with ErrDeviceExists.
func (r *Registry) Create(desc Descriptor) (*Device, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.devices[desc.ID]; ok {
		r.mu.Unlock()
		return existing, fmt.Errorf("%w: %s", ErrDeviceExists, desc.ID)
	}

	d := &Device{
		id:    desc.ID,
		kind:  desc.Kind,
		owner: desc.Owner,
		attrs: map[string]any{
			PathDeviceType: string(desc.Kind),
			PathOwner:      desc.Owner,
			PathProbeType:  desc.ProbeType,
			PathTitle:      desc.Title,
			PathScaleTitle: desc.ScaleTitle,
			PathIcon:       desc.Icon,
			PathLevel:      desc.Level,
			PathFailed:     false,
		},
		updatedAt: time.Now().UTC(),
		notify:    r.emit,
	}
	r.devices[desc.ID] = d
	r.mu.Unlock()

	r.logger.Debug("device created", "id", desc.ID, "kind", desc.Kind, "owner", desc.Owner)
	r.emit(Change{Type: ChangeCreated, DeviceID: desc.ID, Value: d.Snapshot()})
	return d, nil
}

// Get returns the device with the given id.
func (r *Registry) Get(id string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// Remove deletes the device and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	d, ok := r.devices[id]
	if ok {
		delete(r.devices, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	// Detach so late Set calls on a held handle stay silent.
	d.mu.Lock()
	d.notify = nil
	d.mu.Unlock()

	r.logger.Debug("device removed", "id", id)
	r.emit(Change{Type: ChangeRemoved, DeviceID: id})
	return true
}

// List returns snapshots of every device, sorted by id.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Command routes cmd to the owner of the device.
func (r *Registry) Command(ctx context.Context, id string, cmd Command) error {
	r.mu.RLock()
	d, ok := r.devices[id]
	var h CommandHandler
	if ok {
		h = r.handlers[d.owner]
	}
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if !d.kind.Controllable() {
		return fmt.Errorf("%w: %s is %s", ErrCommandNotSupported, id, d.kind)
	}
	if h == nil {
		return fmt.Errorf("%w: owner %q", ErrNoHandler, d.owner)
	}
	return h.HandleCommand(ctx, id, cmd)
}

// Subscribe registers fn for every change and returns a function that
// removes it. fn runs on the goroutine that caused the change and must not
// block.
func (r *Registry) Subscribe(fn func(Change)) (unsubscribe func()) {
	r.listenersMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.listenersMu.Unlock()

	return func() {
		r.listenersMu.Lock()
		delete(r.listeners, id)
		r.listenersMu.Unlock()
	}
}

func (r *Registry) emit(ch Change) {
	r.listenersMu.RLock()
	fns := make([]func(Change), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}
