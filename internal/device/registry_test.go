package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockHandler records the commands routed to it.
type mockHandler struct {
	mu    sync.Mutex
	calls []Command
	ids   []string
	err   error
}

func (h *mockHandler) HandleCommand(_ context.Context, id string, cmd Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, id)
	h.calls = append(h.calls, cmd)
	return h.err
}

// recorder collects registry changes.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) add(ch Change) {
	r.mu.Lock()
	r.changes = append(r.changes, ch)
	r.mu.Unlock()
}

func (r *recorder) types() []ChangeType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChangeType, len(r.changes))
	for i, ch := range r.changes {
		out[i] = ch.Type
	}
	return out
}

func switchDescriptor(id string) Descriptor {
	return Descriptor{
		ID:        id,
		Kind:      KindSwitchBinary,
		Owner:     "wbimport_1",
		ProbeType: "switch",
		Title:     "relay/K1",
		Icon:      "switch",
		Level:     LevelOff,
	}
}

// =============================================================================
// Create / Get / Remove
// =============================================================================

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry()

	d, err := r.Create(switchDescriptor("dev-1"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID() != "dev-1" || d.Kind() != KindSwitchBinary || d.Owner() != "wbimport_1" {
		t.Errorf("Create() = %s/%s/%s", d.ID(), d.Kind(), d.Owner())
	}
	if got := d.Get(PathLevel); got != LevelOff {
		t.Errorf("Get(level) = %v, want off", got)
	}
	if got := d.Get(PathDeviceType); got != "switchBinary" {
		t.Errorf("Get(deviceType) = %v, want switchBinary", got)
	}
	if got := d.Get(PathFailed); got != false {
		t.Errorf("Get(isFailed) = %v, want false", got)
	}

	got, ok := r.Get("dev-1")
	if !ok || got != d {
		t.Error("Get() did not return the created device")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_CreateExisting(t *testing.T) {
	r := NewRegistry()
	first, err := r.Create(switchDescriptor("dev-1"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	desc := switchDescriptor("dev-1")
	desc.Level = LevelOn
	second, err := r.Create(desc)
	if !errors.Is(err, ErrDeviceExists) {
		t.Fatalf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
	if second != first {
		t.Error("Create() duplicate should return the existing device")
	}
	if got := first.Get(PathLevel); got != LevelOff {
		t.Errorf("existing level = %v, want unchanged off", got)
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		desc Descriptor
	}{
		{"empty id", Descriptor{Kind: KindSensorMultilevel}},
		{"unknown kind", Descriptor{ID: "x", Kind: "thermostat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Create(tt.desc); !errors.Is(err, ErrInvalidDevice) {
				t.Errorf("Create() error = %v, want ErrInvalidDevice", err)
			}
		})
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	d, _ := r.Create(switchDescriptor("dev-1")) //nolint:errcheck // Fresh registry

	if !r.Remove("dev-1") {
		t.Fatal("Remove() = false, want true")
	}
	if r.Remove("dev-1") {
		t.Error("second Remove() = true, want false")
	}
	if _, ok := r.Get("dev-1"); ok {
		t.Error("Get() found removed device")
	}

	rec := &recorder{}
	r.Subscribe(rec.add)
	d.Set(PathLevel, LevelOn)
	if len(rec.types()) != 0 {
		t.Errorf("removed device emitted %v", rec.types())
	}
}

// =============================================================================
// Attributes and listeners
// =============================================================================

func TestDevice_SetNotifiesOnChange(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}
	unsubscribe := r.Subscribe(rec.add)

	d, _ := r.Create(switchDescriptor("dev-1")) //nolint:errcheck // Fresh registry
	d.Set(PathLevel, LevelOn)
	d.Set(PathLevel, LevelOn) // unchanged
	d.Set(PathFailed, true)
	d.Set(PathDeviceType, "sensorBinary") // read-only
	r.Remove("dev-1")

	want := []ChangeType{ChangeCreated, ChangeUpdated, ChangeUpdated, ChangeRemoved}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("changes[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if d.Get(PathDeviceType) != "switchBinary" {
		t.Error("deviceType must not be writable")
	}

	unsubscribe()
	_, _ = r.Create(switchDescriptor("dev-2")) //nolint:errcheck // Fresh id
	if len(rec.types()) != len(want) {
		t.Error("listener still called after unsubscribe")
	}
}

func TestDevice_Snapshot(t *testing.T) {
	r := NewRegistry()
	desc := Descriptor{
		ID:         "temp",
		Kind:       KindSensorMultilevel,
		ProbeType:  "temperature",
		Title:      "wb-w1/28-00",
		ScaleTitle: "°C",
		Icon:       "temperature",
		Level:      21.5,
	}
	d, err := r.Create(desc)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	d.Set(PathFailed, true)

	s := d.Snapshot()
	if s.ID != "temp" || s.ProbeType != "temperature" || s.ScaleTitle != "°C" || s.Level != 21.5 || !s.Failed {
		t.Errorf("Snapshot() = %+v", s)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		if _, err := r.Create(switchDescriptor(id)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	list := r.List()
	if len(list) != 3 || list[0].ID != "a" || list[2].ID != "c" {
		t.Errorf("List() = %+v, want a,b,c", list)
	}
}

// =============================================================================
// Command routing
// =============================================================================

func TestRegistry_Command(t *testing.T) {
	r := NewRegistry()
	h := &mockHandler{}
	r.RegisterHandler("wbimport_1", h)

	if _, err := r.Create(switchDescriptor("relay")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	sensor := Descriptor{ID: "temp", Kind: KindSensorMultilevel, Owner: "wbimport_1"}
	if _, err := r.Create(sensor); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	orphan := switchDescriptor("orphan")
	orphan.Owner = "gone"
	if _, err := r.Create(orphan); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ctx := context.Background()
	if err := r.Command(ctx, "relay", Switch(false)); err != nil {
		t.Fatalf("Command() error = %v", err)
	}
	if len(h.calls) != 1 || h.calls[0] != Switch(false) || h.ids[0] != "relay" {
		t.Errorf("handler calls = %v %v", h.ids, h.calls)
	}

	tests := []struct {
		name string
		id   string
		want error
	}{
		{"unknown device", "missing", ErrDeviceNotFound},
		{"sensor", "temp", ErrCommandNotSupported},
		{"no handler", "orphan", ErrNoHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Command(ctx, tt.id, Switch(true)); !errors.Is(err, tt.want) {
				t.Errorf("Command() error = %v, want %v", err, tt.want)
			}
		})
	}

	r.UnregisterHandler("wbimport_1")
	if err := r.Command(ctx, "relay", Switch(true)); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Command() after unregister error = %v, want ErrNoHandler", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	d, _ := r.Create(Descriptor{ID: "dim", Kind: KindSwitchMultilevel, Level: 0}) //nolint:errcheck // Fresh registry
	r.Subscribe(func(Change) {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Set(PathLevel, n*j%100)
				_ = r.List()
			}
		}(i)
	}
	wg.Wait()
}
