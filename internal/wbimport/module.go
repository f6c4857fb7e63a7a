package wbimport

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/wbmqtt-import/internal/device"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/config"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/mqtt"
)

// eventQueueSize is the capacity of the module event queue. Transport
// callbacks block when it is full, which keeps inbound order intact.
const eventQueueSize = 256

// Logger defines the logging interface used by the module.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the broker session. It is satisfied by *mqtt.Session.
type Transport interface {
	SetHandlers(h mqtt.Handlers)
	Connect() error
	Disconnect()
	Subscribe(filter string) error
	Publish(topic string, payload []byte, retained bool) error
}

// Registry is the host device registry. It is satisfied by *device.Registry.
type Registry interface {
	Create(desc device.Descriptor) (*device.Device, error)
	Get(id string) (*device.Device, bool)
	Remove(id string) bool
	RegisterHandler(owner string, h device.CommandHandler)
	UnregisterHandler(owner string)
}

// Telemetry receives numeric levels and connection state transitions.
// It is satisfied by *influxdb.Client.
type Telemetry interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
	WriteModuleState(moduleID string, state string, attempts int)
}

// Options holds the collaborators of a Module.
type Options struct {
	// Config is the loaded service configuration. Required.
	Config *config.Config

	// Transport is the broker session. Required.
	Transport Transport

	// Registry receives the imported devices. Required.
	Registry Registry

	// Store persists discovered devices. Required.
	Store Store

	// Namespace receives the device listing. Optional.
	Namespace NamespaceSink

	// Telemetry receives numeric levels. Optional.
	Telemetry Telemetry

	// Logger is optional.
	Logger Logger

	// Clock schedules retries. Defaults to the wall clock.
	Clock Clock
}

// Module imports one broker's controls into the registry.
//
// Exported methods are safe for concurrent use. Everything else is
// owned by the loop goroutine.
type Module struct {
	id        string
	owner     string
	cfg       config.ModuleConfig
	retry     backoff
	transport Transport
	registry  Registry
	store     Store
	telemetry Telemetry
	logger    Logger
	clock     Clock

	events chan event
	quit   chan struct{} // closed when Stop begins
	done   chan struct{} // closed when the loop exits

	lifeMu   sync.Mutex
	started  bool
	stopping bool

	statusMu sync.RWMutex
	status   Status

	// Loop-owned state.
	state       ConnState
	attempts    int
	failed      bool
	retryGen    uint64
	retryTimer  Timer
	tree        *Tree
	classifier  *Classifier
	known       []string
	knownSet    map[string]bool
	enabled     map[string]bool
	descriptors map[string]Descriptor
	generated   map[string]bool
	listing     *listing
	saver       *saver
}

// New creates a stopped module. Call Start to connect.
func New(opts Options) (*Module, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	cfg := opts.Config.Module
	m := &Module{
		id:    cfg.ID,
		owner: OwnerName(cfg.ID),
		cfg:   cfg,
		retry: backoff{
			step: opts.Config.GetRetryStep(),
			max:  opts.Config.GetRetryMax(),
		},
		transport:   opts.Transport,
		registry:    opts.Registry,
		store:       opts.Store,
		telemetry:   opts.Telemetry,
		logger:      opts.Logger,
		clock:       opts.Clock,
		events:      make(chan event, eventQueueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		state:       StateDisconnected,
		tree:        NewTree(),
		knownSet:    make(map[string]bool),
		enabled:     make(map[string]bool),
		descriptors: make(map[string]Descriptor),
		generated:   make(map[string]bool),
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	m.classifier = NewClassifier(cfg.ID, m.tree, cfg.NativePrefixes, cfg.Devices)
	m.listing = newListing(opts.Config.NamespaceName(), opts.Namespace)
	m.status = Status{ModuleID: cfg.ID, State: StateDisconnected}
	return m, nil
}

// OwnerName returns the registry owner name of a module.
func OwnerName(moduleID string) string {
	return "wbimport_" + moduleID
}

// ID returns the module id.
func (m *Module) ID() string { return m.id }

// Owner returns the registry owner name of the module's devices.
func (m *Module) Owner() string { return m.owner }

// Start restores the persisted devices and starts connecting. When it
// fails after the restore the module is stopped again.
func (m *Module) Start(ctx context.Context) error {
	if err := m.begin(ctx); err != nil {
		return err
	}
	if err := m.post(ctx, evStart{}); err != nil {
		m.Stop()
		return err
	}
	return nil
}

// begin restores state and launches the loop.
func (m *Module) begin(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.stopping {
		return ErrStopped
	}
	if m.started {
		return ErrAlreadyStarted
	}

	snap, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading import state: %w", err)
	}

	m.saver = newSaver(m.store, m.logger)
	m.restore(snap)

	m.transport.SetHandlers(mqtt.Handlers{
		OnConnect: func() {
			m.post(context.Background(), evConnected{}) //nolint:errcheck // Dropped after stop
		},
		OnDisconnect: func(err error) {
			m.post(context.Background(), evDisconnected{err: err}) //nolint:errcheck // Dropped after stop
		},
		OnMessage: func(topic string, payload []byte) {
			msg := evMessage{topic: topic, payload: append([]byte(nil), payload...)}
			m.post(context.Background(), msg) //nolint:errcheck // Dropped after stop
		},
	})
	m.registry.RegisterHandler(m.owner, m)

	m.started = true
	go m.loop()

	m.logger.Info("import module started",
		"module_id", m.id,
		"known", len(m.known),
		"enabled", len(m.enabled),
	)
	return nil
}

// Stop disconnects, removes the devices created by the module and
// flushes pending state. It is safe to call more than once.
func (m *Module) Stop() {
	m.lifeMu.Lock()
	if !m.started || m.stopping {
		m.stopping = true
		m.lifeMu.Unlock()
		return
	}
	m.stopping = true
	close(m.quit)
	m.lifeMu.Unlock()

	select {
	case m.events <- evStop{}:
	case <-m.done:
	}
	<-m.done
	m.saver.Close()
	m.logger.Info("import module stopped", "module_id", m.id)
}

// Done is closed when the module loop has exited.
func (m *Module) Done() <-chan struct{} {
	return m.done
}

// Status returns the latest status snapshot.
func (m *Module) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

// HandleCommand publishes cmd for a device created by this module.
// It implements device.CommandHandler.
func (m *Module) HandleCommand(ctx context.Context, deviceID string, cmd device.Command) error {
	var result error
	if err := m.do(ctx, func() { result = m.command(deviceID, cmd) }); err != nil {
		return err
	}
	return result
}

// Devices returns every discovered device in discovery order.
func (m *Module) Devices(ctx context.Context) ([]DeviceInfo, error) {
	var out []DeviceInfo
	if err := m.do(ctx, func() { out = m.deviceInfos() }); err != nil {
		return nil, err
	}
	return out, nil
}

// Device returns one discovered device.
func (m *Module) Device(ctx context.Context, id string) (DeviceInfo, error) {
	var (
		info DeviceInfo
		ok   bool
	)
	if err := m.do(ctx, func() { info, ok = m.deviceInfo(id) }); err != nil {
		return DeviceInfo{}, err
	}
	if !ok {
		return DeviceInfo{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return info, nil
}

// SetEnabled adds a discovered device to, or removes it from, the
// registry. The choice is persisted.
func (m *Module) SetEnabled(ctx context.Context, id string, enabled bool) error {
	var result error
	if err := m.do(ctx, func() { result = m.setEnabled(id, enabled) }); err != nil {
		return err
	}
	return result
}

// Forget drops every trace of a discovered device. It is discovered
// again when its meta topic is next received.
func (m *Module) Forget(ctx context.Context, id string) error {
	var result error
	if err := m.do(ctx, func() { result = m.forget(id) }); err != nil {
		return err
	}
	return result
}

// Tree returns a copy of the topic tree.
func (m *Module) Tree(ctx context.Context) (TreeDump, error) {
	var out TreeDump
	if err := m.do(ctx, func() { out = m.tree.Dump() }); err != nil {
		return TreeDump{}, err
	}
	return out, nil
}

// =============================================================================
// Event loop
// =============================================================================

type event interface{}

type (
	evStart        struct{}
	evStop         struct{}
	evConnected    struct{}
	evDisconnected struct{ err error }
	evRetry        struct{ gen uint64 }
	evMessage      struct {
		topic   string
		payload []byte
	}
	evCall struct {
		fn   func()
		done chan struct{}
	}
)

// post queues ev for the loop. Once Stop has begun nothing more is
// queued, so a transport callback blocked on a full queue cannot hold up
// the disconnect.
func (m *Module) post(ctx context.Context, ev event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-m.quit:
		return ErrStopped
	default:
	}
	select {
	case m.events <- ev:
		return nil
	case <-m.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the loop and waits for it.
func (m *Module) do(ctx context.Context, fn func()) error {
	m.lifeMu.Lock()
	started, stopping := m.started, m.stopping
	m.lifeMu.Unlock()
	if stopping {
		return ErrStopped
	}
	if !started {
		return ErrNotStarted
	}

	call := evCall{fn: fn, done: make(chan struct{})}
	if err := m.post(ctx, call); err != nil {
		return err
	}
	select {
	case <-call.done:
		return nil
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Module) loop() {
	defer close(m.done)
	for ev := range m.events {
		if stop := m.handle(ev); stop {
			return
		}
		m.refreshStatus()
	}
}

// handle processes one event and reports whether the loop must exit.
func (m *Module) handle(ev event) bool {
	switch e := ev.(type) {
	case evStart:
		m.connect()
	case evConnected:
		m.onConnected()
	case evDisconnected:
		m.onDisconnected(e.err)
	case evRetry:
		m.onRetry(e.gen)
	case evMessage:
		m.onMessage(e.topic, e.payload)
	case evCall:
		e.fn()
		close(e.done)
	case evStop:
		m.shutdown()
		return true
	}
	return false
}

func (m *Module) onMessage(topic string, payload []byte) {
	m.logger.Debug("message received", "topic", topic, "payload", string(payload))

	res, err := m.classifier.Classify(topic, payload)
	if err != nil {
		m.logger.Error("dropping message", "topic", topic, "error", err)
		return
	}
	switch {
	case res.Update != nil:
		m.applyValue(*res.Update)
	case res.Definition != nil:
		m.applyDefinition(*res.Definition)
	}
}

// Status is a point-in-time view of a module.
type Status struct {
	ModuleID string    `json:"module_id"`
	State    ConnState `json:"state"`
	Attempts int       `json:"attempts"`
	Failed   bool      `json:"failed"`
	Known    int       `json:"known"`
	Enabled  int       `json:"enabled"`
}

func (m *Module) refreshStatus() {
	s := Status{
		ModuleID: m.id,
		State:    m.state,
		Attempts: m.attempts,
		Failed:   m.failed,
		Known:    len(m.known),
		Enabled:  len(m.enabled),
	}
	m.statusMu.Lock()
	m.status = s
	m.statusMu.Unlock()
}
