package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/config"
)

// =============================================================================
// Test doubles
// =============================================================================

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeClient struct {
	mu          sync.Mutex
	opts        *pahomqtt.ClientOptions
	connectErr  error
	open        bool
	published   []published
	subscribed  []string
	handler     pahomqtt.MessageHandler
	disconnects int

	publishErr   error
	subscribeErr error
}

func (c *fakeClient) IsConnected() bool { return c.IsConnectionOpen() }
func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = c.connectErr == nil
	return doneToken(c.connectErr)
}
func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.open = false
	c.disconnects++
	c.mu.Unlock()
}
func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte), retained: retained})
	c.mu.Unlock()
	return doneToken(c.publishErr)
}
func (c *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	c.subscribed = append(c.subscribed, topic)
	c.handler = cb
	c.mu.Unlock()
	return doneToken(c.subscribeErr)
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken(nil)
}
func (c *fakeClient) Unsubscribe(...string) pahomqtt.Token     { return doneToken(nil) }
func (c *fakeClient) AddRoute(string, pahomqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu       sync.Mutex
	errors   []string
	warns    []string
	warnErrs []error
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	for i := 0; i+1 < len(args); i += 2 {
		if err, ok := args[i+1].(error); ok && args[i] == "error" {
			l.warnErrs = append(l.warnErrs, err)
		}
	}
	l.mu.Unlock()
}

// waitWarnErr waits for the n-th logged warning error.
func (l *mockLogger) waitWarnErr(t *testing.T, n int) error {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		if len(l.warnErrs) > n {
			err := l.warnErrs[n]
			l.mu.Unlock()
			return err
		}
		l.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("warning %d was not logged", n)
	return nil
}

// harness builds sessions backed by fake paho clients.
type harness struct {
	session    *Session
	mu         sync.Mutex
	clients    []*fakeClient
	connectErr error

	connects    chan struct{}
	disconnects chan error
	messages    chan fakeMessage
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "wbimport-test",
		},
		Auth: config.MQTTAuthConfig{Username: "none", Password: "none"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		session:     NewSession(testConfig()),
		connects:    make(chan struct{}, 8),
		disconnects: make(chan error, 8),
		messages:    make(chan fakeMessage, 8),
	}
	h.session.newClient = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		h.mu.Lock()
		defer h.mu.Unlock()
		fc := &fakeClient{opts: opts, connectErr: h.connectErr}
		h.clients = append(h.clients, fc)
		return fc
	}
	h.session.SetHandlers(Handlers{
		OnConnect:    func() { h.connects <- struct{}{} },
		OnDisconnect: func(err error) { h.disconnects <- err },
		OnMessage: func(topic string, payload []byte) {
			h.messages <- fakeMessage{topic: topic, payload: payload}
		},
	})
	return h
}

func (h *harness) client(i int) *fakeClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[i]
}

func expectNone[T any](t *testing.T, ch <-chan T, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(50 * time.Millisecond):
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestSession_ConnectReportsOnConnect(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	fc := h.client(0)
	fc.opts.OnConnect(fc)

	select {
	case <-h.connects:
	case <-time.After(time.Second):
		t.Fatal("OnConnect was not called")
	}
	if !h.session.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestSession_FailedAttemptReportsDisconnect(t *testing.T) {
	h := newHarness(t)
	h.connectErr = errors.New("connection refused")

	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v, want nil for asynchronous failure", err)
	}

	select {
	case err := <-h.disconnects:
		if !errors.Is(err, ErrConnectionFailed) {
			t.Errorf("OnDisconnect error = %v, want ErrConnectionFailed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect was not called for a failed attempt")
	}
}

func TestSession_ConnectionLost(t *testing.T) {
	h := newHarness(t)
	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	fc := h.client(0)

	fc.opts.OnConnectionLost(fc, errors.New("EOF"))

	select {
	case err := <-h.disconnects:
		if !errors.Is(err, ErrConnectionLost) {
			t.Errorf("OnDisconnect error = %v, want ErrConnectionLost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect was not called")
	}
}

func TestSession_ReconnectDropsStaleClient(t *testing.T) {
	h := newHarness(t)
	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := h.session.Connect(); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	stale := h.client(0)
	if stale.disconnects != 1 {
		t.Errorf("stale client disconnects = %d, want 1", stale.disconnects)
	}

	stale.opts.OnConnectionLost(stale, errors.New("late"))
	stale.opts.OnConnect(stale)
	expectNone(t, h.disconnects, "disconnect from stale client")
	expectNone(t, h.connects, "connect from stale client")
}

func TestSession_DisconnectSuppressesCallbacks(t *testing.T) {
	h := newHarness(t)
	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	fc := h.client(0)

	h.session.Disconnect()

	if fc.disconnects != 1 {
		t.Errorf("client disconnects = %d, want 1", fc.disconnects)
	}
	if h.session.IsConnected() {
		t.Error("IsConnected() = true after Disconnect")
	}
	fc.opts.OnConnectionLost(fc, errors.New("closed"))
	expectNone(t, h.disconnects, "disconnect after Disconnect")
}

func TestSession_DisconnectWithoutConnect(t *testing.T) {
	h := newHarness(t)
	h.session.Disconnect()
	if h.session.IsConnected() {
		t.Error("IsConnected() = true, want false")
	}
}

// =============================================================================
// Publish / Subscribe Tests
// =============================================================================

func TestSession_Publish(t *testing.T) {
	h := newHarness(t)

	if err := h.session.Publish("/devices/relay/controls/K1/on", []byte("1"), false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() before connect error = %v, want ErrNotConnected", err)
	}

	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := h.session.Publish("", []byte("1"), false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := h.session.Publish("t", make([]byte, maxPayloadSize+1), false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversized) error = %v, want ErrPublishFailed", err)
	}

	if err := h.session.Publish("/devices/relay/controls/K1/on", []byte("0"), false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	fc := h.client(0)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.published) != 1 {
		t.Fatalf("published = %d messages, want 1", len(fc.published))
	}
	got := fc.published[0]
	if got.topic != "/devices/relay/controls/K1/on" || string(got.payload) != "0" || got.retained {
		t.Errorf("published = %+v, want K1/on payload 0 not retained", got)
	}
}

func TestSession_SubscribeDeliversMessages(t *testing.T) {
	h := newHarness(t)
	if err := h.session.Subscribe("#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() before connect error = %v, want ErrNotConnected", err)
	}
	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := h.session.Subscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := h.session.Subscribe("#"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	fc := h.client(0)
	if len(fc.subscribed) != 1 || fc.subscribed[0] != "#" {
		t.Fatalf("subscribed = %v, want [#]", fc.subscribed)
	}

	fc.handler(fc, fakeMessage{topic: "/devices/wb-w1/controls/28-00/meta", payload: []byte(`{"type":"temperature"}`)})

	select {
	case msg := <-h.messages:
		if msg.topic != "/devices/wb-w1/controls/28-00/meta" {
			t.Errorf("OnMessage topic = %q", msg.topic)
		}
	case <-time.After(time.Second):
		t.Fatal("OnMessage was not called")
	}
}

func TestSession_FailedAcknowledgementIsWrapped(t *testing.T) {
	tests := []struct {
		name string
		fail func(*fakeClient, error)
		call func(*Session) error
		want error
	}{
		{
			name: "subscribe",
			fail: func(c *fakeClient, err error) { c.subscribeErr = err },
			call: func(s *Session) error { return s.Subscribe("#") },
			want: ErrSubscribeFailed,
		},
		{
			name: "publish",
			fail: func(c *fakeClient, err error) { c.publishErr = err },
			call: func(s *Session) error { return s.Publish("/devices/relay/controls/K1/on", []byte("1"), false) },
			want: ErrPublishFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			logger := &mockLogger{}
			h.session.SetLogger(logger)
			if err := h.session.Connect(); err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
			refused := errors.New("not authorised")
			fc := h.client(0)
			fc.mu.Lock()
			tt.fail(fc, refused)
			fc.mu.Unlock()

			if err := tt.call(h.session); err != nil {
				t.Fatalf("call error = %v, want nil until the broker answers", err)
			}
			err := logger.waitWarnErr(t, 0)
			if !errors.Is(err, tt.want) || !errors.Is(err, refused) {
				t.Errorf("logged error = %v, want %v wrapping the broker error", err, tt.want)
			}
		})
	}
}

func TestSession_HandlerPanicRecovered(t *testing.T) {
	h := newHarness(t)
	logger := &mockLogger{}
	h.session.SetLogger(logger)
	h.session.SetHandlers(Handlers{
		OnMessage: func(string, []byte) { panic("boom") },
	})
	if err := h.session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	fc := h.client(0)

	fc.opts.DefaultPublishHandler(fc, fakeMessage{topic: "a/b"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("logged errors = %v, want one panic entry", logger.errors)
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if opts.AutoReconnect || opts.ConnectRetry {
		t.Error("paho reconnect must be disabled")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty for none credentials", opts.Username)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}

	cfg.Auth = config.MQTTAuthConfig{Username: "wb", Password: "secret"}
	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Username != "wb" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want wb/secret", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || !strings.HasPrefix(opts.Servers[0].String(), "ssl://") {
		t.Error("TLS broker should use ssl:// with a TLS config")
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Control", topics.Control("wb-gpio", "EXT1_R3A1"), "/devices/wb-gpio/controls/EXT1_R3A1"},
		{"Meta", topics.Meta("wb-gpio", "EXT1_R3A1"), "/devices/wb-gpio/controls/EXT1_R3A1/meta"},
		{"Command", topics.Command("/devices/relay/controls/K1"), "/devices/relay/controls/K1/on"},
		{"CommandNoLeadingSlash", topics.Command("devices/relay/controls/K1"), "devices/relay/controls/K1/on"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestSplitTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  []string
	}{
		{"/devices/a/controls/b", []string{"devices", "a", "controls", "b"}},
		{"devices/a/controls/b", []string{"devices", "a", "controls", "b"}},
		{"", nil},
		{"/", nil},
		{"a//b", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		got := SplitTopic(tt.topic)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("SplitTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
