package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/config"
)

// Handlers receives session events. Any field may be nil.
//
// OnDisconnect is called both when an attempt fails to connect and when an
// established connection drops. It is not called for Disconnect.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func(err error)
	OnMessage    func(topic string, payload []byte)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Session is a single broker session driven from the outside.
//
// Connect only starts an attempt; the outcome arrives through Handlers.
// Each Connect builds a fresh paho client, and callbacks from a client
// that has since been replaced or disconnected are dropped.
//
// All methods are safe for concurrent use.
type Session struct {
	cfg config.MQTTConfig

	mu       sync.Mutex
	client   pahomqtt.Client
	gen      uint64
	handlers Handlers
	logger   Logger

	// newClient is replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// NewSession creates a disconnected session for cfg.
func NewSession(cfg config.MQTTConfig) *Session {
	return &Session{
		cfg:       cfg,
		newClient: pahomqtt.NewClient,
	}
}

// SetHandlers replaces the event handlers.
func (s *Session) SetHandlers(h Handlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

// SetLogger sets a logger for acknowledgement failures and handler panics.
func (s *Session) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Broker returns the broker URL the session connects to.
func (s *Session) Broker() string {
	return brokerURL(s.cfg)
}

// Connect starts a new connection attempt, abandoning any previous client.
func (s *Session) Connect() error {
	s.mu.Lock()
	old := s.client
	s.gen++
	gen := s.gen

	opts := buildClientOptions(s.cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		if h, ok := s.current(gen); ok && h.OnConnect != nil {
			h.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if h, ok := s.current(gen); ok && h.OnDisconnect != nil {
			h.OnDisconnect(fmt.Errorf("%w: %w", ErrConnectionLost, err))
		}
	})
	opts.SetDefaultPublishHandler(s.wrapHandler(gen))

	client := s.newClient(opts)
	s.client = client
	s.mu.Unlock()

	if old != nil {
		old.Disconnect(0)
	}

	token := client.Connect()
	go s.awaitConnect(gen, token)
	return nil
}

// awaitConnect reports a failed attempt through OnDisconnect.
func (s *Session) awaitConnect(gen uint64, token pahomqtt.Token) {
	token.Wait()
	err := token.Error()
	if err == nil {
		return
	}
	if h, ok := s.current(gen); ok && h.OnDisconnect != nil {
		h.OnDisconnect(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
	}
}

// Disconnect closes the session. No further callbacks are delivered for the
// current client.
func (s *Session) Disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.gen++
	s.mu.Unlock()

	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
}

// IsConnected reports whether the current client has a live connection.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	return client != nil && client.IsConnectionOpen()
}

// current returns the handlers if gen still identifies the live client.
func (s *Session) current(gen uint64) (Handlers, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers, gen == s.gen && s.client != nil
}

func (s *Session) connectedClient() (pahomqtt.Client, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return nil, ErrNotConnected
	}
	return client, nil
}

func (s *Session) getLogger() Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// wrapHandler adapts OnMessage to paho with panic recovery.
func (s *Session) wrapHandler(gen uint64) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := s.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		h, ok := s.current(gen)
		if !ok || h.OnMessage == nil {
			return
		}
		h.OnMessage(msg.Topic(), msg.Payload())
	}
}

// watch logs a failed acknowledgement, wrapped with failed, without
// blocking the caller.
func (s *Session) watch(token pahomqtt.Token, failed error, topic string) {
	go func() {
		if !token.WaitTimeout(defaultAckTimeout) {
			if logger := s.getLogger(); logger != nil {
				logger.Warn("MQTT acknowledgement timed out", "topic", topic, "error", failed)
			}
			return
		}
		if err := token.Error(); err != nil {
			if logger := s.getLogger(); logger != nil {
				logger.Warn("MQTT operation failed", "topic", topic, "error", fmt.Errorf("%w: %w", failed, err))
			}
		}
	}()
}
