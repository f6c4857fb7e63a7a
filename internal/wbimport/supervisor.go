package wbimport

import (
	"context"
	"time"

	"github.com/nerrad567/wbmqtt-import/internal/device"
	"github.com/nerrad567/wbmqtt-import/internal/infrastructure/config"
)

// ConnState is the broker connection state of a module.
type ConnState string

// Connection states.
const (
	StateConnecting    ConnState = "connecting"
	StateConnected     ConnState = "connected"
	StateDisconnecting ConnState = "disconnecting"
	StateDisconnected  ConnState = "disconnected"
)

func (s ConnState) String() string { return string(s) }

// backoff is the linear, capped reconnect delay.
type backoff struct {
	step time.Duration
	max  time.Duration
}

// delay returns the wait before the retry following attempt n.
func (b backoff) delay(n int) time.Duration {
	d := time.Duration(n) * b.step
	if d > b.max {
		return b.max
	}
	return d
}

func (m *Module) setState(s ConnState) {
	if m.state == s {
		return
	}
	m.state = s
	if m.telemetry != nil {
		m.telemetry.WriteModuleState(m.id, string(s), m.attempts)
	}
}

// connect starts one connection attempt.
func (m *Module) connect() {
	m.setState(StateConnecting)
	if err := m.transport.Connect(); err != nil {
		m.logger.Info("broker connection attempt failed", "module_id", m.id, "error", err)
		m.setState(StateDisconnected)
		m.scheduleRetry()
	}
}

func (m *Module) onConnected() {
	if m.state == StateDisconnecting {
		return
	}
	m.cancelRetry()
	m.attempts = 0
	m.setState(StateConnected)
	m.logger.Info("connected to broker", "module_id", m.id)

	if m.failed {
		m.setFailed(false)
		m.logger.Info("devices recovered", "module_id", m.id, "enabled", len(m.enabled))
	}

	if err := m.transport.Subscribe(m.cfg.TopicFilter); err != nil {
		m.logger.Warn("subscribing failed", "module_id", m.id, "filter", m.cfg.TopicFilter, "error", err)
	}
}

func (m *Module) onDisconnected(err error) {
	if m.state == StateDisconnecting {
		m.logger.Info("disconnected due to module stop, not reconnecting", "module_id", m.id)
		return
	}
	m.setState(StateDisconnected)
	m.logger.Info("disconnected from broker, will retry", "module_id", m.id, "error", err)
	m.scheduleRetry()
}

// scheduleRetry arms the retry timer, replacing any pending one.
func (m *Module) scheduleRetry() {
	m.cancelRetry()
	gen := m.retryGen
	m.retryTimer = m.clock.AfterFunc(m.retry.delay(m.attempts), func() {
		m.post(context.Background(), evRetry{gen: gen}) //nolint:errcheck // Dropped after stop
	})
}

// cancelRetry stops the pending timer. A callback already in flight is
// discarded by the generation check in onRetry.
func (m *Module) cancelRetry() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.retryGen++
}

func (m *Module) onRetry(gen uint64) {
	if gen != m.retryGen || m.state == StateDisconnecting || m.state == StateConnected {
		return
	}
	m.retryTimer = nil
	m.attempts++
	m.logger.Info("trying to reconnect", "module_id", m.id, "attempt", m.attempts)

	if threshold := m.cfg.FailAfterAttempts; threshold > 0 && m.attempts >= threshold && !m.failed {
		m.setFailed(true)
		m.logger.Warn("broker unreachable, marking devices failed",
			"module_id", m.id,
			"attempts", m.attempts,
			"enabled", len(m.enabled),
		)
	}
	m.connect()
}

// setFailed flags or clears every enabled device as failed.
func (m *Module) setFailed(failed bool) {
	m.failed = failed
	for id := range m.enabled {
		if dev, ok := m.registry.Get(id); ok {
			dev.Set(device.PathFailed, failed)
		}
	}
}

// shutdown runs on the loop when Stop is called.
func (m *Module) shutdown() {
	m.setState(StateDisconnecting)
	m.cancelRetry()
	m.transport.Disconnect()

	var released []string
	switch m.cfg.RemoveOnStop {
	case config.RemoveEnabled:
		for id := range m.enabled {
			released = append(released, id)
		}
	default:
		for id := range m.generated {
			released = append(released, id)
		}
	}
	for _, id := range released {
		m.registry.Remove(id)
	}
	m.generated = make(map[string]bool)
	m.registry.UnregisterHandler(m.owner)

	m.persist()
	m.refreshStatus()
	m.logger.Debug("devices released", "module_id", m.id, "count", len(released))
}
