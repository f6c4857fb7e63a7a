package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends payload to topic at the configured QoS.
//
// The call does not wait for the broker; a failed acknowledgement is only
// logged. Retained should stay false for command topics.
func (s *Session) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	client, err := s.connectedClient()
	if err != nil {
		return err
	}

	token := client.Publish(topic, s.qos(), retained, payload)
	s.watch(token, ErrPublishFailed, topic)
	return nil
}

func (s *Session) qos() byte {
	if s.cfg.QoS < 0 || s.cfg.QoS > maxQoS {
		return 0
	}
	return byte(s.cfg.QoS)
}
