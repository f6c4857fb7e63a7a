package mqtt

import "errors"

// Session errors. Failures from paho are wrapped with one of these so
// callers can match them with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: session not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrConnectionLost   = errors.New("mqtt: connection lost")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic rejects an empty topic or filter before it reaches
	// the broker.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
