// Package mqtt provides the broker session used by the import engine.
//
// A Session wraps paho.mqtt.golang with reconnection turned off: each
// Connect is one attempt, and success or failure is reported through
// Handlers. The caller owns retry timing. Publish and Subscribe return as
// soon as the packet is queued; acknowledgement failures are logged.
//
// # Usage
//
//	session := mqtt.NewSession(cfg.MQTT)
//	session.SetHandlers(mqtt.Handlers{
//	    OnConnect:    func() { session.Subscribe("#") },
//	    OnDisconnect: func(err error) { scheduleRetry(err) },
//	    OnMessage:    func(topic string, payload []byte) { handle(topic, payload) },
//	})
//	if err := session.Connect(); err != nil {
//	    scheduleRetry(err)
//	}
//
// Topics follow the Wiren Board convention; see Topics.
package mqtt
