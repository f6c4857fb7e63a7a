// Package logging provides structured logging for the import service.
//
// It wraps log/slog so every entry carries the service and version fields
// and honours the configured level filter.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Setting the level to debug logs every inbound MQTT message.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("supervisor").Info("connected", "broker", addr)
//
// Never log broker passwords or InfluxDB tokens.
package logging
