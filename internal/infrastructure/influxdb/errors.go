package influxdb

import "errors"

// Telemetry sink errors. Write methods never return them; points written
// to a closed or disabled sink are discarded.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers run without telemetry.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed is returned by Connect when the server cannot be
	// reached or reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: server unreachable")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: client closed")
)
