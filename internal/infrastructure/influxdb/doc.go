// Package influxdb exports device levels and module state transitions to
// InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Writes use the
// non-blocking, batched WriteAPI so the import engine never waits on the
// time-series database.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("WB_1_wb-w1_controls_28-00", "temperature", 21.5)
//
// Points:
//
//	device_metrics,device_id=<id>,measurement=<type> value=<float>
//	module_state,module_id=<id>,state=<state> attempts=<int>
package influxdb
