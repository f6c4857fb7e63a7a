package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDeviceMetrics = "device_metrics"
	measurementModuleState   = "module_state"
)

// WriteDeviceMetric records one numeric device level.
//
//	client.WriteDeviceMetric("WB_1_wb-w1_controls_28-00", "temperature", 21.5)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	c.write(measurementDeviceMetrics,
		map[string]string{"device_id": deviceID, "measurement": measurement},
		map[string]any{"value": value},
	)
}

// WriteModuleState records a connection state transition of an import module.
func (c *Client) WriteModuleState(moduleID string, state string, attempts int) {
	c.write(measurementModuleState,
		map[string]string{"module_id": moduleID, "state": state},
		map[string]any{"attempts": attempts},
	)
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
