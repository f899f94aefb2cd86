// Package influxdb exports helper operation telemetry to InfluxDB v2.
//
// It wraps influxdb-client-go v2 with a connect-time ping, a batched
// non-blocking write API and helpers for the two measurements the helper
// emits:
//
//	mqtt_operations  one point per connect, subscription wait or publish
//	mqtt_state       one point per lifecycle transition
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // export switched off
//	}
//	defer client.Close()
//
//	client.WriteOperation(influxdb.Operation{Name: "publish", ClientID: "gw", Outcome: "acknowledged"})
//
// # Error Handling
//
// Batch write failures are delivered to the SetOnError callback; Connect
// and HealthCheck return errors directly.
package influxdb
