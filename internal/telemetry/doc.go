// Package telemetry turns helper operation outcomes into metrics.
//
// Metrics exports Prometheus collectors and InfluxRecorder writes points to
// InfluxDB. Both implement helper.Observer and are attached with
// helper.WithObservers.
package telemetry
