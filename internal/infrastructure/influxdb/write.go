package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementOperations = "mqtt_operations"
	MeasurementState      = "mqtt_state"
)

// Operation is one finished helper operation.
type Operation struct {
	// Name is connect, subscribe or publish.
	Name     string
	ClientID string

	// Outcome is a short label such as "success", "timed_out" or "refused".
	Outcome string

	Code     int
	Duration time.Duration

	// Topic is stored as a field; topics are too varied to index.
	Topic string
	QoS   int
	At    time.Time
}

// WriteOperation records a finished operation.
//
// Tags: operation, client_id, outcome. Fields: code, duration_ms and,
// when set, topic and qos.
func (c *Client) WriteOperation(op Operation) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"code":        op.Code,
		"duration_ms": float64(op.Duration) / float64(time.Millisecond),
	}
	if op.Topic != "" {
		fields["topic"] = op.Topic
		fields["qos"] = op.QoS
	}

	at := op.At
	if at.IsZero() {
		at = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementOperations,
		map[string]string{
			"operation": op.Name,
			"client_id": op.ClientID,
			"outcome":   op.Outcome,
		},
		fields,
		at,
	))
}

// WriteState records a lifecycle transition.
func (c *Client) WriteState(clientID, from, to string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementState,
		map[string]string{"client_id": clientID, "state": to},
		map[string]interface{}{"from": from},
		time.Now(),
	))
}

// WritePoint writes a point with caller-supplied tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
