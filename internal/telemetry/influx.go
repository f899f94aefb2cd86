package telemetry

import (
	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/influxdb"
)

// PointWriter is the part of influxdb.Client the recorder writes through.
type PointWriter interface {
	WriteOperation(op influxdb.Operation)
	WriteState(clientID, from, to string)
}

// InfluxRecorder writes helper outcomes as InfluxDB points.
// Writes are batched by the client, so callbacks return immediately.
type InfluxRecorder struct {
	w        PointWriter
	clientID string
}

// NewInfluxRecorder returns a recorder tagging state points with clientID.
func NewInfluxRecorder(w PointWriter, clientID string) *InfluxRecorder {
	return &InfluxRecorder{w: w, clientID: clientID}
}

func (r *InfluxRecorder) StateChanged(from, to helper.State) {
	r.w.WriteState(r.clientID, string(from), string(to))
}

func (r *InfluxRecorder) ConnectFinished(ev helper.ConnectEvent) {
	r.w.WriteOperation(influxdb.Operation{
		Name:     "connect",
		ClientID: ev.ClientID,
		Outcome:  ev.Code.Label(),
		Code:     int(ev.Code),
		Duration: ev.Duration,
	})
}

func (r *InfluxRecorder) SubscriptionsFinished(ev helper.SubscribeEvent) {
	r.w.WriteOperation(influxdb.Operation{
		Name:     "subscribe",
		ClientID: ev.ClientID,
		Outcome:  ev.Outcome.String(),
		// code carries the number of unacknowledged subscriptions
		Code:     ev.Pending,
		Duration: ev.Duration,
	})
}

func (r *InfluxRecorder) PublishFinished(ev helper.PublishEvent) {
	r.w.WriteOperation(influxdb.Operation{
		Name:     "publish",
		ClientID: ev.ClientID,
		Outcome:  ev.Outcome(),
		Code:     ev.Code,
		Duration: ev.Latency,
		Topic:    ev.Topic,
		QoS:      int(ev.QoS),
	})
}

var (
	_ helper.Observer = (*InfluxRecorder)(nil)
	_ PointWriter     = (*influxdb.Client)(nil)
)
