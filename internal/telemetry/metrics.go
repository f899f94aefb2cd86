package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
)

const namespace = "mqtthelper"

// Metrics records helper outcomes as Prometheus collectors.
type Metrics struct {
	connects       *prometheus.CounterVec
	connectLatency prometheus.Histogram
	connectTries   prometheus.Histogram
	subscriptions  *prometheus.CounterVec
	pendingSubs    prometheus.Gauge
	publishes      *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	state          *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connect_total",
				Help:      "Connect calls by result.",
			},
			[]string{"result"}, // success, refused, tls_failure, ...
		),
		connectLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Time from Connect to its result.",
			Buckets:   prometheus.DefBuckets,
		}),
		connectTries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_attempts",
			Help:      "Connection attempts made per Connect call.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20},
		}),
		subscriptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_waits_total",
				Help:      "Waits for subscribe acknowledgments by outcome.",
			},
			[]string{"outcome"},
		),
		pendingSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_pending",
			Help:      "Subscriptions still unacknowledged when the last wait ended.",
		}),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_total",
				Help:      "Publish calls by QoS and outcome.",
			},
			[]string{"qos", "outcome"},
		),
		publishLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Time from Publish to its result.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"qos"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Current helper state (1 for the active state).",
			},
			[]string{"state"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.connects, m.connectLatency, m.connectTries,
		m.subscriptions, m.pendingSubs,
		m.publishes, m.publishLatency, m.state,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	for _, s := range helper.AllStates {
		m.state.WithLabelValues(string(s)).Set(0)
	}
	m.state.WithLabelValues(string(helper.StateUninitialized)).Set(1)

	return m, nil
}

// StateChanged moves the active state marker.
func (m *Metrics) StateChanged(from, to helper.State) {
	m.state.WithLabelValues(string(from)).Set(0)
	m.state.WithLabelValues(string(to)).Set(1)
}

// ConnectFinished counts a Connect result.
func (m *Metrics) ConnectFinished(ev helper.ConnectEvent) {
	m.connects.WithLabelValues(ev.Code.Label()).Inc()
	m.connectLatency.Observe(ev.Duration.Seconds())
	if ev.Attempts > 0 {
		m.connectTries.Observe(float64(ev.Attempts))
	}
}

// SubscriptionsFinished counts a subscription wait.
func (m *Metrics) SubscriptionsFinished(ev helper.SubscribeEvent) {
	m.subscriptions.WithLabelValues(ev.Outcome.String()).Inc()
	m.pendingSubs.Set(float64(ev.Pending))
}

// PublishFinished counts a Publish result.
func (m *Metrics) PublishFinished(ev helper.PublishEvent) {
	qos := qosLabel(ev.QoS)
	m.publishes.WithLabelValues(qos, ev.Outcome()).Inc()
	m.publishLatency.WithLabelValues(qos).Observe(ev.Latency.Seconds())
}

func qosLabel(q byte) string {
	if q == 0 {
		return "0"
	}
	return "1"
}

var _ helper.Observer = (*Metrics)(nil)
