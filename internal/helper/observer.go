package helper

import "time"

// ConnectEvent describes a finished Connect call.
type ConnectEvent struct {
	ClientID string
	Broker   string
	Code     Code
	Attempts uint
	Duration time.Duration
	Err      error
}

// SubscribeEvent describes a finished wait for subscribe acknowledgments.
type SubscribeEvent struct {
	ClientID  string
	Outcome   SubscriptionOutcome
	Requested []string
	Tracked   int
	Pending   int
	Rejected  []string
	Duration  time.Duration
}

// PublishEvent describes a finished Publish call.
type PublishEvent struct {
	ClientID     string
	Topic        string
	QoS          byte
	MessageID    uint64
	Code         int
	Acknowledged bool
	Latency      time.Duration
}

// Observer receives outcomes of helper operations.
//
// Methods run on the goroutine that finished the operation and must not
// block. Embed NopObserver to implement only some of them.
type Observer interface {
	StateChanged(from, to State)
	ConnectFinished(ev ConnectEvent)
	SubscriptionsFinished(ev SubscribeEvent)
	PublishFinished(ev PublishEvent)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State)            {}
func (NopObserver) ConnectFinished(ConnectEvent)         {}
func (NopObserver) SubscriptionsFinished(SubscribeEvent) {}
func (NopObserver) PublishFinished(PublishEvent)         {}

// observerSet fans events out and contains observer panics.
type observerSet struct {
	list []Observer
	log  Logger
}

func (s observerSet) each(name string, fn func(Observer)) {
	for _, o := range s.list {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("observer panic recovered", "event", name, "panic", r)
				}
			}()
			fn(o)
		}()
	}
}

func (s observerSet) stateChanged(from, to State) {
	s.each("state", func(o Observer) { o.StateChanged(from, to) })
}

func (s observerSet) connectFinished(ev ConnectEvent) {
	s.each("connect", func(o Observer) { o.ConnectFinished(ev) })
}

func (s observerSet) subscriptionsFinished(ev SubscribeEvent) {
	s.each("subscribe", func(o Observer) { o.SubscriptionsFinished(ev) })
}

func (s observerSet) publishFinished(ev PublishEvent) {
	s.each("publish", func(o Observer) { o.PublishFinished(ev) })
}

// Outcome labels a finished publish: "rejected" when the transport refused
// it, "sent" for QoS 0, otherwise "acknowledged" or "unacknowledged".
func (ev PublishEvent) Outcome() string {
	switch {
	case ev.Code != 0:
		return "rejected"
	case ev.QoS == 0:
		return "sent"
	case ev.Acknowledged:
		return "acknowledged"
	default:
		return "unacknowledged"
	}
}
