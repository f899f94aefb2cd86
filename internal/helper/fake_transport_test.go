package helper

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// fakeTransport is an in-memory mqtt.Transport.
//
// Notifications are queued and delivered in order on a single goroutine,
// and only while the loop is running, mirroring PahoTransport.
type fakeTransport struct {
	mu      sync.Mutex
	events  mqtt.Events
	running bool
	nextID  uint64

	// onConnect decides the result of each connect attempt (1-based).
	// deliver=false means the attempt never produces a result.
	onConnect func(attempt int) (code int, deliver bool)

	// onSubscribe decides the acceptance code and the acknowledgment.
	onSubscribe func(topic string, id uint64) (accept int, granted byte, delay time.Duration, deliver bool)

	// onPublish decides the acceptance code and the acknowledgment.
	onPublish func(topic string, id uint64) (accept int, delay time.Duration, deliver bool)

	tlsErr error

	tlsCalls     int
	connectCalls int
	subscribed   []string
	published    []string
	disconnects  int
	loopStarts   int
	loopStops    int

	queue chan func()
	quit  chan struct{}
}

func newFakeTransport(t *testing.T) *fakeTransport {
	t.Helper()
	f := &fakeTransport{
		onConnect: func(int) (int, bool) { return 0, true },
		onSubscribe: func(string, uint64) (int, byte, time.Duration, bool) {
			return mqtt.ResultSuccess, 0, 0, true
		},
		onPublish: func(string, uint64) (int, time.Duration, bool) {
			return mqtt.ResultSuccess, 0, true
		},
		queue: make(chan func(), 1024),
		quit:  make(chan struct{}),
	}
	go f.run()
	t.Cleanup(func() { close(f.quit) })
	return f
}

func (f *fakeTransport) run() {
	for {
		select {
		case fn := <-f.queue:
			fn()
		case <-f.quit:
			return
		}
	}
}

// deliver queues a notification, optionally after a delay.
func (f *fakeTransport) deliver(delay time.Duration, fn func(mqtt.Events)) {
	enqueue := func() {
		job := func() {
			f.mu.Lock()
			ev, running := f.events, f.running
			f.mu.Unlock()
			if running {
				fn(ev)
			}
		}
		select {
		case f.queue <- job:
		case <-f.quit:
		}
	}
	if delay > 0 {
		time.AfterFunc(delay, enqueue)
		return
	}
	enqueue()
}

func (f *fakeTransport) ConfigureTLS(mqtt.TLSFiles) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tlsCalls++
	return f.tlsErr
}

func (f *fakeTransport) SetEvents(ev mqtt.Events) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = ev
}

func (f *fakeTransport) Connect(string, int, time.Duration) error {
	f.mu.Lock()
	f.connectCalls++
	attempt := f.connectCalls
	decide := f.onConnect
	f.mu.Unlock()

	if code, ok := decide(attempt); ok {
		f.deliver(0, func(ev mqtt.Events) { ev.OnConnect(code) })
	}
	return nil
}

func (f *fakeTransport) StartLoop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.loopStarts++
}

func (f *fakeTransport) StopLoop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.loopStops++
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeTransport) Subscribe(topic string, _ byte) (int, uint64) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subscribed = append(f.subscribed, topic)
	decide := f.onSubscribe
	f.mu.Unlock()

	accept, granted, delay, ok := decide(topic, id)
	if accept != mqtt.ResultSuccess {
		return accept, 0
	}
	if ok {
		f.deliver(delay, func(ev mqtt.Events) { ev.OnSubscribe(id, []byte{granted}) })
	}
	return accept, id
}

func (f *fakeTransport) Publish(topic string, _ []byte, qos byte) (int, uint64) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.published = append(f.published, topic)
	decide := f.onPublish
	f.mu.Unlock()

	accept, delay, ok := decide(topic, id)
	if accept != mqtt.ResultSuccess {
		return accept, 0
	}
	if ok {
		f.deliver(delay, func(ev mqtt.Events) { ev.OnPublish(id) })
	}
	return accept, id
}

// message delivers an inbound message through the loop.
func (f *fakeTransport) message(topic string, payload []byte) {
	f.deliver(0, func(ev mqtt.Events) { ev.OnMessage(topic, payload) })
}

func (f *fakeTransport) counts() (connects, disconnects int, subscribed, published []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.disconnects, append([]string(nil), f.subscribed...), append([]string(nil), f.published...)
}

// testOptions returns fast options for a local broker.
func testOptions(topics string) Options {
	return Options{
		ClientID:             "test-client",
		Host:                 "localhost",
		Port:                 1883,
		Topics:               topics,
		SubscribeWait:        time.Second,
		PublishTimeout:       time.Second,
		ConnectRetryInterval: 50 * time.Millisecond,
	}
}

// observedLogger returns a logger whose entries can be inspected.
func observedLogger() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}

// recordingObserver collects every observer notification.
type recordingObserver struct {
	mu          sync.Mutex
	transitions [][2]State
	connects    []ConnectEvent
	subscribes  []SubscribeEvent
	publishes   []PublishEvent
}

func (r *recordingObserver) StateChanged(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]State{from, to})
}

func (r *recordingObserver) ConnectFinished(ev ConnectEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects = append(r.connects, ev)
}

func (r *recordingObserver) SubscriptionsFinished(ev SubscribeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribes = append(r.subscribes, ev)
}

func (r *recordingObserver) PublishFinished(ev PublishEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishes = append(r.publishes, ev)
}

func (r *recordingObserver) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.transitions))
	for _, tr := range r.transitions {
		out = append(out, tr[1])
	}
	return out
}

// panickingObserver fails every notification.
type panickingObserver struct{ NopObserver }

func (panickingObserver) ConnectFinished(ConnectEvent) { panic("observer boom") }
