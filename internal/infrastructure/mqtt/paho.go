package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// PahoTransport implements Transport on top of paho.mqtt.golang.
//
// paho reports results through tokens. Each token is awaited on its own
// goroutine and the outcome is handed to a single dispatcher goroutine, which
// invokes the Events callbacks in order.
//
// Request ids are assigned here rather than taken from paho, whose 16-bit
// packet ids are recycled: an id returned by Subscribe or Publish is never
// reused for the lifetime of the transport.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type PahoTransport struct {
	opts      TransportOptions
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	mu        sync.Mutex
	client    pahomqtt.Client
	target    string
	tlsConfig *tls.Config
	events    Events
	loop      *dispatcher

	connecting atomic.Bool
	teardowns  atomic.Uint64
	nextID     atomic.Uint64
}

var _ Transport = (*PahoTransport)(nil)

// NewPahoTransport creates a transport. No connection is made until Connect.
//
// paho's package-level ERROR, CRITICAL and WARN loggers (and DEBUG when
// opts.Debug is set) are redirected to this transport's OnLog callback. They
// are process globals, so the most recently created transport receives them.
func NewPahoTransport(opts TransportOptions) *PahoTransport {
	t := &PahoTransport{
		opts:      opts,
		newClient: pahomqtt.NewClient,
	}
	t.installLogBridge()
	return t
}

// ConfigureTLS loads TLS material. The next Connect uses an ssl:// broker URL.
func (t *PahoTransport) ConfigureTLS(files TLSFiles) error {
	cfg, err := LoadTLSConfig(files)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.tlsConfig = cfg
	t.client = nil
	t.target = ""
	t.mu.Unlock()
	return nil
}

// SetEvents replaces the notification callbacks.
func (t *PahoTransport) SetEvents(ev Events) {
	t.mu.Lock()
	t.events = ev
	t.mu.Unlock()
}

// StartLoop starts the dispatcher goroutine. Calling it twice is a no-op.
func (t *PahoTransport) StartLoop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loop == nil {
		t.loop = newDispatcher(eventQueueSize)
	}
}

// StopLoop stops the dispatcher goroutine. It does not wait for a callback
// in progress, so it may be called from inside one.
func (t *PahoTransport) StopLoop() {
	t.mu.Lock()
	loop := t.loop
	t.loop = nil
	t.mu.Unlock()

	if loop != nil {
		loop.close()
	}
}

// Connect starts an asynchronous connection attempt.
//
// The outcome is delivered through OnConnect when the broker answers and
// through OnLog when the attempt fails before a CONNACK (network errors,
// timeouts). Only one attempt runs at a time.
func (t *PahoTransport) Connect(host string, port int, keepalive time.Duration) error {
	if !t.connecting.CompareAndSwap(false, true) {
		return ErrConnectInProgress
	}

	client := t.clientFor(host, port, keepalive)
	generation := t.teardowns.Load()
	token := client.Connect()
	go t.awaitConnect(client, token, generation)
	return nil
}

// clientFor returns the paho client for a broker target, building it when
// the target or TLS settings changed.
func (t *PahoTransport) clientFor(host string, port int, keepalive time.Duration) pahomqtt.Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	brokerURL := BrokerURL(host, port, t.tlsConfig != nil)
	target := fmt.Sprintf("%s|%s", brokerURL, keepalive)
	if t.client != nil && t.target == target {
		return t.client
	}

	opts := buildClientOptions(brokerURL, keepalive, t.opts, t.tlsConfig)
	opts.SetDefaultPublishHandler(t.handleMessage)
	opts.SetConnectionLostHandler(t.handleConnectionLost)

	t.client = t.newClient(opts)
	t.target = target
	return t.client
}

func (t *PahoTransport) currentClient() pahomqtt.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

// awaitConnect waits for a connect token and reports its outcome.
//
// A connection that completes after Disconnect was called is closed at once:
// nothing owns it any more.
func (t *PahoTransport) awaitConnect(client pahomqtt.Client, token pahomqtt.Token, generation uint64) {
	defer t.connecting.Store(false)

	token.Wait()
	err := token.Error()
	if t.teardowns.Load() != generation {
		if err == nil {
			client.Disconnect(defaultDisconnectQuiesce)
		}
		t.emitLog("connect attempt abandoned by disconnect")
		return
	}
	if err == nil {
		t.emit(func(ev Events) { ev.connect(ResultSuccess) })
		return
	}

	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		rc := ct.ReturnCode()
		if rc >= packets.ErrRefusedBadProtocolVersion && rc <= packets.ErrRefusedNotAuthorised {
			t.emit(func(ev Events) { ev.connect(int(rc)) })
			return
		}
	}

	t.emitLog(fmt.Sprintf("connect failed: %v", err))
}

// Disconnect closes the broker connection if one is open. A connect attempt
// still in flight is abandoned and its connection closed when it completes.
func (t *PahoTransport) Disconnect() {
	t.teardowns.Add(1)

	client := t.currentClient()
	if client == nil || !client.IsConnectionOpen() {
		return
	}

	client.Disconnect(defaultDisconnectQuiesce)
	t.emit(func(ev Events) { ev.disconnect(ResultSuccess) })
}

// Subscribe requests a subscription. Messages arrive through OnMessage.
func (t *PahoTransport) Subscribe(topic string, qos byte) (int, uint64) {
	if topic == "" || qos > maxQoS {
		return ResultInvalid, 0
	}

	client := t.currentClient()
	if client == nil {
		return ResultNoConn, 0
	}

	token := client.Subscribe(topic, qos, nil)
	if code := immediateResult(token); code != ResultSuccess {
		return code, 0
	}

	id := t.nextID.Add(1)
	go t.awaitSubscribe(token, id, topic)
	return ResultSuccess, id
}

// awaitSubscribe waits for a SUBACK and reports the granted QoS.
func (t *PahoTransport) awaitSubscribe(token pahomqtt.Token, id uint64, topic string) {
	token.Wait()

	granted, haveResult := grantedQoS(token, topic)
	if err := token.Error(); err != nil && !haveResult {
		t.emitLog(fmt.Sprintf("subscribe %q failed: %v", topic, err))
		return
	}

	t.emit(func(ev Events) { ev.subscribe(id, []byte{granted}) })
}

// grantedQoS extracts the SUBACK return code for topic, if paho recorded one.
func grantedQoS(token pahomqtt.Token, topic string) (byte, bool) {
	st, ok := token.(*pahomqtt.SubscribeToken)
	if !ok {
		return 0, false
	}
	granted, found := st.Result()[topic]
	return granted, found
}

// Publish sends a message. QoS 1 completion means the broker sent PUBACK.
func (t *PahoTransport) Publish(topic string, payload []byte, qos byte) (int, uint64) {
	if topic == "" || qos > maxQoS {
		return ResultInvalid, 0
	}
	if len(payload) > maxPayloadSize {
		return ResultPayloadSize, 0
	}

	client := t.currentClient()
	if client == nil {
		return ResultNoConn, 0
	}

	token := client.Publish(topic, qos, false, payload)
	if code := immediateResult(token); code != ResultSuccess {
		return code, 0
	}

	id := t.nextID.Add(1)
	go t.awaitPublish(token, id, topic)
	return ResultSuccess, id
}

// awaitPublish waits for a publish token and reports the acknowledgment.
func (t *PahoTransport) awaitPublish(token pahomqtt.Token, id uint64, topic string) {
	token.Wait()
	if err := token.Error(); err != nil {
		t.emitLog(fmt.Sprintf("publish to %q failed: %v", topic, err))
		return
	}
	t.emit(func(ev Events) { ev.publish(id) })
}

// immediateResult maps a token that already failed to an acceptance code.
// Tokens still in flight count as accepted.
func immediateResult(token pahomqtt.Token) int {
	select {
	case <-token.Done():
		return resultFor(token.Error())
	default:
		return ResultSuccess
	}
}

func resultFor(err error) int {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, pahomqtt.ErrNotConnected):
		return ResultNoConn
	default:
		return ResultProtocol
	}
}

// handleMessage forwards inbound messages to OnMessage.
func (t *PahoTransport) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	topic, payload := msg.Topic(), msg.Payload()
	t.emit(func(ev Events) { ev.message(topic, payload) })
}

// handleConnectionLost reports an unexpected drop.
func (t *PahoTransport) handleConnectionLost(_ pahomqtt.Client, err error) {
	t.emitLog(fmt.Sprintf("connection lost: %v", err))
	t.emit(func(ev Events) { ev.disconnect(ResultConnLost) })
}

// emit queues a notification for the dispatcher. The callbacks are read when
// the notification runs, so SetEvents takes effect for queued notifications.
func (t *PahoTransport) emit(deliver func(Events)) {
	t.mu.Lock()
	loop := t.loop
	t.mu.Unlock()

	if loop == nil {
		return
	}
	loop.post(func() { deliver(t.currentEvents()) })
}

// emitLog queues a log notification, dropping it if the queue is full.
// paho calls its loggers while holding internal locks, so this never blocks.
func (t *PahoTransport) emitLog(text string) {
	t.mu.Lock()
	loop := t.loop
	t.mu.Unlock()

	if loop == nil {
		return
	}
	loop.tryPost(func() { t.currentEvents().log(text) })
}

func (t *PahoTransport) currentEvents() Events {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// logBridge adapts paho's Logger interface to OnLog.
type logBridge struct {
	t     *PahoTransport
	level string
}

func (b logBridge) Println(v ...interface{}) {
	b.t.emitLog(b.level + ": " + strings.TrimSpace(fmt.Sprintln(v...)))
}

func (b logBridge) Printf(format string, v ...interface{}) {
	b.t.emitLog(b.level + ": " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (t *PahoTransport) installLogBridge() {
	pahomqtt.ERROR = logBridge{t: t, level: "error"}
	pahomqtt.CRITICAL = logBridge{t: t, level: "critical"}
	pahomqtt.WARN = logBridge{t: t, level: "warn"}
	if t.opts.Debug {
		pahomqtt.DEBUG = logBridge{t: t, level: "debug"}
	}
}
