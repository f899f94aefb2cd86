package mqtt

import "time"

// Acceptance codes returned by Transport.Subscribe and Transport.Publish.
// They follow the classic MQTT client error numbering so that logs read the
// same as other MQTT tooling.
const (
	// ResultSuccess means the request was accepted and written (or queued).
	ResultSuccess = 0

	// ResultNoMem means the client could not allocate the request.
	ResultNoMem = 1

	// ResultProtocol means the client library rejected the request.
	ResultProtocol = 2

	// ResultInvalid means the topic or QoS was invalid.
	ResultInvalid = 3

	// ResultNoConn means there is no open connection to the broker.
	ResultNoConn = 4

	// ResultConnLost is reported to OnDisconnect when the connection drops
	// without a disconnect request.
	ResultConnLost = 7

	// ResultPayloadSize means the payload exceeds the allowed size.
	ResultPayloadSize = 9
)

// GrantedFailure is the SUBACK return code for a refused subscription.
const GrantedFailure byte = 0x80

// MessageHandler is the callback signature for received messages.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload, uninterpreted
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Events holds the notification callbacks a Transport delivers.
//
// Every callback is optional. Callbacks run serially on the transport's
// dispatcher goroutine and only while the loop is running.
type Events struct {
	// OnConnect receives the broker's connect result: 0 on success,
	// 1-5 for CONNACK refusals.
	OnConnect func(code int)

	// OnDisconnect receives ResultSuccess after a requested disconnect and
	// ResultConnLost after an unexpected drop.
	OnDisconnect func(code int)

	// OnPublish receives the id returned by Publish once the broker has
	// acknowledged it (QoS 1) or it has been written (QoS 0).
	OnPublish func(id uint64)

	// OnSubscribe receives the id returned by Subscribe and the granted QoS
	// per topic. GrantedFailure marks a refusal.
	OnSubscribe func(id uint64, granted []byte)

	// OnLog receives diagnostic text from the client library.
	OnLog func(text string)

	// OnMessage receives every inbound application message.
	OnMessage func(topic string, payload []byte)
}

func (e Events) connect(code int) {
	if e.OnConnect != nil {
		e.OnConnect(code)
	}
}

func (e Events) disconnect(code int) {
	if e.OnDisconnect != nil {
		e.OnDisconnect(code)
	}
}

func (e Events) publish(id uint64) {
	if e.OnPublish != nil {
		e.OnPublish(id)
	}
}

func (e Events) subscribe(id uint64, granted []byte) {
	if e.OnSubscribe != nil {
		e.OnSubscribe(id, granted)
	}
}

func (e Events) log(text string) {
	if e.OnLog != nil {
		e.OnLog(text)
	}
}

func (e Events) message(topic string, payload []byte) {
	if e.OnMessage != nil {
		e.OnMessage(topic, payload)
	}
}

// Transport is the asynchronous MQTT client boundary.
//
// Implementations never invoke Events callbacks synchronously from inside
// Subscribe or Publish, so a caller may hold its own lock across those calls
// and the bookkeeping of the returned id.
type Transport interface {
	// ConfigureTLS loads TLS material for subsequent connections.
	ConfigureTLS(files TLSFiles) error

	// SetEvents replaces the notification callbacks.
	SetEvents(ev Events)

	// Connect starts a connection attempt and returns without waiting for
	// the result, which arrives through OnConnect. A non-nil error means
	// the attempt could not be started.
	Connect(host string, port int, keepalive time.Duration) error

	// StartLoop starts delivering notifications.
	StartLoop()

	// StopLoop stops delivering notifications. Notifications raised after
	// this call are dropped.
	StopLoop()

	// Disconnect closes the broker connection if one is open.
	Disconnect()

	// Subscribe requests a subscription and returns its acceptance code and
	// request id. The id is only meaningful when the code is ResultSuccess.
	Subscribe(topic string, qos byte) (code int, id uint64)

	// Publish sends a message and returns its acceptance code and message
	// id. The id is only meaningful when the code is ResultSuccess.
	Publish(topic string, payload []byte, qos byte) (code int, id uint64)
}
