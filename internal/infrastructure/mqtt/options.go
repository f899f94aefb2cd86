package mqtt

import (
	"crypto/tls"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connect attempt at the socket level.
	defaultConnectTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the caller passes a zero keepalive.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level the transport accepts.
	maxQoS = 2

	// maxPayloadSize prevents resource exhaustion (1MB).
	maxPayloadSize = 1 << 20

	// eventQueueSize is the dispatcher buffer between paho goroutines and callbacks.
	eventQueueSize = 256

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// TransportOptions configures a PahoTransport.
type TransportOptions struct {
	ClientID string

	// Username and Password are sent when Username is non-empty.
	Username string
	Password string

	// CleanSession asks the broker to discard session state on connect.
	// The helper keeps sessions by default.
	CleanSession bool

	// ConnectTimeout bounds the socket and CONNACK wait of one attempt.
	ConnectTimeout time.Duration

	// Debug bridges paho's DEBUG logger to OnLog as well.
	Debug bool
}

// buildClientOptions creates paho MQTT options for one broker target.
//
// This configures:
//   - Broker URL (tcp:// or ssl://)
//   - Client ID and optional credentials
//   - Session persistence and keepalive
//   - No library-level reconnect: retries are driven by the caller
//   - TLS configuration (if loaded)
func buildClientOptions(brokerURL string, keepalive time.Duration, o TransportOptions, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(o.CleanSession)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	if keepalive <= 0 {
		keepalive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepalive)

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}
