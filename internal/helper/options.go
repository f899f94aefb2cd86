package helper

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// Default timings.
const (
	DefaultKeepalive            = 60 * time.Second
	DefaultConnectRetryInterval = 2 * time.Second
	DefaultSubscribeWait        = 10 * time.Second
	DefaultPublishTimeout       = 5 * time.Second
)

// Options describes one logical broker connection.
type Options struct {
	ClientID string
	Host     string
	Port     int

	// Topics is a comma-separated list subscribed to on every successful connect.
	Topics string

	// TLS material. Empty means a plain TCP connection.
	TLS mqtt.TLSFiles

	Keepalive time.Duration

	// SubscribeQoS is used for every topic in Topics.
	SubscribeQoS byte

	// SubscribeWait bounds the wait for subscribe acknowledgments in Connect.
	SubscribeWait time.Duration

	// PublishTimeout is used by Publish when the caller passes no timeout.
	PublishTimeout time.Duration

	// ConnectRetryInterval is the pause between connect attempts.
	ConnectRetryInterval time.Duration

	// MaxConnectAttempts caps connect attempts. 0 retries until a result
	// arrives or the context ends.
	MaxConnectAttempts uint

	// Rejected decides what a rejected subscription does to Connect.
	Rejected RejectionPolicy
}

// withDefaults fills zero timings.
func (o Options) withDefaults() Options {
	if o.Keepalive <= 0 {
		o.Keepalive = DefaultKeepalive
	}
	if o.ConnectRetryInterval <= 0 {
		o.ConnectRetryInterval = DefaultConnectRetryInterval
	}
	if o.SubscribeWait <= 0 {
		o.SubscribeWait = DefaultSubscribeWait
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	return o
}

// validate reports every missing or inconsistent setting.
func (o Options) validate() error {
	var result *multierror.Error

	if o.Host == "" {
		result = multierror.Append(result, fmt.Errorf("host is required"))
	}
	if o.Port < 1 || o.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port %d out of range", o.Port))
	}
	if o.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is required"))
	}
	if !o.TLS.Consistent() {
		result = multierror.Append(result, mqtt.ErrInconsistentTLS)
	}
	if o.SubscribeQoS > 1 {
		result = multierror.Append(result, fmt.Errorf("subscribe QoS %d: %w", o.SubscribeQoS, ErrInvalidQoS))
	}

	return result.ErrorOrNil()
}

// broker returns the broker URL for log lines.
func (o Options) broker() string {
	return mqtt.BrokerURL(o.Host, o.Port, o.TLS.Enabled())
}
