package helper

import "errors"

// Sentinel errors returned alongside Connect codes and by Publish.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotInitialized accompanies CodeNotInitialized.
	ErrNotInitialized = errors.New("helper: not initialized")

	// ErrTLSConfig accompanies CodeTLSFailure.
	ErrTLSConfig = errors.New("helper: TLS configuration failed")

	// ErrConnectRefused accompanies a broker refusal code (1-5).
	ErrConnectRefused = errors.New("helper: broker refused connection")

	// ErrConnectAborted accompanies CodeConnectAborted.
	ErrConnectAborted = errors.New("helper: connect aborted before a result")

	// ErrSubscriptionIncomplete accompanies CodeSubscriptionIncomplete.
	ErrSubscriptionIncomplete = errors.New("helper: subscriptions not confirmed in time")

	// ErrSubscriptionRejected accompanies CodeSubscriptionRejected.
	ErrSubscriptionRejected = errors.New("helper: subscriptions rejected")

	// ErrInvalidQoS is returned by Publish for QoS other than 0 or 1.
	ErrInvalidQoS = errors.New("helper: invalid QoS level (must be 0 or 1)")

	// ErrNotConnected is returned by Publish before Connect or after Disconnect.
	ErrNotConnected = errors.New("helper: not connected")
)
