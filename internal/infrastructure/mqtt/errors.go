package mqtt

import "errors"

// Domain-specific errors for MQTT transport operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectInProgress is returned by Connect while a previous attempt
	// has not yet produced a result.
	ErrConnectInProgress = errors.New("mqtt: connect attempt already in progress")

	// ErrTLSConfig is returned when TLS material cannot be loaded.
	ErrTLSConfig = errors.New("mqtt: invalid TLS configuration")

	// ErrInconsistentTLS is returned when only one of client certificate
	// and client key is supplied.
	ErrInconsistentTLS = errors.New("mqtt: client certificate and key must be supplied together")
)
