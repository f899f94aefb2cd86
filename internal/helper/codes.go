package helper

import (
	"fmt"
	"strings"
)

// Code is the terminal result of Connect.
//
// Zero is success. Positive values from 1 to 5 are the broker's CONNACK
// refusal codes passed through unchanged; 17 and 18 report subscription
// problems on an otherwise established connection. Negative values are
// failures detected locally before or instead of a broker answer.
type Code int

// Connect result codes.
const (
	CodeSuccess Code = 0

	CodeRefusedProtocolVersion Code = 1
	CodeRefusedIdentifier      Code = 2
	CodeRefusedUnavailable     Code = 3
	CodeRefusedCredentials     Code = 4
	CodeRefusedNotAuthorized   Code = 5

	// CodeSubscriptionIncomplete means the connection is up but not every
	// subscription was acknowledged within the wait bound.
	CodeSubscriptionIncomplete Code = 17

	// CodeSubscriptionRejected means the connection is up and every tracked
	// subscription completed, but at least one topic was rejected and the
	// rejection policy is PolicyEscalate.
	CodeSubscriptionRejected Code = 18

	// CodeTLSFailure means the TLS material could not be loaded.
	CodeTLSFailure Code = -1

	// CodeNotInitialized means the helper was built from incomplete options.
	CodeNotInitialized Code = -2

	// CodeConnectAborted means no connect result arrived before the attempt
	// cap was reached or the context ended.
	CodeConnectAborted Code = -3
)

// String returns a short human-readable reason.
func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeRefusedProtocolVersion:
		return "refused: unacceptable protocol version"
	case CodeRefusedIdentifier:
		return "refused: identifier rejected"
	case CodeRefusedUnavailable:
		return "refused: server unavailable"
	case CodeRefusedCredentials:
		return "refused: bad user name or password"
	case CodeRefusedNotAuthorized:
		return "refused: not authorised"
	case CodeSubscriptionIncomplete:
		return "subscriptions not confirmed"
	case CodeSubscriptionRejected:
		return "subscriptions rejected"
	case CodeTLSFailure:
		return "TLS configuration failed"
	case CodeNotInitialized:
		return "not initialized"
	case CodeConnectAborted:
		return "connect aborted"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// SubscriptionOutcome is the result of waiting for subscribe acknowledgments.
type SubscriptionOutcome int

const (
	// SubscriptionsComplete means every tracked subscription was acknowledged.
	SubscriptionsComplete SubscriptionOutcome = iota

	// SubscriptionsNoneTracked means there was nothing to wait for: no
	// topics were given or the transport accepted none of them.
	SubscriptionsNoneTracked

	// SubscriptionsTimedOut means the wait ended with acknowledgments outstanding.
	SubscriptionsTimedOut
)

func (o SubscriptionOutcome) String() string {
	switch o {
	case SubscriptionsComplete:
		return "complete"
	case SubscriptionsNoneTracked:
		return "none_tracked"
	case SubscriptionsTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RejectionPolicy decides how Connect treats rejected subscriptions.
type RejectionPolicy int

const (
	// PolicyDrop logs rejected topics and carries on without them.
	PolicyDrop RejectionPolicy = iota

	// PolicyEscalate makes Connect return CodeSubscriptionRejected.
	PolicyEscalate
)

func (p RejectionPolicy) String() string {
	if p == PolicyEscalate {
		return "escalate"
	}
	return "drop"
}

// ParseRejectionPolicy reads "drop" or "escalate". Empty means drop.
func ParseRejectionPolicy(s string) (RejectionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return PolicyDrop, nil
	case "escalate":
		return PolicyEscalate, nil
	default:
		return PolicyDrop, fmt.Errorf("unknown rejection policy %q", s)
	}
}

// Label returns a stable snake_case name for metrics and journals.
func (c Code) Label() string {
	switch {
	case c == CodeSuccess:
		return "success"
	case c >= CodeRefusedProtocolVersion && c <= CodeRefusedNotAuthorized:
		return "refused"
	case c == CodeSubscriptionIncomplete:
		return "subscriptions_incomplete"
	case c == CodeSubscriptionRejected:
		return "subscriptions_rejected"
	case c == CodeTLSFailure:
		return "tls_failure"
	case c == CodeNotInitialized:
		return "not_initialized"
	case c == CodeConnectAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
