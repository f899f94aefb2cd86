package helper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// errNoConnectResult marks an attempt that ended without a broker answer.
var errNoConnectResult = errors.New("no connect result yet")

// Connect opens the broker connection and subscribes to the configured
// topics, returning only when both have a terminal outcome.
//
// Connect attempts repeat every ConnectRetryInterval until the transport
// reports a result, MaxConnectAttempts is reached, or ctx ends. A broker
// refusal is returned unchanged (1-5) and no subscriptions are made. After
// a successful connect, Connect waits up to SubscribeWait for every tracked
// subscription and returns CodeSubscriptionIncomplete if some remain
// unconfirmed; the connection stays open in that case.
//
// onMessage receives every inbound message and may be nil. The error is
// nil only for CodeSuccess and wraps one of the package's sentinel errors.
func (h *Helper) Connect(ctx context.Context, onMessage mqtt.MessageHandler) (code Code, err error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	start := time.Now()
	var attempts uint
	defer func() {
		h.observers.connectFinished(ConnectEvent{
			ClientID: h.opts.ClientID,
			Broker:   h.opts.broker(),
			Code:     code,
			Attempts: attempts,
			Duration: time.Since(start),
			Err:      err,
		})
	}()

	if h.initErr != nil {
		return CodeNotInitialized, h.initErr
	}

	if h.life.sessionOpen() {
		h.log.Info("closing previous session before reconnect", "state", string(h.life.current()))
		h.teardownTransport()
		h.transition(ctx, eventDisconnect)
	}

	ctx, cancel := context.WithCancel(ctx)
	h.setCancel(cancel)
	defer func() {
		h.setCancel(nil)
		cancel()
	}()

	h.conn.reset()
	h.setHandler(onMessage)
	h.transition(ctx, eventConnect)

	if h.opts.TLS.Enabled() {
		if tlsErr := h.transport.ConfigureTLS(h.opts.TLS); tlsErr != nil {
			h.log.Error("TLS configuration failed", "error", tlsErr)
			h.conn.resolve(CodeTLSFailure)
			h.transition(ctx, eventFail)
			return CodeTLSFailure, fmt.Errorf("%w: %w", ErrTLSConfig, tlsErr)
		}
	}

	h.transport.SetEvents(h.events())
	h.transport.StartLoop()
	h.started = true

	result, retryErr := h.connectWithRetry(ctx, &attempts)
	if retryErr != nil {
		h.log.Error("connect aborted", "broker", h.opts.broker(), "attempts", attempts, "error", retryErr)
		h.conn.resolve(CodeConnectAborted)
		h.teardownTransport()
		h.transition(ctx, eventFail)
		return CodeConnectAborted, fmt.Errorf("%w: %w", ErrConnectAborted, retryErr)
	}

	if result != CodeSuccess {
		h.log.Error("broker refused connection", "broker", h.opts.broker(), "code", int(result), "reason", result.String())
		h.teardownTransport()
		h.transition(ctx, eventFail)
		return result, fmt.Errorf("%w: %s", ErrConnectRefused, result)
	}

	h.log.Info("connected to broker", "broker", h.opts.broker(), "attempts", attempts)
	h.transition(ctx, eventAccept)
	h.transition(ctx, eventSubscribe)

	outcome := h.AwaitSubscriptions(ctx, h.opts.SubscribeWait)
	if outcome == SubscriptionsTimedOut {
		h.transition(ctx, eventSubscribeTimeout)
		return CodeSubscriptionIncomplete, ErrSubscriptionIncomplete
	}
	h.transition(ctx, eventSubscribed)

	st := h.subs.status()
	if len(st.Rejected) > 0 {
		if h.opts.Rejected == PolicyEscalate {
			h.log.Error("subscriptions rejected", "topics", st.Rejected)
			return CodeSubscriptionRejected, fmt.Errorf("%w: %v", ErrSubscriptionRejected, st.Rejected)
		}
		h.log.Warn("continuing without rejected subscriptions", "topics", st.Rejected)
	}

	return CodeSuccess, nil
}

// connectWithRetry starts connect attempts until the transport reports a
// result. An aborted attempt (ctx ended or attempt cap reached) returns
// an error and no result.
func (h *Helper) connectWithRetry(ctx context.Context, attempts *uint) (Code, error) {
	var result Code

	err := retry.Do(
		func() error {
			*attempts++
			h.log.Info("connecting to broker", "broker", h.opts.broker(), "attempt", *attempts)

			if err := h.transport.Connect(h.opts.Host, h.opts.Port, h.opts.Keepalive); err != nil {
				if errors.Is(err, mqtt.ErrConnectInProgress) {
					h.log.Debug("previous connect attempt still running", "attempt", *attempts)
				} else {
					h.log.Warn("connect attempt failed to start", "attempt", *attempts, "error", err)
				}
			}

			code, ok, err := h.conn.wait(ctx, h.opts.ConnectRetryInterval)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !ok {
				return errNoConnectResult
			}
			result = code
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(h.opts.MaxConnectAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return CodeConnectAborted, err
	}
	if result == CodeConnectAborted {
		return result, context.Canceled
	}
	return result, nil
}

// transition applies a lifecycle event, logging one that does not apply.
func (h *Helper) transition(ctx context.Context, event string) {
	if err := h.life.fire(context.WithoutCancel(ctx), event); err != nil {
		h.log.Debug("lifecycle event ignored", "event", event, "state", string(h.life.current()), "error", err)
	}
}
