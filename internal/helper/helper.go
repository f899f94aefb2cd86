package helper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// Logger is the logging surface the helper needs.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Option customises a Helper.
type Option func(*Helper)

// WithObservers registers observers for operation outcomes.
func WithObservers(observers ...Observer) Option {
	return func(h *Helper) {
		h.observers.list = append(h.observers.list, observers...)
	}
}

// Helper is a blocking client over an asynchronous Transport.
//
// Connect and Disconnect are serialised internally. Publish may run
// concurrently with other Publish calls once connected.
type Helper struct {
	opts      Options
	transport mqtt.Transport
	log       Logger
	observers observerSet
	initErr   error

	// opMu serialises Connect and Disconnect.
	opMu    sync.Mutex
	started bool

	conn *connectionState
	subs *subscriptionTracker
	pubs *publishTracker
	life *lifecycle

	handlerMu sync.RWMutex
	handler   mqtt.MessageHandler

	cancelMu      sync.Mutex
	cancelConnect context.CancelFunc
}

// New builds a Helper. Invalid options are not reported here: the helper
// is still returned and Connect fails with CodeNotInitialized.
func New(opts Options, transport mqtt.Transport, logger Logger, options ...Option) *Helper {
	if logger == nil {
		logger = nopLogger{}
	}

	h := &Helper{
		opts:      opts.withDefaults(),
		transport: transport,
		log:       logger,
		observers: observerSet{log: logger},
		conn:      &connectionState{},
		subs:      newSubscriptionTracker(),
		pubs:      newPublishTracker(),
	}
	for _, o := range options {
		o(h)
	}

	if err := h.opts.validate(); err != nil {
		h.initErr = fmt.Errorf("%w: %w", ErrNotInitialized, err)
	}
	if transport == nil {
		h.initErr = errors.Join(h.initErr, fmt.Errorf("%w: transport is required", ErrNotInitialized))
	}
	if h.initErr != nil {
		h.log.Error("helper options invalid", "error", h.initErr)
	}

	h.life = newLifecycle(logger, h.observers)
	return h
}

// Options returns the effective options with defaults applied.
func (h *Helper) Options() Options {
	return h.opts
}

// State returns the current lifecycle state.
func (h *Helper) State() State {
	return h.life.current()
}

// Disconnect closes the broker connection and stops notification delivery.
//
// A Connect still waiting for a result is abandoned first. Disconnect is
// safe to call in any state and more than once.
func (h *Helper) Disconnect() {
	h.cancelPendingConnect()

	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.conn.resolve(CodeConnectAborted)
	h.teardownTransport()

	if h.life.current() == StateDisconnected {
		return
	}
	if err := h.life.fire(context.Background(), eventDisconnect); err != nil {
		h.log.Debug("disconnect transition skipped", "error", err)
		return
	}
	h.log.Info("disconnected", "broker", h.opts.broker())
}

// teardownTransport disconnects and stops the loop if Connect started it.
// Callers hold opMu.
func (h *Helper) teardownTransport() {
	if !h.started {
		return
	}
	h.transport.Disconnect()
	h.transport.StopLoop()
	h.started = false
}

func (h *Helper) cancelPendingConnect() {
	h.cancelMu.Lock()
	cancel := h.cancelConnect
	h.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *Helper) setCancel(cancel context.CancelFunc) {
	h.cancelMu.Lock()
	h.cancelConnect = cancel
	h.cancelMu.Unlock()
}

func (h *Helper) setHandler(fn mqtt.MessageHandler) {
	h.handlerMu.Lock()
	h.handler = fn
	h.handlerMu.Unlock()
}

// events returns the transport callbacks bound to this helper.
func (h *Helper) events() mqtt.Events {
	return mqtt.Events{
		OnConnect:    h.handleConnect,
		OnDisconnect: h.handleDisconnect,
		OnPublish:    h.handlePublish,
		OnSubscribe:  h.handleSubscribe,
		OnLog:        h.handleLog,
		OnMessage:    h.handleMessage,
	}
}

// handleConnect records the broker's connect result. On success the
// configured topics are subscribed before the result is released, so the
// subscription wait in Connect always sees every tracked id.
func (h *Helper) handleConnect(code int) {
	h.log.Info("connect result received", "code", code, "reason", Code(code).String())

	if !h.conn.isPending() {
		h.log.Debug("ignoring connect result with no attempt pending", "code", code)
		return
	}

	if code == mqtt.ResultSuccess {
		h.SubscribeAll(h.opts.Topics, h.opts.SubscribeQoS)
	}
	h.conn.resolve(Code(code))
}

func (h *Helper) handleDisconnect(code int) {
	if code == mqtt.ResultSuccess {
		h.log.Info("transport disconnected", "code", code)
		return
	}
	h.log.Warn("transport connection lost", "code", code)
}

func (h *Helper) handleLog(text string) {
	h.log.Debug("transport log", "text", text)
}

// handleMessage forwards an inbound message to the caller's handler.
func (h *Helper) handleMessage(topic string, payload []byte) {
	h.handlerMu.RLock()
	fn := h.handler
	h.handlerMu.RUnlock()

	if fn == nil {
		h.log.Debug("message dropped, no handler", "topic", topic)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic in message handler", "topic", topic, "panic", r)
		}
	}()

	if err := fn(topic, payload); err != nil {
		h.log.Warn("message handler error", "topic", topic, "error", err)
	}
}
