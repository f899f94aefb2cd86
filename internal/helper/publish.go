package helper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// PublishResult is the outcome of Publish.
type PublishResult struct {
	QoS byte

	// Code is the transport's acceptance code. For QoS 0 this is the whole
	// result; a non-zero code on QoS 1 means nothing was sent.
	Code int

	// MessageID is the id assigned by the transport when Code is zero.
	MessageID uint64

	// Acknowledged reports whether the broker confirmed a QoS 1 publish
	// within the timeout. Always false for QoS 0.
	Acknowledged bool
}

// publishTracker maps in-flight publish ids to their waiters.
//
// Each QoS 1 publish registers its own completion channel, so concurrent
// publishes are matched to their own acknowledgments.
type publishTracker struct {
	mu      sync.Mutex
	waiters map[uint64]chan struct{}
	last    uint64
	hasLast bool
}

func newPublishTracker() *publishTracker {
	return &publishTracker{waiters: make(map[uint64]chan struct{})}
}

// issue runs the transport request and, when wait is set and the request
// was accepted, registers a waiter for the returned id.
func (t *publishTracker) issue(request func() (int, uint64), wait bool) (code int, id uint64, done <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hasLast = false
	code, id = request()
	if code != mqtt.ResultSuccess || !wait {
		return code, id, nil
	}

	ch := make(chan struct{})
	t.waiters[id] = ch
	return code, id, ch
}

// acknowledge records id as the latest acknowledgment and releases its waiter.
func (t *publishTracker) acknowledge(id uint64) (waited bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = id
	t.hasLast = true
	if ch, ok := t.waiters[id]; ok {
		close(ch)
		delete(t.waiters, id)
		return true
	}
	return false
}

func (t *publishTracker) forget(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waiters, id)
}

func (t *publishTracker) lastAcknowledged() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

func (t *publishTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// Publish sends payload to topic.
//
// QoS 0 returns as soon as the transport has accepted or refused the
// message. QoS 1 additionally waits up to timeout for the broker's
// acknowledgment; a missing acknowledgment is reported through
// Acknowledged=false, not as an error. timeout <= 0 uses the configured
// publish timeout.
//
// Errors are returned only for an invalid QoS, a closed session, or a
// cancelled ctx. Publish may be called from several goroutines at once.
func (h *Helper) Publish(ctx context.Context, topic string, payload []byte, qos byte, timeout time.Duration) (PublishResult, error) {
	if qos > 1 {
		return PublishResult{QoS: qos}, fmt.Errorf("publish qos %d: %w", qos, ErrInvalidQoS)
	}
	if h.initErr != nil {
		return PublishResult{QoS: qos}, ErrNotInitialized
	}
	if !h.life.sessionOpen() {
		return PublishResult{QoS: qos}, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = h.opts.PublishTimeout
	}

	start := time.Now()
	code, id, done := h.pubs.issue(func() (int, uint64) {
		return h.transport.Publish(topic, payload, qos)
	}, qos == 1)
	h.log.Debug("publish accepted by transport", "topic", topic, "qos", qos, "code", code, "id", id)

	result := PublishResult{QoS: qos, Code: code, MessageID: id}
	finish := func() {
		h.observers.publishFinished(PublishEvent{
			ClientID:     h.opts.ClientID,
			Topic:        topic,
			QoS:          qos,
			MessageID:    id,
			Code:         code,
			Acknowledged: result.Acknowledged,
			Latency:      time.Since(start),
		})
	}

	if code != mqtt.ResultSuccess {
		h.log.Error("publish rejected", "topic", topic, "qos", qos, "code", code)
		finish()
		return result, nil
	}
	if done == nil {
		finish()
		return result, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		result.Acknowledged = true
		h.log.Debug("publish acknowledged", "topic", topic, "id", id)
	case <-timer.C:
		h.pubs.forget(id)
		select {
		case <-done:
			result.Acknowledged = true
		default:
			h.log.Warn("publish not acknowledged", "topic", topic, "id", id, "timeout", timeout)
		}
	case <-ctx.Done():
		h.pubs.forget(id)
		finish()
		return result, fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}

	finish()
	return result, nil
}

// LastAcknowledged returns the id of the most recent publish acknowledgment.
// ok is false until an acknowledgment arrives after the latest Publish.
func (h *Helper) LastAcknowledged() (id uint64, ok bool) {
	return h.pubs.lastAcknowledged()
}

func (h *Helper) handlePublish(id uint64) {
	if !h.pubs.acknowledge(id) {
		h.log.Debug("publish acknowledgment without waiter", "id", id)
	}
}
