package helper

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// SubscribeReport summarises one SubscribeAll call.
type SubscribeReport struct {
	// Requested lists the parsed topics in order.
	Requested []string

	// Tracked counts topics the transport accepted.
	Tracked int

	// Rejected lists topics the transport refused or that failed while issuing.
	Rejected []string
}

// SubscriptionStatus is a snapshot of the subscription tracker.
type SubscriptionStatus struct {
	Requested []string
	Tracked   int
	Pending   int
	Rejected  []string

	// Outcome is the result of the most recent wait; Waited is false if
	// no wait has finished since the last SubscribeAll.
	Outcome SubscriptionOutcome
	Waited  bool
}

// subscriptionTracker records subscribe requests awaiting acknowledgment.
//
// Issuing a request and recording its id happen under one lock hold, and
// acknowledgments take the same lock, so an acknowledgment can never be
// processed before its id is tracked.
type subscriptionTracker struct {
	mu        sync.Mutex
	requested []string
	pending   []uint64
	topicByID map[uint64]string
	tracked   int
	rejected  []string
	changed   chan struct{}
	outcome   SubscriptionOutcome
	waited    bool
}

func newSubscriptionTracker() *subscriptionTracker {
	return &subscriptionTracker{
		topicByID: make(map[uint64]string),
		changed:   make(chan struct{}),
	}
}

// reset clears all tracked state for a new subscribe-all.
func (t *subscriptionTracker) reset(requested []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requested = requested
	t.pending = t.pending[:0]
	t.topicByID = make(map[uint64]string)
	t.tracked = 0
	t.rejected = nil
	t.waited = false
	t.notifyLocked()
}

// issue runs the transport request and tracks its id when accepted.
func (t *subscriptionTracker) issue(topic string, request func() (int, uint64)) (code int, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	code, id = request()
	if code != mqtt.ResultSuccess {
		t.rejected = append(t.rejected, topic)
		return code, id
	}

	t.pending = append(t.pending, id)
	t.topicByID[id] = topic
	t.tracked++
	return code, id
}

// reject records a topic that failed while being issued.
func (t *subscriptionTracker) reject(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejected = append(t.rejected, topic)
}

// acknowledge removes id from the pending set. Unknown ids are ignored.
// A refused grant also records the topic as rejected.
func (t *subscriptionTracker) acknowledge(id uint64, granted []byte) (topic string, found, refused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := slices.Index(t.pending, id)
	if idx < 0 {
		return "", false, false
	}

	topic = t.topicByID[id]
	t.pending = slices.Delete(t.pending, idx, idx+1)
	delete(t.topicByID, id)

	if slices.Contains(granted, mqtt.GrantedFailure) {
		refused = true
		t.rejected = append(t.rejected, topic)
	}

	t.notifyLocked()
	return topic, true, refused
}

// notifyLocked wakes every waiter. Callers hold t.mu.
func (t *subscriptionTracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *subscriptionTracker) snapshot() (pending, tracked int, changed <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending), t.tracked, t.changed
}

// await blocks until the pending set drains, maxWait elapses or ctx ends.
func (t *subscriptionTracker) await(ctx context.Context, maxWait time.Duration) SubscriptionOutcome {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for {
		pending, tracked, changed := t.snapshot()
		if pending == 0 {
			if tracked == 0 {
				return t.finish(SubscriptionsNoneTracked)
			}
			return t.finish(SubscriptionsComplete)
		}

		select {
		case <-changed:
		case <-timer.C:
			if pending, _, _ := t.snapshot(); pending == 0 {
				return t.finish(SubscriptionsComplete)
			}
			return t.finish(SubscriptionsTimedOut)
		case <-ctx.Done():
			return t.finish(SubscriptionsTimedOut)
		}
	}
}

func (t *subscriptionTracker) finish(outcome SubscriptionOutcome) SubscriptionOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome = outcome
	t.waited = true
	return outcome
}

func (t *subscriptionTracker) status() SubscriptionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return SubscriptionStatus{
		Requested: slices.Clone(t.requested),
		Tracked:   t.tracked,
		Pending:   len(t.pending),
		Rejected:  slices.Clone(t.rejected),
		Outcome:   t.outcome,
		Waited:    t.waited,
	}
}

// SubscribeAll subscribes to every topic in a comma-separated list.
//
// Previously tracked ids are discarded first. Each topic the transport
// accepts is tracked until its acknowledgment arrives; a topic it refuses is
// logged and skipped, and a failure while issuing one topic never stops the
// remaining ones.
func (h *Helper) SubscribeAll(topics string, qos byte) SubscribeReport {
	requested := mqtt.ParseTopics(topics)
	h.subs.reset(requested)

	for _, topic := range requested {
		h.subscribeOne(topic, qos)
	}

	st := h.subs.status()
	if st.Tracked == 0 && len(requested) > 0 {
		h.log.Warn("no subscriptions accepted", "requested", len(requested))
	}
	return SubscribeReport{Requested: st.Requested, Tracked: st.Tracked, Rejected: st.Rejected}
}

func (h *Helper) subscribeOne(topic string, qos byte) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("subscribe failed unexpectedly", "topic", topic, "panic", r)
			h.subs.reject(topic)
		}
	}()

	code, id := h.subs.issue(topic, func() (int, uint64) {
		return h.transport.Subscribe(topic, qos)
	})
	if code != mqtt.ResultSuccess {
		h.log.Error("subscribe rejected", "topic", topic, "code", code)
		return
	}
	h.log.Info("subscribe requested", "topic", topic, "qos", qos, "id", id)
}

// AwaitSubscriptions blocks until every tracked subscription is acknowledged,
// maxWait elapses or ctx ends. maxWait <= 0 uses the configured wait.
func (h *Helper) AwaitSubscriptions(ctx context.Context, maxWait time.Duration) SubscriptionOutcome {
	if maxWait <= 0 {
		maxWait = h.opts.SubscribeWait
	}

	start := time.Now()
	outcome := h.subs.await(ctx, maxWait)
	st := h.subs.status()

	switch outcome {
	case SubscriptionsTimedOut:
		h.log.Warn("subscriptions not confirmed", "pending", st.Pending, "tracked", st.Tracked, "wait", maxWait)
	case SubscriptionsNoneTracked:
		h.log.Warn("no subscriptions to confirm", "requested", len(st.Requested), "rejected", len(st.Rejected))
	default:
		h.log.Info("subscriptions confirmed", "tracked", st.Tracked)
	}

	h.observers.subscriptionsFinished(SubscribeEvent{
		ClientID:  h.opts.ClientID,
		Outcome:   outcome,
		Requested: st.Requested,
		Tracked:   st.Tracked,
		Pending:   st.Pending,
		Rejected:  st.Rejected,
		Duration:  time.Since(start),
	})
	return outcome
}

// SubscriptionStatus returns a snapshot of the subscription tracker.
func (h *Helper) SubscriptionStatus() SubscriptionStatus {
	return h.subs.status()
}

// handleSubscribe processes a subscribe acknowledgment.
func (h *Helper) handleSubscribe(id uint64, granted []byte) {
	topic, found, refused := h.subs.acknowledge(id, granted)
	switch {
	case !found:
		h.log.Debug("ignoring unknown subscribe acknowledgment", "id", id)
	case refused:
		h.log.Error("broker refused subscription", "topic", topic, "id", id)
	default:
		h.log.Info("subscription acknowledged", "topic", topic, "id", id, "granted", granted)
	}
}
