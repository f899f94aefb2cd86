package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
)

// drainTimeout bounds the final writes after Run's context ends.
const drainTimeout = 5 * time.Second

// Logger is the logging surface the recorder needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder journals helper operations.
//
// It implements helper.Observer. Notifications are queued and written by
// Run, so observer callbacks never wait on SQLite. When the queue is full
// entries are dropped and counted.
type Recorder struct {
	repo    Repository
	log     Logger
	queue   chan Entry
	dropped atomic.Uint64
}

// NewRecorder returns a recorder with room for size queued entries.
func NewRecorder(repo Repository, log Logger, size int) *Recorder {
	if size <= 0 {
		size = 256
	}
	return &Recorder{repo: repo, log: log, queue: make(chan Entry, size)}
}

// Run writes queued entries until ctx ends, then drains what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		case <-ctx.Done():
			r.drain()
			return nil
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	if err := r.repo.Record(ctx, &e); err != nil {
		r.log.Error("journal write failed", "operation", e.Operation, "error", err)
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(e Entry) {
	e.CreatedAt = time.Now()
	select {
	case r.queue <- e:
	default:
		if r.dropped.Add(1) == 1 {
			r.log.Warn("journal queue full, dropping entries", "capacity", cap(r.queue))
		}
	}
}

// StateChanged is not journalled.
func (r *Recorder) StateChanged(helper.State, helper.State) {}

// ConnectFinished journals a Connect result.
func (r *Recorder) ConnectFinished(ev helper.ConnectEvent) {
	detail := map[string]any{"attempts": ev.Attempts}
	if ev.Err != nil {
		detail["error"] = ev.Err.Error()
	}
	r.enqueue(Entry{
		Operation:  OperationConnect,
		ClientID:   ev.ClientID,
		Broker:     ev.Broker,
		Code:       int(ev.Code),
		Outcome:    ev.Code.Label(),
		Detail:     detail,
		DurationMS: ev.Duration.Milliseconds(),
	})
}

// SubscriptionsFinished journals a subscription wait.
func (r *Recorder) SubscriptionsFinished(ev helper.SubscribeEvent) {
	detail := map[string]any{
		"requested": ev.Requested,
		"tracked":   ev.Tracked,
		"pending":   ev.Pending,
	}
	if len(ev.Rejected) > 0 {
		detail["rejected"] = ev.Rejected
	}
	r.enqueue(Entry{
		Operation:  OperationSubscribe,
		ClientID:   ev.ClientID,
		Outcome:    ev.Outcome.String(),
		Detail:     detail,
		DurationMS: ev.Duration.Milliseconds(),
	})
}

// PublishFinished journals a Publish result.
func (r *Recorder) PublishFinished(ev helper.PublishEvent) {
	r.enqueue(Entry{
		Operation:  OperationPublish,
		ClientID:   ev.ClientID,
		Topic:      ev.Topic,
		Code:       ev.Code,
		Outcome:    ev.Outcome(),
		Detail:     map[string]any{"qos": ev.QoS, "message_id": ev.MessageID},
		DurationMS: ev.Latency.Milliseconds(),
	})
}

var _ helper.Observer = (*Recorder)(nil)
