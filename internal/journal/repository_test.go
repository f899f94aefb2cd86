package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/helper"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mqtthelper/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.JournalConfig{Path: ":memory:", BusyTimeout: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(context.Background(), migrations.FS))
	return NewSQLiteRepository(db.DB)
}

// =============================================================================
// Repository Tests
// =============================================================================

func TestRecord_FillsDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := &Entry{Operation: OperationConnect, ClientID: "gw", Outcome: "success"}
	require.NoError(t, repo.Record(ctx, e))

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	got := res.Entries[0]
	assert.Equal(t, e.ID, got.ID)
	assert.Empty(t, got.Broker)
	assert.Nil(t, got.Detail)
	assert.WithinDuration(t, e.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestRecord_RejectsUnknownOperation(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Record(context.Background(), &Entry{Operation: "reboot", ClientID: "gw", Outcome: "x"})

	assert.Error(t, err)
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Operation: OperationConnect, ClientID: "gw-1", Outcome: "success", CreatedAt: base},
		{Operation: OperationPublish, ClientID: "gw-1", Outcome: "acknowledged", Topic: "a", CreatedAt: base.Add(time.Second)},
		{Operation: OperationPublish, ClientID: "gw-2", Outcome: "unacknowledged", Topic: "b", CreatedAt: base.Add(2 * time.Second)},
		{Operation: OperationPublish, ClientID: "gw-1", Outcome: "acknowledged", Topic: "c", CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range entries {
		require.NoError(t, repo.Record(ctx, &entries[i]))
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{name: "all newest first", filter: Filter{}, wantTotal: 4, wantFirst: "c"},
		{name: "by operation", filter: Filter{Operation: OperationConnect}, wantTotal: 1, wantFirst: ""},
		{name: "by client", filter: Filter{ClientID: "gw-2"}, wantTotal: 1, wantFirst: "b"},
		{name: "by outcome", filter: Filter{Outcome: "acknowledged"}, wantTotal: 2, wantFirst: "c"},
		{name: "since", filter: Filter{Since: base.Add(1500 * time.Millisecond)}, wantTotal: 2, wantFirst: "c"},
		{name: "paged", filter: Filter{Limit: 1, Offset: 1}, wantTotal: 4, wantFirst: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, res.Total)
			require.NotEmpty(t, res.Entries)
			assert.Equal(t, tt.wantFirst, res.Entries[0].Topic)
		})
	}
}

func TestList_LimitClamp(t *testing.T) {
	repo := newTestRepo(t)

	res, err := repo.List(context.Background(), Filter{Limit: 10_000, Offset: -3})
	require.NoError(t, err)

	assert.Equal(t, maxLimit, res.Limit)
	assert.Zero(t, res.Offset)
	assert.NotNil(t, res.Entries)
	assert.Empty(t, res.Entries)
}

func TestSummaryAndPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	for _, e := range []Entry{
		{Operation: OperationPublish, ClientID: "gw", Outcome: "acknowledged", CreatedAt: old},
		{Operation: OperationPublish, ClientID: "gw", Outcome: "acknowledged"},
		{Operation: OperationPublish, ClientID: "gw", Outcome: "unacknowledged"},
		{Operation: OperationConnect, ClientID: "gw", Outcome: "success"},
	} {
		require.NoError(t, repo.Record(ctx, &e))
	}

	summary, err := repo.Summary(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary[OperationPublish]["acknowledged"])
	assert.Equal(t, 1, summary[OperationPublish]["unacknowledged"])
	assert.Equal(t, 1, summary[OperationConnect]["success"])

	recent, err := repo.Summary(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, recent[OperationPublish]["acknowledged"])

	n, err := repo.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
}

// =============================================================================
// Recorder Tests
// =============================================================================

// memoryRepo records entries in memory.
type memoryRepo struct {
	entries chan Entry
	fail    bool
}

func (m *memoryRepo) Record(_ context.Context, e *Entry) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.entries <- *e
	return nil
}

func (m *memoryRepo) List(context.Context, Filter) (*ListResult, error) { return &ListResult{}, nil }

func (m *memoryRepo) Summary(context.Context, time.Time) (map[string]map[string]int, error) {
	return nil, nil
}

func (m *memoryRepo) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func TestRecorder_WritesObservedOperations(t *testing.T) {
	repo := newTestRepo(t)
	rec := NewRecorder(repo, logging.NewNop(), 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx) //nolint:errcheck // always nil
	}()

	rec.ConnectFinished(helper.ConnectEvent{
		ClientID: "gw", Broker: "tcp://localhost:1883", Code: helper.CodeRefusedCredentials,
		Attempts: 2, Duration: 30 * time.Millisecond, Err: helper.ErrConnectRefused,
	})
	rec.SubscriptionsFinished(helper.SubscribeEvent{
		ClientID: "gw", Outcome: helper.SubscriptionsTimedOut,
		Requested: []string{"a", "b"}, Tracked: 2, Pending: 1,
	})
	rec.PublishFinished(helper.PublishEvent{
		ClientID: "gw", Topic: "t", QoS: 1, MessageID: 9, Acknowledged: true, Latency: 5 * time.Millisecond,
	})
	rec.StateChanged(helper.StateConnecting, helper.StateConnected)

	cancel()
	<-done

	res, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)

	byOp := make(map[string]Entry)
	for _, e := range res.Entries {
		byOp[e.Operation] = e
	}

	connect := byOp[OperationConnect]
	assert.Equal(t, 4, connect.Code)
	assert.Equal(t, "refused", connect.Outcome)
	assert.Equal(t, "tcp://localhost:1883", connect.Broker)
	assert.Equal(t, int64(30), connect.DurationMS)
	assert.InDelta(t, 2, connect.Detail["attempts"], 0)
	assert.Contains(t, connect.Detail["error"], "refused")

	sub := byOp[OperationSubscribe]
	assert.Equal(t, "timed_out", sub.Outcome)
	assert.InDelta(t, 1, sub.Detail["pending"], 0)

	pub := byOp[OperationPublish]
	assert.Equal(t, "acknowledged", pub.Outcome)
	assert.Equal(t, "t", pub.Topic)
	assert.InDelta(t, 9, pub.Detail["message_id"], 0)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &memoryRepo{entries: make(chan Entry, 8)}
	logger, logs := observedLogger()
	rec := NewRecorder(repo, logger, 1)

	// Run is not started, so the queue fills after one entry.
	for i := 0; i < 3; i++ {
		rec.PublishFinished(helper.PublishEvent{ClientID: "gw", Topic: "t"})
	}

	assert.Equal(t, uint64(2), rec.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("journal queue full, dropping entries").Len())
}

func TestRecorder_WriteFailureIsLogged(t *testing.T) {
	repo := &memoryRepo{fail: true}
	logger, logs := observedLogger()
	rec := NewRecorder(repo, logger, 4)

	rec.PublishFinished(helper.PublishEvent{ClientID: "gw", Topic: "t"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))

	assert.Equal(t, 1, logs.FilterMessage("journal write failed").Len())
}
