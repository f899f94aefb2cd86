package helper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/mqtt"
)

// =============================================================================
// Connect Tests
// =============================================================================

func TestConnect_AllSubscriptionsAcknowledged(t *testing.T) {
	f := newFakeTransport(t)
	h := New(testOptions("a,b"), f, nil)
	t.Cleanup(h.Disconnect)

	start := time.Now()
	code, err := h.Connect(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, code)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateSubscriptionsComplete, h.State())

	_, _, subscribed, _ := f.counts()
	assert.Equal(t, []string{"a", "b"}, subscribed)

	st := h.SubscriptionStatus()
	assert.Equal(t, 2, st.Tracked)
	assert.Zero(t, st.Pending)
	assert.Equal(t, SubscriptionsComplete, st.Outcome)
	assert.True(t, st.Waited)
}

func TestConnect_BrokerRefusalSkipsSubscriptions(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(int) (int, bool) { return 5, true }
	h := New(testOptions("a,b"), f, nil)

	code, err := h.Connect(context.Background(), nil)

	assert.Equal(t, CodeRefusedNotAuthorized, code)
	assert.ErrorIs(t, err, ErrConnectRefused)
	assert.Equal(t, StateConnectFailed, h.State())

	_, disconnects, subscribed, _ := f.counts()
	assert.Empty(t, subscribed, "no subscriptions after a refusal")
	assert.Equal(t, 1, disconnects, "transport closed after refusal")
}

func TestConnect_SubscriptionTimeout(t *testing.T) {
	f := newFakeTransport(t)
	f.onSubscribe = func(topic string, _ uint64) (int, byte, time.Duration, bool) {
		return mqtt.ResultSuccess, 0, 0, topic != "b"
	}
	opts := testOptions("a,b")
	opts.SubscribeWait = 300 * time.Millisecond
	h := New(opts, f, nil)
	t.Cleanup(h.Disconnect)

	start := time.Now()
	code, err := h.Connect(context.Background(), nil)
	elapsed := time.Since(start)

	assert.Equal(t, CodeSubscriptionIncomplete, code)
	assert.ErrorIs(t, err, ErrSubscriptionIncomplete)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, StateSubscriptionsTimedOut, h.State())

	st := h.SubscriptionStatus()
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, SubscriptionsTimedOut, st.Outcome)

	// The connection stays usable.
	res, err := h.Publish(context.Background(), "t", []byte("m"), 1, time.Second)
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
}

func TestConnect_OutOfOrderAcknowledgments(t *testing.T) {
	f := newFakeTransport(t)
	f.onSubscribe = func(topic string, _ uint64) (int, byte, time.Duration, bool) {
		if topic == "a" {
			return mqtt.ResultSuccess, 0, 150 * time.Millisecond, true
		}
		return mqtt.ResultSuccess, 0, 10 * time.Millisecond, true
	}
	h := New(testOptions("a,b"), f, nil)
	t.Cleanup(h.Disconnect)

	code, err := h.Connect(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, code)
	assert.Zero(t, h.SubscriptionStatus().Pending)
}

func TestConnect_NotInitialized(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		transport bool
	}{
		{name: "missing host", opts: Options{ClientID: "c", Port: 1883}, transport: true},
		{name: "bad port", opts: Options{ClientID: "c", Host: "h", Port: 70000}, transport: true},
		{name: "missing client id", opts: Options{Host: "h", Port: 1883}, transport: true},
		{name: "key without cert", opts: Options{ClientID: "c", Host: "h", Port: 1883, TLS: mqtt.TLSFiles{ClientKey: "k.pem"}}, transport: true},
		{name: "subscribe qos 2", opts: Options{ClientID: "c", Host: "h", Port: 1883, SubscribeQoS: 2}, transport: true},
		{name: "nil transport", opts: testOptions("a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr mqtt.Transport
			var f *fakeTransport
			if tt.transport {
				f = newFakeTransport(t)
				tr = f
			}
			h := New(tt.opts, tr, nil)

			code, err := h.Connect(context.Background(), nil)

			assert.Equal(t, CodeNotInitialized, code)
			assert.ErrorIs(t, err, ErrNotInitialized)
			assert.Equal(t, StateUninitialized, h.State())
			if f != nil {
				connects, _, _, _ := f.counts()
				assert.Zero(t, connects)
			}

			h.Disconnect()
		})
	}
}

func TestConnect_TLS(t *testing.T) {
	t.Run("configuration failure", func(t *testing.T) {
		f := newFakeTransport(t)
		f.tlsErr = errors.New("no such file")
		opts := testOptions("a")
		opts.TLS = mqtt.TLSFiles{CACert: "/missing/ca.pem"}
		h := New(opts, f, nil)

		code, err := h.Connect(context.Background(), nil)

		assert.Equal(t, CodeTLSFailure, code)
		assert.ErrorIs(t, err, ErrTLSConfig)
		assert.Equal(t, StateConnectFailed, h.State())
		connects, _, _, _ := f.counts()
		assert.Zero(t, connects)
	})

	t.Run("configured before connect", func(t *testing.T) {
		f := newFakeTransport(t)
		opts := testOptions("a")
		opts.TLS = mqtt.TLSFiles{CACert: "ca.pem"}
		h := New(opts, f, nil)
		t.Cleanup(h.Disconnect)

		code, err := h.Connect(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, CodeSuccess, code)
		assert.Equal(t, 1, f.tlsCalls)
	})

	t.Run("plain connection skips TLS", func(t *testing.T) {
		f := newFakeTransport(t)
		h := New(testOptions("a"), f, nil)
		t.Cleanup(h.Disconnect)

		_, err := h.Connect(context.Background(), nil)

		require.NoError(t, err)
		assert.Zero(t, f.tlsCalls)
	})
}

func TestConnect_RetriesUntilResult(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(attempt int) (int, bool) { return 0, attempt == 3 }
	rec := &recordingObserver{}
	h := New(testOptions("a"), f, nil, WithObservers(rec))
	t.Cleanup(h.Disconnect)

	code, err := h.Connect(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, code)
	connects, _, _, _ := f.counts()
	assert.Equal(t, 3, connects)

	require.Len(t, rec.connects, 1)
	assert.Equal(t, uint(3), rec.connects[0].Attempts)
}

func TestConnect_AttemptCap(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(int) (int, bool) { return 0, false }
	opts := testOptions("a")
	opts.MaxConnectAttempts = 3
	opts.ConnectRetryInterval = 20 * time.Millisecond
	h := New(opts, f, nil)

	code, err := h.Connect(context.Background(), nil)

	assert.Equal(t, CodeConnectAborted, code)
	assert.ErrorIs(t, err, ErrConnectAborted)
	assert.Equal(t, StateConnectFailed, h.State())

	connects, disconnects, subscribed, _ := f.counts()
	assert.Equal(t, 3, connects)
	assert.Equal(t, 1, disconnects)
	assert.Empty(t, subscribed)
	assert.Equal(t, 1, f.loopStops)
}

func TestConnect_ContextDeadline(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(int) (int, bool) { return 0, false }
	h := New(testOptions("a"), f, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	start := time.Now()
	code, err := h.Connect(ctx, nil)

	assert.Equal(t, CodeConnectAborted, code)
	assert.ErrorIs(t, err, ErrConnectAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnect_LateResultIgnored(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(int) (int, bool) { return 0, false }
	opts := testOptions("a")
	opts.MaxConnectAttempts = 1
	opts.ConnectRetryInterval = 20 * time.Millisecond
	h := New(opts, f, nil)

	code, _ := h.Connect(context.Background(), nil)
	require.Equal(t, CodeConnectAborted, code)

	// A result arriving after the attempt was abandoned changes nothing.
	h.handleConnect(0)
	assert.Equal(t, StateConnectFailed, h.State())
	_, _, subscribed, _ := f.counts()
	assert.Empty(t, subscribed)
}

func TestConnect_ReconnectClosesPreviousSession(t *testing.T) {
	f := newFakeTransport(t)
	h := New(testOptions("a"), f, nil)
	t.Cleanup(h.Disconnect)

	_, err := h.Connect(context.Background(), nil)
	require.NoError(t, err)
	_, err = h.Connect(context.Background(), nil)
	require.NoError(t, err)

	_, disconnects, subscribed, _ := f.counts()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, 2, f.loopStarts)
	assert.Equal(t, []string{"a", "a"}, subscribed)
	assert.Equal(t, StateSubscriptionsComplete, h.State())
}

func TestConnect_ReconnectAfterRefusal(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(attempt int) (int, bool) {
		if attempt == 1 {
			return 3, true
		}
		return 0, true
	}
	h := New(testOptions("a"), f, nil)
	t.Cleanup(h.Disconnect)

	code, _ := h.Connect(context.Background(), nil)
	require.Equal(t, CodeRefusedUnavailable, code)

	code, err := h.Connect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, code)
}

// =============================================================================
// Subscription Policy Tests
// =============================================================================

func TestConnect_RejectedSubscriptions(t *testing.T) {
	transportRefuses := func(topic string, _ uint64) (int, byte, time.Duration, bool) {
		if topic == "b" {
			return mqtt.ResultNoConn, 0, 0, false
		}
		return mqtt.ResultSuccess, 1, 0, true
	}
	brokerRefuses := func(topic string, _ uint64) (int, byte, time.Duration, bool) {
		if topic == "b" {
			return mqtt.ResultSuccess, mqtt.GrantedFailure, 0, true
		}
		return mqtt.ResultSuccess, 1, 0, true
	}

	tests := []struct {
		name     string
		policy   RejectionPolicy
		decide   func(string, uint64) (int, byte, time.Duration, bool)
		wantCode Code
		wantErr  error
	}{
		{name: "transport refusal dropped", policy: PolicyDrop, decide: transportRefuses, wantCode: CodeSuccess},
		{name: "transport refusal escalated", policy: PolicyEscalate, decide: transportRefuses, wantCode: CodeSubscriptionRejected, wantErr: ErrSubscriptionRejected},
		{name: "broker refusal dropped", policy: PolicyDrop, decide: brokerRefuses, wantCode: CodeSuccess},
		{name: "broker refusal escalated", policy: PolicyEscalate, decide: brokerRefuses, wantCode: CodeSubscriptionRejected, wantErr: ErrSubscriptionRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeTransport(t)
			f.onSubscribe = tt.decide
			opts := testOptions("a,b")
			opts.Rejected = tt.policy
			h := New(opts, f, nil)
			t.Cleanup(h.Disconnect)

			code, err := h.Connect(context.Background(), nil)

			assert.Equal(t, tt.wantCode, code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []string{"b"}, h.SubscriptionStatus().Rejected)
			assert.Equal(t, StateSubscriptionsComplete, h.State())
		})
	}
}

func TestConnect_NoneTracked(t *testing.T) {
	tests := []struct {
		name   string
		topics string
		accept int
	}{
		{name: "no topics", topics: "", accept: mqtt.ResultSuccess},
		{name: "only separators", topics: " , ,", accept: mqtt.ResultSuccess},
		{name: "all refused by transport", topics: "a,b", accept: mqtt.ResultNoConn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeTransport(t)
			f.onSubscribe = func(string, uint64) (int, byte, time.Duration, bool) {
				return tt.accept, 0, 0, true
			}
			logger, logs := observedLogger()
			h := New(testOptions(tt.topics), f, logger)
			t.Cleanup(h.Disconnect)

			start := time.Now()
			code, err := h.Connect(context.Background(), nil)

			require.NoError(t, err)
			assert.Equal(t, CodeSuccess, code)
			assert.Less(t, time.Since(start), 500*time.Millisecond, "nothing to wait for")
			assert.Equal(t, SubscriptionsNoneTracked, h.SubscriptionStatus().Outcome)
			assert.Equal(t, 1, logs.FilterMessage("no subscriptions to confirm").Len())
		})
	}
}

func TestConnect_SubscribePanicIsContained(t *testing.T) {
	f := newFakeTransport(t)
	f.onSubscribe = func(topic string, _ uint64) (int, byte, time.Duration, bool) {
		if topic == "a" {
			panic("subscribe exploded")
		}
		return mqtt.ResultSuccess, 0, 0, true
	}
	logger, logs := observedLogger()
	h := New(testOptions("a,b"), f, logger)
	t.Cleanup(h.Disconnect)

	code, err := h.Connect(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, code)

	st := h.SubscriptionStatus()
	assert.Equal(t, 1, st.Tracked)
	assert.Equal(t, []string{"a"}, st.Rejected)
	assert.Equal(t, 1, logs.FilterMessage("subscribe failed unexpectedly").Len())
}

// =============================================================================
// Disconnect Tests
// =============================================================================

func TestDisconnect_Idempotent(t *testing.T) {
	f := newFakeTransport(t)
	h := New(testOptions("a"), f, nil)

	// Before any connect
	h.Disconnect()
	assert.Equal(t, StateDisconnected, h.State())
	_, disconnects, _, _ := f.counts()
	assert.Zero(t, disconnects, "nothing to tear down")

	_, err := h.Connect(context.Background(), nil)
	require.NoError(t, err)

	h.Disconnect()
	h.Disconnect()

	_, disconnects, _, _ = f.counts()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, 1, f.loopStops)
	assert.Equal(t, StateDisconnected, h.State())

	_, err = h.Publish(context.Background(), "t", nil, 1, time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDisconnect_AfterFailedConnect(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(int) (int, bool) { return 4, true }
	h := New(testOptions("a"), f, nil)

	code, _ := h.Connect(context.Background(), nil)
	require.Equal(t, CodeRefusedCredentials, code)

	h.Disconnect()

	_, disconnects, _, _ := f.counts()
	assert.Equal(t, 1, disconnects, "refusal already tore down the transport")
	assert.Equal(t, StateDisconnected, h.State())
}

func TestDisconnect_AbortsPendingConnect(t *testing.T) {
	f := newFakeTransport(t)
	f.onConnect = func(int) (int, bool) { return 0, false }
	h := New(testOptions("a"), f, nil)

	type result struct {
		code Code
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := h.Connect(context.Background(), nil)
		done <- result{code, err}
	}()

	require.Eventually(t, func() bool {
		connects, _, _, _ := f.counts()
		return connects > 0
	}, time.Second, 5*time.Millisecond)

	h.Disconnect()

	select {
	case r := <-done:
		assert.Equal(t, CodeConnectAborted, r.code)
		assert.ErrorIs(t, r.err, ErrConnectAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after Disconnect")
	}
	assert.Equal(t, StateDisconnected, h.State())
}

// =============================================================================
// Message and Observer Tests
// =============================================================================

func TestHelper_ForwardsMessages(t *testing.T) {
	f := newFakeTransport(t)
	logger, logs := observedLogger()
	h := New(testOptions("a"), f, logger)
	t.Cleanup(h.Disconnect)

	got := make(chan string, 4)
	_, err := h.Connect(context.Background(), func(topic string, payload []byte) error {
		switch string(payload) {
		case "panic":
			panic("handler exploded")
		case "fail":
			return errors.New("cannot handle")
		}
		got <- topic + "=" + string(payload)
		return nil
	})
	require.NoError(t, err)

	f.message("a", []byte("panic"))
	f.message("a", []byte("fail"))
	f.message("a", []byte("hello"))

	select {
	case msg := <-got:
		assert.Equal(t, "a=hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	assert.Equal(t, 1, logs.FilterMessage("panic in message handler").Len())
	assert.Equal(t, 1, logs.FilterMessage("message handler error").Len())
}

func TestHelper_ObserverNotifications(t *testing.T) {
	f := newFakeTransport(t)
	rec := &recordingObserver{}
	logger, logs := observedLogger()
	h := New(testOptions("a,b"), f, logger, WithObservers(panickingObserver{}, rec))

	code, err := h.Connect(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, CodeSuccess, code)

	_, err = h.Publish(context.Background(), "t", []byte("m"), 1, time.Second)
	require.NoError(t, err)

	h.Disconnect()

	assert.Equal(t, []State{
		StateConnecting,
		StateConnected,
		StateSubscriptionsPending,
		StateSubscriptionsComplete,
		StateDisconnected,
	}, rec.states())

	require.Len(t, rec.connects, 1)
	assert.Equal(t, CodeSuccess, rec.connects[0].Code)
	assert.Equal(t, "tcp://localhost:1883", rec.connects[0].Broker)

	require.Len(t, rec.subscribes, 1)
	assert.Equal(t, SubscriptionsComplete, rec.subscribes[0].Outcome)
	assert.Equal(t, []string{"a", "b"}, rec.subscribes[0].Requested)

	require.Len(t, rec.publishes, 1)
	assert.True(t, rec.publishes[0].Acknowledged)

	assert.Equal(t, 1, logs.FilterMessage("observer panic recovered").Len())
}
