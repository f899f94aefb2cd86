package helper

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// State is a lifecycle state of the helper.
type State string

// Lifecycle states.
const (
	StateUninitialized         State = "uninitialized"
	StateConnecting            State = "connecting"
	StateConnectFailed         State = "connect_failed"
	StateConnected             State = "connected"
	StateSubscriptionsPending  State = "subscriptions_pending"
	StateSubscriptionsComplete State = "subscriptions_complete"
	StateSubscriptionsTimedOut State = "subscriptions_timed_out"
	StateDisconnected          State = "disconnected"
)

// Lifecycle events.
const (
	eventConnect          = "connect"
	eventFail             = "fail"
	eventAccept           = "accept"
	eventSubscribe        = "subscribe"
	eventSubscribed       = "subscribed"
	eventSubscribeTimeout = "subscribe_timeout"
	eventDisconnect       = "disconnect"
)

// AllStates lists every lifecycle state, in lifecycle order.
var AllStates = []State{
	StateUninitialized,
	StateConnecting,
	StateConnectFailed,
	StateConnected,
	StateSubscriptionsPending,
	StateSubscriptionsComplete,
	StateSubscriptionsTimedOut,
	StateDisconnected,
}

// lifecycle wraps the state machine and reports transitions.
type lifecycle struct {
	machine *fsm.FSM
}

func newLifecycle(log Logger, observers observerSet) *lifecycle {
	s := func(states ...State) []string {
		out := make([]string, len(states))
		for i, st := range states {
			out[i] = string(st)
		}
		return out
	}

	events := fsm.Events{
		{Name: eventConnect, Src: s(StateUninitialized, StateConnectFailed, StateDisconnected), Dst: string(StateConnecting)},
		{Name: eventFail, Src: s(StateConnecting), Dst: string(StateConnectFailed)},
		{Name: eventAccept, Src: s(StateConnecting), Dst: string(StateConnected)},
		{Name: eventSubscribe, Src: s(StateConnected), Dst: string(StateSubscriptionsPending)},
		{Name: eventSubscribed, Src: s(StateSubscriptionsPending), Dst: string(StateSubscriptionsComplete)},
		{Name: eventSubscribeTimeout, Src: s(StateSubscriptionsPending), Dst: string(StateSubscriptionsTimedOut)},
		{Name: eventDisconnect, Src: s(
			StateUninitialized,
			StateConnecting,
			StateConnectFailed,
			StateConnected,
			StateSubscriptionsPending,
			StateSubscriptionsComplete,
			StateSubscriptionsTimedOut,
		), Dst: string(StateDisconnected)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			from, to := State(e.Src), State(e.Dst)
			log.Debug("lifecycle transition", "event", e.Event, "from", string(from), "to", string(to))
			observers.stateChanged(from, to)
		},
	}

	return &lifecycle{machine: fsm.NewFSM(string(StateUninitialized), events, callbacks)}
}

// fire applies an event. Events that do not apply to the current state are
// reported as errors; a transition to the current state is not an error.
func (l *lifecycle) fire(ctx context.Context, event string) error {
	err := l.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return err
	}
	return nil
}

func (l *lifecycle) current() State {
	return State(l.machine.Current())
}

// sessionOpen reports whether a broker connection may be open.
func (l *lifecycle) sessionOpen() bool {
	switch l.current() {
	case StateConnecting, StateConnected, StateSubscriptionsPending,
		StateSubscriptionsComplete, StateSubscriptionsTimedOut:
		return true
	default:
		return false
	}
}
