package upstream

import "testing"

func TestNextStateHappyPath(t *testing.T) {
	steps := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerDialed, StateConnecting},
		{TriggerHandshakeOK, StateHandshakeWait},
		{TriggerInventoryRequested, StateInventoryFetch},
		{TriggerInventoryReceived, StateLive},
	}
	state := StateDisconnected
	for i, step := range steps {
		state = NextState(state, step.trigger)
		if state != step.want {
			t.Fatalf("step %d: state = %v, want %v", i, state, step.want)
		}
	}
}

func TestNextStateSocketClosedReconnectsFromAnyConnectedState(t *testing.T) {
	for _, s := range []State{StateConnecting, StateHandshakeWait, StateInventoryFetch, StateLive} {
		if got := NextState(s, TriggerSocketClosed); got != StateReconnecting {
			t.Errorf("from %v: NextState(SocketClosed) = %v, want Reconnecting", s, got)
		}
	}
}

func TestNextStateIgnoresUnrecognizedTrigger(t *testing.T) {
	if got := NextState(StateDisconnected, TriggerInventoryReceived); got != StateDisconnected {
		t.Errorf("unexpected transition: %v", got)
	}
}

func TestIsAvailable(t *testing.T) {
	if !StateLive.IsAvailable() {
		t.Errorf("Live should be available")
	}
	for _, s := range []State{StateDisconnected, StateConnecting, StateHandshakeWait, StateInventoryFetch, StateReconnecting} {
		if s.IsAvailable() {
			t.Errorf("%v should not be available", s)
		}
	}
}
