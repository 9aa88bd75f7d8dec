package quictest

import "testing"

func TestHappyPath(t *testing.T) {
	path := []State{
		StateDown, StateListening, StateConnected,
		StateSecurity1Handshake, StateOperational,
	}
	for i := 0; i < len(path)-1; i++ {
		if !canTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestDownReachableFromAnyState(t *testing.T) {
	all := []State{
		StateDown, StateListening, StateConnected,
		StateSecurity1Handshake, StateOperational,
	}
	for _, s := range all {
		if !canTransition(s, StateDown) {
			t.Fatalf("expected %s -> DOWN to be legal", s)
		}
	}
}

func TestListeningCannotSkipToOperational(t *testing.T) {
	if canTransition(StateListening, StateOperational) {
		t.Fatalf("expected LISTENING -> OPERATIONAL to be illegal")
	}
}
