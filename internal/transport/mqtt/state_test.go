package mqtt

import "testing"

func TestSecureModeHappyPath(t *testing.T) {
	path := []State{
		StateDown, StateConnecting, StateUp,
		StateSecurity1Handshake, StateSecurity1Ready, StateOperational, StateEncryptedComm,
	}
	for i := 0; i < len(path)-1; i++ {
		if !canTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestLegacyModeSkipsHandshake(t *testing.T) {
	if !canTransition(StateUp, StateOperational) {
		t.Fatalf("expected UP -> OPERATIONAL to be legal for legacy mode")
	}
}

func TestDownReachableFromAnyState(t *testing.T) {
	all := []State{
		StateDown, StateConnecting, StateUp,
		StateSecurity1Handshake, StateSecurity1Ready, StateOperational, StateEncryptedComm,
	}
	for _, s := range all {
		if !canTransition(s, StateDown) {
			t.Fatalf("expected %s -> DOWN to be legal", s)
		}
	}
}
