package ble

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	path := []State{
		StateDown, StateStarting, StateAdvertising, StateUp,
		StateSecurity1Handshake, StateSecurity1Ready, StateOperational, StateEncryptedComm,
	}
	for i := 0; i < len(path)-1; i++ {
		if !canTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestDownReachableFromAnyState(t *testing.T) {
	all := []State{
		StateDown, StateStarting, StateAdvertising, StateUp,
		StateSecurity1Handshake, StateSecurity1Ready, StateOperational, StateEncryptedComm,
	}
	for _, s := range all {
		if !canTransition(s, StateDown) {
			t.Fatalf("expected %s -> DOWN to be legal", s)
		}
	}
}

func TestIllegalSkipTransition(t *testing.T) {
	if canTransition(StateDown, StateOperational) {
		t.Fatalf("DOWN -> OPERATIONAL should be illegal")
	}
}
