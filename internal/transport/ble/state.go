// Package ble implements Transport-BLE (spec.md §4.3): a GATT peripheral
// presenting a Security1 handshake service and an operational service,
// with MTU-aware chunked I/O, advertising backoff, and send-path
// back-pressure with a circuit breaker.
package ble

// State is the Transport-BLE state machine (spec.md §4.3).
type State int

const (
	StateDown State = iota
	StateStarting
	StateAdvertising
	StateUp
	StateSecurity1Handshake
	StateSecurity1Ready
	StateOperational
	StateEncryptedComm
)

func (s State) String() string {
	switch s {
	case StateDown:
		return "DOWN"
	case StateStarting:
		return "STARTING"
	case StateAdvertising:
		return "ADVERTISING"
	case StateUp:
		return "UP"
	case StateSecurity1Handshake:
		return "SECURITY1_HANDSHAKE"
	case StateSecurity1Ready:
		return "SECURITY1_READY"
	case StateOperational:
		return "OPERATIONAL"
	case StateEncryptedComm:
		return "ENCRYPTED_COMM"
	default:
		return "UNKNOWN"
	}
}

var forward = map[State][]State{
	StateDown:              {StateStarting},
	StateStarting:          {StateAdvertising},
	StateAdvertising:       {StateUp},
	StateUp:                {StateSecurity1Handshake},
	StateSecurity1Handshake: {StateSecurity1Ready},
	StateSecurity1Ready:    {StateOperational},
	StateOperational:       {StateEncryptedComm},
	StateEncryptedComm:     {},
}

// canTransition reports whether from -> to is legal. DOWN is reachable
// from any state, on disconnect or fatal error (spec.md §4.3).
func canTransition(from, to State) bool {
	if to == StateDown {
		return true
	}
	for _, allowed := range forward[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
