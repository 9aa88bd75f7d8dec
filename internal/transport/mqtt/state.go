// Package mqtt implements Transport-MQTT (spec.md §4.4): a broker
// connection carrying either a legacy single command/response topic pair
// or, with Security1 enabled, separate handshake and operational topic
// pairs, with reconnect backoff.
package mqtt

// State is the Transport-MQTT state machine (spec.md §4.4).
type State int

const (
	StateDown State = iota
	StateConnecting
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
	case StateConnecting:
		return "CONNECTING"
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
	StateDown:              {StateConnecting},
	StateConnecting:        {StateUp, StateDown},
	StateUp:                {StateSecurity1Handshake, StateOperational},
	StateSecurity1Handshake: {StateSecurity1Ready},
	StateSecurity1Ready:    {StateOperational},
	StateOperational:       {StateEncryptedComm},
	StateEncryptedComm:     {},
}

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
