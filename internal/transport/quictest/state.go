package quictest

// State mirrors the BLE/MQTT transport state machines, scoped to what a
// single-stream QUIC test harness needs (spec.md §4.2's transport-kind
// lifecycle, adapted without advertising/broker-specific states).
type State int

const (
	StateDown State = iota
	StateListening
	StateConnected
	StateSecurity1Handshake
	StateOperational
)

func (s State) String() string {
	switch s {
	case StateDown:
		return "DOWN"
	case StateListening:
		return "LISTENING"
	case StateConnected:
		return "CONNECTED"
	case StateSecurity1Handshake:
		return "SECURITY1_HANDSHAKE"
	case StateOperational:
		return "OPERATIONAL"
	default:
		return "UNKNOWN"
	}
}

var forward = map[State][]State{
	StateDown:              {StateListening},
	StateListening:         {StateConnected, StateDown},
	StateConnected:         {StateSecurity1Handshake, StateDown},
	StateSecurity1Handshake: {StateOperational, StateDown},
	StateOperational:       {StateDown},
}

func canTransition(from, to State) bool {
	if to == StateDown {
		return true
	}
	for _, s := range forward[from] {
		if s == to {
			return true
		}
	}
	return false
}
