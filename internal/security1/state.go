// Package security1 implements the Security1 Session Core (spec.md §4.2):
// a Curve25519 + proof-of-possession handshake producing an AES-CTR +
// HMAC-SHA256 session key, shaped as a deterministic state machine that
// plugs into either transport.
package security1

// State is the Security1 session state machine (spec.md §4.2).
type State int

const (
	StateIdle State = iota
	StateTransportStarting
	StateTransportReady
	StateHandshakePending
	StateHandshakeComplete
	StateSessionActive
	StateError
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTransportStarting:
		return "TRANSPORT_STARTING"
	case StateTransportReady:
		return "TRANSPORT_READY"
	case StateHandshakePending:
		return "HANDSHAKE_PENDING"
	case StateHandshakeComplete:
		return "HANDSHAKE_COMPLETE"
	case StateSessionActive:
		return "SESSION_ACTIVE"
	case StateError:
		return "ERROR"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// TransportKind identifies which transport a Security1 session is bound to.
type TransportKind int

const (
	TransportBLE TransportKind = iota
	TransportMQTT
	TransportHTTP
	TransportCustom
)

func (k TransportKind) String() string {
	switch k {
	case TransportBLE:
		return "BLE"
	case TransportMQTT:
		return "MQTT"
	case TransportHTTP:
		return "HTTP"
	case TransportCustom:
		return "CUSTOM"
	default:
		return "UNKNOWN"
	}
}

// forward transitions the normal operation path is allowed to make. Any
// state may additionally move to StateError (fatal) or StateStopping
// (graceful); those two are checked separately in canTransition.
var forward = map[State][]State{
	StateIdle:              {StateTransportStarting},
	StateTransportStarting: {StateTransportReady},
	StateTransportReady:    {StateHandshakePending},
	StateHandshakePending:  {StateHandshakeComplete},
	StateHandshakeComplete: {StateSessionActive},
	StateSessionActive:     {},
	StateError:             {StateIdle}, // cleanup then re-init
	StateStopping:          {StateIdle},
}

// canTransition reports whether from -> to is a legal state transition.
func canTransition(from, to State) bool {
	if to == StateError || to == StateStopping {
		return true
	}
	for _, allowed := range forward[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
