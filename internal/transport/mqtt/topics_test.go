package mqtt

import "testing"

func TestNewTopics(t *testing.T) {
	topics := NewTopics("valveguard/ctrl")
	want := Topics{
		HandshakeRequest:  "valveguard/ctrl/handshake/request",
		HandshakeResponse: "valveguard/ctrl/handshake/response",
		DataRequest:       "valveguard/ctrl/data/request",
		DataResponse:      "valveguard/ctrl/data/response",
		LegacyCommand:     "valveguard/ctrl/command",
		LegacyResponse:    "valveguard/ctrl/response",
	}
	if topics != want {
		t.Fatalf("unexpected topics: %+v", topics)
	}
}
