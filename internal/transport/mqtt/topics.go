package mqtt

import "fmt"

// Topics holds the topic set derived from a configured prefix
// (spec.md §4.4 "Topics (Security1 mode)").
type Topics struct {
	HandshakeRequest  string
	HandshakeResponse string
	DataRequest       string
	DataResponse      string
	LegacyCommand     string
	LegacyResponse    string
}

// NewTopics derives the full topic set from a prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		HandshakeRequest:  fmt.Sprintf("%s/handshake/request", prefix),
		HandshakeResponse: fmt.Sprintf("%s/handshake/response", prefix),
		DataRequest:       fmt.Sprintf("%s/data/request", prefix),
		DataResponse:      fmt.Sprintf("%s/data/response", prefix),
		LegacyCommand:     fmt.Sprintf("%s/command", prefix),
		LegacyResponse:    fmt.Sprintf("%s/response", prefix),
	}
}
