package codec

import (
	"encoding/json"
	"errors"

	"github.com/valveguard/corectl/internal/frame"
)

var (
	ErrMQTTBadJSON   = errors.New("codec: malformed MQTT JSON command")
	ErrMQTTMissingID = errors.New("codec: MQTT command missing id")
	ErrMQTTMissingOp = errors.New("codec: MQTT command missing op")
)

// mqttCommand is the MQTT JSON command wire shape: {"id", "op", "payload"}.
type mqttCommand struct {
	ID      *uint16 `json:"id"`
	Op      *string `json:"op"`
	Payload *string `json:"payload"`
}

// DecodeMQTTCommand decodes an MQTT JSON command. A missing id or op, or a
// wrong-typed field, is rejected.
func DecodeMQTTCommand(wire []byte) (frame.Frame, error) {
	var cmd mqttCommand
	if err := json.Unmarshal(wire, &cmd); err != nil {
		return frame.Frame{}, ErrMQTTBadJSON
	}
	if cmd.ID == nil {
		return frame.Frame{}, ErrMQTTMissingID
	}
	if cmd.Op == nil {
		return frame.Frame{}, ErrMQTTMissingOp
	}
	if err := frame.ValidateOp(*cmd.Op); err != nil {
		return frame.Frame{}, err
	}

	var payload []byte
	if cmd.Payload != nil {
		payload = []byte(*cmd.Payload)
	}

	return frame.Frame{
		ID:      *cmd.ID,
		Op:      *cmd.Op,
		Payload: payload,
		Origin:  frame.OriginMQTT,
	}, nil
}

// mqttResponse is the MQTT JSON response wire shape:
// {"id", "status", "is_final", "payload"}.
type mqttResponse struct {
	ID      uint16  `json:"id"`
	Status  int8    `json:"status"`
	IsFinal bool    `json:"is_final"`
	Payload *string `json:"payload"`
}

// EncodeMQTTResponse encodes an MQTT JSON response. A nil payload is
// encoded as JSON null.
func EncodeMQTTResponse(id uint16, status int8, isFinal bool, payload []byte) ([]byte, error) {
	resp := mqttResponse{ID: id, Status: status, IsFinal: isFinal}
	if payload != nil {
		s := string(payload)
		resp.Payload = &s
	}
	return json.Marshal(resp)
}
