// Package codec implements the on-wire command/response frame encoding for
// both transports (spec.md §6): a compact binary layout for BLE, and JSON
// for MQTT.
package codec

import (
	"encoding/binary"
	"errors"

	"github.com/valveguard/corectl/internal/frame"
)

var (
	ErrBLETooShort  = errors.New("codec: legacy BLE frame too short")
	ErrBLEBadOpLen  = errors.New("codec: legacy BLE frame op_len out of range")
	ErrBLETruncated = errors.New("codec: legacy BLE frame truncated before op")
)

// DecodeBLECommand decodes the legacy BLE binary command layout:
// id:u16 LE | op_len:u8 (1..15) | op:op_len ASCII | payload:rest.
func DecodeBLECommand(wire []byte) (frame.Frame, error) {
	if len(wire) < 3 {
		return frame.Frame{}, ErrBLETooShort
	}
	id := binary.LittleEndian.Uint16(wire[0:2])
	opLen := int(wire[2])
	if opLen == 0 || opLen > frame.MaxOpLen {
		return frame.Frame{}, ErrBLEBadOpLen
	}
	if 3+opLen > len(wire) {
		return frame.Frame{}, ErrBLETruncated
	}
	op := string(wire[3 : 3+opLen])
	if err := frame.ValidateOp(op); err != nil {
		return frame.Frame{}, err
	}
	payload := append([]byte(nil), wire[3+opLen:]...)

	return frame.Frame{
		ID:      id,
		Op:      op,
		Payload: payload,
		Origin:  frame.OriginBLE,
	}, nil
}

// EncodeBLEResponse encodes the legacy BLE binary response layout:
// id:u16 LE | op_len:u8 | "ok"|"err" | status:u8 | payload:rest.
func EncodeBLEResponse(id uint16, status int8, payload []byte) []byte {
	tag := "ok"
	if status < 0 {
		tag = "err"
	}
	out := make([]byte, 2+1+len(tag)+1+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], id)
	out[2] = uint8(len(tag))
	copy(out[3:3+len(tag)], tag)
	out[3+len(tag)] = byte(status)
	copy(out[4+len(tag):], payload)
	return out
}
