package security1

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
)

// Wire message types for the Security1 handshake (spec.md §4.2).
const (
	msgTypeSessionEstablish uint8 = 1
	msgTypeSessionVerify    uint8 = 2

	protocolVersion uint8 = 1
	pubKeyLen       uint8 = 32
	deviceRandomLen       = 16
)

var (
	ErrShortMessage  = errors.New("security1: message too short")
	ErrBadVersion    = errors.New("security1: unsupported protocol version")
	ErrBadMsgType    = errors.New("security1: unexpected message type")
	ErrBadKeyLen     = errors.New("security1: unexpected key length")
	ErrBadPayloadLen = errors.New("security1: payload length mismatch")
)

// establishRequest is the client->device SESSION_ESTABLISH message:
// version(1) | type(1) | key_len(1) | client_pub(32) = 35 bytes.
type establishRequest struct {
	clientPub [32]byte
}

func encodeEstablishRequest(clientPub [32]byte) []byte {
	out := make([]byte, 3+32)
	out[0] = protocolVersion
	out[1] = msgTypeSessionEstablish
	out[2] = pubKeyLen
	copy(out[3:], clientPub[:])
	return out
}

func decodeEstablishRequest(buf []byte) (establishRequest, error) {
	var req establishRequest
	if len(buf) != 35 {
		return req, ErrShortMessage
	}
	if buf[0] != protocolVersion {
		return req, ErrBadVersion
	}
	if buf[1] != msgTypeSessionEstablish {
		return req, ErrBadMsgType
	}
	if buf[2] != pubKeyLen {
		return req, ErrBadKeyLen
	}
	copy(req.clientPub[:], buf[3:35])
	return req, nil
}

// establishResponse is the device->client SESSION_ESTABLISH response:
// version(1) | type(1) | key_len(1) | device_pub(32) | device_random(16) = 51 bytes.
type establishResponse struct {
	devicePub    [32]byte
	deviceRandom [deviceRandomLen]byte
}

func encodeEstablishResponse(devicePub [32]byte) (establishResponse, []byte, error) {
	resp := establishResponse{devicePub: devicePub}
	if _, err := io.ReadFull(rand.Reader, resp.deviceRandom[:]); err != nil {
		return resp, nil, err
	}
	out := make([]byte, 3+32+deviceRandomLen)
	out[0] = protocolVersion
	out[1] = msgTypeSessionEstablish
	out[2] = pubKeyLen
	copy(out[3:35], resp.devicePub[:])
	copy(out[35:], resp.deviceRandom[:])
	return resp, out, nil
}

func decodeEstablishResponse(buf []byte) (establishResponse, error) {
	var resp establishResponse
	if len(buf) != 51 {
		return resp, ErrShortMessage
	}
	if buf[0] != protocolVersion {
		return resp, ErrBadVersion
	}
	if buf[1] != msgTypeSessionEstablish {
		return resp, ErrBadMsgType
	}
	if buf[2] != pubKeyLen {
		return resp, ErrBadKeyLen
	}
	copy(resp.devicePub[:], buf[3:35])
	copy(resp.deviceRandom[:], buf[35:51])
	return resp, nil
}

// verifyRequest is the client->device SESSION_VERIFY message:
// version(1) | type(1) | payload_len(2 BE) | token(payload_len) = 4+len bytes.
type verifyRequest struct {
	token []byte
}

func encodeVerifyRequest(token []byte) []byte {
	out := make([]byte, 4+len(token))
	out[0] = protocolVersion
	out[1] = msgTypeSessionVerify
	binary.BigEndian.PutUint16(out[2:4], uint16(len(token)))
	copy(out[4:], token)
	return out
}

func decodeVerifyRequest(buf []byte) (verifyRequest, error) {
	var req verifyRequest
	if len(buf) < 4 {
		return req, ErrShortMessage
	}
	if buf[0] != protocolVersion {
		return req, ErrBadVersion
	}
	if buf[1] != msgTypeSessionVerify {
		return req, ErrBadMsgType
	}
	payloadLen := int(binary.BigEndian.Uint16(buf[2:4]))
	if len(buf)-4 != payloadLen {
		return req, ErrBadPayloadLen
	}
	req.token = append([]byte(nil), buf[4:]...)
	return req, nil
}

// verifyResponse is the device->client SESSION_VERIFY response:
// version(1) | type(1) | status(1) = 3 bytes. status 0 == OK. A tampered
// verify token sends no response at all (spec.md §8 scenario 5), so no
// other status value is ever encoded.
const verifyStatusOK uint8 = 0

func encodeVerifyResponse(status uint8) []byte {
	return []byte{protocolVersion, msgTypeSessionVerify, status}
}

func decodeVerifyResponse(buf []byte) (uint8, error) {
	if len(buf) != 3 {
		return 0, ErrShortMessage
	}
	if buf[0] != protocolVersion {
		return 0, ErrBadVersion
	}
	if buf[1] != msgTypeSessionVerify {
		return 0, ErrBadMsgType
	}
	return buf[2], nil
}
