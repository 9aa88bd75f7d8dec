// Package frame defines the application-layer Frame and the chunk wire
// header shared by every transport (spec.md §3).
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Origin tags which transport a command arrived on, preserved end-to-end
// so the Command Router returns the response to the correct transport.
type Origin uint8

const (
	OriginUnknown Origin = iota
	OriginBLE
	OriginMQTT
	OriginCustom
)

func (o Origin) String() string {
	switch o {
	case OriginBLE:
		return "BLE"
	case OriginMQTT:
		return "MQTT"
	case OriginCustom:
		return "CUSTOM"
	default:
		return "UNKNOWN"
	}
}

// MaxOpLen is the maximum length of a Frame's op name (spec.md §3, §6).
const MaxOpLen = 15

// Frame is the application-layer command/response unit.
type Frame struct {
	ID      uint16
	Op      string
	Payload []byte
	Origin  Origin
	IsFinal bool
}

// ValidateOp checks the op-name constraints shared by both wire codecs.
func ValidateOp(op string) error {
	if len(op) == 0 {
		return ErrEmptyOp
	}
	if len(op) > MaxOpLen {
		return ErrOpTooLong
	}
	for i := 0; i < len(op); i++ {
		if op[i] > 0x7F {
			return fmt.Errorf("op %q: %w", op, ErrOpNotASCII)
		}
	}
	return nil
}

var (
	ErrEmptyOp    = errors.New("op name must not be empty")
	ErrOpTooLong  = errors.New("op name exceeds 15 bytes")
	ErrOpNotASCII = errors.New("op name must be ASCII")
)

// Chunk header flag bits (spec.md §3).
const (
	FlagChunked uint8 = 0x01
	FlagFinal   uint8 = 0x02
	FlagMore    uint8 = 0x04
)

// HeaderSize is the fixed, packed, little-endian chunk header size in bytes.
const HeaderSize = 7

// ChunkHeader is the fixed 7-byte chunk wire header:
//
//	flags:u8  chunk_idx:u8  total_chunks:u8  frame_id:u16  chunk_size:u16
//
// All multi-byte fields are little-endian.
type ChunkHeader struct {
	Flags       uint8
	ChunkIdx    uint8
	TotalChunks uint8
	FrameID     uint16
	ChunkSize   uint16
}

var (
	ErrHeaderTooShort  = errors.New("chunk: buffer shorter than header")
	ErrBadChunkSize    = errors.New("chunk: header chunk_size does not match payload length")
	ErrBadChunkIdx     = errors.New("chunk: chunk_idx out of range")
	ErrBadTotalChunks  = errors.New("chunk: total_chunks out of range")
	ErrZeroFrameID     = errors.New("chunk: frame_id must be non-zero")
)

// Encode writes the header followed by payload into a single buffer.
func (h ChunkHeader) Encode(payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = h.Flags
	buf[1] = h.ChunkIdx
	buf[2] = h.TotalChunks
	binary.LittleEndian.PutUint16(buf[3:5], h.FrameID)
	binary.LittleEndian.PutUint16(buf[5:7], h.ChunkSize)
	copy(buf[HeaderSize:], payload)
	return buf
}

// DecodeChunkHeader parses and validates a wire chunk (header + payload).
// It returns the header and the payload slice (a view into buf).
func DecodeChunkHeader(buf []byte) (ChunkHeader, []byte, error) {
	if len(buf) < HeaderSize {
		return ChunkHeader{}, nil, ErrHeaderTooShort
	}
	h := ChunkHeader{
		Flags:       buf[0],
		ChunkIdx:    buf[1],
		TotalChunks: buf[2],
		FrameID:     binary.LittleEndian.Uint16(buf[3:5]),
		ChunkSize:   binary.LittleEndian.Uint16(buf[5:7]),
	}
	payload := buf[HeaderSize:]
	if int(h.ChunkSize) != len(payload) {
		return ChunkHeader{}, nil, ErrBadChunkSize
	}
	if h.TotalChunks == 0 || h.TotalChunks > 8 {
		return ChunkHeader{}, nil, ErrBadTotalChunks
	}
	if h.ChunkIdx >= h.TotalChunks {
		return ChunkHeader{}, nil, ErrBadChunkIdx
	}
	if h.FrameID == 0 {
		return ChunkHeader{}, nil, ErrZeroFrameID
	}
	if h.Flags&FlagChunked == 0 {
		return ChunkHeader{}, nil, ErrNotChunked
	}
	return h, payload, nil
}

// ErrNotChunked indicates the CHUNKED flag bit was not set.
var ErrNotChunked = errors.New("chunk: CHUNKED flag not set")

// LooksLikeChunk does a best-effort structural check (used by transports to
// decide whether an inbound buffer should go to the chunk manager or
// straight to a frame decoder, per spec.md §4.3's BLE receive-path rule).
func LooksLikeChunk(buf []byte) bool {
	if len(buf) < HeaderSize {
		return false
	}
	_, _, err := DecodeChunkHeader(buf)
	return err == nil
}
