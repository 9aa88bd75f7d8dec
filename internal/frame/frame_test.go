package frame

import "testing"

func TestChunkHeaderRoundTrip(t *testing.T) {
	h := ChunkHeader{Flags: FlagChunked | FlagMore, ChunkIdx: 0, TotalChunks: 4, FrameID: 7, ChunkSize: 3}
	payload := []byte{0xAA, 0xBB, 0xCC}
	wire := h.Encode(payload)
	if len(wire) != HeaderSize+3 {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+3, len(wire))
	}
	got, gotPayload, err := DecodeChunkHeader(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("header mismatch: got %+v want %+v", got, h)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestDecodeChunkHeaderTooShort(t *testing.T) {
	if _, _, err := DecodeChunkHeader([]byte{1, 2, 3}); err != ErrHeaderTooShort {
		t.Fatalf("expected ErrHeaderTooShort, got %v", err)
	}
}

func TestDecodeChunkHeaderBadSize(t *testing.T) {
	h := ChunkHeader{Flags: FlagChunked, ChunkIdx: 0, TotalChunks: 1, FrameID: 1, ChunkSize: 5}
	wire := h.Encode([]byte{1, 2, 3}) // only 3 bytes, header says 5
	if _, _, err := DecodeChunkHeader(wire); err != ErrBadChunkSize {
		t.Fatalf("expected ErrBadChunkSize, got %v", err)
	}
}

func TestDecodeChunkHeaderBadIdx(t *testing.T) {
	h := ChunkHeader{Flags: FlagChunked, ChunkIdx: 3, TotalChunks: 2, FrameID: 1, ChunkSize: 0}
	wire := h.Encode(nil)
	if _, _, err := DecodeChunkHeader(wire); err != ErrBadChunkIdx {
		t.Fatalf("expected ErrBadChunkIdx, got %v", err)
	}
}

func TestDecodeChunkHeaderZeroTotal(t *testing.T) {
	h := ChunkHeader{Flags: FlagChunked, ChunkIdx: 0, TotalChunks: 0, FrameID: 1, ChunkSize: 0}
	wire := h.Encode(nil)
	if _, _, err := DecodeChunkHeader(wire); err != ErrBadTotalChunks {
		t.Fatalf("expected ErrBadTotalChunks, got %v", err)
	}
}

func TestDecodeChunkHeaderZeroFrameID(t *testing.T) {
	h := ChunkHeader{Flags: FlagChunked, ChunkIdx: 0, TotalChunks: 1, FrameID: 0, ChunkSize: 0}
	wire := h.Encode(nil)
	if _, _, err := DecodeChunkHeader(wire); err != ErrZeroFrameID {
		t.Fatalf("expected ErrZeroFrameID, got %v", err)
	}
}

func TestValidateOp(t *testing.T) {
	if err := ValidateOp(""); err != ErrEmptyOp {
		t.Fatalf("expected ErrEmptyOp, got %v", err)
	}
	if err := ValidateOp("0123456789abcdef"); err != ErrOpTooLong {
		t.Fatalf("expected ErrOpTooLong, got %v", err)
	}
	if err := ValidateOp("open_valve"); err != nil {
		t.Fatalf("expected valid op, got %v", err)
	}
}

func TestLooksLikeChunk(t *testing.T) {
	h := ChunkHeader{Flags: FlagChunked | FlagFinal, ChunkIdx: 0, TotalChunks: 1, FrameID: 1, ChunkSize: 2}
	wire := h.Encode([]byte{1, 2})
	if !LooksLikeChunk(wire) {
		t.Fatalf("expected wire bytes to look like a chunk")
	}
	if LooksLikeChunk([]byte{1, 2}) {
		t.Fatalf("too-short buffer should not look like a chunk")
	}
}
