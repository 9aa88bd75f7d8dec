package codec

import "testing"

func TestDecodeBLECommandRoundTrip(t *testing.T) {
	wire := []byte{0x01, 0x00, 4, 'o', 'p', 'e', 'n', 'z', '3'}
	f, err := DecodeBLECommand(wire)
	if err != nil {
		t.Fatalf("DecodeBLECommand: %v", err)
	}
	if f.ID != 1 || f.Op != "open" || string(f.Payload) != "z3" {
		t.Fatalf("unexpected decode: %+v", f)
	}
}

func TestDecodeBLECommandTooShort(t *testing.T) {
	if _, err := DecodeBLECommand([]byte{1, 2}); err != ErrBLETooShort {
		t.Fatalf("expected ErrBLETooShort, got %v", err)
	}
}

func TestDecodeBLECommandBadOpLen(t *testing.T) {
	if _, err := DecodeBLECommand([]byte{0, 0, 0}); err != ErrBLEBadOpLen {
		t.Fatalf("expected ErrBLEBadOpLen for zero op_len, got %v", err)
	}
	if _, err := DecodeBLECommand([]byte{0, 0, 16}); err != ErrBLEBadOpLen {
		t.Fatalf("expected ErrBLEBadOpLen for op_len>15, got %v", err)
	}
}

func TestDecodeBLECommandTruncated(t *testing.T) {
	wire := []byte{0, 0, 5, 'a', 'b'}
	if _, err := DecodeBLECommand(wire); err != ErrBLETruncated {
		t.Fatalf("expected ErrBLETruncated, got %v", err)
	}
}

func TestEncodeBLEResponse(t *testing.T) {
	wire := EncodeBLEResponse(7, 0, []byte("done"))

	if wire[0] != 7 || wire[1] != 0 {
		t.Fatalf("unexpected id bytes: %v", wire[:2])
	}
	if wire[2] != 2 || string(wire[3:5]) != "ok" {
		t.Fatalf("expected ok tag, got %v", wire[2:5])
	}
	if wire[5] != 0 {
		t.Fatalf("expected status 0, got %d", wire[5])
	}
	if string(wire[6:]) != "done" {
		t.Fatalf("expected payload 'done', got %q", wire[6:])
	}
}

func TestEncodeBLEResponseError(t *testing.T) {
	wire := EncodeBLEResponse(1, -1, nil)
	if string(wire[3:6]) != "err" {
		t.Fatalf("expected err tag, got %q", wire[3:6])
	}
	if int8(wire[6]) != -1 {
		t.Fatalf("expected status -1, got %d", int8(wire[6]))
	}
}
