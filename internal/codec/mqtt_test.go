package codec

import "testing"

func TestDecodeMQTTCommand(t *testing.T) {
	f, err := DecodeMQTTCommand([]byte(`{"id":5,"op":"open_valve","payload":"zone1"}`))
	if err != nil {
		t.Fatalf("DecodeMQTTCommand: %v", err)
	}
	if f.ID != 5 || f.Op != "open_valve" || string(f.Payload) != "zone1" {
		t.Fatalf("unexpected decode: %+v", f)
	}
}

func TestDecodeMQTTCommandMissingID(t *testing.T) {
	if _, err := DecodeMQTTCommand([]byte(`{"op":"close_valve"}`)); err != ErrMQTTMissingID {
		t.Fatalf("expected ErrMQTTMissingID, got %v", err)
	}
}

func TestDecodeMQTTCommandMissingOp(t *testing.T) {
	if _, err := DecodeMQTTCommand([]byte(`{"id":1}`)); err != ErrMQTTMissingOp {
		t.Fatalf("expected ErrMQTTMissingOp, got %v", err)
	}
}

func TestDecodeMQTTCommandBadJSON(t *testing.T) {
	if _, err := DecodeMQTTCommand([]byte(`not json`)); err != ErrMQTTBadJSON {
		t.Fatalf("expected ErrMQTTBadJSON, got %v", err)
	}
}

func TestDecodeMQTTCommandNoPayload(t *testing.T) {
	f, err := DecodeMQTTCommand([]byte(`{"id":1,"op":"status"}`))
	if err != nil {
		t.Fatalf("DecodeMQTTCommand: %v", err)
	}
	if f.Payload != nil {
		t.Fatalf("expected nil payload, got %v", f.Payload)
	}
}

func TestEncodeMQTTResponse(t *testing.T) {
	wire, err := EncodeMQTTResponse(5, 0, true, []byte("ok"))
	if err != nil {
		t.Fatalf("EncodeMQTTResponse: %v", err)
	}
	want := `{"id":5,"status":0,"is_final":true,"payload":"ok"}`
	if string(wire) != want {
		t.Fatalf("expected %s, got %s", want, wire)
	}
}

func TestEncodeMQTTResponseNilPayload(t *testing.T) {
	wire, err := EncodeMQTTResponse(5, -1, true, nil)
	if err != nil {
		t.Fatalf("EncodeMQTTResponse: %v", err)
	}
	want := `{"id":5,"status":-1,"is_final":true,"payload":null}`
	if string(wire) != want {
		t.Fatalf("expected %s, got %s", want, wire)
	}
}
