package security1

import (
	"bytes"
	"io"
	"testing"

	"github.com/valveguard/corectl/internal/observability"
)

func testLogger(t *testing.T) *observability.Logger {
	t.Helper()
	return observability.NewLogger("test", "0", io.Discard)
}

// driveHandshake runs a full client/device handshake over a Session and
// returns the client's derived key and the completed session.
func driveHandshake(t *testing.T, pop string) (*Session, []byte) {
	t.Helper()
	s := NewSession(TransportBLE, pop, testLogger(t))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clientKP, err := generateKeypair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}

	establishReq := encodeEstablishRequest(clientKP.public)
	establishWire, err := s.HandleEstablish(establishReq)
	if err != nil {
		t.Fatalf("HandleEstablish: %v", err)
	}
	if len(establishWire) != 51 {
		t.Fatalf("expected 51-byte SESSION_ESTABLISH response, got %d", len(establishWire))
	}

	resp, err := decodeEstablishResponse(establishWire)
	if err != nil {
		t.Fatalf("decodeEstablishResponse: %v", err)
	}

	clientKey, token, err := ClientDeriveToken(clientKP.private, resp.devicePub, resp.deviceRandom, pop)
	if err != nil {
		t.Fatalf("ClientDeriveToken: %v", err)
	}

	verifyReq := encodeVerifyRequest(token)
	verifyWire, err := s.HandleVerify(verifyReq)
	if err != nil {
		t.Fatalf("HandleVerify: %v", err)
	}
	if len(verifyWire) != 3 {
		t.Fatalf("expected 3-byte SESSION_VERIFY response, got %d", len(verifyWire))
	}
	status, err := decodeVerifyResponse(verifyWire)
	if err != nil {
		t.Fatalf("decodeVerifyResponse: %v", err)
	}
	if status != verifyStatusOK {
		t.Fatalf("expected status OK, got %d", status)
	}

	if s.State() != StateSessionActive {
		t.Fatalf("expected SESSION_ACTIVE, got %s", s.State())
	}

	return s, clientKey
}

// Scenario 4: handshake round trip producing a 51-byte SESSION_ESTABLISH
// response and a 3-byte SESSION_VERIFY response, ending in SESSION_ACTIVE.
func TestHandshakeRoundTrip(t *testing.T) {
	s, clientKey := driveHandshake(t, "device-pop-secret")

	if !bytes.Equal(clientKey, s.sessionKey) {
		t.Fatalf("client and device derived different session keys")
	}

	stats := s.StatsSnapshot()
	if stats.HandshakeDuration < 0 {
		t.Fatalf("expected non-negative handshake duration")
	}
}

// Scenario 5: a tampered SESSION_VERIFY token is a fatal error, and the
// session is torn down rather than left half-established.
func TestTamperedVerifyTokenIsFatal(t *testing.T) {
	s := NewSession(TransportBLE, "device-pop-secret", testLogger(t))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clientKP, err := generateKeypair()
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}
	if _, err := s.HandleEstablish(encodeEstablishRequest(clientKP.public)); err != nil {
		t.Fatalf("HandleEstablish: %v", err)
	}

	badToken := make([]byte, 32)
	verifyWire, err := s.HandleVerify(encodeVerifyRequest(badToken))
	if err != ErrInvalidMAC {
		t.Fatalf("expected ErrInvalidMAC, got %v", err)
	}
	if verifyWire != nil {
		t.Fatalf("expected no response sent on a tampered verify, got %d bytes", len(verifyWire))
	}
	if s.State() != StateError {
		t.Fatalf("expected session to move to ERROR, got %s", s.State())
	}
	if got := s.StatsSnapshot().ErrorsCount; got != 1 {
		t.Fatalf("expected ErrorsCount to increment to 1, got %d", got)
	}

	// The session must not be usable for encryption after a fatal failure.
	if _, err := s.Encrypt([]byte("x")); err != ErrWrongState {
		t.Fatalf("expected ErrWrongState after fatal handshake failure, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s, _ := driveHandshake(t, "pop-123")

	sizes := []int{0, 1, 16, 17, 512}
	for _, n := range sizes {
		plaintext := make([]byte, n)
		for i := range plaintext {
			plaintext[i] = byte(i)
		}
		ct, err := s.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%d): %v", n, err)
		}
		if len(ct) != GetEncryptedSize(n) {
			t.Fatalf("Encrypt(%d): expected wire size %d, got %d", n, GetEncryptedSize(n), len(ct))
		}
		pt, err := s.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt(%d): %v", n, err)
		}
		if !bytes.Equal(pt, plaintext) {
			t.Fatalf("Decrypt(%d): round trip mismatch", n)
		}
		if GetDecryptedSize(len(ct)) != n {
			t.Fatalf("GetDecryptedSize(%d): expected %d, got %d", len(ct), n, GetDecryptedSize(len(ct)))
		}
	}
}

func TestDecryptDetectsBitFlips(t *testing.T) {
	s, _ := driveHandshake(t, "pop-123")
	ct, err := s.Encrypt([]byte("irrigate zone 3 for 10 minutes"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	flipAt := func(buf []byte, i int) []byte {
		out := append([]byte(nil), buf...)
		out[i] ^= 0x01
		return out
	}

	cases := map[string]int{
		"iv":   0,
		"body": ivSize + 2,
		"mac":  len(ct) - 1,
	}
	for name, idx := range cases {
		t.Run(name, func(t *testing.T) {
			tampered := flipAt(ct, idx)
			if _, err := s.Decrypt(tampered); err != ErrInvalidMAC {
				t.Fatalf("%s: expected ErrInvalidMAC, got %v", name, err)
			}
		})
	}
}

func TestGetDecryptedSizeTooShort(t *testing.T) {
	if got := GetDecryptedSize(overhead); got != 0 {
		t.Fatalf("expected 0 for input at exactly overhead size, got %d", got)
	}
	if got := GetDecryptedSize(0); got != 0 {
		t.Fatalf("expected 0 for empty input, got %d", got)
	}
}
