package validation

import "testing"

func TestValidateAddr(t *testing.T) {
	if err := ValidateAddr("127.0.0.1:9090"); err != nil {
		t.Fatalf("expected valid host:port to pass, got %v", err)
	}
	if err := ValidateAddr(""); err == nil {
		t.Fatalf("expected empty address to fail")
	}
	if err := ValidateAddr("not-a-host-port"); err == nil {
		t.Fatalf("expected malformed address to fail")
	}
}

func TestValidateRangeInt(t *testing.T) {
	if err := ValidateRangeInt(4, 1, 8); err != nil {
		t.Fatalf("expected 4 in [1,8] to pass, got %v", err)
	}
	if err := ValidateRangeInt(9, 1, 8); err == nil {
		t.Fatalf("expected 9 outside [1,8] to fail")
	}
}

func TestValidatePoP(t *testing.T) {
	if err := ValidatePoP("abc-123_XYZ"); err != nil {
		t.Fatalf("expected valid PoP to pass, got %v", err)
	}
	if err := ValidatePoP("abc"); err == nil {
		t.Fatalf("expected too-short PoP to fail")
	}
	if err := ValidatePoP("has a space"); err == nil {
		t.Fatalf("expected PoP with disallowed byte to fail")
	}
}
