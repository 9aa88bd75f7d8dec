package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateRejectsEmptyDeviceName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BLEDeviceName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty BLE device name")
	}
}

func TestValidateRejectsMalformedAdminAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdminRESTAddress = "not-a-host-port"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for malformed admin REST address")
	}
}

func TestValidateRejectsBadBackoffRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackoffMinMs = 5000
	cfg.BackoffMaxMs = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when backoff max is below min")
	}
}
