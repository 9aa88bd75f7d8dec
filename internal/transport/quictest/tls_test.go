package quictest

import "testing"

func TestGenerateSelfSignedCertProducesValidPEM(t *testing.T) {
	certPEM, keyPEM, err := generateSelfSignedCert()
	if err != nil {
		t.Fatalf("generateSelfSignedCert: %v", err)
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		t.Fatalf("expected non-empty cert and key PEM")
	}

	cfg, err := serverTLSConfig()
	if err != nil {
		t.Fatalf("serverTLSConfig: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected exactly one certificate in server config")
	}
	if cfg.MinVersion != cfg.MaxVersion {
		t.Fatalf("expected server config to pin a single TLS version")
	}
}

func TestClientTLSConfigSkipsVerification(t *testing.T) {
	cfg := clientTLSConfig()
	if !cfg.InsecureSkipVerify {
		t.Fatalf("expected client config to skip verification for the localhost test transport")
	}
}
