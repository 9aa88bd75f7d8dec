// Package config holds the Orchestrator's boot-time configuration
// (spec.md §6 "Configuration keys").
package config

import (
	"time"

	"github.com/valveguard/corectl/internal/validation"
)

// Config holds the firmware core's boot configuration.
type Config struct {
	// BLE
	BLEDeviceName string

	// MQTT
	MQTTBrokerURI    string
	MQTTClientID     string
	MQTTTopicPrefix  string
	MQTTQoS          byte
	MQTTKeepalive    time.Duration

	// Security1
	PoP string

	// Backoff
	BackoffMinMs int
	BackoffMaxMs int

	// Chunk Manager
	ReassemblyTimeoutMs int
	MaxChunkSize        int
	MaxConcurrentFrames int

	// Error Manager defaults
	RecoveryMaxConsecutiveErrors int
	RecoveryCooldownMs           int
	RecoveryRetryDelayMs         int
	RecoveryAutoEnabled          bool
	RecoveryEscalateOnFailure    bool

	// Ambient / admin surface
	AdminGRPCAddress string
	AdminRESTAddress string
	AdminMetricsAddress string

	// Orchestrator boot sequence
	NetworkUpTimeoutMs int
}

// DefaultConfig returns the firmware core's default configuration.
func DefaultConfig() *Config {
	return &Config{
		BLEDeviceName: "valveguard-irrigation",

		MQTTBrokerURI:   "tcp://127.0.0.1:1883",
		MQTTClientID:    "valveguard-controller",
		MQTTTopicPrefix: "valveguard/ctrl",
		MQTTQoS:         1,
		MQTTKeepalive:   30 * time.Second,

		PoP: "",

		BackoffMinMs: 1000,
		BackoffMaxMs: 32000,

		ReassemblyTimeoutMs: 5000,
		MaxChunkSize:        512,
		MaxConcurrentFrames: 8,

		RecoveryMaxConsecutiveErrors: 5,
		RecoveryCooldownMs:           10000,
		RecoveryRetryDelayMs:         1000,
		RecoveryAutoEnabled:          true,
		RecoveryEscalateOnFailure:    true,

		AdminGRPCAddress:    "127.0.0.1:9090",
		AdminRESTAddress:    "127.0.0.1:8080",
		AdminMetricsAddress: "127.0.0.1:8081",

		NetworkUpTimeoutMs: 60000,
	}
}

// LoadConfig returns DefaultConfig for any path; the file at path is not
// read. Only a handful of keys are flag-overridable at the call site
// (cmd/valvecored).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	return cfg, nil
}

// Validate checks the configuration against the constraints spec.md
// places on each key.
func (c *Config) Validate() error {
	if err := validation.ValidateStringNonEmpty(c.BLEDeviceName); err != nil {
		return err
	}
	if c.PoP != "" {
		if err := validation.ValidatePoP(c.PoP); err != nil {
			return err
		}
	}
	if err := validation.ValidateRangeInt(int(c.MQTTQoS), 0, 2); err != nil {
		return err
	}
	if err := validation.ValidateRangeInt(c.MaxConcurrentFrames, 1, 8); err != nil {
		return err
	}
	for _, addr := range []string{c.AdminGRPCAddress, c.AdminRESTAddress, c.AdminMetricsAddress} {
		if err := validation.ValidateAddr(addr); err != nil {
			return err
		}
	}
	if c.BackoffMinMs <= 0 || c.BackoffMaxMs < c.BackoffMinMs {
		return validation.ErrOutOfRange
	}
	return nil
}
