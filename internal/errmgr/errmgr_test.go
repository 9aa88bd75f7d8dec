package errmgr

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/valveguard/corectl/internal/observability"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	log := observability.NewLogger("test", "0", io.Discard)
	return New(log, nil)
}

// After k consecutive failed recoveries at severity < CRITICAL on a
// component whose max_consecutive_errors = k, the (k+1)-th report skips
// recovery. The cooldown is zero so that only exhaustion can cause the skip.
func TestRecoveryExhaustionSkipsRecovery(t *testing.T) {
	m := testManager(t)
	attempts := 0
	m.Register("transport_mqtt", RecoveryConfig{
		MaxConsecutiveErrors: 3,
		RecoveryCooldown:     0,
		RetryDelay:           0,
		AutoRecoveryEnabled:  true,
		EscalateOnFailure:    false,
	}, func(Strategy) error {
		attempts++
		return errors.New("recovery failed")
	})

	for i := 0; i < 3; i++ {
		m.Report("transport_mqtt", CategoryProtocol, SeverityError, 1, 0, "", "bad frame")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 recovery attempts, got %d", attempts)
	}

	// The 4th report should skip recovery (consecutive >= max).
	m.Report("transport_mqtt", CategoryProtocol, SeverityError, 1, 0, "", "bad frame")
	if attempts != 3 {
		t.Fatalf("expected recovery to be skipped on exhaustion, attempts=%d", attempts)
	}
}

func TestCriticalAlwaysAttemptsRecovery(t *testing.T) {
	m := testManager(t)
	attempts := 0
	m.Register("security1", RecoveryConfig{
		MaxConsecutiveErrors: 1,
		RecoveryCooldown:     time.Hour,
		RetryDelay:           0,
		AutoRecoveryEnabled:  true,
		EscalateOnFailure:    false,
	}, func(Strategy) error {
		attempts++
		return errors.New("still broken")
	})

	// PROTOCOL always maps to RESET_STATE, which calls the callback; this
	// exhausts the consecutive-error counter (max=1) since the callback
	// fails.
	m.Report("security1", CategoryProtocol, SeverityError, 1, 0, "", "exhaust")
	// Even though consecutive errors are now at max and cooldown hasn't
	// elapsed, CRITICAL must always attempt.
	m.Report("security1", CategoryProtocol, SeverityCritical, 2, 0, "", "fatal crypto failure")

	if attempts != 2 {
		t.Fatalf("expected 2 recovery attempts (initial + critical override), got %d", attempts)
	}
}

func TestSuccessfulRecoveryResetsCounter(t *testing.T) {
	m := testManager(t)
	calls := 0
	m.Register("router", RecoveryConfig{
		MaxConsecutiveErrors: 2,
		RecoveryCooldown:     0,
		RetryDelay:           0,
		AutoRecoveryEnabled:  true,
		EscalateOnFailure:    true,
	}, func(Strategy) error {
		calls++
		return nil
	})

	m.Report("router", CategoryProtocol, SeverityError, 1, 0, "", "bad op")
	snap := m.HealthSnapshot()
	var found bool
	for _, c := range snap.Components {
		if c.Component == "router" {
			found = true
			if c.ConsecutiveErrors != 0 {
				t.Fatalf("expected counter reset after successful recovery, got %d", c.ConsecutiveErrors)
			}
		}
	}
	if !found {
		t.Fatalf("expected router component snapshot")
	}
	if calls != 1 {
		t.Fatalf("expected 1 recovery call, got %d", calls)
	}
}

func TestEscalationOnRepeatedFailure(t *testing.T) {
	m := testManager(t)
	var seen []Strategy
	m.Register("transport_ble", RecoveryConfig{
		MaxConsecutiveErrors: 10,
		RecoveryCooldown:     0,
		RetryDelay:           0,
		AutoRecoveryEnabled:  true,
		EscalateOnFailure:    true,
	}, func(s Strategy) error {
		seen = append(seen, s)
		return errors.New("still failing")
	})

	// CONNECTION/critical -> RESTART_COMPONENT; failure escalates to
	// RESTART_SERVICE.
	m.Report("transport_ble", CategoryConnection, SeverityCritical, 1, 0, "", "link down")

	if len(seen) != 2 {
		t.Fatalf("expected 2 strategy attempts (initial + escalation), got %d (%v)", len(seen), seen)
	}
	if seen[0] != StrategyRestartComponent {
		t.Fatalf("expected initial strategy RESTART_COMPONENT, got %s", seen[0])
	}
	if seen[1] != StrategyRestartService {
		t.Fatalf("expected escalated strategy RESTART_SERVICE, got %s", seen[1])
	}
}

func TestNoRecoveryCallbackIsNotSupported(t *testing.T) {
	m := testManager(t)
	m.Register("codec", DefaultRecoveryConfig(), nil)
	// PROTOCOL/non-critical -> RESET_STATE, but no callback registered.
	m.Report("codec", CategoryProtocol, SeverityError, 1, 0, "", "decode failure")
	// Should not panic; component stays registered with an incremented
	// consecutive-error count.
	snap := m.HealthSnapshot()
	for _, c := range snap.Components {
		if c.Component == "codec" && c.ConsecutiveErrors != 1 {
			t.Fatalf("expected consecutive errors = 1, got %d", c.ConsecutiveErrors)
		}
	}
}

func TestHealthLevelReflectsMaxRecentSeverity(t *testing.T) {
	m := testManager(t)
	m.Register("router", DefaultRecoveryConfig(), func(Strategy) error { return nil })
	m.Report("router", CategoryProtocol, SeverityWarning, 1, 0, "", "minor")
	if got := m.HealthSnapshot().Level; got != HealthWarning {
		t.Fatalf("expected WARNING, got %s", got)
	}
}

func TestConfigurationCategoryHasNoStrategy(t *testing.T) {
	if s := defaultStrategy(CategoryConfiguration, SeverityError); s != StrategyNone {
		t.Fatalf("expected NONE strategy for CONFIGURATION, got %s", s)
	}
}

func TestHardwareCriticalIsSystemRestartButNotExecuted(t *testing.T) {
	m := testManager(t)
	called := false
	m.Register("power", DefaultRecoveryConfig(), func(Strategy) error {
		called = true
		return nil
	})
	m.Report("power", CategoryHardware, SeverityCritical, 1, 0, "", "brownout")
	if called {
		t.Fatalf("SYSTEM_RESTART strategy must not invoke the component recovery callback")
	}
}
