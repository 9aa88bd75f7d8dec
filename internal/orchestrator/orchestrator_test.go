package orchestrator

import (
	"testing"
	"time"

	"github.com/valveguard/corectl/internal/config"
	"github.com/valveguard/corectl/internal/observability"
)

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := config.DefaultConfig()
	log := observability.NewLogger("valvecored-test", "test", nil)
	return New(cfg, log, nil)
}

func TestNewWiresAllSubsystems(t *testing.T) {
	o := testOrchestrator(t)
	if o.ErrorManager() == nil {
		t.Fatalf("expected a wired error manager")
	}
	if o.Router() == nil {
		t.Fatalf("expected a wired router")
	}
}

func TestNotifyNetworkUpIsIdempotent(t *testing.T) {
	o := testOrchestrator(t)

	done := make(chan struct{})
	go func() {
		<-o.networkUp
		close(done)
	}()

	o.NotifyNetworkUp()
	o.NotifyNetworkUp() // must not panic on double-close

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("network-up channel never closed")
	}
}

func TestAdminSessionsReportsBothTransports(t *testing.T) {
	o := testOrchestrator(t)
	sessions := o.AdminSessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 transport session views, got %d", len(sessions))
	}
}

func TestBLEAndMQTTUpAreDownBeforeBoot(t *testing.T) {
	o := testOrchestrator(t)
	if o.BLEUp() {
		t.Fatalf("expected BLE transport down before Boot")
	}
	if o.MQTTUp() {
		t.Fatalf("expected MQTT transport down before Boot")
	}
}
