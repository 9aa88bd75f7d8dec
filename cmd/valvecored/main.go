// Command valvecored runs the irrigation controller's firmware core as a
// long-lived service: the Orchestrator brings up the Error Manager, the
// Command Router, and the BLE/MQTT transports, then the process waits for a
// stop signal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/valveguard/corectl/internal/admin"
	"github.com/valveguard/corectl/internal/config"
	"github.com/valveguard/corectl/internal/observability"
	"github.com/valveguard/corectl/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", "", "path to a configuration file (not read; defaults are used)")
	grpcAddr := flag.String("admin-grpc-addr", "", "override the admin gRPC address")
	restAddr := flag.String("admin-rest-addr", "", "override the admin REST address")
	metricsAddr := flag.String("admin-metrics-addr", "", "override the admin metrics address")
	flag.Parse()

	logger := observability.NewLogger("valvecored", "1.0.0", os.Stdout)
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker("1.0.0")

	if shutdownTracing, err := observability.InitTracing(context.Background(), "valvecored"); err == nil {
		defer shutdownTracing(context.Background())
	}

	logger.Info("valvecored starting")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal(err, "failed to load configuration")
	}
	if *grpcAddr != "" {
		cfg.AdminGRPCAddress = *grpcAddr
	}
	if *restAddr != "" {
		cfg.AdminRESTAddress = *restAddr
	}
	if *metricsAddr != "" {
		cfg.AdminMetricsAddress = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err, "invalid configuration")
	}
	logger.Info("configuration loaded")

	orch := orchestrator.New(cfg, logger, metrics)

	healthChecker.RegisterCheck("error_manager", observability.ErrorManagerHealthCheck(func() string {
		return orch.ErrorManager().HealthSnapshot().Level.String()
	}))
	healthChecker.RegisterCheck("admin_grpc", observability.GRPCServerCheck(cfg.AdminGRPCAddress))
	healthChecker.RegisterCheck("transport_ble", observability.BLEAdvertisingCheck(orch.BLEUp))
	healthChecker.RegisterCheck("transport_mqtt", observability.MQTTBrokerCheck(orch.MQTTUp))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Boot(ctx); err != nil {
		logger.Fatal(err, "orchestrator boot failed")
	}
	logger.Info("orchestrator boot sequence complete")

	adminServer := admin.New(orch.ErrorManager(), func() []admin.SessionView { return orch.AdminSessions() }, logger)
	stopAdmin, err := admin.Start(ctx, cfg.AdminGRPCAddress, cfg.AdminRESTAddress, cfg.AdminMetricsAddress, adminServer, metrics, healthChecker)
	if err != nil {
		logger.Fatal(err, "failed to start admin surface")
	}
	logger.Info("admin surface started")

	// The platform's network-interface watcher is external; in this
	// service process connectivity is assumed available at boot, so the
	// network-up event bit spec §4.7 describes is signaled immediately.
	orch.NotifyNetworkUp()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	stopAdmin()
	orch.Stop()
	logger.Info("valvecored stopped")
}
