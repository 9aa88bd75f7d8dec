// Package orchestrator implements the Orchestrator (spec.md §4.7): the
// boot-time initialization and wait-for-network sequencing that brings up
// the Error Manager, Security1-capable transports, and the Command Router.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/valveguard/corectl/internal/admin"
	"github.com/valveguard/corectl/internal/chunk"
	"github.com/valveguard/corectl/internal/config"
	"github.com/valveguard/corectl/internal/errmgr"
	"github.com/valveguard/corectl/internal/observability"
	"github.com/valveguard/corectl/internal/router"
	"github.com/valveguard/corectl/internal/transport/ble"
	"github.com/valveguard/corectl/internal/transport/mqtt"
)

// ErrNetworkTimeout is reported to the Error Manager when the network-up
// event bit never arrives within cfg.NetworkUpTimeoutMs.
var ErrNetworkTimeout = errors.New("orchestrator: timed out waiting for network up")

// Orchestrator owns the boot sequence and the subsystem handles it starts.
// Its own lifecycle is not a state machine per spec.md; boot is linear and
// one-shot, and shutdown simply stops what was started (spec.md §5
// "Cancellation").
type Orchestrator struct {
	cfg *config.Config
	log *observability.Logger

	errs    *errmgr.Manager
	chunker *chunk.Manager
	rtr     *router.Router
	bleT    *ble.Transport
	mqttT   *mqtt.Transport

	networkUp chan struct{}
	once      sync.Once
}

// New wires an Orchestrator from configuration. Construction alone performs
// no I/O; Boot does.
func New(cfg *config.Config, log *observability.Logger, metrics *observability.Metrics) *Orchestrator {
	log = log.WithComponent("orchestrator")

	errs := errmgr.New(log, metrics)

	chunker := chunk.New(chunk.Config{
		MaxChunkSize:        cfg.MaxChunkSize,
		MaxConcurrentFrames: cfg.MaxConcurrentFrames,
		ReassemblyTimeoutMs: cfg.ReassemblyTimeoutMs,
	}, log, metrics)

	rtr := router.New(32, 16, log, metrics)

	bleT := ble.New(ble.Config{
		DeviceName: cfg.BLEDeviceName,
		PoP:        cfg.PoP,
	}, chunker, rtr, log, metrics)

	mqttT := mqtt.New(mqtt.Config{
		BrokerURI:       cfg.MQTTBrokerURI,
		ClientID:        cfg.MQTTClientID,
		TopicPrefix:     cfg.MQTTTopicPrefix,
		QoS:             cfg.MQTTQoS,
		Keepalive:       cfg.MQTTKeepalive,
		PoP:             cfg.PoP,
		SecurityEnabled: cfg.PoP != "",
		BackoffMin:      time.Duration(cfg.BackoffMinMs) * time.Millisecond,
		BackoffMax:      time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
	}, rtr, log, metrics)

	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		errs:      errs,
		chunker:   chunker,
		rtr:       rtr,
		bleT:      bleT,
		mqttT:     mqttT,
		networkUp: make(chan struct{}),
	}
}

// ErrorManager exposes the wired Error Manager, for the admin surface.
func (o *Orchestrator) ErrorManager() *errmgr.Manager { return o.errs }

// Router exposes the wired Command Router, for service handler registration.
func (o *Orchestrator) Router() *router.Router { return o.rtr }

// NotifyNetworkUp signals the network-up event bit spec.md §4.7 names. The
// platform's network-interface watcher calls this; here it is exposed so
// cmd/valvecored (or a test) can drive it directly.
func (o *Orchestrator) NotifyNetworkUp() {
	o.once.Do(func() { close(o.networkUp) })
}

// Boot runs the linear sequence from spec.md §4.7:
//
//	init error manager -> init NVS-backed prerequisites (external, assumed
//	already satisfied by the calling process) -> create queues (folded into
//	router.New above) -> start router task -> init Security1 (owned by each
//	transport) -> start BLE transport -> init MQTT transport -> wait for
//	network-up -> start MQTT with or without Security1 per configuration.
func (o *Orchestrator) Boot(ctx context.Context) error {
	o.log.Info("orchestrator boot: error manager ready")

	go o.rtr.Run(ctx)
	o.log.Info("orchestrator boot: command router running")

	if err := o.bleT.Start(ctx); err != nil {
		o.errs.Report("transport_ble", errmgr.CategoryConnection, errmgr.SeverityCritical, 1, 0, "Start", err.Error())
		return err
	}
	o.log.Info("orchestrator boot: BLE transport started")

	go o.waitForNetworkThenStartMQTT(ctx)

	return nil
}

func (o *Orchestrator) waitForNetworkThenStartMQTT(ctx context.Context) {
	timeout := time.Duration(o.cfg.NetworkUpTimeoutMs) * time.Millisecond
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		o.errs.Report("orchestrator", errmgr.CategoryConnection, errmgr.SeverityError, 1, 0, "waitForNetworkUp", ErrNetworkTimeout.Error())
		return
	case <-o.networkUp:
	}

	o.log.Info("orchestrator: network up, starting MQTT transport")
	if err := o.mqttT.Start(ctx); err != nil {
		o.errs.Report("transport_mqtt", errmgr.CategoryConnection, errmgr.SeverityError, 2, 0, "Start", err.Error())
	}
}

// AdminSessions satisfies admin.SessionProvider, surfacing both
// transports' live Security1 state for the diagnostics API.
func (o *Orchestrator) AdminSessions() []admin.SessionView {
	return []admin.SessionView{
		{Transport: "BLE", State: o.bleT.State().String()},
		{Transport: "MQTT", State: o.mqttT.State().String()},
	}
}

// BLEUp reports whether the BLE transport has a central connected
// (anything past StateDown/StateStarting/StateAdvertising), for
// observability.BLEAdvertisingCheck.
func (o *Orchestrator) BLEUp() bool {
	return o.bleT.State() >= ble.StateUp
}

// MQTTUp reports whether the MQTT transport has an active broker
// connection, for observability.MQTTBrokerCheck.
func (o *Orchestrator) MQTTUp() bool {
	return o.mqttT.State() >= mqtt.StateUp
}

// Stop transitions every owned subsystem to its stopped state (spec.md §5
// "Cancellation").
func (o *Orchestrator) Stop() {
	o.bleT.Stop()
	o.mqttT.Stop()
}
