package ble

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/paypal/gatt"

	"github.com/valveguard/corectl/internal/backoff"
	"github.com/valveguard/corectl/internal/chunk"
	"github.com/valveguard/corectl/internal/codec"
	"github.com/valveguard/corectl/internal/frame"
	"github.com/valveguard/corectl/internal/observability"
	"github.com/valveguard/corectl/internal/router"
	"github.com/valveguard/corectl/internal/security1"
)

// defaultMTU is the ATT default before any MTU exchange; attMTUOverhead is
// the fixed ATT header subtracted from a negotiated MTU to get the usable
// chunk size (spec.md §4.3).
const (
	defaultMTU     = 23
	attMTUOverhead = 3
)

var (
	handshakeServiceUUID  = gatt.MustParseUUID("6e400001-7a31-4f2e-9a3c-000000000001")
	operationalServiceUUID = gatt.MustParseUUID("6e400001-7a31-4f2e-9a3c-000000000002")
	rxCharUUID             = gatt.MustParseUUID("6e400002-7a31-4f2e-9a3c-000000000001")
	txCharUUID             = gatt.MustParseUUID("6e400003-7a31-4f2e-9a3c-000000000001")
	infoCharUUID           = gatt.MustParseUUID("6e400004-7a31-4f2e-9a3c-000000000001")
)

// Config configures Transport-BLE.
type Config struct {
	DeviceName string
	PoP        string
}

// Transport is the BLE GATT peripheral (spec.md §4.3).
type Transport struct {
	mu    sync.Mutex
	state State

	cfg     Config
	device  gatt.Device
	chunker *chunk.Manager
	session *security1.Session
	router  *router.Router

	advertiseBack *backoff.Backoff
	breaker       breakerState

	notify    func(b []byte) error // set once a central subscribes to TX
	startedAt time.Time

	log     *observability.Logger
	metrics *observability.Metrics
}

const firmwareVersion = "1.0.0"

// deviceInfo is the JSON payload the supplemented diagnostics
// characteristic returns: version, uptime, and whether the transport is in
// ENCRYPTED_COMM (an active Security1 session).
type deviceInfo struct {
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SessionActive bool   `json:"session_active"`
}

// New creates a Transport-BLE peripheral. Call Start to bring up the GATT
// server and begin advertising.
func New(cfg Config, chunker *chunk.Manager, r *router.Router, log *observability.Logger, metrics *observability.Metrics) *Transport {
	return &Transport{
		state:         StateDown,
		cfg:           cfg,
		chunker:       chunker,
		router:        r,
		advertiseBack: backoff.New(advertisingMinDelay, advertisingMaxDelay),
		log:           log.WithComponent("transport_ble"),
		metrics:       metrics,
	}
}

func (t *Transport) transitionLocked(to State) {
	from := t.state
	if !canTransition(from, to) {
		t.log.Warn("ignoring illegal BLE state transition")
		return
	}
	t.state = to
	t.log.StateTransition("transport_ble", from.String(), to.String())
	if t.metrics != nil {
		t.metrics.TransportStateGauge.WithLabelValues("ble").Set(float64(to))
	}
}

// State returns the transport's current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start initializes the GATT device, registers both service profiles, and
// begins advertising.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	t.transitionLocked(StateStarting)
	t.session = security1.NewSession(security1.TransportBLE, t.cfg.PoP, t.log)
	t.startedAt = time.Now()
	t.mu.Unlock()

	device, err := gatt.NewDevice()
	if err != nil {
		return err
	}
	t.device = device

	device.Handle(
		gatt.CentralConnected(t.onConnect),
		gatt.CentralDisconnected(t.onDisconnect),
	)

	device.Init(func(d gatt.Device, s gatt.State) {
		if s != gatt.StatePoweredOn {
			return
		}
		handshakeSvc := gatt.NewService(handshakeServiceUUID)
		rx := handshakeSvc.AddCharacteristic(rxCharUUID)
		rx.HandleWriteFunc(t.handleWrite)
		tx := handshakeSvc.AddCharacteristic(txCharUUID)
		tx.HandleNotifyFunc(t.handleNotifySubscribe)

		opSvc := gatt.NewService(operationalServiceUUID)
		opRx := opSvc.AddCharacteristic(rxCharUUID)
		opRx.HandleWriteFunc(t.handleWrite)
		opTx := opSvc.AddCharacteristic(txCharUUID)
		opTx.HandleNotifyFunc(t.handleNotifySubscribe)
		info := opSvc.AddCharacteristic(infoCharUUID)
		info.HandleReadFunc(t.handleInfoRead)

		d.AddService(handshakeSvc)
		d.AddService(opSvc)

		t.mu.Lock()
		t.transitionLocked(StateAdvertising)
		t.mu.Unlock()
		d.AdvertiseNameAndServices(t.cfg.DeviceName, []gatt.UUID{handshakeSvc.UUID()})
	})

	go t.advertisingWatchdog(ctx)
	go t.txLoop(ctx)
	return nil
}

// txLoop is the dedicated TX thread spec.md §5 describes: it blocks on the
// router's BLE response queue and sends each response as it arrives.
func (t *Transport) txLoop(ctx context.Context) {
	responses := t.router.Responses(frame.OriginBLE)
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-responses:
			if t.State() == StateDown {
				continue // drop pending responses rather than send, per spec.md §5
			}
			wire := codec.EncodeBLEResponse(resp.ID, resp.Status, resp.Payload)
			if err := t.Send(wire); err != nil {
				t.log.Debug("failed to send BLE response")
			}
		}
	}
}

// handleInfoRead serves the supplemented read-only diagnostics
// characteristic, not present in the distilled spec but natural for a
// GATT peripheral to expose.
func (t *Transport) handleInfoRead(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
	t.mu.Lock()
	info := deviceInfo{
		Version:       firmwareVersion,
		UptimeSeconds: int64(time.Since(t.startedAt).Seconds()),
		SessionActive: t.state == StateEncryptedComm,
	}
	t.mu.Unlock()

	b, _ := json.Marshal(info)
	rsp.Write(b)
}

func (t *Transport) onConnect(c gatt.Central) {
	t.mu.Lock()
	t.transitionLocked(StateUp)
	t.breaker = breakerState{}
	t.advertiseBack.Reset()
	t.transitionLocked(StateSecurity1Handshake)
	t.mu.Unlock()

	if err := t.session.Start(); err != nil {
		t.log.HandshakeFailed(err.Error())
	}
}

// onDisconnect resets MTU to its default and re-advertises immediately,
// with no backoff cooldown on a voluntary disconnect (spec.md §4.3).
func (t *Transport) onDisconnect(c gatt.Central) {
	t.mu.Lock()
	t.chunker.Reconfigure(defaultMTU - attMTUOverhead)
	t.transitionLocked(StateDown)
	t.transitionLocked(StateStarting)
	t.transitionLocked(StateAdvertising)
	t.advertiseBack.Reset()
	t.mu.Unlock()

	if t.device != nil {
		t.device.AdvertiseNameAndServices(t.cfg.DeviceName, []gatt.UUID{handshakeServiceUUID})
	}
}

// handleNotifySubscribe records the notify callback once a central enables
// the TX characteristic's CCCD, and negotiates the effective chunk size
// from the central's requested MTU.
func (t *Transport) handleNotifySubscribe(r gatt.Request, n gatt.Notifier) {
	t.notify = func(b []byte) error {
		_, err := n.Write(b)
		return err
	}
	mtu := r.Central.MTU()
	if mtu <= 0 {
		mtu = defaultMTU
	}
	t.chunker.Reconfigure(mtu - attMTUOverhead)
}

// handleWrite is the GATT RX characteristic write handler: the receive
// path (spec.md §4.3 "Receive path").
func (t *Transport) handleWrite(r gatt.Request, data []byte) (status byte) {
	t.onReceive(data)
	return gatt.StatusSuccess
}

func (t *Transport) onReceive(data []byte) {
	if frame.LooksLikeChunk(data) {
		result, err := t.chunker.Receive(data)
		if err != nil {
			t.log.Debug("dropped malformed chunk")
			return
		}
		if !result.Completed {
			return
		}
		t.handleCompletedFrame(result.Frame)
		return
	}
	t.handleCompletedFrame(data)
}

func (t *Transport) handleCompletedFrame(wire []byte) {
	state := t.State()

	if state == StateSecurity1Handshake {
		t.handleHandshakeBytes(wire)
		return
	}

	payload := wire
	if state == StateEncryptedComm {
		plain, err := t.session.Decrypt(wire)
		if err != nil {
			t.log.HandshakeFailed("decrypt failed on operational frame")
			return
		}
		payload = plain
	}

	f, err := codec.DecodeBLECommand(payload)
	if err != nil {
		t.log.Debug("dropped malformed BLE command frame")
		return
	}
	f.Origin = frame.OriginBLE
	t.router.Enqueue(f)
}

// handleHandshakeBytes dispatches inbound bytes during the handshake
// phase to Security1 based on their length: a 35-byte message is an
// establish request, anything else is handled as a verify request
// (spec.md §4.2).
func (t *Transport) handleHandshakeBytes(wire []byte) {
	var (
		resp []byte
		err  error
	)
	if len(wire) == 35 {
		resp, err = t.session.HandleEstablish(wire)
	} else {
		resp, err = t.session.HandleVerify(wire)
	}
	if resp != nil && t.notify != nil {
		_ = sendChunkWithBackpressure(&t.breaker, resp, t.notify)
	}
	if err != nil {
		t.mu.Lock()
		t.transitionLocked(StateDown)
		t.mu.Unlock()
		return
	}
	if t.session.State() == security1.StateSessionActive {
		t.mu.Lock()
		t.transitionLocked(StateSecurity1Ready)
		t.transitionLocked(StateOperational)
		t.transitionLocked(StateEncryptedComm)
		t.mu.Unlock()
	}
}

// Send encrypts (if active), chunks, and transmits a response frame.
func (t *Transport) Send(resp []byte) error {
	out := resp
	if t.State() == StateEncryptedComm {
		ct, err := t.session.Encrypt(resp)
		if err != nil {
			return err
		}
		out = ct
	}
	chunks, err := t.chunker.Send(out)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if t.notify == nil {
			return ErrSendFailed
		}
		if err := sendChunkWithBackpressure(&t.breaker, c, t.notify); err != nil {
			return err
		}
	}
	return nil
}

// advertisingWatchdog re-issues advertising on a backoff that doubles with
// jitter on each timeout without a connection, switching from aggressive to
// conservative advertising parameters once the delay has grown past its
// initial value (spec.md §4.3 "Advertising backoff"). It shares
// internal/backoff with MQTT's reconnect loop rather than rolling its own
// timing.
func (t *Transport) advertisingWatchdog(ctx context.Context) {
	for {
		if t.State() != StateAdvertising {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				continue
			}
		}

		burst, aggressive := advertiseProfile(t.advertiseBack.Peek())
		delay := t.advertiseBack.Next()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if t.State() != StateAdvertising || t.device == nil {
			continue
		}
		if aggressive {
			t.log.Debug(fmt.Sprintf("re-advertising, aggressive profile, burst %s", burst))
		} else {
			t.log.Debug(fmt.Sprintf("re-advertising, conservative profile, burst %s", burst))
		}
		t.device.AdvertiseNameAndServices(t.cfg.DeviceName, []gatt.UUID{handshakeServiceUUID})
	}
}

// Stop tears down the GATT device.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.transitionLocked(StateDown)
	t.mu.Unlock()
	if t.device != nil {
		t.device.Stop()
	}
}
