package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/valveguard/corectl/internal/backoff"
	"github.com/valveguard/corectl/internal/codec"
	"github.com/valveguard/corectl/internal/frame"
	"github.com/valveguard/corectl/internal/observability"
	"github.com/valveguard/corectl/internal/router"
	"github.com/valveguard/corectl/internal/security1"
)

// Config configures Transport-MQTT.
type Config struct {
	BrokerURI      string
	ClientID       string
	TopicPrefix    string
	QoS            byte
	Keepalive      time.Duration
	PoP            string
	SecurityEnabled bool
	BackoffMin     time.Duration
	BackoffMax     time.Duration
}

// Transport is the MQTT broker connection (spec.md §4.4).
type Transport struct {
	mu    sync.Mutex
	state State

	cfg    Config
	topics Topics

	client  paho.Client
	session *security1.Session
	router  *router.Router
	back    *backoff.Backoff

	legacyMode bool

	log     *observability.Logger
	metrics *observability.Metrics
}

// New creates a Transport-MQTT instance. SecurityEnabled selects whether
// the handshake/operational topic pairs or the single legacy pair is used
// (spec.md §4.4).
func New(cfg Config, r *router.Router, log *observability.Logger, metrics *observability.Metrics) *Transport {
	return &Transport{
		state:      StateDown,
		cfg:        cfg,
		topics:     NewTopics(cfg.TopicPrefix),
		router:     r,
		back:       backoff.New(cfg.BackoffMin, cfg.BackoffMax),
		legacyMode: !cfg.SecurityEnabled,
		log:        log.WithComponent("transport_mqtt"),
		metrics:    metrics,
	}
}

func (t *Transport) transitionLocked(to State) {
	from := t.state
	if !canTransition(from, to) {
		t.log.Warn("ignoring illegal MQTT state transition")
		return
	}
	t.state = to
	t.log.StateTransition("transport_mqtt", from.String(), to.String())
	if t.metrics != nil {
		t.metrics.TransportStateGauge.WithLabelValues("mqtt").Set(float64(to))
	}
}

// State returns the transport's current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start connects to the broker and subscribes the initial topic set.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	t.transitionLocked(StateConnecting)
	if !t.legacyMode {
		t.session = security1.NewSession(security1.TransportMQTT, t.cfg.PoP, t.log)
	}
	t.mu.Unlock()

	opts := paho.NewClientOptions().
		AddBroker(t.cfg.BrokerURI).
		SetClientID(t.cfg.ClientID).
		SetKeepAlive(t.cfg.Keepalive).
		SetAutoReconnect(false). // reconnection is driven by our own backoff loop
		SetConnectionLostHandler(t.onConnectionLost).
		SetOnConnectHandler(t.onConnect)

	t.client = paho.NewClient(opts)
	token := t.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	go t.txLoop(ctx)
	return nil
}

func (t *Transport) onConnect(c paho.Client) {
	t.mu.Lock()
	t.transitionLocked(StateUp)
	t.back.Reset()
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ReconnectsTotal.WithLabelValues("mqtt", "success").Inc()
	}

	if t.legacyMode {
		t.subscribeLegacy()
		t.mu.Lock()
		t.transitionLocked(StateOperational)
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	t.transitionLocked(StateSecurity1Handshake)
	t.mu.Unlock()
	t.subscribeHandshake()
	if err := t.session.Start(); err != nil {
		t.log.HandshakeFailed(err.Error())
	}
}

func (t *Transport) onConnectionLost(c paho.Client, err error) {
	t.mu.Lock()
	t.transitionLocked(StateDown)
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.ReconnectsTotal.WithLabelValues("mqtt", "failure").Inc()
	}
	go t.reconnectLoop()
}

// reconnectLoop schedules reconnect attempts with exponential backoff and
// jitter (spec.md §4.4 "Reconnect backoff").
func (t *Transport) reconnectLoop() {
	delay := t.back.Next()
	time.Sleep(delay)

	t.mu.Lock()
	t.transitionLocked(StateConnecting)
	t.mu.Unlock()

	token := t.client.Connect()
	token.Wait()
	if token.Error() != nil {
		go t.reconnectLoop()
	}
}

func (t *Transport) subscribeLegacy() {
	t.client.Subscribe(t.topics.LegacyCommand, t.cfg.QoS, t.onLegacyMessage)
}

func (t *Transport) subscribeHandshake() {
	t.client.Subscribe(t.topics.HandshakeRequest, t.cfg.QoS, t.onHandshakeMessage)
}

// transitionToOperational subscribes the data topic and unsubscribes the
// handshake topic once HANDSHAKE_COMPLETE is reached (spec.md §4.4
// "Transition to operational").
func (t *Transport) transitionToOperational() {
	t.client.Unsubscribe(t.topics.HandshakeRequest)
	t.client.Subscribe(t.topics.DataRequest, t.cfg.QoS, t.onDataMessage)
	t.mu.Lock()
	t.transitionLocked(StateSecurity1Ready)
	t.transitionLocked(StateOperational)
	t.transitionLocked(StateEncryptedComm)
	t.mu.Unlock()
}

func (t *Transport) onHandshakeMessage(c paho.Client, m paho.Message) {
	payload := m.Payload()
	var (
		resp []byte
		err  error
	)
	if len(payload) == 35 {
		resp, err = t.session.HandleEstablish(payload)
	} else {
		resp, err = t.session.HandleVerify(payload)
	}
	if resp != nil {
		t.client.Publish(t.topics.HandshakeResponse, t.cfg.QoS, false, resp)
	}
	if err != nil {
		t.mu.Lock()
		t.transitionLocked(StateDown)
		t.mu.Unlock()
		return
	}
	if t.session.State() == security1.StateSessionActive {
		t.transitionToOperational()
	}
}

func (t *Transport) onDataMessage(c paho.Client, m paho.Message) {
	plain, err := t.session.Decrypt(m.Payload())
	if err != nil {
		t.log.Debug("dropped MQTT data message: decrypt failed")
		return
	}
	f, err := codec.DecodeMQTTCommand(plain)
	if err != nil {
		t.log.Debug("dropped malformed MQTT data command")
		return
	}
	f.Origin = frame.OriginMQTT
	t.router.Enqueue(f)
}

// onLegacyMessage handles inbound traffic in legacy (no Security1) mode
// (spec.md §4.4 inbound routing, rule 3).
func (t *Transport) onLegacyMessage(c paho.Client, m paho.Message) {
	f, err := codec.DecodeMQTTCommand(m.Payload())
	if err != nil {
		t.log.Debug("dropped malformed legacy MQTT command")
		return
	}
	f.Origin = frame.OriginMQTT
	t.router.Enqueue(f)
}

// PublishResponse encodes and publishes a router response on the
// appropriate outbound topic: JSON on the legacy/response topic, or an
// opaque encrypted blob on the data-response topic in secure mode
// (spec.md §4.4 "Outbound").
func (t *Transport) PublishResponse(resp router.Response) error {
	if t.legacyMode {
		wire, err := codec.EncodeMQTTResponse(resp.ID, resp.Status, resp.IsFinal, resp.Payload)
		if err != nil {
			return err
		}
		token := t.client.Publish(t.topics.LegacyResponse, t.cfg.QoS, false, wire)
		token.Wait()
		return token.Error()
	}

	wire, err := codec.EncodeMQTTResponse(resp.ID, resp.Status, resp.IsFinal, resp.Payload)
	if err != nil {
		return err
	}
	ct, err := t.session.Encrypt(wire)
	if err != nil {
		return err
	}
	token := t.client.Publish(t.topics.DataResponse, t.cfg.QoS, false, ct)
	token.Wait()
	return token.Error()
}

// txLoop is the dedicated TX thread spec.md §5 describes: it blocks on the
// router's MQTT response queue and publishes each response as it arrives.
func (t *Transport) txLoop(ctx context.Context) {
	responses := t.router.Responses(frame.OriginMQTT)
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-responses:
			if t.State() == StateDown {
				continue // drop pending responses rather than send, per spec.md §5
			}
			if err := t.PublishResponse(resp); err != nil {
				t.log.Debug("failed to publish MQTT response")
			}
		}
	}
}

// Stop disconnects from the broker.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.transitionLocked(StateDown)
	t.mu.Unlock()
	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(250)
	}
}
