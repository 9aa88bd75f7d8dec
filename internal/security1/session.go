package security1

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/valveguard/corectl/internal/observability"
)

var (
	ErrWrongState  = errors.New("security1: operation not valid in current state")
	ErrLockTimeout = errors.New("security1: mutex timeout")
)

// mutexTimeout bounds how long Session operations wait for the internal
// lock before giving up, so a stuck handshake never wedges a transport's
// receive loop (spec.md §4.2 "MUTEX_TIMEOUT").
const mutexTimeout = 200 * time.Millisecond

// Session is one Security1 handshake-and-encrypted-channel instance, bound
// to a single transport connection. It is not reused across reconnects.
type Session struct {
	lock chan struct{} // 1-buffered semaphore, acquired/released with a timeout

	transport TransportKind
	pop       string
	state     State

	kp         keypair
	peerPub    [32]byte
	sessionKey []byte
	devRandom  [deviceRandomLen]byte

	stats Stats

	log *observability.Logger
}

// NewSession creates an idle Security1 session for the given transport and
// proof-of-possession secret.
func NewSession(transport TransportKind, pop string, log *observability.Logger) *Session {
	s := &Session{
		lock:      make(chan struct{}, 1),
		transport: transport,
		pop:       pop,
		state:     StateIdle,
		log:       log.WithComponent("security1").WithSession(transport.String()),
	}
	s.lock <- struct{}{}
	return s
}

// acquire locks the session for up to mutexTimeout, returning ErrLockTimeout
// on contention instead of blocking forever.
func (s *Session) acquire() error {
	select {
	case <-s.lock:
		return nil
	case <-time.After(mutexTimeout):
		return ErrLockTimeout
	}
}

func (s *Session) release() {
	s.lock <- struct{}{}
}

// State returns the session's current state.
func (s *Session) State() State {
	if err := s.acquire(); err != nil {
		return StateError
	}
	defer s.release()
	return s.state
}

func (s *Session) transitionLocked(to State) error {
	if !canTransition(s.state, to) {
		return ErrWrongState
	}
	from := s.state
	s.state = to
	s.log.StateTransition("security1", from.String(), to.String())
	return nil
}

// Start moves the session from IDLE through TRANSPORT_STARTING to
// TRANSPORT_READY once the underlying transport link is up.
func (s *Session) Start() error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	if err := s.transitionLocked(StateTransportStarting); err != nil {
		return err
	}
	return s.transitionLocked(StateTransportReady)
}

// HandleEstablish processes an inbound SESSION_ESTABLISH request and
// returns the wire-encoded response. It derives the session key but does
// not yet mark the session active; that happens after HandleVerify.
func (s *Session) HandleEstablish(reqBytes []byte) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	if err := s.transitionLocked(StateHandshakePending); err != nil {
		return nil, err
	}

	start := time.Now()

	req, err := decodeEstablishRequest(reqBytes)
	if err != nil {
		s.state = StateError
		return nil, err
	}
	s.peerPub = req.clientPub

	kp, err := generateKeypair()
	if err != nil {
		s.state = StateError
		return nil, err
	}
	s.kp = kp

	key, err := deriveSessionKey(kp.private, req.clientPub, s.pop)
	if err != nil {
		s.state = StateError
		return nil, err
	}
	s.sessionKey = key

	resp, wire, err := encodeEstablishResponse(kp.public)
	if err != nil {
		s.state = StateError
		return nil, err
	}
	s.devRandom = resp.deviceRandom

	s.stats.HandshakeStarted = start
	return wire, nil
}

// HandleVerify processes an inbound SESSION_VERIFY request. The token is
// AES-CTR(session_key, device_random, device_pub); decrypting it and
// comparing against the device's own public key (spec.md §4.2 step 8)
// proves the peer derived the same session key. A mismatch is fatal: the
// session moves to ERROR, no response is sent (spec.md §8 scenario 5), and
// the caller must tear it down and restart the handshake from scratch.
func (s *Session) HandleVerify(reqBytes []byte) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	if s.state != StateHandshakePending {
		return nil, ErrWrongState
	}

	req, err := decodeVerifyRequest(reqBytes)
	if err != nil {
		s.state = StateError
		return nil, err
	}

	decoded, err := aesCTR(s.sessionKey, s.devRandom[:], req.token)
	if err != nil {
		s.state = StateError
		return nil, err
	}
	if subtle.ConstantTimeCompare(decoded, s.kp.public[:]) != 1 {
		s.state = StateError
		s.stats.ErrorsCount++
		s.log.HandshakeFailed("invalid verify token")
		return nil, ErrInvalidMAC
	}

	if err := s.transitionLocked(StateHandshakeComplete); err != nil {
		return nil, err
	}
	if err := s.transitionLocked(StateSessionActive); err != nil {
		return nil, err
	}

	s.stats.HandshakeDuration = time.Since(s.stats.HandshakeStarted)
	s.stats.SessionStarted = time.Now()
	s.stats.LastActivity = time.Now()

	return encodeVerifyResponse(verifyStatusOK), nil
}

// ClientDeriveToken is the client-side counterpart used to build the
// SESSION_VERIFY request token from the device's response: a client
// computes session_key itself, then proves possession of it by encrypting
// the device's own public key under AES-CTR(session_key, device_random),
// exactly what the device decrypts and compares against in HandleVerify.
func ClientDeriveToken(clientPriv [32]byte, devicePub [32]byte, deviceRandom [deviceRandomLen]byte, pop string) ([]byte, []byte, error) {
	key, err := deriveSessionKey(clientPriv, devicePub, pop)
	if err != nil {
		return nil, nil, err
	}
	token, err := aesCTR(key, deviceRandom[:], devicePub[:])
	if err != nil {
		return nil, nil, err
	}
	return key, token, nil
}

// Encrypt encrypts plaintext under the session's derived key. Valid only
// once the session has reached SESSION_ACTIVE.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	if s.state != StateSessionActive {
		return nil, ErrWrongState
	}
	out, err := encrypt(s.sessionKey, plaintext)
	if err != nil {
		return nil, err
	}
	s.stats.BytesEncrypted += int64(len(plaintext))
	s.stats.EncryptOps++
	s.stats.LastActivity = time.Now()
	return out, nil
}

// Decrypt decrypts ciphertext under the session's derived key. Valid only
// once the session has reached SESSION_ACTIVE.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	if s.state != StateSessionActive {
		return nil, ErrWrongState
	}
	out, err := decrypt(s.sessionKey, ciphertext)
	if err != nil {
		return nil, err
	}
	s.stats.BytesDecrypted += int64(len(ciphertext))
	s.stats.DecryptOps++
	s.stats.LastActivity = time.Now()
	return out, nil
}

// Stop moves the session to STOPPING for graceful teardown.
func (s *Session) Stop() error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	return s.transitionLocked(StateStopping)
}

// StatsSnapshot returns a copy of the session's current statistics.
func (s *Session) StatsSnapshot() Stats {
	if err := s.acquire(); err != nil {
		return Stats{}
	}
	defer s.release()
	return s.stats
}
