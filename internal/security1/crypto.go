package security1

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

const (
	keySize = 32 // AES-256 + HMAC-SHA256 derived session key
	ivSize  = 16
	macSize = 32
	// overhead is the fixed per-message cost of the IV and MAC (spec.md §8
	// universal invariant: GetEncryptedSize(n) == n + overhead).
	overhead = ivSize + macSize
)

var (
	ErrInvalidMAC    = errors.New("security1: invalid MAC")
	ErrCiphertextLen = errors.New("security1: ciphertext too short")
)

// aesCTR runs AES-CTR with the given key and IV over data, returning the
// result. CTR is an XOR stream, so the same call encrypts or decrypts.
func aesCTR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

// keypair is an ephemeral X25519 keypair.
type keypair struct {
	private [32]byte
	public  [32]byte
}

// generateKeypair produces a fresh X25519 keypair.
func generateKeypair() (keypair, error) {
	var kp keypair
	if _, err := io.ReadFull(rand.Reader, kp.private[:]); err != nil {
		return kp, err
	}
	// clamp per RFC 7748.
	kp.private[0] &= 248
	kp.private[31] &= 127
	kp.private[31] |= 64

	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return kp, err
	}
	copy(kp.public[:], pub)
	return kp, nil
}

// deriveSessionKey mixes the raw Curve25519 shared secret with the
// proof-of-possession string: session_key = shared_secret XOR SHA256(PoP).
// This binds the session key to physical possession of the device's PoP
// (spec.md §4.2). An empty PoP still yields a key, mixed with the fixed
// SHA-256 of the empty string, so that key is bound to no secret.
func deriveSessionKey(priv [32]byte, peerPub [32]byte, pop string) ([]byte, error) {
	shared, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return nil, err
	}
	popHash := sha256.Sum256([]byte(pop))
	key := make([]byte, keySize)
	for i := 0; i < keySize; i++ {
		key[i] = shared[i] ^ popHash[i]
	}
	return key, nil
}

// GetEncryptedSize returns the on-wire size of encrypting n plaintext bytes.
func GetEncryptedSize(n int) int {
	return n + overhead
}

// GetDecryptedSize returns the plaintext size recoverable from n ciphertext
// bytes, or 0 if n is too small to contain the IV+MAC envelope.
func GetDecryptedSize(n int) int {
	if n <= overhead {
		return 0
	}
	return n - overhead
}

// encrypt composes IV || AES-CTR(key, IV, plaintext) || HMAC-SHA256(key, IV||ciphertext):
// an explicit encrypt-then-MAC construction rather than an AEAD mode, keeping
// confidentiality and integrity as separate primitives.
func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	out := make([]byte, ivSize+len(plaintext)+macSize)
	copy(out[:ivSize], iv)

	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(out[ivSize:ivSize+len(plaintext)], plaintext)

	mac := hmac.New(sha256.New, key)
	mac.Write(out[:ivSize+len(plaintext)])
	sum := mac.Sum(nil)
	copy(out[ivSize+len(plaintext):], sum)

	return out, nil
}

// decrypt reverses encrypt, verifying the MAC in constant time before
// releasing any plaintext.
func decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < overhead {
		return nil, ErrCiphertextLen
	}
	iv := ciphertext[:ivSize]
	body := ciphertext[ivSize : len(ciphertext)-macSize]
	gotMAC := ciphertext[len(ciphertext)-macSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(ciphertext[:ivSize+len(body)])
	wantMAC := mac.Sum(nil)
	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return nil, ErrInvalidMAC
	}

	plaintext := make([]byte, len(body))
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(plaintext, body)
	return plaintext, nil
}
