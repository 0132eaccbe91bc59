package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the size in bytes of Curve25519 public and private keys.
const KeySize = 32

var (
	// ErrZeroKey indicates a key consisting entirely of zero bytes.
	ErrZeroKey = errors.New("invalid key: all zeros")
	// ErrInvalidKeySize indicates a key slice of the wrong length.
	ErrInvalidKeySize = errors.New("invalid key size")
)

// KeyPair represents a Curve25519 key pair.
type KeyPair struct {
	Public  [KeySize]byte
	Private [KeySize]byte
}

// GenerateKeyPair creates a new random long-lived node key pair.
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate node key pair: %w", err)
	}

	return &KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}, nil
}

// GenerateEphemeralKeyPair creates a fresh key pair for a single connection.
// The result must never be reused for another connection.
func GenerateEphemeralKeyPair() (*KeyPair, error) {
	dhKey, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key pair: %w", err)
	}
	defer ZeroBytes(dhKey.Private)

	kp := &KeyPair{}
	copy(kp.Public[:], dhKey.Public)
	copy(kp.Private[:], dhKey.Private)
	return kp, nil
}

// FromSecretKey rebuilds a key pair from an existing private key.
func FromSecretKey(secretKey [KeySize]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, ErrZeroKey
	}

	publicKey, err := curve25519.X25519(secretKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	kp := &KeyPair{Private: secretKey}
	copy(kp.Public[:], publicKey)
	return kp, nil
}

// PublicKeyFromBytes validates a raw public key received from a peer.
func PublicKeyFromBytes(b []byte) ([KeySize]byte, error) {
	var pk [KeySize]byte
	if len(b) != KeySize {
		return pk, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(b))
	}
	copy(pk[:], b)
	if isZeroKey(pk) {
		return [KeySize]byte{}, ErrZeroKey
	}
	return pk, nil
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key [KeySize]byte) bool {
	var acc byte
	for _, b := range key {
		acc |= b
	}
	return acc == 0
}
