package crypto

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/flynn/noise"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo binds derived keys to this protocol and version.
const hkdfInfo = "thunderlink-v1-channel-key"

var (
	// ErrLowOrderPoint indicates the peer's public key produced an all-zero DH output.
	ErrLowOrderPoint = errors.New("X25519 produced all-zero output")
	// ErrNilKeyPair indicates a missing local key pair.
	ErrNilKeyPair = errors.New("local key pair is nil")
)

// SymmetricKeySet is the symmetric key material shared by both ends of a
// connection once the handshake has completed.
type SymmetricKeySet struct {
	Key [KeySize]byte
}

// Wipe zeroes the key material.
func (k *SymmetricKeySet) Wipe() {
	if k == nil {
		return
	}
	ZeroBytes(k.Key[:])
}

// Equal reports whether two key sets hold the same key.
func (k *SymmetricKeySet) Equal(other *SymmetricKeySet) bool {
	if k == nil || other == nil {
		return k == other
	}
	return bytes.Equal(k.Key[:], other.Key[:])
}

// DeriveSharedSecret computes the symmetric key set for a connection from the
// local ephemeral key pair and the peer's ephemeral public key.
//
// Both peers obtain the same result: the HKDF salt is the two public keys in
// lexicographic order, so the derivation does not depend on which side calls it.
func DeriveSharedSecret(local *KeyPair, remotePublic [KeySize]byte) (*SymmetricKeySet, error) {
	log := NewLogger("DeriveSharedSecret").
		WithFields(SecureFieldHash(remotePublic[:], "peer_key"))

	if local == nil {
		return nil, ErrNilKeyPair
	}
	if isZeroKey(remotePublic) {
		log.Warn("Rejected all-zero peer public key")
		return nil, ErrZeroKey
	}

	log.Debug("Computing shared secret using ECDH")

	privateCopy := make([]byte, KeySize)
	copy(privateCopy, local.Private[:])
	defer ZeroBytes(privateCopy)

	raw, err := noise.DH25519.DH(privateCopy, remotePublic[:])
	if err != nil {
		log.WithError(err, "dh_failure", "x25519").Error("X25519 computation failed")
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	defer ZeroBytes(raw)

	var check [KeySize]byte
	copy(check[:], raw)
	if isZeroKey(check) {
		log.Warn("Peer public key is a low-order point")
		return nil, ErrLowOrderPoint
	}

	keys, err := expandKeySet(raw, handshakeSalt(local.Public, remotePublic))
	if err != nil {
		return nil, err
	}

	log.Debug("Shared secret computed, intermediate material wiped")
	return keys, nil
}

// handshakeSalt orders the two ephemeral public keys so both sides agree.
func handshakeSalt(a, b [KeySize]byte) []byte {
	salt := make([]byte, 0, 2*KeySize)
	if bytes.Compare(a[:], b[:]) <= 0 {
		salt = append(salt, a[:]...)
		return append(salt, b[:]...)
	}
	salt = append(salt, b[:]...)
	return append(salt, a[:]...)
}

func expandKeySet(secret, salt []byte) (*SymmetricKeySet, error) {
	reader := hkdf.New(sha256.New, secret, salt, []byte(hkdfInfo))

	keys := &SymmetricKeySet{}
	if _, err := io.ReadFull(reader, keys.Key[:]); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return keys, nil
}
