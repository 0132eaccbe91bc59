// Package peer holds the per-connection state shared by the layers of a
// thunderlink connection.
//
// A [Session] is created when a connection is dialed or accepted, is owned by
// that connection's pipeline, and is discarded when the connection closes. It
// is never shared between connections and never persisted.
package peer

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/opd-ai/thunderlink/crypto"
)

var (
	// ErrRemoteKeySet indicates a second attempt to record the peer's ephemeral key.
	ErrRemoteKeySet = errors.New("remote ephemeral key already set")
	// ErrSharedSecretSet indicates a second attempt to record the shared secret.
	ErrSharedSecretSet = errors.New("shared secret already set")
)

// Role defines which side of a connection this node is on.
type Role uint8

const (
	// Initiator dialed the connection and sends its handshake first.
	Initiator Role = iota
	// Responder accepted the connection and replies to the peer's handshake.
	Responder
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// SendsFirst reports whether this role emits its handshake message on activation.
func (r Role) SendsFirst() bool {
	return r == Initiator
}

// Identity describes the remote node as far as it is known before the handshake.
// All fields are optional and used only for display.
type Identity struct {
	Host    string
	Port    int
	NodeKey []byte
}

// Session is the mutable per-connection record.
// It is not safe for concurrent use; the pipeline serializes all access.
type Session struct {
	role            Role
	identity        Identity
	localEphemeral  *crypto.KeyPair
	remoteEphemeral *[crypto.KeySize]byte
	sharedSecret    *crypto.SymmetricKeySet
}

// NewSession creates the state for one connection and generates its
// ephemeral key pair.
func NewSession(role Role, identity Identity) (*Session, error) {
	if role != Initiator && role != Responder {
		return nil, fmt.Errorf("invalid role: %d", uint8(role))
	}
	if identity.NodeKey != nil && len(identity.NodeKey) != crypto.KeySize {
		return nil, fmt.Errorf("node key must be %d bytes, got %d", crypto.KeySize, len(identity.NodeKey))
	}

	ephemeral, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}

	if identity.NodeKey != nil {
		identity.NodeKey = append([]byte(nil), identity.NodeKey...)
	}

	return &Session{
		role:           role,
		identity:       identity,
		localEphemeral: ephemeral,
	}, nil
}

// Role returns the connection role.
func (s *Session) Role() Role { return s.role }

// Identity returns what is known about the remote node.
func (s *Session) Identity() Identity { return s.identity }

// LocalEphemeral returns the key pair generated for this connection.
func (s *Session) LocalEphemeral() *crypto.KeyPair { return s.localEphemeral }

// RemoteEphemeral returns the peer's ephemeral public key once it is known.
func (s *Session) RemoteEphemeral() ([crypto.KeySize]byte, bool) {
	if s.remoteEphemeral == nil {
		return [crypto.KeySize]byte{}, false
	}
	return *s.remoteEphemeral, true
}

// SetRemoteEphemeral records the peer's ephemeral public key. It may be called once.
func (s *Session) SetRemoteEphemeral(key [crypto.KeySize]byte) error {
	if s.remoteEphemeral != nil {
		return ErrRemoteKeySet
	}
	s.remoteEphemeral = &key
	return nil
}

// SharedSecret returns the connection key set, or nil before the handshake completes.
func (s *Session) SharedSecret() *crypto.SymmetricKeySet { return s.sharedSecret }

// HasSharedSecret reports whether the handshake has produced a key set.
func (s *Session) HasSharedSecret() bool { return s.sharedSecret != nil }

// SetSharedSecret records the connection key set. It may be called once.
func (s *Session) SetSharedSecret(keys *crypto.SymmetricKeySet) error {
	if keys == nil {
		return crypto.ErrNilKeySet
	}
	if s.sharedSecret != nil {
		return ErrSharedSecretSet
	}
	s.sharedSecret = keys
	return nil
}

// DisplayName returns the remote host if known, else the first 8 hex
// characters of the remote node key, else "".
func (s *Session) DisplayName() string {
	if s.identity.Host != "" {
		return s.identity.Host
	}
	if len(s.identity.NodeKey) > 0 {
		return hex.EncodeToString(s.identity.NodeKey)[:8]
	}
	return ""
}

// Wipe erases the ephemeral private key and the shared secret.
// The session must not be used afterwards.
func (s *Session) Wipe() {
	if s.localEphemeral != nil {
		_ = crypto.WipeKeyPair(s.localEphemeral)
	}
	s.sharedSecret.Wipe()
}
