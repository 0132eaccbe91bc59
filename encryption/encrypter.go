package encryption

import (
	"fmt"

	"github.com/opd-ai/thunderlink/crypto"
	"github.com/opd-ai/thunderlink/message"
)

// MessageEncrypter converts application messages to and from Encrypted
// envelopes under a connection key set. Implementations must be stateless so
// that one instance can serve every connection.
type MessageEncrypter interface {
	Encrypt(m message.Message, keys *crypto.SymmetricKeySet) (*message.Encrypted, error)
	Decrypt(e *message.Encrypted, keys *crypto.SymmetricKeySet) (message.Message, error)
}

// SecretDeriver computes the connection key set from the local ephemeral key
// pair and the peer's ephemeral public key.
type SecretDeriver func(local *crypto.KeyPair, remote [crypto.KeySize]byte) (*crypto.SymmetricKeySet, error)

// AEADEncrypter encodes messages with the message codec and seals them with
// crypto.Encrypt.
type AEADEncrypter struct{}

var _ MessageEncrypter = AEADEncrypter{}

// Encrypt marshals and seals m.
func (AEADEncrypter) Encrypt(m message.Message, keys *crypto.SymmetricKeySet) (*message.Encrypted, error) {
	plaintext, err := message.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Type(), err)
	}
	defer crypto.ZeroBytes(plaintext)

	ciphertext, err := crypto.Encrypt(plaintext, keys)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", m.Type(), err)
	}
	return &message.Encrypted{Ciphertext: ciphertext}, nil
}

// Decrypt opens e and unmarshals the message inside.
func (AEADEncrypter) Decrypt(e *message.Encrypted, keys *crypto.SymmetricKeySet) (message.Message, error) {
	plaintext, err := crypto.Decrypt(e.Ciphertext, keys)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(plaintext)

	m, err := message.Unmarshal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("decode decrypted payload: %w", err)
	}
	return m, nil
}
