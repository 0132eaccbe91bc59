package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the size of the nonce prepended to every ciphertext.
	NonceSize = chacha20poly1305.NonceSize
	// TagSize is the size of the Poly1305 authentication tag.
	TagSize = chacha20poly1305.Overhead
	// Overhead is the number of bytes Encrypt adds to a plaintext.
	Overhead = NonceSize + TagSize
)

// Maximum message size (1MB to prevent excessive memory usage)
const MaxMessageSize = 1024 * 1024

var (
	// ErrEmptyMessage indicates an attempt to encrypt nothing.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMessageTooLarge indicates a plaintext above MaxMessageSize.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrNilKeySet indicates a missing symmetric key set.
	ErrNilKeySet = errors.New("symmetric key set is nil")
)

// Encrypt seals plaintext with the connection key set.
// The returned data format is: [12-byte nonce][ciphertext][16-byte tag]
func Encrypt(plaintext []byte, keys *SymmetricKeySet) ([]byte, error) {
	if keys == nil {
		return nil, ErrNilKeySet
	}
	if len(plaintext) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(plaintext) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	aead, err := chacha20poly1305.New(keys.Key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}
