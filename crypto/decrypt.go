package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptionFailed indicates malformed ciphertext or a key mismatch.
var ErrDecryptionFailed = errors.New("decryption failed: message authentication failed")

// Decrypt opens a ciphertext produced by Encrypt.
func Decrypt(ciphertext []byte, keys *SymmetricKeySet) ([]byte, error) {
	if keys == nil {
		return nil, ErrNilKeySet
	}
	if len(ciphertext) < Overhead {
		return nil, fmt.Errorf("%w: ciphertext too short (%d bytes)", ErrDecryptionFailed, len(ciphertext))
	}
	if len(ciphertext) > MaxMessageSize+Overhead {
		return nil, ErrMessageTooLarge
	}

	aead, err := chacha20poly1305.New(keys.Key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
