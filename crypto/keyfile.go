package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the number of iterations for passphrase stretching.
	PBKDF2Iterations = 100000
	// KeyFileVersion is the current sealed key file format version.
	KeyFileVersion = 1
	// SaltSize is the size of the PBKDF2 salt stored in a sealed key file.
	SaltSize = 32
)

// keyFileMagic starts every sealed key file so plain hex files are told apart.
var keyFileMagic = []byte("TLK")

var (
	// ErrKeyFileCorrupt indicates a key file that cannot be parsed.
	ErrKeyFileCorrupt = errors.New("key file corrupt")
	// ErrWrongPassphrase indicates a sealed key file that failed to open.
	ErrWrongPassphrase = errors.New("wrong passphrase or tampered key file")
	// ErrPassphraseRequired indicates a sealed key file was read without a passphrase.
	ErrPassphraseRequired = errors.New("key file is sealed, passphrase required")
)

// SaveNodeKey writes the private half of kp to path with mode 0600.
// With an empty passphrase the file holds the key as hex. Otherwise it is
// sealed with AES-256-GCM under a PBKDF2 key:
//
//	magic[3] | version[2] | salt[32] | nonce[12] | ciphertext+tag
func SaveNodeKey(path string, kp *KeyPair, passphrase []byte) error {
	if kp == nil {
		return ErrNilKeyPair
	}

	var out []byte
	if len(passphrase) == 0 {
		out = []byte(hex.EncodeToString(kp.Private[:]) + "\n")
	} else {
		sealed, err := sealKey(kp.Private[:], passphrase)
		if err != nil {
			return err
		}
		out = sealed
	}
	defer ZeroBytes(out)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}

	// Atomic write using temporary file + rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename key file: %w", err)
	}
	return nil
}

// LoadNodeKey reads a key file written by SaveNodeKey.
func LoadNodeKey(path string, passphrase []byte) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	defer ZeroBytes(data)

	var secret [KeySize]byte
	defer ZeroBytes(secret[:])

	if len(data) >= len(keyFileMagic) && string(data[:len(keyFileMagic)]) == string(keyFileMagic) {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		plain, err := openKey(data, passphrase)
		if err != nil {
			return nil, err
		}
		copy(secret[:], plain)
		ZeroBytes(plain)
	} else {
		raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(raw) != KeySize {
			return nil, fmt.Errorf("%w: expected %d hex-encoded bytes", ErrKeyFileCorrupt, KeySize)
		}
		copy(secret[:], raw)
		ZeroBytes(raw)
	}

	return FromSecretKey(secret)
}

func sealKey(secret, passphrase []byte) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := keyFileAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := make([]byte, 0, len(keyFileMagic)+2+SaltSize+len(nonce))
	header = append(header, keyFileMagic...)
	header = binary.BigEndian.AppendUint16(header, KeyFileVersion)
	header = append(header, salt...)
	header = append(header, nonce...)

	// The header is authenticated as additional data.
	return gcm.Seal(header, nonce, secret, header), nil
}

func openKey(data, passphrase []byte) ([]byte, error) {
	const nonceSize = 12
	headerSize := len(keyFileMagic) + 2 + SaltSize + nonceSize
	if len(data) < headerSize+KeySize+16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrKeyFileCorrupt, len(data))
	}

	version := binary.BigEndian.Uint16(data[len(keyFileMagic):])
	if version != KeyFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrKeyFileCorrupt, version)
	}

	saltStart := len(keyFileMagic) + 2
	salt := data[saltStart : saltStart+SaltSize]
	nonce := data[saltStart+SaltSize : headerSize]

	gcm, err := keyFileAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, nonce, data[headerSize:], data[:headerSize])
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	if len(plain) != KeySize {
		ZeroBytes(plain)
		return nil, fmt.Errorf("%w: sealed key is %d bytes", ErrKeyFileCorrupt, len(plain))
	}
	return plain, nil
}

func keyFileAEAD(passphrase, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(passphrase, salt, PBKDF2Iterations, 32, sha256.New)
	defer SecureWipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// FormatPublicKey renders a public key as lowercase hex.
func FormatPublicKey(pub [KeySize]byte) string {
	return hex.EncodeToString(pub[:])
}

// ParsePublicKey parses the output of FormatPublicKey.
func ParsePublicKey(s string) ([KeySize]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return [KeySize]byte{}, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}
	return PublicKeyFromBytes(raw)
}
