package crypto

import (
	"bytes"
	"testing"
)

// FuzzEncryptDecrypt fuzzes the channel cipher round trip.
func FuzzEncryptDecrypt(f *testing.F) {
	f.Add([]byte("Hello, World!"))
	f.Add([]byte{0})
	f.Add(make([]byte, 100))

	keys := &SymmetricKeySet{Key: [KeySize]byte{1, 2, 3, 4}}

	f.Fuzz(func(t *testing.T, plaintext []byte) {
		// Skip very large inputs to prevent OOM
		if len(plaintext) > 10000 {
			return
		}

		ciphertext, err := Encrypt(plaintext, keys)
		if err != nil {
			if len(plaintext) == 0 {
				return
			}
			t.Fatalf("Encrypt failed: %v", err)
		}

		decrypted, err := Decrypt(ciphertext, keys)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(plaintext, decrypted) {
			t.Errorf("Decryption mismatch: got %q, want %q", decrypted, plaintext)
		}
	})
}

// FuzzDecrypt feeds arbitrary ciphertext to Decrypt, which must fail
// without panicking.
func FuzzDecrypt(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, NonceSize+TagSize))
	f.Add(bytes.Repeat([]byte{0xff}, 64))

	keys := &SymmetricKeySet{Key: [KeySize]byte{9}}

	f.Fuzz(func(t *testing.T, data []byte) {
		if _, err := Decrypt(data, keys); err == nil {
			t.Errorf("forged ciphertext of %d bytes was accepted", len(data))
		}
	})
}

// FuzzSharedSecret fuzzes key agreement with arbitrary remote keys.
func FuzzSharedSecret(f *testing.F) {
	validKey := make([]byte, 32)
	for i := range validKey {
		validKey[i] = byte(i)
	}
	f.Add(validKey)
	f.Add(make([]byte, 32))
	f.Add(bytes.Repeat([]byte{0xff}, 32))

	local, err := GenerateKeyPair()
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, remote []byte) {
		if len(remote) != KeySize {
			return
		}
		var pub [KeySize]byte
		copy(pub[:], remote)

		keys, err := DeriveSharedSecret(local, pub)
		if err != nil {
			return
		}
		if isZeroKey(keys.Key) {
			t.Error("derived an all-zero key")
		}
	})
}
