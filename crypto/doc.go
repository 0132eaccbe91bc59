// Package crypto implements the cryptographic primitives used by the
// thunderlink secure channel.
//
// It provides the two primitives the handshake and relay engine treats as
// opaque collaborators, the key material they operate on, and node key files:
//
//   - [KeyPair]: a Curve25519 key pair. Long-lived node keys are created with
//     [GenerateKeyPair]; per-connection ephemeral keys with
//     [GenerateEphemeralKeyPair].
//   - [DeriveSharedSecret]: the shared-secret primitive. X25519 followed by
//     HKDF-SHA256 produces a [SymmetricKeySet] that both sides of a connection
//     compute identically.
//   - [Encrypt] and [Decrypt]: the cipher primitive. ChaCha20-Poly1305 with a
//     random 12-byte nonce prepended to every ciphertext.
//
// # Handshake Example
//
//	local, _ := crypto.GenerateEphemeralKeyPair()
//	// ... exchange local.Public for remotePublic over the wire ...
//	keys, err := crypto.DeriveSharedSecret(local, remotePublic)
//	if err != nil {
//	    return err
//	}
//	defer keys.Wipe()
//
//	ciphertext, err := crypto.Encrypt([]byte("ping"), keys)
//	plaintext, err := crypto.Decrypt(ciphertext, keys)
//
// # Concurrency
//
// Every exported function is a pure function of its arguments and keeps no
// package-level mutable state, so the primitives may be called concurrently
// from any number of connections.
//
// # Memory Hygiene
//
// Intermediate secrets (raw DH output, copies of private keys) are wiped with
// [ZeroBytes] before returning. Callers own the returned key material and
// should call [SymmetricKeySet.Wipe] and [WipeKeyPair] when a connection ends.
package crypto
