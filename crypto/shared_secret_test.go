package crypto

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDeriveSharedSecretSymmetric checks both sides of a handshake agree.
func TestDeriveSharedSecretSymmetric(t *testing.T) {
	initiator, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	responder, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	k1, err := DeriveSharedSecret(initiator, responder.Public)
	require.NoError(t, err)
	k2, err := DeriveSharedSecret(responder, initiator.Public)
	require.NoError(t, err)

	assert.True(t, k1.Equal(k2))
	assert.False(t, isZeroKey(k1.Key))
}

func TestDeriveSharedSecretDeterministic(t *testing.T) {
	a, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	b, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	first, err := DeriveSharedSecret(a, b.Public)
	require.NoError(t, err)
	second, err := DeriveSharedSecret(a, b.Public)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	c, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	third, err := DeriveSharedSecret(a, c.Public)
	require.NoError(t, err)
	assert.False(t, first.Equal(third), "different peers must yield different keys")
}

func TestDeriveSharedSecretRejectsBadInput(t *testing.T) {
	local, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	_, err = DeriveSharedSecret(nil, local.Public)
	assert.ErrorIs(t, err, ErrNilKeyPair)

	_, err = DeriveSharedSecret(local, [KeySize]byte{})
	assert.ErrorIs(t, err, ErrZeroKey)

	// u=1 is a small-order point on Curve25519.
	lowOrder := [KeySize]byte{1}
	_, err = DeriveSharedSecret(local, lowOrder)
	assert.Error(t, err)
}

func TestDeriveSharedSecretConcurrent(t *testing.T) {
	a, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)
	b, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	want, err := DeriveSharedSecret(a, b.Public)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*SymmetricKeySet, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = DeriveSharedSecret(a, b.Public)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.True(t, want.Equal(got))
	}
}

func TestSymmetricKeySetWipe(t *testing.T) {
	keys := &SymmetricKeySet{Key: [KeySize]byte{1, 2, 3}}
	keys.Wipe()
	assert.True(t, isZeroKey(keys.Key))

	var nilKeys *SymmetricKeySet
	assert.NotPanics(t, nilKeys.Wipe)
	assert.True(t, nilKeys.Equal(nil))
}
