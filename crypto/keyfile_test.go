package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeKeyPlainRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "node.key")
	require.NoError(t, SaveNodeKey(path, kp, nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadNodeKey(path, nil)
	require.NoError(t, err)
	assert.Equal(t, kp.Public, loaded.Public)
	assert.Equal(t, kp.Private, loaded.Private)
}

func TestNodeKeySealedRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "node.key")
	require.NoError(t, SaveNodeKey(path, kp, []byte("correct horse")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), FormatPublicKey(kp.Private))

	loaded, err := LoadNodeKey(path, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, kp.Public, loaded.Public)

	_, err = LoadNodeKey(path, []byte("wrong"))
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	_, err = LoadNodeKey(path, nil)
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func TestNodeKeySealedTamper(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "node.key")
	require.NoError(t, SaveNodeKey(path, kp, []byte("pw")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = LoadNodeKey(path, []byte("pw"))
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	require.NoError(t, os.WriteFile(path, raw[:20], 0o600))
	_, err = LoadNodeKey(path, []byte("pw"))
	assert.ErrorIs(t, err, ErrKeyFileCorrupt)
}

func TestLoadNodeKeyErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadNodeKey(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.key")
	require.NoError(t, os.WriteFile(bad, []byte("not hex"), 0o600))
	_, err = LoadNodeKey(bad, nil)
	assert.ErrorIs(t, err, ErrKeyFileCorrupt)

	zero := filepath.Join(dir, "zero.key")
	require.NoError(t, os.WriteFile(zero, []byte(strings.Repeat("00", KeySize)), 0o600))
	_, err = LoadNodeKey(zero, nil)
	assert.ErrorIs(t, err, ErrZeroKey)

	assert.ErrorIs(t, SaveNodeKey(filepath.Join(dir, "nil.key"), nil, nil), ErrNilKeyPair)
}

func TestPublicKeyHex(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	s := FormatPublicKey(kp.Public)
	assert.Len(t, s, 2*KeySize)

	parsed, err := ParsePublicKey(s)
	require.NoError(t, err)
	assert.Equal(t, kp.Public, parsed)

	_, err = ParsePublicKey("zz")
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = ParsePublicKey("abcd")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
