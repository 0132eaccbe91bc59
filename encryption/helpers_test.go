package encryption

import (
	"sync"
	"testing"

	"github.com/opd-ai/thunderlink/crypto"
	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// recordingExecutor captures everything a Processor emits.
type recordingExecutor struct {
	session *peer.Session

	wire           []message.Message
	app            []message.Message
	notifies       int
	secretAtNotify []bool
	closes         int

	wireErr  error
	onWire   func(message.Message)
	onNotify func()
}

func (r *recordingExecutor) SendTowardWire(m message.Message) error {
	if r.wireErr != nil {
		return r.wireErr
	}
	r.wire = append(r.wire, m)
	if r.onWire != nil {
		r.onWire(m)
	}
	return nil
}

func (r *recordingExecutor) SendTowardApplication(m message.Message) {
	r.app = append(r.app, m)
}

func (r *recordingExecutor) NotifyNextLayerActive() {
	r.notifies++
	r.secretAtNotify = append(r.secretAtNotify, r.session.HasSharedSecret())
	if r.onNotify != nil {
		r.onNotify()
	}
}

func (r *recordingExecutor) CloseConnection() {
	r.closes++
}

// recordingMetrics counts Metrics calls.
type recordingMetrics struct {
	mu          sync.Mutex
	handshakes  map[string]int
	violations  map[string]int
	sent        int
	received    int
	decryptErrs int
	sendFails   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		handshakes: make(map[string]int),
		violations: make(map[string]int),
	}
}

func (m *recordingMetrics) HandshakeCompleted(role string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handshakes[role]++
}

func (m *recordingMetrics) ProtocolViolation(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[reason]++
}

func (m *recordingMetrics) MessageSent(string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

func (m *recordingMetrics) MessageReceived(string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
}

func (m *recordingMetrics) DecryptionError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decryptErrs++
}

func (m *recordingMetrics) SendFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendFails++
}

type fixture struct {
	proc    *Processor
	exec    *recordingExecutor
	metrics *recordingMetrics
	logs    *test.Hook
}

func newFixture(t *testing.T, role peer.Role, opts ...Option) *fixture {
	t.Helper()

	session, err := peer.NewSession(role, peer.Identity{Host: "127.0.0.1", Port: 2204})
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	metrics := newRecordingMetrics()

	all := append([]Option{WithLogger(logger), WithMetrics(metrics)}, opts...)
	proc, err := NewProcessor(session, all...)
	require.NoError(t, err)

	return &fixture{
		proc:    proc,
		exec:    &recordingExecutor{session: session},
		metrics: metrics,
		logs:    hook,
	}
}

// remoteKeys returns a peer ephemeral key pair and the key set both sides derive.
func remoteKeys(t *testing.T, f *fixture) (*crypto.KeyPair, *crypto.SymmetricKeySet) {
	t.Helper()
	remote, err := crypto.GenerateEphemeralKeyPair()
	require.NoError(t, err)
	keys, err := crypto.DeriveSharedSecret(remote, f.proc.Session().LocalEphemeral().Public)
	require.NoError(t, err)
	return remote, keys
}

// establish drives f through a complete handshake with a simulated peer.
func establish(t *testing.T, f *fixture) *crypto.SymmetricKeySet {
	t.Helper()
	f.proc.OnLayerActive(f.exec)
	remote, keys := remoteKeys(t, f)
	f.proc.OnInboundMessage(&message.HandshakeInitial{EphemeralPublicKey: remote.Public})
	require.Equal(t, StateEstablished, f.proc.State())
	return keys
}

func sealFor(t *testing.T, m message.Message, keys *crypto.SymmetricKeySet) *message.Encrypted {
	t.Helper()
	enc, err := AEADEncrypter{}.Encrypt(m, keys)
	require.NoError(t, err)
	return enc
}
