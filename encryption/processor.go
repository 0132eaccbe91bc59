package encryption

import (
	"time"

	"github.com/opd-ai/thunderlink/crypto"
	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// Processor is the handshake and relay engine of one connection.
type Processor struct {
	session   *peer.Session
	config    Config
	encrypter MessageEncrypter
	derive    SecretDeriver
	metrics   Metrics
	logger    *logrus.Logger

	exec        Executor
	state       State
	initialSent bool
	activatedAt time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithConfig sets the diagnostic log toggles.
func WithConfig(cfg Config) Option {
	return func(p *Processor) { p.config = cfg }
}

// WithEncrypter replaces the default AEADEncrypter.
func WithEncrypter(e MessageEncrypter) Option {
	return func(p *Processor) { p.encrypter = e }
}

// WithSecretDeriver replaces crypto.DeriveSharedSecret.
func WithSecretDeriver(d SecretDeriver) Option {
	return func(p *Processor) { p.derive = d }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger routes log output to l instead of the logrus standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates the engine for the connection described by session.
func NewProcessor(session *peer.Session, opts ...Option) (*Processor, error) {
	if session == nil {
		return nil, ErrNilSession
	}

	p := &Processor{
		session:   session,
		config:    DefaultConfig(),
		encrypter: AEADEncrypter{},
		derive:    crypto.DeriveSharedSecret,
		metrics:   NoopMetrics{},
		logger:    logrus.StandardLogger(),
		state:     StateAwaitingActivation,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// State returns the current handshake state.
func (p *Processor) State() State { return p.state }

// Session returns the peer session owned by this processor.
func (p *Processor) Session() *peer.Session { return p.session }

// InitialSent reports whether this side's HandshakeInitial has been emitted.
func (p *Processor) InitialSent() bool { return p.initialSent }

// OnLayerActive is called by the pipeline once the transport is ready.
// The initiator emits its handshake message here.
func (p *Processor) OnLayerActive(exec Executor) {
	if p.state != StateAwaitingActivation {
		p.entry("OnLayerActive").WithField("state", p.state).
			Debug("Layer already active, ignoring repeated activation")
		return
	}

	p.exec = exec
	p.activatedAt = time.Now()
	if !p.transition(eventActivated) {
		return
	}

	p.entry("OnLayerActive").WithField("sends_first", p.session.Role().SendsFirst()).
		Debug("Encryption layer active")

	if p.session.Role().SendsFirst() {
		if err := p.sendInitialIfNotSent(); err != nil {
			p.sendFailed(err)
		}
	}
}

// OnInboundMessage handles a message deframed from the wire.
func (p *Processor) OnInboundMessage(m message.Message) {
	switch p.state {
	case StateAwaitingActivation:
		p.entry("OnInboundMessage").WithField("message", describe(m)).
			Error("Inbound message before layer activation")
		p.failClosed("before_activation", oops.Wrapf(ErrProtocolViolation, "inbound %s before activation", describe(m)))
	case StateKeyExchangeInFlight:
		p.processHandshake(m)
	case StateEstablished:
		p.processEncrypted(m)
	case StateClosed:
		p.entry("OnInboundMessage").WithField("message", describe(m)).
			Debug("Dropping inbound message on closed connection")
	}
}

// OnOutboundMessage encrypts an application message and sends it toward the wire.
// It fails if the key exchange has not finished.
func (p *Processor) OnOutboundMessage(m message.Message) error {
	if m == nil {
		return oops.Errorf("outbound message is nil")
	}

	switch p.state {
	case StateEstablished:
	case StateClosed:
		return oops.Wrapf(ErrConnectionClosed, "cannot send %s", m.Type())
	default:
		p.entry("OnOutboundMessage").
			WithFields(logrus.Fields{"state": p.state, "message": m.String()}).
			Error("Outbound message even though key exchange not finished")
		return oops.Wrapf(ErrNotEstablished, "state %s, message %s", p.state, m)
	}

	if message.IsWire(m) {
		return oops.Wrapf(ErrWireMessageFromApplication, "message %s", m)
	}

	encrypted, err := p.encrypter.Encrypt(m, p.session.SharedSecret())
	if err != nil {
		return oops.Wrapf(err, "encrypting outbound %s", m.Type())
	}

	p.logRelay(directionOutbound, m, len(encrypted.Ciphertext))

	if err := p.exec.SendTowardWire(encrypted); err != nil {
		p.sendFailed(err)
		return oops.Wrapf(err, "sending %s", m.Type())
	}
	p.metrics.MessageSent(m.Type().String(), len(encrypted.Ciphertext))
	return nil
}

func (p *Processor) processHandshake(m message.Message) {
	initial, ok := m.(*message.HandshakeInitial)
	if !ok {
		p.failClosed("unexpected_message",
			oops.Wrapf(ErrProtocolViolation, "expecting HandshakeInitial, got %s", describe(m)))
		return
	}

	if err := p.session.SetRemoteEphemeral(initial.EphemeralPublicKey); err != nil {
		p.failClosed("duplicate_handshake", oops.Wrapf(ErrProtocolViolation, "%v", err))
		return
	}

	keys, err := p.derive(p.session.LocalEphemeral(), initial.EphemeralPublicKey)
	if err != nil {
		p.failClosed("derive_failed", oops.Wrapf(ErrProtocolViolation, "deriving shared secret: %v", err))
		return
	}
	if err := p.session.SetSharedSecret(keys); err != nil {
		p.failClosed("derive_failed", oops.Wrapf(ErrProtocolViolation, "%v", err))
		return
	}

	// Established before the reply goes out: a peer answering synchronously
	// may already send encrypted traffic from inside SendTowardWire.
	if !p.transition(eventHandshakeReceived) {
		return
	}

	if err := p.sendInitialIfNotSent(); err != nil {
		p.sendFailed(err)
		return
	}

	// The send may have re-entered this processor and closed it.
	if p.state != StateEstablished {
		return
	}

	p.onKeyExchangeFinished()
}

func (p *Processor) onKeyExchangeFinished() {
	role := p.session.Role().String()
	elapsed := time.Since(p.activatedAt)
	p.metrics.HandshakeCompleted(role, elapsed.Seconds())

	p.entry("onKeyExchangeFinished").WithFields(logrus.Fields{
		"role":     role,
		"duration": elapsed,
	}).Debug("Key exchange finished")

	p.exec.NotifyNextLayerActive()
}

func (p *Processor) processEncrypted(m message.Message) {
	encrypted, ok := m.(*message.Encrypted)
	if !ok {
		p.failClosed("unexpected_message",
			oops.Wrapf(ErrProtocolViolation, "non-encrypted message after key exchange: %s", describe(m)))
		return
	}

	decrypted, err := p.encrypter.Decrypt(encrypted, p.session.SharedSecret())
	if err != nil {
		p.metrics.DecryptionError()
		p.failClosed("decryption_failed", oops.Wrapf(ErrProtocolViolation, "decrypting message: %v", err))
		return
	}

	if message.IsWire(decrypted) {
		p.failClosed("nested_wire_message",
			oops.Wrapf(ErrProtocolViolation, "envelope contained %s", decrypted.Type()))
		return
	}

	p.logRelay(directionInbound, decrypted, len(encrypted.Ciphertext))
	p.metrics.MessageReceived(decrypted.Type().String(), len(encrypted.Ciphertext))
	p.exec.SendTowardApplication(decrypted)
}

func (p *Processor) sendInitialIfNotSent() error {
	if p.initialSent {
		return nil
	}

	// Set before sending: the peer's reply may re-enter this processor
	// before SendTowardWire returns.
	p.initialSent = true

	initial := &message.HandshakeInitial{EphemeralPublicKey: p.session.LocalEphemeral().Public}
	if err := p.exec.SendTowardWire(initial); err != nil {
		return oops.Wrapf(err, "sending HandshakeInitial")
	}

	p.entry("sendInitialIfNotSent").
		WithFields(crypto.SecureFieldHash(initial.EphemeralPublicKey[:], "ephemeral_key")).
		Debug("Sent HandshakeInitial")
	return nil
}

// OnMalformedFrame handles an inbound frame that could not be decoded.
func (p *Processor) OnMalformedFrame(err error) {
	p.failClosed("malformed_frame", oops.Wrapf(ErrProtocolViolation, "decoding inbound frame: %v", err))
}

// failClosed reports a protocol violation and closes the transport once.
func (p *Processor) failClosed(reason string, err error) {
	if p.shutdown(reason, err) {
		p.metrics.ProtocolViolation(reason)
	}
}

// sendFailed closes the transport after a write toward the wire failed.
func (p *Processor) sendFailed(err error) {
	if p.shutdown("send_failed", err) {
		p.metrics.SendFailed()
	}
}

// shutdown moves to Closed and closes the transport. It reports false if the
// processor was already closed.
func (p *Processor) shutdown(reason string, err error) bool {
	if p.state == StateClosed {
		return false
	}
	p.state, _ = nextState(p.state, eventFailed)

	p.entry("shutdown").WithFields(logrus.Fields{
		"reason": reason,
		"error":  err.Error(),
	}).Warn("Closing connection")

	if p.exec != nil {
		p.exec.CloseConnection()
	}
	return true
}

// transition applies ev. An event that is not valid in the current state
// closes the connection and reports false.
func (p *Processor) transition(ev event) bool {
	next, err := nextState(p.state, ev)
	if err != nil {
		p.failClosed("invalid_transition", err)
		return false
	}
	p.state = next
	return true
}

func (p *Processor) entry(function string) *logrus.Entry {
	return p.logger.WithFields(logrus.Fields{
		"function": function,
		"peer":     p.displayName(),
		"role":     p.session.Role().String(),
	})
}

func (p *Processor) displayName() string {
	if name := p.session.DisplayName(); name != "" {
		return name
	}
	return "unknown"
}

func describe(m message.Message) string {
	if m == nil {
		return "<nil>"
	}
	return m.String()
}
