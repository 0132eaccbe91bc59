package encryption

// Metrics receives counters from a Processor.
// Implementations must be safe for concurrent use, since one instance is
// typically shared by every connection of a node.
type Metrics interface {
	// HandshakeCompleted records a finished key exchange.
	// Labels: role (initiator, responder)
	HandshakeCompleted(role string, seconds float64)

	// ProtocolViolation records a fail-closed event.
	// Labels: reason
	ProtocolViolation(reason string)

	// MessageSent records an encrypted message written toward the wire.
	// Labels: type (message type name)
	MessageSent(msgType string, bytes int)

	// MessageReceived records a decrypted message relayed upward.
	// Labels: type (message type name)
	MessageReceived(msgType string, bytes int)

	// DecryptionError records a ciphertext that failed to open.
	DecryptionError()

	// SendFailed records a connection closed because a write toward the
	// wire failed. It is not counted as a protocol violation.
	SendFailed()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

var _ Metrics = NoopMetrics{}

func (NoopMetrics) HandshakeCompleted(string, float64) {}
func (NoopMetrics) ProtocolViolation(string)           {}
func (NoopMetrics) MessageSent(string, int)            {}
func (NoopMetrics) MessageReceived(string, int)        {}
func (NoopMetrics) DecryptionError()                   {}
func (NoopMetrics) SendFailed()                        {}
