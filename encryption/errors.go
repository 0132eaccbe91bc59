package encryption

import "errors"

var (
	// ErrInvalidTransition indicates an event that is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid handshake state transition")

	// ErrProtocolViolation indicates the remote peer sent a message that is not
	// allowed in the current state, or one that could not be decrypted.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrNotEstablished indicates an outbound message was submitted before the
	// key exchange finished. This is a bug in the layer above.
	ErrNotEstablished = errors.New("outbound message before key exchange finished")

	// ErrWireMessageFromApplication indicates the layer above tried to send a
	// message variant that only this layer may produce.
	ErrWireMessageFromApplication = errors.New("wire-level message submitted by application layer")

	// ErrConnectionClosed indicates the processor already closed its connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNilSession indicates a Processor was constructed without a session.
	ErrNilSession = errors.New("peer session is nil")
)
