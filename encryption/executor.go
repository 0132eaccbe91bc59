package encryption

import "github.com/opd-ai/thunderlink/message"

// Executor is supplied by the pipeline hosting a Processor. It is the only
// way the Processor reaches its neighbours.
type Executor interface {
	// SendTowardWire hands a message to the transport for framing and writing.
	SendTowardWire(m message.Message) error

	// SendTowardApplication hands a decrypted message to the next layer up.
	SendTowardApplication(m message.Message)

	// NotifyNextLayerActive activates the next layer up. The Processor calls
	// it exactly once, after the shared secret is set.
	NotifyNextLayerActive()

	// CloseConnection closes the underlying transport.
	CloseConnection()
}
