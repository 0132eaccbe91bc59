package pipeline

import (
	"net"

	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/message"
)

// Layer is one stage of a connection pipeline.
// The encryption.Processor satisfies it.
type Layer interface {
	OnLayerActive(exec encryption.Executor)
	OnInboundMessage(m message.Message)
	OnOutboundMessage(m message.Message) error
}

var _ Layer = (*encryption.Processor)(nil)

// Conn is a message-framed connection.
type Conn interface {
	ReadMessage() (message.Message, error)
	WriteMessage(m message.Message) error
	RemoteAddr() net.Addr
	Close() error
}
