package pipeline

import (
	"sync"

	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/message"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// Handler receives application messages. It runs on the event loop and
// must not block.
type Handler func(m message.Message)

// AppLayer is the top of a pipeline. It answers Ping with Pong and hands
// every other inbound message to a Handler.
type AppLayer struct {
	handler   Handler
	exec      encryption.Executor
	ready     chan struct{}
	readyOnce sync.Once
}

var _ Layer = (*AppLayer)(nil)

// NewAppLayer creates an application layer. handler may be nil.
func NewAppLayer(handler Handler) *AppLayer {
	return &AppLayer{
		handler: handler,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the layer below has finished its handshake.
func (a *AppLayer) Ready() <-chan struct{} { return a.ready }

func (a *AppLayer) OnLayerActive(exec encryption.Executor) {
	a.exec = exec
	a.readyOnce.Do(func() { close(a.ready) })
}

func (a *AppLayer) OnInboundMessage(m message.Message) {
	if ping, ok := m.(*message.Ping); ok {
		if err := a.exec.SendTowardWire(&message.Pong{Nonce: ping.Nonce}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "OnInboundMessage",
				"nonce":    ping.Nonce,
				"error":    err.Error(),
			}).Warn("Failed to answer ping")
		}
	}

	if a.handler != nil {
		a.handler(m)
	}
}

func (a *AppLayer) OnOutboundMessage(m message.Message) error {
	if a.exec == nil {
		return oops.Wrapf(encryption.ErrNotEstablished, "application layer not active, message %s", m)
	}
	return a.exec.SendTowardWire(m)
}
