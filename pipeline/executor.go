package pipeline

import (
	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/message"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// layerExecutor gives layer index its view of the neighbours.
// All methods run on the event loop.
type layerExecutor struct {
	p     *Pipeline
	index int
}

var _ encryption.Executor = (*layerExecutor)(nil)

func (e *layerExecutor) SendTowardWire(m message.Message) error {
	if e.index == 0 {
		return e.p.conn.WriteMessage(m)
	}
	return e.p.layers[e.index-1].OnOutboundMessage(m)
}

func (e *layerExecutor) SendTowardApplication(m message.Message) {
	next := e.index + 1
	if next >= len(e.p.layers) {
		logrus.WithFields(logrus.Fields{
			"function": "SendTowardApplication",
			"message":  m.String(),
		}).Warn("No layer above to receive message, dropping")
		return
	}
	e.p.layers[next].OnInboundMessage(m)
}

func (e *layerExecutor) NotifyNextLayerActive() {
	e.p.activate(e.index + 1)
}

func (e *layerExecutor) CloseConnection() {
	_ = e.p.closeWithError(oops.Wrapf(ErrClosedByLayer, "layer %d", e.index))
}
