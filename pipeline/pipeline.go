package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// eventQueueSize bounds pending callbacks per connection.
const eventQueueSize = 128

var (
	// ErrClosed indicates the pipeline has shut down.
	ErrClosed = errors.New("pipeline closed")
	// ErrNoLayers indicates a pipeline without any layer above encryption.
	ErrNoLayers = errors.New("pipeline needs at least one application layer")
	// ErrClosedByLayer indicates a layer closed the connection, typically
	// after a protocol violation.
	ErrClosedByLayer = errors.New("connection closed by layer")
)

// Pipeline runs the layers of a single connection.
type Pipeline struct {
	conn    Conn
	session *peer.Session
	layers  []Layer
	active  []bool

	events chan func()
	done   chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
	loopDone  chan struct{}
	startOnce sync.Once
}

// New builds a pipeline whose bottom layer is an encryption.Processor for
// session, followed by upper in order.
func New(conn Conn, session *peer.Session, opts []encryption.Option, upper ...Layer) (*Pipeline, error) {
	if conn == nil {
		return nil, oops.Errorf("pipeline connection is nil")
	}
	if len(upper) == 0 {
		return nil, ErrNoLayers
	}

	proc, err := encryption.NewProcessor(session, opts...)
	if err != nil {
		return nil, oops.Wrapf(err, "creating encryption layer")
	}

	layers := append([]Layer{proc}, upper...)
	return &Pipeline{
		conn:     conn,
		session:  session,
		layers:   layers,
		active:   make([]bool, len(layers)),
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Processor returns the encryption layer.
func (p *Pipeline) Processor() *encryption.Processor {
	return p.layers[0].(*encryption.Processor)
}

// Session returns the peer session of this connection.
func (p *Pipeline) Session() *peer.Session { return p.session }

// Start activates the encryption layer and begins reading from the connection.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		// Activation is queued before the reader starts, so it always runs first.
		p.events <- func() { p.activate(0) }
		go p.eventLoop()
		go p.readLoop()
	})
}

// Send submits an application message at the top of the pipeline and waits
// for the layers to accept or reject it.
func (p *Pipeline) Send(ctx context.Context, m message.Message) error {
	errc := make(chan error, 1)
	top := len(p.layers) - 1
	fn := func() { errc <- p.layers[top].OnOutboundMessage(m) }

	select {
	case p.events <- fn:
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the pipeline shuts down.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Wait blocks until the event loop has exited and the session is wiped.
func (p *Pipeline) Wait() { <-p.loopDone }

// Err returns the reason the pipeline closed, or nil if the connection
// ended cleanly or is still open.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Close shuts the connection down. It is safe to call more than once.
func (p *Pipeline) Close() error {
	return p.closeWithError(nil)
}

func (p *Pipeline) closeWithError(cause error) error {
	var err error
	p.closeOnce.Do(func() {
		p.errMu.Lock()
		p.err = cause
		p.errMu.Unlock()

		close(p.done)
		err = p.conn.Close()

		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"peer":     p.session.DisplayName(),
			"remote":   addrString(p.conn),
			"cause":    cause,
		}).Info("Connection closed")
	})
	return err
}

func (p *Pipeline) eventLoop() {
	defer close(p.loopDone)
	// The loop is the only goroutine touching the session, so it wipes it.
	defer p.session.Wipe()

	for {
		select {
		case fn := <-p.events:
			fn()
		case <-p.done:
			return
		}
	}
}

func (p *Pipeline) readLoop() {
	for {
		m, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
			default:
				if isDecodeError(err) {
					p.reportMalformed(err)
				} else if errors.Is(err, io.EOF) {
					p.closeWithError(nil)
				} else {
					logrus.WithFields(logrus.Fields{
						"function": "readLoop",
						"peer":     p.session.DisplayName(),
						"error":    err.Error(),
					}).Warn("Read failed, closing connection")
					p.closeWithError(fmt.Errorf("read: %w", err))
				}
			}
			return
		}

		select {
		case p.events <- func() { p.layers[0].OnInboundMessage(m) }:
		case <-p.done:
			return
		}
	}
}

// reportMalformed hands an undecodable frame to the encryption layer, which
// closes the connection as a protocol violation.
func (p *Pipeline) reportMalformed(err error) {
	fn := func() {
		p.Processor().OnMalformedFrame(err)
		p.closeWithError(fmt.Errorf("decode: %w", err))
	}
	select {
	case p.events <- fn:
	case <-p.done:
	}
}

func isDecodeError(err error) bool {
	return errors.Is(err, message.ErrUnknownType) ||
		errors.Is(err, message.ErrTruncated) ||
		errors.Is(err, message.ErrTooLarge)
}

// activate runs on the event loop.
func (p *Pipeline) activate(i int) {
	if i >= len(p.layers) || p.active[i] {
		return
	}
	p.active[i] = true
	p.layers[i].OnLayerActive(&layerExecutor{p: p, index: i})
}

func addrString(c Conn) string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
