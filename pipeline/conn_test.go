package pipeline

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/opd-ai/thunderlink/message"
)

var errConnClosed = errors.New("conn closed")

// link is the shared close state of a connected chanConn pair.
type link struct {
	closed chan struct{}
	once   sync.Once
}

// chanConn is an in-memory Conn; closing either end closes both.
type chanConn struct {
	in   chan message.Message
	out  chan message.Message
	link *link
}

func newConnPair() (*chanConn, *chanConn) {
	l := &link{closed: make(chan struct{})}
	ab := make(chan message.Message, 16)
	ba := make(chan message.Message, 16)
	return &chanConn{in: ba, out: ab, link: l}, &chanConn{in: ab, out: ba, link: l}
}

func (c *chanConn) ReadMessage() (message.Message, error) {
	select {
	case m := <-c.in:
		return m, nil
	case <-c.link.closed:
		return nil, io.EOF
	}
}

func (c *chanConn) WriteMessage(m message.Message) error {
	select {
	case <-c.link.closed:
		return errConnClosed
	default:
	}
	select {
	case c.out <- m:
		return nil
	case <-c.link.closed:
		return errConnClosed
	}
}

func (c *chanConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2204}
}

func (c *chanConn) Close() error {
	c.link.once.Do(func() { close(c.link.closed) })
	return nil
}

// undecodableConn fails its first read with err, as a framed connection does
// when a frame carries an unknown type tag.
type undecodableConn struct {
	*chanConn
	err error
}

func (c *undecodableConn) ReadMessage() (message.Message, error) {
	return nil, c.err
}
