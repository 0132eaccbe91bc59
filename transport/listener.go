package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/opd-ai/thunderlink/peer"
	"github.com/opd-ai/thunderlink/pipeline"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Listener accepts inbound connections and runs each as peer.Responder.
type Listener struct {
	ln      net.Listener
	layers  LayerFactory
	opts    options
	limiter *rate.Limiter

	mu     sync.Mutex
	conns  map[*pipeline.Pipeline]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Listen opens a TCP listener on address.
func Listen(address string, factory LayerFactory, opts ...Option) (*Listener, error) {
	if factory == nil {
		return nil, oops.Errorf("no layer factory configured")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, oops.Wrapf(err, "listen on %s", address)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Listen",
		"address":  ln.Addr().String(),
	}).Info("Listening for connections")

	return &Listener{
		ln:      ln,
		layers:  factory,
		opts:    o,
		limiter: rate.NewLimiter(o.acceptRate, o.acceptBurst),
		conns:   make(map[*pipeline.Pipeline]struct{}),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until ctx is cancelled or Close is called.
// It returns nil after an orderly shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return oops.Wrapf(err, "accept")
		}

		if !l.limiter.Allow() {
			l.opts.metrics.AcceptRejected()
			logrus.WithFields(logrus.Fields{
				"function": "Serve",
				"remote":   conn.RemoteAddr().String(),
			}).Warn("Accept rate exceeded, dropping connection")
			conn.Close()
			continue
		}

		l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	session, err := peer.NewSession(peer.Responder, identityFromAddr(conn.RemoteAddr()))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"remote":   conn.RemoteAddr().String(),
			"error":    err.Error(),
		}).Error("Failed to create session")
		conn.Close()
		return
	}

	p, err := newPipeline(conn, session, l.layers, l.opts)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"remote":   conn.RemoteAddr().String(),
			"error":    err.Error(),
		}).Error("Failed to build pipeline")
		conn.Close()
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return
	}
	l.conns[p] = struct{}{}
	l.wg.Add(1)
	l.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "handle",
		"remote":   conn.RemoteAddr().String(),
	}).Info("Accepted connection")

	l.opts.metrics.ConnectionOpened(directionInbound)
	p.Start()
	if l.opts.onConnection != nil {
		l.opts.onConnection(p)
	}

	go func() {
		defer l.wg.Done()
		p.Wait()
		l.opts.metrics.ConnectionClosed(directionInbound)

		l.mu.Lock()
		delete(l.conns, p)
		l.mu.Unlock()
	}()
}

// Close stops accepting, closes every open connection and waits for their
// pipelines to finish.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conns := make([]*pipeline.Pipeline, 0, len(l.conns))
	for p := range l.conns {
		conns = append(conns, p)
	}
	l.mu.Unlock()

	err := l.ln.Close()
	for _, p := range conns {
		_ = p.Close()
	}
	l.wg.Wait()
	return err
}
