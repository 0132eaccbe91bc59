package transport

import (
	"context"
	"net"

	"github.com/opd-ai/thunderlink/peer"
	"github.com/opd-ai/thunderlink/pipeline"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ConnectionListener hears the outcome of one connection attempt. Exactly
// one of its methods is called, exactly once.
type ConnectionListener interface {
	// OnSuccess runs once the TCP connection is open and its pipeline has
	// started. The handshake may still be in flight.
	OnSuccess(p *pipeline.Pipeline)
	// OnFailure runs if the connection never opened.
	OnFailure(err error)
}

// ListenerFuncs adapts two functions to a ConnectionListener. Nil fields
// are skipped.
type ListenerFuncs struct {
	Success func(p *pipeline.Pipeline)
	Failure func(err error)
}

func (l ListenerFuncs) OnSuccess(p *pipeline.Pipeline) {
	if l.Success != nil {
		l.Success(p)
	}
}

func (l ListenerFuncs) OnFailure(err error) {
	if l.Failure != nil {
		l.Failure(err)
	}
}

// Client dials outbound connections.
type Client struct {
	layers LayerFactory
	opts   options
	dialer net.Dialer
}

// NewClient creates a client that stacks the layers from factory above
// encryption on every connection it opens.
func NewClient(factory LayerFactory, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		layers: factory,
		opts:   o,
		dialer: net.Dialer{Timeout: o.connectTimeout},
	}
}

// ConnectTo runs ConnectBlocking in a new goroutine.
func (c *Client) ConnectTo(ctx context.Context, target Target, listener ConnectionListener) {
	go func() {
		if err := c.ConnectBlocking(ctx, target, listener); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ConnectTo",
				"address":  target.Address(),
				"intent":   target.Intent,
				"error":    err.Error(),
			}).Warn("Connection ended with error")
		}
	}()
}

// ConnectBlocking dials target and runs the connection until it closes or
// ctx is cancelled. listener hears OnSuccess once the connection is open,
// or OnFailure if it never opened; a failure after success is only
// reflected in the returned error.
func (c *Client) ConnectBlocking(ctx context.Context, target Target, listener ConnectionListener) error {
	logrus.WithFields(logrus.Fields{
		"function": "ConnectBlocking",
		"address":  target.Address(),
		"intent":   target.Intent,
	}).Infof("Connect to %s - %s", target.Address(), target.Intent)

	p, err := c.open(ctx, target)
	if err != nil {
		c.opts.metrics.ConnectFailed()
		if listener != nil {
			listener.OnFailure(err)
		}
		return err
	}

	c.opts.metrics.ConnectionOpened(directionOutbound)
	defer c.opts.metrics.ConnectionClosed(directionOutbound)

	p.Start()
	if listener != nil {
		listener.OnSuccess(p)
	}

	select {
	case <-p.Done():
	case <-ctx.Done():
		_ = p.Close()
	}
	p.Wait()

	logrus.WithFields(logrus.Fields{
		"function": "ConnectBlocking",
		"address":  target.Address(),
	}).Infof("Connection to %s closed", target.Host)

	return p.Err()
}

func (c *Client) open(ctx context.Context, target Target) (*pipeline.Pipeline, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", target.Address())
	if err != nil {
		return nil, oops.Wrapf(err, "dial %s", target.Address())
	}

	session, err := peer.NewSession(peer.Initiator, target.Identity())
	if err != nil {
		conn.Close()
		return nil, oops.Wrapf(err, "creating session for %s", target.Address())
	}

	p, err := newPipeline(conn, session, c.layers, c.opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// newPipeline frames conn and stacks the factory layers above encryption.
func newPipeline(conn net.Conn, session *peer.Session, factory LayerFactory, o options) (*pipeline.Pipeline, error) {
	if factory == nil {
		return nil, oops.Errorf("no layer factory configured")
	}
	fc := NewFrameConn(conn, o.writeTimeout)
	if o.readRate > 0 {
		fc.SetReadLimiter(rate.NewLimiter(o.readRate, o.readBurst))
	}
	return pipeline.New(fc, session, o.encryption, factory(session)...)
}
