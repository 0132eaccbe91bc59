package transport

import (
	"time"

	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/opd-ai/thunderlink/pipeline"
	"golang.org/x/time/rate"
)

const (
	// DefaultConnectTimeout bounds a dial.
	DefaultConnectTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultAcceptRate is the sustained number of accepted connections per second.
	DefaultAcceptRate = rate.Limit(10)
	// DefaultAcceptBurst is the number of connections accepted back to back.
	DefaultAcceptBurst = 20
	// MinReadBurst is the smallest read burst that admits a maximum size frame.
	MinReadBurst = frameHeaderSize + message.MaxSize
)

// LayerFactory builds the layers that sit above encryption on a new
// connection. It is called once per connection.
type LayerFactory func(session *peer.Session) []pipeline.Layer

// ConnectionMetrics receives connection lifecycle counters.
// Labels: direction (inbound, outbound)
type ConnectionMetrics interface {
	ConnectionOpened(direction string)
	ConnectionClosed(direction string)
	ConnectFailed()
	AcceptRejected()
}

type noopConnectionMetrics struct{}

func (noopConnectionMetrics) ConnectionOpened(string) {}
func (noopConnectionMetrics) ConnectionClosed(string) {}
func (noopConnectionMetrics) ConnectFailed()          {}
func (noopConnectionMetrics) AcceptRejected()         {}

const (
	directionInbound  = "inbound"
	directionOutbound = "outbound"
)

type options struct {
	connectTimeout time.Duration
	writeTimeout   time.Duration
	acceptRate     rate.Limit
	acceptBurst    int
	readRate       rate.Limit
	readBurst      int
	encryption     []encryption.Option
	metrics        ConnectionMetrics
	onConnection   func(*pipeline.Pipeline)
}

func defaultOptions() options {
	return options{
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   DefaultWriteTimeout,
		acceptRate:     DefaultAcceptRate,
		acceptBurst:    DefaultAcceptBurst,
		metrics:        noopConnectionMetrics{},
	}
}

// Option configures a Client or a Listener.
type Option func(*options)

// WithConnectTimeout sets the dial timeout of a Client.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithWriteTimeout sets the deadline for each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithAcceptRate limits how fast a Listener takes new connections.
func WithAcceptRate(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.acceptRate = r
		o.acceptBurst = burst
	}
}

// WithReadRate limits the bytes per second read from each connection,
// frame headers included. A peer that exceeds it is disconnected. A burst
// below MinReadBurst rejects the largest frames outright. A zero rate, the
// default, reads without a limit.
func WithReadRate(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.readRate = r
		o.readBurst = burst
	}
}

// WithEncryptionOptions passes options to every encryption.Processor.
func WithEncryptionOptions(opts ...encryption.Option) Option {
	return func(o *options) { o.encryption = append(o.encryption, opts...) }
}

// WithConnectionMetrics sets the connection lifecycle recorder.
func WithConnectionMetrics(m ConnectionMetrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithOnConnection registers a callback for every pipeline a Listener
// starts. It runs on the accept goroutine and must not block.
func WithOnConnection(fn func(*pipeline.Pipeline)) Option {
	return func(o *options) { o.onConnection = fn }
}
