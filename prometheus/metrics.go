// Package prometheus records thunderlink connection and handshake counters
// with Prometheus. Metrics implements both encryption.Metrics and
// transport.ConnectionMetrics, so one instance serves a whole node.
//
// # Metric Names
//
// Every name carries the configured namespace (default "thunderlink"):
//
//	thunderlink_handshakes_total{role="initiator|responder"}
//	thunderlink_handshake_duration_seconds{role="initiator|responder"}
//	thunderlink_protocol_violations_total{reason="<reason>"}
//	thunderlink_messages_sent_total{type="<type>"}
//	thunderlink_messages_received_total{type="<type>"}
//	thunderlink_bytes_sent_total{type="<type>"}
//	thunderlink_bytes_received_total{type="<type>"}
//	thunderlink_decryption_errors_total
//	thunderlink_send_failures_total
//	thunderlink_connections_opened_total{direction="inbound|outbound"}
//	thunderlink_connections_closed_total{direction="inbound|outbound"}
//	thunderlink_connect_failures_total
//	thunderlink_accepts_rejected_total
//
// # Example Usage
//
//	metrics := prometheus.NewMetrics("")
//	client := transport.NewClient(layers,
//	    transport.WithConnectionMetrics(metrics),
//	    transport.WithEncryptionOptions(encryption.WithMetrics(metrics)),
//	)
//	http.Handle("/metrics", promhttp.Handler())
package prometheus

import (
	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is used when no namespace is given.
const DefaultNamespace = "thunderlink"

// Metrics is safe for concurrent use.
type Metrics struct {
	handshakes         *prometheus.CounterVec
	handshakeDuration  *prometheus.HistogramVec
	protocolViolations *prometheus.CounterVec

	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	bytesSent        *prometheus.CounterVec
	bytesReceived    *prometheus.CounterVec
	decryptionErrors prometheus.Counter
	sendFailures     prometheus.Counter

	connectionsOpened *prometheus.CounterVec
	connectionsClosed *prometheus.CounterVec
	connectFailures   prometheus.Counter
	acceptsRejected   prometheus.Counter
}

var (
	_ encryption.Metrics          = (*Metrics)(nil)
	_ transport.ConnectionMetrics = (*Metrics)(nil)
)

// NewMetrics registers with the default registry and panics if the
// metrics are already registered.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers with registerer. A nil registerer
// leaves the metrics unregistered.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	counterVec := func(name, help, label string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{label})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		handshakes: counterVec("handshakes_total",
			"Total number of completed key exchanges by role", "role"),
		handshakeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handshake_duration_seconds",
				Help:      "Time from layer activation to shared secret by role",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"role"},
		),
		protocolViolations: counterVec("protocol_violations_total",
			"Total number of connections closed for a protocol violation by reason", "reason"),
		messagesSent: counterVec("messages_sent_total",
			"Total number of encrypted messages sent by type", "type"),
		messagesReceived: counterVec("messages_received_total",
			"Total number of decrypted messages relayed upward by type", "type"),
		bytesSent: counterVec("bytes_sent_total",
			"Total ciphertext bytes sent by type", "type"),
		bytesReceived: counterVec("bytes_received_total",
			"Total ciphertext bytes received by type", "type"),
		decryptionErrors: counter("decryption_errors_total",
			"Total number of ciphertexts that failed to open"),
		sendFailures: counter("send_failures_total",
			"Total number of connections closed because a write toward the wire failed"),
		connectionsOpened: counterVec("connections_opened_total",
			"Total number of connections opened", "direction"),
		connectionsClosed: counterVec("connections_closed_total",
			"Total number of connections closed", "direction"),
		connectFailures: counter("connect_failures_total",
			"Total number of outbound connections that never opened"),
		acceptsRejected: counter("accepts_rejected_total",
			"Total number of inbound connections dropped by the accept rate limit"),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.handshakes,
			m.handshakeDuration,
			m.protocolViolations,
			m.messagesSent,
			m.messagesReceived,
			m.bytesSent,
			m.bytesReceived,
			m.decryptionErrors,
			m.sendFailures,
			m.connectionsOpened,
			m.connectionsClosed,
			m.connectFailures,
			m.acceptsRejected,
		)
	}

	return m
}

// HandshakeCompleted implements encryption.Metrics.
func (m *Metrics) HandshakeCompleted(role string, seconds float64) {
	m.handshakes.WithLabelValues(role).Inc()
	m.handshakeDuration.WithLabelValues(role).Observe(seconds)
}

// ProtocolViolation implements encryption.Metrics.
func (m *Metrics) ProtocolViolation(reason string) {
	m.protocolViolations.WithLabelValues(reason).Inc()
}

// MessageSent implements encryption.Metrics.
func (m *Metrics) MessageSent(msgType string, bytes int) {
	m.messagesSent.WithLabelValues(msgType).Inc()
	m.bytesSent.WithLabelValues(msgType).Add(float64(bytes))
}

// MessageReceived implements encryption.Metrics.
func (m *Metrics) MessageReceived(msgType string, bytes int) {
	m.messagesReceived.WithLabelValues(msgType).Inc()
	m.bytesReceived.WithLabelValues(msgType).Add(float64(bytes))
}

// DecryptionError implements encryption.Metrics.
func (m *Metrics) DecryptionError() {
	m.decryptionErrors.Inc()
}

// SendFailed implements encryption.Metrics.
func (m *Metrics) SendFailed() {
	m.sendFailures.Inc()
}

// ConnectionOpened implements transport.ConnectionMetrics.
func (m *Metrics) ConnectionOpened(direction string) {
	m.connectionsOpened.WithLabelValues(direction).Inc()
}

// ConnectionClosed implements transport.ConnectionMetrics.
func (m *Metrics) ConnectionClosed(direction string) {
	m.connectionsClosed.WithLabelValues(direction).Inc()
}

// ConnectFailed implements transport.ConnectionMetrics.
func (m *Metrics) ConnectFailed() {
	m.connectFailures.Inc()
}

// AcceptRejected implements transport.ConnectionMetrics.
func (m *Metrics) AcceptRejected() {
	m.acceptsRejected.Inc()
}
