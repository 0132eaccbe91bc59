package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/opd-ai/thunderlink/config"
	"github.com/opd-ai/thunderlink/crypto"
	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	thunderprom "github.com/opd-ai/thunderlink/prometheus"
	"github.com/opd-ai/thunderlink/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// loadNodeKey reads the configured key file, or makes a temporary key when
// the file does not exist.
func loadNodeKey(cfg *config.NodeConfig, passphrase string) (*crypto.KeyPair, error) {
	kp, err := crypto.LoadNodeKey(cfg.Node.KeyFile, []byte(passphrase))
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, oops.Wrapf(err, "loading node key from %s", cfg.Node.KeyFile)
	}

	logrus.WithFields(logrus.Fields{
		"function": "loadNodeKey",
		"key_file": cfg.Node.KeyFile,
	}).Warn("No node key file, using a temporary key; run keygen to persist one")
	return crypto.GenerateKeyPair()
}

// startMetrics builds the node metrics and, if an address is configured,
// serves them until ctx ends. The returned function stops the server.
func startMetrics(ctx context.Context, cfg *config.NodeConfig) (*thunderprom.Metrics, func(), error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := thunderprom.NewMetricsWithRegisterer(cfg.Metrics.Namespace, registry)

	if cfg.Metrics.Address == "" {
		return metrics, func() {}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "startMetrics",
				"address":  cfg.Metrics.Address,
				"error":    err.Error(),
			}).Error("Metrics server failed")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"function": "startMetrics",
		"address":  cfg.Metrics.Address,
	}).Info("Serving metrics")

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	return metrics, stop, nil
}

// transportOptions wires configuration and metrics into a Client or Listener.
func transportOptions(cfg *config.NodeConfig, metrics *thunderprom.Metrics) []transport.Option {
	return []transport.Option{
		transport.WithConnectTimeout(cfg.ConnectTimeout),
		transport.WithWriteTimeout(cfg.WriteTimeout),
		transport.WithReadRate(rate.Limit(cfg.Inbound.ReadRate), cfg.Inbound.ReadBurst),
		transport.WithConnectionMetrics(metrics),
		transport.WithEncryptionOptions(
			encryption.WithConfig(cfg.EncryptionConfig()),
			encryption.WithMetrics(metrics),
		),
	}
}

// logInbound returns a handler that logs application messages from session.
func logInbound(session *peer.Session) func(message.Message) {
	return func(m message.Message) {
		logrus.WithFields(logrus.Fields{
			"function": "logInbound",
			"peer":     session.DisplayName(),
			"type":     m.Type().String(),
		}).Infof("Received %s", m)
	}
}
